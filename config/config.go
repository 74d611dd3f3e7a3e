package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppConfig struct {
	App struct {
		Name string `mapstructure:"NAME"`
	}

	Server struct {
		SocketURL string `mapstructure:"SOCKET_URL"`
		APIURL    string `mapstructure:"API_URL"`
	}

	// Room membership and display names are configuration data, not code.
	Room struct {
		ID      string            `mapstructure:"ID"`
		Members map[string]string `mapstructure:"MEMBERS"` // userId -> display name
	}

	Chat struct {
		PageSize       int `mapstructure:"PAGE_SIZE"`
		InitialLimit   int `mapstructure:"INITIAL_LIMIT"`
		TypingDecaySec int `mapstructure:"TYPING_DECAY_SEC"`
		TypingIdleSec  int `mapstructure:"TYPING_IDLE_SEC"`
		ReadSettleMs   int `mapstructure:"READ_SETTLE_MS"`
	}

	Reconnect struct {
		InitialDelayMs int `mapstructure:"INITIAL_DELAY_MS"`
		MaxDelayMs     int `mapstructure:"MAX_DELAY_MS"`
		MaxAttempts    int `mapstructure:"MAX_ATTEMPTS"`
	}
}

var Conf *AppConfig

func LoadConfig() error {
	viper.SetConfigName("application")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("MSG")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER.SOCKET_URL", "ws://localhost:5000/ws")
	viper.SetDefault("SERVER.API_URL", "http://localhost:5000/api")
	viper.SetDefault("CHAT.PAGE_SIZE", 25)
	viper.SetDefault("CHAT.INITIAL_LIMIT", 1000)
	viper.SetDefault("CHAT.TYPING_DECAY_SEC", 16)
	viper.SetDefault("CHAT.TYPING_IDLE_SEC", 3)
	viper.SetDefault("CHAT.READ_SETTLE_MS", 500)
	viper.SetDefault("RECONNECT.INITIAL_DELAY_MS", 1000)
	viper.SetDefault("RECONNECT.MAX_DELAY_MS", 5000)
	viper.SetDefault("RECONNECT.MAX_ATTEMPTS", 5)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Warn().Msg("no config file found, using defaults and environment")
	}

	var config AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	Conf = &config
	log.Info().Msg("configuration loaded...")
	return nil
}

// MemberName resolves a user id to its configured display name.
func (c *AppConfig) MemberName(userID string) string {
	if name, ok := c.Room.Members[userID]; ok {
		return name
	}
	return userID
}

// Counterpart returns the other member of the two-party room.
func (c *AppConfig) Counterpart(userID string) string {
	for id := range c.Room.Members {
		if id != userID {
			return id
		}
	}
	return ""
}
