package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	require.NoError(t, LoadConfig())
	require.NotNil(t, Conf)

	assert.Equal(t, 25, Conf.Chat.PageSize)
	assert.Equal(t, 1000, Conf.Chat.InitialLimit)
	assert.Equal(t, 16, Conf.Chat.TypingDecaySec)
	assert.Equal(t, 3, Conf.Chat.TypingIdleSec)
	assert.Equal(t, 500, Conf.Chat.ReadSettleMs)
	assert.Equal(t, 1000, Conf.Reconnect.InitialDelayMs)
	assert.Equal(t, 5000, Conf.Reconnect.MaxDelayMs)
	assert.Equal(t, 5, Conf.Reconnect.MaxAttempts)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MSG_CHAT_PAGE_SIZE", "10")
	t.Setenv("MSG_SERVER_API_URL", "http://example.com/api")

	require.NoError(t, LoadConfig())

	assert.Equal(t, 10, Conf.Chat.PageSize, "environment must override the default")
	assert.Equal(t, "http://example.com/api", Conf.Server.APIURL)
}

func TestMemberName_FallsBackToID(t *testing.T) {
	c := &AppConfig{}
	c.Room.Members = map[string]string{"user-a": "Alice"}

	assert.Equal(t, "Alice", c.MemberName("user-a"))
	assert.Equal(t, "user-x", c.MemberName("user-x"), "unknown ids render as-is")
}

func TestCounterpart_ReturnsTheOtherMember(t *testing.T) {
	c := &AppConfig{}
	c.Room.Members = map[string]string{"user-a": "Alice", "user-b": "Bob"}

	assert.Equal(t, "user-b", c.Counterpart("user-a"))
	assert.Equal(t, "user-a", c.Counterpart("user-b"))
}
