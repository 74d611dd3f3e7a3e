package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/Developer-AbhinavAF/msg/internal/dtos/chat_dto"
	app_error "github.com/Developer-AbhinavAF/msg/internal/errors"
)

const sessionFile = "session.json"

// SessionState is the persisted login session, reloaded across runs.
type SessionState struct {
	Token  string              `json:"token"`
	User   chat_dto.UserRecord `json:"user"`
	RoomID string              `json:"roomId"`

	path string
}

func sessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "msg")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionFile), nil
}

// LoadSession restores a previous session from disk, if any.
func LoadSession() (*SessionState, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sess SessionState
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	sess.path = path
	return &sess, nil
}

// Login authenticates against the API and persists the resulting session.
func Login(apiURL, username, password string) (*SessionState, error) {
	req := chat_dto.LoginRequest{
		Username: username,
		Password: password,
	}
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(apiURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp chat_dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Message == "" {
			errResp.Message = fmt.Sprintf("login failed with status %d", resp.StatusCode)
		}
		return nil, app_error.NewAppError(resp.StatusCode, errResp.Message, "login")
	}

	var loginResp chat_dto.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, err
	}

	sess := &SessionState{
		Token: loginResp.Token,
		User:  loginResp.User,
	}
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}

	log.Info().Str("userId", sess.User.UserID).Msg("logged in...")
	return sess, nil
}

func (s *SessionState) Save() error {
	if s.path == "" {
		path, err := sessionPath()
		if err != nil {
			return err
		}
		s.path = path
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Logout removes the persisted session from disk.
func (s *SessionState) Logout() error {
	if s.path == "" {
		path, err := sessionPath()
		if err != nil {
			return err
		}
		s.path = path
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	log.Info().Msg("logged out...")
	return nil
}

// TokenExpired reports whether the stored token has passed its expiry.
// The claim is read without signature verification; the server is the
// authority, this only avoids connecting with a token known to be stale.
func (s *SessionState) TokenExpired() bool {
	if s.Token == "" {
		return true
	}
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(s.Token, jwt.MapClaims{})
	if err != nil {
		return true
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().After(exp.Time)
}
