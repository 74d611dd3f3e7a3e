package state

import (
	"context"

	"github.com/rs/zerolog/log"
)

// AppState holds process-wide lifecycle handles shared across the app.
type AppState struct {
	Ctx     context.Context
	Cancel  context.CancelFunc
	Session *SessionState
}

func InitAppState(parent context.Context) *AppState {
	ctx, cancel := context.WithCancel(parent)
	return &AppState{
		Ctx:    ctx,
		Cancel: cancel,
	}
}

func (s *AppState) Close() {
	if s.Cancel != nil {
		s.Cancel()
	}
	log.Info().Msg("app state closed...")
}
