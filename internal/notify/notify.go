package notify

import "github.com/rs/zerolog/log"

// Notifier receives a signal whenever a message from the counterpart
// arrives. Implementations must not block the caller.
type Notifier interface {
	Notify(senderName, preview string)
}

// LogNotifier surfaces notifications through the structured log. The CLI
// renders messages inline, so the log line is the terminal analog of a
// desktop notification.
type LogNotifier struct{}

func (LogNotifier) Notify(senderName, preview string) {
	log.Info().Str("from", senderName).Str("preview", preview).Msg("notify: new message")
}

// Discard drops notifications; used in tests and headless runs.
type Discard struct{}

func (Discard) Notify(string, string) {}
