package presence

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTypingDecay is how long a typing flag survives without a fresh
// typing event before it falls back to false.
const DefaultTypingDecay = 16 * time.Second

type Status struct {
	Online   bool
	LastSeen *time.Time
	Typing   bool
}

// Tracker holds ephemeral per-user presence for the active room. Typing
// decay timers are keyed by user id and owned here, so teardown can cancel
// every outstanding one deterministically. Any new event for a user cancels
// that user's pending decay first; a stale timer can never override a more
// recent event.
type Tracker struct {
	mu     sync.Mutex
	status map[string]Status
	decay  map[string]*time.Timer
	window time.Duration
	closed bool
}

func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultTypingDecay
	}
	return &Tracker{
		status: make(map[string]Status),
		decay:  make(map[string]*time.Timer),
		window: window,
	}
}

func (t *Tracker) SetOnline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.status[userID]
	st.Online = true
	t.status[userID] = st
	log.Debug().Str("userId", userID).Msg("presence: online")
}

// SetOffline marks the user offline, stamps lastSeen when provided, and
// drops any pending typing state.
func (t *Tracker) SetOffline(userID string, lastSeen *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelDecayLocked(userID)
	st := t.status[userID]
	st.Online = false
	st.Typing = false
	if lastSeen != nil {
		st.LastSeen = lastSeen
	}
	t.status[userID] = st
	log.Debug().Str("userId", userID).Msg("presence: offline")
}

// SetTyping updates the typing flag. A true update schedules decay back to
// false after the window; a superseding event for the same user resets it.
func (t *Tracker) SetTyping(userID string, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.cancelDecayLocked(userID)

	st := t.status[userID]
	st.Typing = typing
	t.status[userID] = st

	if typing {
		var tm *time.Timer
		tm = time.AfterFunc(t.window, func() {
			t.decayTyping(userID, tm)
		})
		t.decay[userID] = tm
	}
}

func (t *Tracker) decayTyping(userID string, tm *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	// The timer that fired may already have been superseded and replaced;
	// only the currently registered timer may flip the flag.
	if t.decay[userID] != tm {
		return
	}
	delete(t.decay, userID)
	st := t.status[userID]
	st.Typing = false
	t.status[userID] = st
	log.Debug().Str("userId", userID).Msg("presence: typing decayed")
}

func (t *Tracker) Get(userID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status[userID]
}

func (t *Tracker) Snapshot() map[string]Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Status, len(t.status))
	for id, st := range t.status {
		out[id] = st
	}
	return out
}

// Close cancels all pending decay timers. The tracker ignores updates
// afterwards.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for id, timer := range t.decay {
		timer.Stop()
		delete(t.decay, id)
	}
}

func (t *Tracker) cancelDecayLocked(userID string) {
	if timer, ok := t.decay[userID]; ok {
		timer.Stop()
		delete(t.decay, userID)
	}
}
