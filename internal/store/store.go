package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Developer-AbhinavAF/msg/internal/entity"
)

const DefaultPageSize = 25

// Store owns the canonical ordered message sequence for the active room.
// Order is arrival order: older history is prepended, live messages are
// appended; entries are never re-sorted afterwards. The sequence holds at
// most one entry per message id.
//
// Mutations arrive from the transport read goroutine and from history-fetch
// resolution; the presentation layer only reads. Every operation completes
// under the lock, so a half-applied patch is never observable.
type Store struct {
	mu    sync.RWMutex
	seq   []*entity.Message
	index map[string]*entity.Message

	pageSize  int
	loading   bool
	exhausted bool
	// generation fences in-flight fetches: Clear bumps it and any page that
	// resolves afterwards is dropped.
	generation uint64
}

func NewStore(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		index:    make(map[string]*entity.Message),
		pageSize: pageSize,
	}
}

// Append adds the message at the tail. Duplicate ids are absorbed silently,
// so redelivery is idempotent. Reports whether the message was inserted.
func (s *Store) Append(msg entity.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[msg.MessageID]; ok {
		log.Debug().Str("messageId", msg.MessageID).Msg("store: duplicate append skipped")
		return false
	}
	m := msg
	s.seq = append(s.seq, &m)
	s.index[m.MessageID] = &m
	return true
}

// PrependBatch inserts a page of older messages at the head, preserving the
// server-provided order within the batch. Ids already present are dropped
// from the batch, never from the existing entries. Returns the number of
// messages inserted.
func (s *Store) PrependBatch(batch []entity.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prependLocked(batch)
}

func (s *Store) prependLocked(batch []entity.Message) int {
	fresh := make([]*entity.Message, 0, len(batch))
	for i := range batch {
		m := batch[i]
		if _, ok := s.index[m.MessageID]; ok {
			continue
		}
		fresh = append(fresh, &m)
		s.index[m.MessageID] = &m
	}
	if len(fresh) == 0 {
		return 0
	}
	s.seq = append(fresh, s.seq...)
	return len(fresh)
}

// Patch merges the given fields into the entry with the given id. A patch
// for an unknown id is a silent no-op: patches may race a removal. Patching
// never changes the relative order of entries.
func (s *Store) Patch(id string, p Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.index[id]
	if !ok {
		log.Debug().Str("messageId", id).Msg("store: patch for unknown id ignored")
		return false
	}
	p.apply(m)
	return true
}

// Remove deletes the entry entirely. Used for delete-for-me, which strips
// the row from the local view only. Unknown ids are ignored.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, m := range s.seq {
		if m.MessageID == id {
			s.seq = append(s.seq[:i], s.seq[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the sequence and resets pagination state. Called on session
// teardown; a history page still in flight when Clear runs is discarded when
// it resolves.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq = nil
	s.index = make(map[string]*entity.Message)
	s.loading = false
	s.exhausted = false
	s.generation++
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seq)
}

// Get returns a copy of the entry with the given id.
func (s *Store) Get(id string) (entity.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.index[id]
	if !ok {
		return entity.Message{}, false
	}
	return *m, true
}

// Messages returns a copy of the sequence in order.
func (s *Store) Messages() []entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Message, len(s.seq))
	for i, m := range s.seq {
		out[i] = *m
	}
	return out
}

// Patch describes a partial update. Nil fields are left untouched.
type Patch struct {
	Content   *string
	IsEdited  *bool
	EditedAt  *time.Time
	Reactions []entity.Reaction
	Poll      *entity.Poll
	Status    *entity.MessageStatus
	AddReadBy []string
	// Tombstone marks the entry deleted for everyone: the flag is set and the
	// content is replaced by the placeholder, discarding the original payload.
	Tombstone bool
}

func (p Patch) apply(m *entity.Message) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsEdited != nil {
		m.IsEdited = *p.IsEdited
	}
	if p.EditedAt != nil {
		m.EditedAt = p.EditedAt
	}
	if p.Reactions != nil {
		m.Reactions = p.Reactions
	}
	if p.Poll != nil {
		m.Poll = p.Poll
	}
	if p.Status != nil {
		// Status never regresses: a late "delivered" cannot undo "read".
		if p.Status.Rank() > m.Status.Rank() {
			m.Status = *p.Status
		}
	}
	for _, id := range p.AddReadBy {
		if !m.IsReadBy(id) {
			m.ReadBy = append(m.ReadBy, id)
		}
	}
	if p.Tombstone {
		m.IsDeletedForEveryone = true
		m.Content = entity.DeletedPlaceholder
	}
}
