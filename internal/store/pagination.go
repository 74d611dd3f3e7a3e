package store

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Developer-AbhinavAF/msg/internal/entity"
)

// FetchPage retrieves one page of history, oldest -> newest within the page.
type FetchPage func(ctx context.Context, offset, limit int) ([]entity.Message, error)

// LoadMore drives the pagination state machine:
//
//	idle -(LoadMore)-> loading -> idle | exhausted
//
// A call while loading or exhausted is a no-op, so at most one page fetch is
// in flight and the caller does not need its own debounce. The page offset is
// the current sequence length; a short or empty page, or a fetch error, moves
// the pager to exhausted. The result reports whether any messages were added.
func (s *Store) LoadMore(ctx context.Context, fetch FetchPage) bool {
	s.mu.Lock()
	if s.loading || s.exhausted {
		s.mu.Unlock()
		return false
	}
	s.loading = true
	offset := len(s.seq)
	limit := s.pageSize
	gen := s.generation
	s.mu.Unlock()

	// Suspension point: live events may append while the fetch is out, which
	// is why the page is prepended rather than re-sorted on arrival.
	batch, err := fetch(ctx, offset, limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		// Cleared while the fetch was in flight; drop the stale page.
		log.Debug().Int("offset", offset).Msg("store: stale history page dropped")
		return false
	}
	s.loading = false

	if err != nil {
		// Conservative: a failed fetch ends pagination instead of retrying.
		log.Error().Err(err).Int("offset", offset).Msg("store: history fetch failed, treating as exhausted")
		s.exhausted = true
		return false
	}

	added := 0
	if len(batch) > 0 {
		added = s.prependLocked(batch)
	}
	if len(batch) < limit {
		s.exhausted = true
	}
	return added > 0
}

// HasMore reports whether older history may still be available.
func (s *Store) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.exhausted
}

// Loading reports whether a page fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// ResetPager re-arms an exhausted pager without touching the sequence.
// Provided for callers that want to retry after a transient fetch failure.
func (s *Store) ResetPager() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.exhausted = false
}
