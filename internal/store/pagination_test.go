package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Developer-AbhinavAF/msg/internal/entity"
)

// pagedBacklog serves a fixed backlog page by page, recording every call.
type pagedBacklog struct {
	mu       sync.Mutex
	backlog  []entity.Message
	calls    int
	lastArgs [2]int
}

func newPagedBacklog(total int) *pagedBacklog {
	msgs := make([]entity.Message, total)
	for i := range msgs {
		msgs[i] = makeMessage(fmt.Sprintf("old%03d", i), "x")
	}
	return &pagedBacklog{backlog: msgs}
}

func (b *pagedBacklog) fetch(_ context.Context, offset, limit int) ([]entity.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.lastArgs = [2]int{offset, limit}
	if offset >= len(b.backlog) {
		return nil, nil
	}
	end := offset + limit
	if end > len(b.backlog) {
		end = len(b.backlog)
	}
	return b.backlog[offset:end], nil
}

func TestLoadMore_PagesUntilShortPageExhausts(t *testing.T) {
	s := NewStore(25)
	backlog := newPagedBacklog(60) // pages of 25, 25, 10

	require.True(t, s.LoadMore(context.Background(), backlog.fetch))
	assert.Equal(t, 25, s.Len())
	assert.True(t, s.HasMore(), "a full page means more may exist")

	require.True(t, s.LoadMore(context.Background(), backlog.fetch))
	assert.Equal(t, 50, s.Len())
	assert.True(t, s.HasMore())

	require.True(t, s.LoadMore(context.Background(), backlog.fetch))
	assert.Equal(t, 60, s.Len())
	assert.False(t, s.HasMore(), "a short page must exhaust the pager")

	// A fourth request must not reach the fetcher at all.
	before := backlog.calls
	assert.False(t, s.LoadMore(context.Background(), backlog.fetch))
	assert.Equal(t, before, backlog.calls, "exhausted pager must not fetch")
}

func TestLoadMore_OffsetIsCurrentLength(t *testing.T) {
	s := NewStore(25)
	backlog := newPagedBacklog(100)

	s.Append(makeMessage("live1", "x"))
	s.Append(makeMessage("live2", "x"))

	s.LoadMore(context.Background(), backlog.fetch)
	assert.Equal(t, [2]int{2, 25}, backlog.lastArgs, "offset should count everything already held")
}

func TestLoadMore_EmptyPageExhausts(t *testing.T) {
	s := NewStore(25)
	empty := func(context.Context, int, int) ([]entity.Message, error) {
		return nil, nil
	}

	assert.False(t, s.LoadMore(context.Background(), empty), "nothing added")
	assert.False(t, s.HasMore())
}

func TestLoadMore_FetchErrorExhausts(t *testing.T) {
	s := NewStore(25)
	failing := func(context.Context, int, int) ([]entity.Message, error) {
		return nil, errors.New("boom")
	}

	assert.False(t, s.LoadMore(context.Background(), failing))
	assert.False(t, s.HasMore(), "a failed fetch ends pagination")
	assert.Equal(t, 0, s.Len())

	// ResetPager re-arms for an explicit retry.
	s.ResetPager()
	assert.True(t, s.HasMore())
}

func TestLoadMore_ReentrantCallIsNoOp(t *testing.T) {
	s := NewStore(25)
	entered := make(chan struct{})
	release := make(chan struct{})
	var innerResult bool

	blocking := func(context.Context, int, int) ([]entity.Message, error) {
		close(entered)
		<-release
		return []entity.Message{makeMessage("old1", "x")}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.LoadMore(context.Background(), blocking)
	}()

	<-entered
	assert.True(t, s.Loading())
	innerResult = s.LoadMore(context.Background(), blocking)
	assert.False(t, innerResult, "a second call while loading must be a no-op")

	close(release)
	<-done
	assert.Equal(t, 1, s.Len(), "only the first fetch should have landed")
}

func TestLoadMore_StalePageDroppedAfterClear(t *testing.T) {
	s := NewStore(25)
	entered := make(chan struct{})
	release := make(chan struct{})

	blocking := func(context.Context, int, int) ([]entity.Message, error) {
		close(entered)
		<-release
		return []entity.Message{makeMessage("old1", "x")}, nil
	}

	done := make(chan bool)
	go func() {
		done <- s.LoadMore(context.Background(), blocking)
	}()

	<-entered
	s.Clear() // teardown while the page is in flight
	close(release)

	assert.False(t, <-done, "the stale page must be discarded")
	assert.Equal(t, 0, s.Len())
}

func TestLoadMore_LiveAppendDuringFetchKeepsOrder(t *testing.T) {
	s := NewStore(25)
	entered := make(chan struct{})
	release := make(chan struct{})

	blocking := func(context.Context, int, int) ([]entity.Message, error) {
		close(entered)
		<-release
		return []entity.Message{makeMessage("old1", "x"), makeMessage("old2", "x")}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.LoadMore(context.Background(), blocking)
	}()

	<-entered
	s.Append(makeMessage("live1", "x")) // arrives mid-fetch
	close(release)
	<-done

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "old1", msgs[0].MessageID, "page lands at the head")
	assert.Equal(t, "old2", msgs[1].MessageID)
	assert.Equal(t, "live1", msgs[2].MessageID, "live message keeps its tail position")
}
