package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/HammerMeetNail/campussafe/internal/debounce"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

// MinSearchLength matches the server's minimum query length.
const MinSearchLength = 2

type UserSearcher interface {
	SearchUsers(ctx context.Context, query string) ([]models.UserSearchResult, error)
}

// SearchResult is delivered once per settled query.
type SearchResult struct {
	Query string
	Users []models.UserSearchResult
	Err   error
}

// SearchBox turns keystrokes into at most one search per pause in typing.
// Only the response for the latest query is delivered; earlier in-flight
// responses are dropped.
type SearchBox struct {
	searcher UserSearcher
	deliver  func(SearchResult)
	debounce *debounce.Debouncer

	mu     sync.Mutex
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSearchBox returns a box that waits delay after the last keystroke. A
// non-positive delay uses the debouncer default.
func NewSearchBox(searcher UserSearcher, delay time.Duration, deliver func(SearchResult)) *SearchBox {
	ctx, cancel := context.WithCancel(context.Background())
	return &SearchBox{
		searcher: searcher,
		deliver:  deliver,
		debounce: debounce.New(delay),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Input records the current text of the search field.
func (b *SearchBox) Input(text string) {
	query := strings.TrimSpace(text)

	b.mu.Lock()
	b.seq++
	seq := b.seq
	ctx := b.ctx
	b.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	if len([]rune(query)) < MinSearchLength {
		b.debounce.Cancel()
		b.deliver(SearchResult{Query: query})
		return
	}

	b.debounce.Trigger(ctx, func() {
		users, err := b.searcher.SearchUsers(ctx, query)
		if !b.current(seq) {
			return
		}
		b.deliver(SearchResult{Query: query, Users: users, Err: err})
	})
}

// Pending reports whether a search is waiting for the typing pause.
func (b *SearchBox) Pending() bool {
	return b.debounce.State() == debounce.StatePending
}

// Close drops any pending search and suppresses late responses.
func (b *SearchBox) Close() {
	b.mu.Lock()
	b.seq++
	b.cancel()
	b.mu.Unlock()
	b.debounce.Cancel()
}

func (b *SearchBox) current(seq uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return seq == b.seq && b.ctx.Err() == nil
}
