// Package querycache provides per-case cached reads with an explicit
// staleness window, so entity pages do not hammer the data service on every
// render while realtime events can still force a refetch.
package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/araina/gumshoe/internal/dataservice"
	"github.com/araina/gumshoe/internal/models"
)

// FetchFunc loads a fresh value from the data service.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cached wraps a fetch func with a staleness window. Get returns the cached
// value while it is fresh and refetches once it goes stale. Invalidate
// forces the next Get to refetch regardless of age.
type Cached[T any] struct {
	mu        sync.Mutex
	fetch     FetchFunc[T]
	staleness time.Duration
	value     T
	fetchedAt time.Time
	populated bool
	now       func() time.Time
}

func NewCached[T any](staleness time.Duration, fetch FetchFunc[T]) *Cached[T] {
	return &Cached[T]{
		fetch:     fetch,
		staleness: staleness,
		now:       time.Now,
	}
}

// Get returns the cached value while fresh, otherwise refetches. A failed
// refetch returns the error; the previous value stays cached so a later Get
// can still succeed against transient failures once the window allows.
func (c *Cached[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.populated && c.now().Sub(c.fetchedAt) < c.staleness {
		return c.value, nil
	}

	value, err := c.fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = value
	c.fetchedAt = c.now()
	c.populated = true
	return value, nil
}

// Invalidate marks the cached value stale.
func (c *Cached[T]) Invalidate() {
	c.mu.Lock()
	c.populated = false
	c.mu.Unlock()
}

// Store bundles the cached entity reads for one case. All reads are
// partitioned by the case id captured at construction; switching cases means
// building a new Store.
type Store struct {
	CaseID     string
	Characters *Cached[[]models.Character]
	Locations  *Cached[[]models.Location]
	Clues      *Cached[[]models.Clue]
	Timeline   *Cached[[]models.TimelineEvent]
	History    *Cached[[]models.ConversationTurn]
}

func NewStore(client *dataservice.Client, caseID string, staleness time.Duration) *Store {
	return &Store{
		CaseID: caseID,
		Characters: NewCached(staleness, func(ctx context.Context) ([]models.Character, error) {
			return dataservice.Characters(ctx, client, caseID)
		}),
		Locations: NewCached(staleness, func(ctx context.Context) ([]models.Location, error) {
			return dataservice.Locations(ctx, client, caseID)
		}),
		Clues: NewCached(staleness, func(ctx context.Context) ([]models.Clue, error) {
			return dataservice.Clues(ctx, client, caseID)
		}),
		Timeline: NewCached(staleness, func(ctx context.Context) ([]models.TimelineEvent, error) {
			return dataservice.TimelineEvents(ctx, client, caseID)
		}),
		History: NewCached(staleness, func(ctx context.Context) ([]models.ConversationTurn, error) {
			return dataservice.ConversationHistory(ctx, client, caseID)
		}),
	}
}

// InvalidateTable maps a realtime change event's table name to the matching
// cached read and marks it stale. Unknown tables are ignored.
func (s *Store) InvalidateTable(table string) {
	switch table {
	case "characters":
		s.Characters.Invalidate()
	case "locations":
		s.Locations.Invalidate()
	case "clues":
		s.Clues.Invalidate()
	case "timeline_events":
		s.Timeline.Invalidate()
	case "interactions":
		s.History.Invalidate()
	}
}
