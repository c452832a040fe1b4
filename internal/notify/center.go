// Package notify collects user-facing notifications raised by background
// subsystems so the page layer can render them as toasts.
package notify

import (
	"sort"
	"sync"
	"time"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one user-visible toast. Category is a stable identifier
// derived from the semantic category of the event, not from any row id, so
// rapid repeats of the same category coalesce into a single visible toast.
type Notification struct {
	Category string
	Kind     Kind
	Message  string
	raisedAt time.Time
}

type entry struct {
	notification Notification
	expiresAt    time.Time
}

// Center deduplicates notifications per category with last-write-wins
// display and expires them after a fixed time-to-live.
type Center struct {
	mu          sync.Mutex
	ttl         time.Duration
	entries     map[string]entry
	subscribers map[int]chan Notification
	nextID      int
	now         func() time.Time
}

const defaultTTL = 5 * time.Second

func NewCenter() *Center {
	return &Center{
		ttl:         defaultTTL,
		entries:     map[string]entry{},
		subscribers: map[int]chan Notification{},
		now:         time.Now,
	}
}

// Notify records a notification, replacing any live notification with the
// same category.
func (c *Center) Notify(n Notification) {
	c.mu.Lock()
	n.raisedAt = c.now()
	c.entries[n.Category] = entry{
		notification: n,
		expiresAt:    n.raisedAt.Add(c.ttl),
	}
	subscribers := make([]chan Notification, 0, len(c.subscribers))
	for _, ch := range c.subscribers {
		subscribers = append(subscribers, ch)
	}
	c.mu.Unlock()

	for _, ch := range subscribers {
		// A slow subscriber must not block the notifying goroutine.
		select {
		case ch <- n:
		default:
		}
	}
}

// Active returns the live notifications ordered by when they were raised.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var live []Notification
	for category, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, category)
			continue
		}
		live = append(live, e.notification)
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].raisedAt.Before(live[j].raisedAt)
	})
	return live
}

// Subscribe returns a channel fed with every notification as it is raised
// and a function that unsubscribes it.
func (c *Center) Subscribe() (<-chan Notification, func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	subscriberBuffer := 16
	ch := make(chan Notification, subscriberBuffer)
	c.subscribers[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}
