package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/models"
	"github.com/araina/gumshoe/internal/notify"
)

// Fallback is shown in place of an answer when the backend fails, so the
// player always sees a message after an attempt.
const Fallback = "Sorry, I couldn't process your request. Please try again."

// ErrBusy is returned when a question for the entity is already in flight.
var ErrBusy = errors.NewSentinel("a question for this entity is already in flight")

// EntityContext identifies what the player is asking about.
type EntityContext struct {
	ID   string
	Kind models.EntityKind
	Name string
}

// Backend answers natural language questions about a case.
type Backend interface {
	Query(ctx context.Context, caseID, query string) (string, error)
}

// Dispatcher sends questions to the game backend, one outstanding request
// per entity. Completions are tagged with the entity and case they were
// dispatched for; a completion that no longer matches the player's current
// selection is cached but not revealed.
type Dispatcher struct {
	backend    Backend
	cache      *ResponseCache
	typewriter *Typewriter
	notifier   *notify.Center
	logger     *slog.Logger

	mu             sync.Mutex
	inflight       map[string]bool
	selectedEntity string
	selectedCase   string
}

func NewDispatcher(backend Backend, cache *ResponseCache, typewriter *Typewriter, notifier *notify.Center, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		backend:    backend,
		cache:      cache,
		typewriter: typewriter,
		notifier:   notifier,
		logger:     logger.With("source", "dispatch"),
		inflight:   map[string]bool{},
	}
}

// Select records which entity the player is looking at. Answers for other
// entities will not start a reveal.
func (d *Dispatcher) Select(entityID, caseID string) {
	d.mu.Lock()
	d.selectedEntity = entityID
	d.selectedCase = caseID
	d.mu.Unlock()
}

// Busy reports whether a question for the entity is outstanding.
func (d *Dispatcher) Busy(entityID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight[entityID]
}

// Send asks the backend about the entity and blocks until the answer is
// cached and, when the entity is still selected, revealing. Returns ErrBusy
// while an earlier question for the same entity is outstanding.
func (d *Dispatcher) Send(ctx context.Context, caseID string, entity EntityContext, freeText string) error {
	d.mu.Lock()
	if d.inflight[entity.ID] {
		d.mu.Unlock()
		return ErrBusy
	}
	d.inflight[entity.ID] = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.inflight, entity.ID)
		d.mu.Unlock()
	}()

	answer, err := d.backend.Query(ctx, caseID, instruction(entity, freeText))
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "query failed",
			slog.String("case_id", caseID), slog.String("entity_id", entity.ID), errors.SlogError(err))
		d.notifier.Notify(notify.Notification{
			Category: "query-failed",
			Kind:     notify.KindError,
			Message:  "The investigation hit a snag. Please try again.",
		})
		answer = Fallback
	}

	d.cache.Put(entity.ID, answer)

	d.mu.Lock()
	current := d.selectedEntity == entity.ID && d.selectedCase == caseID
	d.mu.Unlock()
	if current {
		d.typewriter.Start(answer)
	}

	if err != nil {
		return errors.Wrap(err, "send query")
	}
	return nil
}

// instruction embeds the entity's identifying context so the backend knows
// who or what the free text refers to.
func instruction(entity EntityContext, freeText string) string {
	switch entity.Kind {
	case models.EntityKindCharacter:
		return fmt.Sprintf("Ask the character %q the following: %s", entity.Name, freeText)
	case models.EntityKindLocation:
		return fmt.Sprintf("Regarding the location %q: %s", entity.Name, freeText)
	case models.EntityKindClue:
		return fmt.Sprintf("Regarding the clue %q: %s", entity.Name, freeText)
	case models.EntityKindTimeline:
		return fmt.Sprintf("Regarding the timeline event %q: %s", entity.Name, freeText)
	default:
		return freeText
	}
}
