package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/araina/gumshoe/internal/activecase"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/notify"
	"github.com/araina/gumshoe/internal/querycache"
)

const resetDelay = 2 * time.Minute

// Router owns at most one realtime channel, scoped to the signed-in identity
// and its active case. Every identity or case change rebuilds the channel
// from scratch.
type Router struct {
	client   *Client
	selector *activecase.Selector
	notifier *notify.Center
	logger   *slog.Logger

	mu         sync.Mutex
	channel    *Channel
	caseID     string
	store      *querycache.Store
	resetTimer *time.Timer
}

func NewRouter(client *Client, selector *activecase.Selector, notifier *notify.Center, logger *slog.Logger) *Router {
	return &Router{
		client:   client,
		selector: selector,
		notifier: notifier,
		logger:   logger.With("source", "realtime-router"),
	}
}

// Rebuild tears down the prior channel and any pending scheduled reset, then
// subscribes a fresh channel when both ids are set. Teardown happens on every
// path so a sign-out or case switch never leaves a stale subscription behind.
func (r *Router) Rebuild(identityID, caseID string, store *querycache.Store) {
	r.mu.Lock()
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}
	prior := r.channel
	r.channel = nil
	r.caseID = caseID
	r.store = store
	r.mu.Unlock()

	if prior != nil {
		r.client.RemoveChannel(prior)
	}
	if identityID == "" || caseID == "" {
		return
	}

	ch := r.client.Channel(fmt.Sprintf("realtime:case:%s", caseID))
	ch.On("characters", []string{"INSERT", "UPDATE"}, r.guarded(caseID, r.onCharacter)).
		On("clues", []string{"INSERT", "UPDATE"}, r.guarded(caseID, r.onClue)).
		On("timeline_events", []string{"INSERT"}, r.guarded(caseID, r.onTimelineEvent)).
		On("locations", []string{"UPDATE"}, r.guarded(caseID, r.onLocation)).
		On("interactions", []string{"INSERT"}, r.guarded(caseID, r.onInteraction)).
		On("games", []string{"UPDATE"}, r.guarded(caseID, r.onCase))

	r.mu.Lock()
	r.channel = ch
	r.mu.Unlock()

	err := ch.Subscribe(func(status Status) {
		// Failures are logged only. Reconnection happens on the next
		// identity or case change.
		level := slog.LevelInfo
		if status == StatusChannelError || status == StatusTimedOut {
			level = slog.LevelError
		}
		r.logger.LogAttrs(context.Background(), level, "subscription status changed",
			slog.String("case_id", caseID), slog.String("status", string(status)))
	})
	if err != nil {
		r.logger.LogAttrs(context.Background(), slog.LevelError, "could not subscribe",
			slog.String("case_id", caseID), errors.SlogError(err))
	}
}

// row carries the columns the dispatch table cares about, whatever the table.
type row struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	CaseID string `json:"game_id"`
	Status string `json:"status"`
}

// guarded drops events that arrive after the router moved on to another case
// or that belong to a different case than the channel was built for.
func (r *Router) guarded(caseID string, handle func(Change, row)) Handler {
	return func(change Change) {
		var decoded row
		if len(change.New) > 0 {
			if err := json.Unmarshal(change.New, &decoded); err != nil {
				r.logger.LogAttrs(context.Background(), slog.LevelError, "could not decode row", errors.SlogError(err))
				return
			}
		}

		eventCase := decoded.CaseID
		if change.Table == "games" {
			eventCase = decoded.ID
		}

		r.mu.Lock()
		stale := r.caseID != caseID || (eventCase != "" && eventCase != r.caseID)
		store := r.store
		r.mu.Unlock()
		if stale {
			return
		}
		if store != nil {
			store.InvalidateTable(change.Table)
		}
		handle(change, decoded)
	}
}

func (r *Router) onCharacter(change Change, decoded row) {
	switch change.EventType {
	case "INSERT":
		r.notifier.Notify(notify.Notification{
			Category: "character-added",
			Kind:     notify.KindSuccess,
			Message:  fmt.Sprintf("New character added: %s", decoded.Name),
		})
	case "UPDATE":
		r.notifier.Notify(notify.Notification{
			Category: "character-updated",
			Kind:     notify.KindInfo,
			Message:  fmt.Sprintf("%s information updated", decoded.Name),
		})
	}
}

func (r *Router) onClue(Change, row) {
	r.notifier.Notify(notify.Notification{
		Category: "clue-discovered",
		Kind:     notify.KindSuccess,
		Message:  "New clue discovered",
	})
}

func (r *Router) onTimelineEvent(Change, row) {
	r.notifier.Notify(notify.Notification{
		Category: "timeline-updated",
		Kind:     notify.KindInfo,
		Message:  "Timeline updated",
	})
}

func (r *Router) onLocation(Change, row) {
	r.notifier.Notify(notify.Notification{
		Category: "location-discovered",
		Kind:     notify.KindSuccess,
		Message:  "New location discovered",
	})
}

// onInteraction only invalidates the conversation history cache, which
// guarded already did. No toast for the player's own questions.
func (r *Router) onInteraction(Change, row) {}

func (r *Router) onCase(_ Change, decoded row) {
	if decoded.Status != "DONE" {
		return
	}
	r.notifier.Notify(notify.Notification{
		Category: "case-solved",
		Kind:     notify.KindSuccess,
		Message:  "Mystery solved",
	})

	r.mu.Lock()
	if r.resetTimer != nil {
		r.resetTimer.Stop()
	}
	// The reveal lingers before the investigation resets. A rebuild in the
	// meantime cancels the reset.
	r.resetTimer = time.AfterFunc(resetDelay, r.selector.Reset)
	r.mu.Unlock()
}
