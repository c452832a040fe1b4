// Package activecase tracks which case is currently in focus for the
// signed-in identity and owns the only mutation paths for that state.
package activecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/araina/gumshoe/internal/dataservice"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/models"
	"github.com/araina/gumshoe/internal/notify"
)

// Current is the selector's view of the active case. Empty ids mean no case
// is active.
type Current struct {
	CaseID   string
	CaseName string
}

type Selector struct {
	mu       sync.Mutex
	current  Current
	client   *dataservice.Client
	notifier *notify.Center
	logger   *slog.Logger
}

func NewSelector(client *dataservice.Client, notifier *notify.Center, logger *slog.Logger) *Selector {
	return &Selector{
		client:   client,
		notifier: notifier,
		logger:   logger.With("source", "activecase"),
	}
}

// Current returns the selector's snapshot of the active case.
func (s *Selector) Current() Current {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// FetchCurrent refreshes the active case from the data service: the
// identity's case with is_active set and a fully prepared cast. Finding no
// such case clears the state without error. A read failure leaves the prior
// state untouched so a transient error does not flicker the UI empty.
func (s *Selector) FetchCurrent(ctx context.Context, identityID string) {
	var c models.Case
	err := s.client.From("games").
		Eq("user_id", identityID).
		Eq("is_active", "true").
		Eq("status", string(models.CaseStatusCastReady)).
		Single(ctx, &c)

	switch {
	case errors.Is(err, dataservice.ErrNoRows):
		s.mu.Lock()
		s.current = Current{}
		s.mu.Unlock()
	case err != nil:
		s.logger.LogAttrs(ctx, slog.LevelError, "could not fetch active case",
			slog.String("identity_id", identityID), errors.SlogError(err))
	default:
		s.mu.Lock()
		s.current = Current{CaseID: c.ID, CaseName: c.Title}
		s.mu.Unlock()
	}
}

// Set activates the given case for the identity. The update is two steps:
// activate the target, then deactivate every other case the identity owns.
// A failure in the first step aborts and surfaces the error. A failure in
// the second step is logged but not surfaced, which can leave more than one
// case active until a later activation succeeds.
func (s *Selector) Set(ctx context.Context, identityID, caseID string) error {
	err := s.client.From("games").
		Eq("id", caseID).
		Eq("user_id", identityID).
		Update(ctx, map[string]any{"is_active": true})
	if err != nil {
		return errors.Wrap(err, "activate case", slog.String("case_id", caseID))
	}

	err = s.client.From("games").
		Neq("id", caseID).
		Eq("user_id", identityID).
		Update(ctx, map[string]any{"is_active": false})
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "could not deactivate sibling cases",
			slog.String("case_id", caseID), errors.SlogError(err))
	}

	s.FetchCurrent(ctx, identityID)
	return nil
}

// Reset clears the local selection and tells the user. Server state is left
// alone; the next FetchCurrent will pick the active case back up.
func (s *Selector) Reset() {
	s.mu.Lock()
	s.current = Current{}
	s.mu.Unlock()
	s.notifier.Notify(notify.Notification{
		Category: "case-reset",
		Kind:     notify.KindSuccess,
		Message:  "Investigation reset",
	})
}

// Clear drops the local selection without notifying, for sign-out and
// identity changes.
func (s *Selector) Clear() {
	s.mu.Lock()
	s.current = Current{}
	s.mu.Unlock()
}
