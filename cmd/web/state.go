package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/araina/gumshoe/internal/activecase"
	"github.com/araina/gumshoe/internal/authservice"
	"github.com/araina/gumshoe/internal/contexthelpers"
	"github.com/araina/gumshoe/internal/dispatch"
	"github.com/araina/gumshoe/internal/drafts"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/notify"
	"github.com/araina/gumshoe/internal/querycache"
	"github.com/araina/gumshoe/internal/realtime"
)

// stateRegistry maps session tokens to their in-memory page state. The state
// mirrors what a browser client would hold between navigations: drafts,
// cached answers, the typewriter, and the realtime subscription.
type stateRegistry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	state    *sessionState
	lastSeen time.Time
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{entries: map[string]*registryEntry{}}
}

func (r *stateRegistry) get(token string, build func() *sessionState) *sessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[token]; ok {
		e.lastSeen = time.Now()
		return e.state
	}
	state := build()
	r.entries[token] = &registryEntry{state: state, lastSeen: time.Now()}
	return state
}

func (r *stateRegistry) drop(token string) *sessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[token]
	if !ok {
		return nil
	}
	delete(r.entries, token)
	return e.state
}

// evictIdle signs out and drops every state not touched since the cutoff.
// A state for an expired session can hold a live realtime connection, so it
// leaks goroutines along with the memory if left in the registry.
func (r *stateRegistry) evictIdle(cutoff time.Time) int {
	r.mu.Lock()
	var evicted []*sessionState
	for token, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e.state)
			delete(r.entries, token)
		}
	}
	r.mu.Unlock()

	for _, state := range evicted {
		state.signOut()
	}
	return len(evicted)
}

// startSweeper reclaims state for sessions that expired without an explicit
// logout. Runs until the context is cancelled.
func (r *stateRegistry) startSweeper(ctx context.Context, lifetime time.Duration) {
	interval := time.Hour
	if lifetime < interval {
		interval = lifetime
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictIdle(time.Now().Add(-lifetime))
		}
	}
}

// sessionState is the per-session investigation state.
type sessionState struct {
	app *application

	mu          sync.Mutex
	identityID  string
	accessToken string
	store       *querycache.Store
	rtClient    *realtime.Client
	router      *realtime.Router
	selectedID  string

	tracker    *authservice.Tracker
	notifier   *notify.Center
	selector   *activecase.Selector
	drafts     *drafts.Store
	responses  *dispatch.ResponseCache
	typewriter *dispatch.Typewriter
	dispatcher *dispatch.Dispatcher
}

func (app *application) newSessionState() *sessionState {
	notifier := notify.NewCenter()
	typewriter := dispatch.NewTypewriter(app.typewriterTick)
	responses := dispatch.NewResponseCache()
	s := &sessionState{
		app:        app,
		tracker:    authservice.NewTracker(),
		notifier:   notifier,
		selector:   activecase.NewSelector(app.data, notifier, app.logger),
		drafts:     drafts.NewStore(),
		responses:  responses,
		typewriter: typewriter,
		dispatcher: dispatch.NewDispatcher(app.backend, responses, typewriter, notifier, app.logger),
	}
	s.tracker.OnChange(func(state authservice.State) {
		if state.Phase == authservice.PhaseAnonymous {
			s.teardown()
		}
	})
	return s
}

// stateFor returns the page state for the request's session, creating it on
// first use. The session token keys the registry, so a token renewal starts
// from fresh state.
func (app *application) stateFor(ctx context.Context) *sessionState {
	token := app.sessionManager.Token(ctx)
	return app.states.get(token, app.newSessionState)
}

// pageState returns the session's page state, hydrated from the persisted
// session when the server restarted since the identity signed in.
func (app *application) pageState(r *http.Request) *sessionState {
	ctx := r.Context()
	state := app.stateFor(ctx)
	if identityID := contexthelpers.IdentityID(ctx); identityID != "" {
		state.ensureIdentity(ctx, identityID, contexthelpers.AccessToken(ctx))
	}
	return state
}

// ensureIdentity records the signed-in identity and builds the case-scoped
// state. A no-op when the state already tracks the identity.
func (s *sessionState) ensureIdentity(ctx context.Context, identityID, accessToken string) {
	s.mu.Lock()
	if s.identityID == identityID {
		s.mu.Unlock()
		return
	}
	s.identityID = identityID
	s.accessToken = accessToken
	s.mu.Unlock()

	s.tracker.SetAuthenticated(identityID)
	s.refreshCase(ctx)
}

// signOut clears the session state. The provider-side revocation is the
// caller's job.
func (s *sessionState) signOut() {
	s.tracker.SetAnonymous()

	s.mu.Lock()
	client := s.rtClient
	s.rtClient = nil
	s.router = nil
	s.identityID = ""
	s.accessToken = ""
	s.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
}

// teardown drops case-scoped state on sign-out or identity change. The
// realtime channel is always torn down even when it never subscribed.
func (s *sessionState) teardown() {
	s.selector.Clear()
	s.typewriter.Stop()

	s.mu.Lock()
	router := s.router
	s.store = nil
	s.selectedID = ""
	s.mu.Unlock()

	if router != nil {
		router.Rebuild("", "", nil)
	}
}

// refreshCase re-reads the active case and rebuilds the case-scoped reads
// and the realtime subscription to match.
func (s *sessionState) refreshCase(ctx context.Context) {
	s.mu.Lock()
	identityID := s.identityID
	s.mu.Unlock()
	if identityID == "" {
		return
	}

	s.selector.FetchCurrent(ctx, identityID)
	current := s.selector.Current()

	s.mu.Lock()
	switch {
	case current.CaseID == "":
		s.store = nil
	case s.store == nil || s.store.CaseID != current.CaseID:
		s.store = querycache.NewStore(s.app.data, current.CaseID, s.app.staleness)
	}
	store := s.store
	s.mu.Unlock()

	s.ensureRealtime(ctx)

	s.mu.Lock()
	router := s.router
	s.mu.Unlock()
	if router != nil {
		router.Rebuild(identityID, current.CaseID, store)
	}
}

// ensureRealtime dials the realtime service once per session. A failed dial
// is logged and the session carries on without live updates; the next
// sign-in or case switch retries.
func (s *sessionState) ensureRealtime(ctx context.Context) {
	s.mu.Lock()
	if s.rtClient != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	client, err := realtime.Dial(ctx, s.app.realtimeURL, s.app.serviceKey, s.app.logger)
	if err != nil {
		s.app.logger.LogAttrs(ctx, slog.LevelError, "could not connect to realtime service",
			errors.SlogError(err))
		return
	}

	s.mu.Lock()
	if s.rtClient != nil {
		// A concurrent call won the dial race.
		s.mu.Unlock()
		_ = client.Close()
		return
	}
	s.rtClient = client
	s.router = realtime.NewRouter(client, s.selector, s.notifier, s.app.logger)
	s.mu.Unlock()
}

// selectEntity makes the entity the interrogation target. A previously
// completed answer shows in full without replaying the reveal.
func (s *sessionState) selectEntity(entityID, caseID string) {
	s.mu.Lock()
	alreadySelected := s.selectedID == entityID
	s.selectedID = entityID
	s.mu.Unlock()

	s.dispatcher.Select(entityID, caseID)
	if alreadySelected {
		return
	}
	if cached, ok := s.responses.Get(entityID); ok && !s.dispatcher.Busy(entityID) {
		s.typewriter.Show(cached)
	} else {
		s.typewriter.Show("")
	}
}

// resetCase clears the local case selection without touching server state.
// The next sign-in or case switch picks the active case back up.
func (s *sessionState) resetCase() {
	s.selector.Reset()
	s.typewriter.Stop()

	s.mu.Lock()
	identityID := s.identityID
	router := s.router
	s.store = nil
	s.selectedID = ""
	s.mu.Unlock()

	if router != nil {
		router.Rebuild(identityID, "", nil)
	}
}

func (s *sessionState) currentStore() *querycache.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

func (s *sessionState) selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}
