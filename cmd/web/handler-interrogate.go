package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/araina/gumshoe/internal/dispatch"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/models"
)

func (s *sessionState) revealSnapshot() revealData {
	if s.dispatcher.Busy(s.selected()) {
		return revealData{Busy: true}
	}
	text, done := s.typewriter.Current()
	return revealData{Text: text, Done: done}
}

// interrogate dispatches the question to the game backend and responds with
// the reveal panel, which polls until the typed-out answer completes.
func (app *application) interrogate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	entityID := r.PostForm.Get("entity_id")
	entityKind := r.PostForm.Get("entity_kind")
	entityName := r.PostForm.Get("entity_name")
	question := r.PostForm.Get("question")
	if entityID == "" || entityName == "" || question == "" {
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	}

	state := app.pageState(r)
	store := state.currentStore()
	if store == nil {
		app.clientError(w, r, http.StatusConflict)
		return
	}

	state.selectEntity(entityID, store.CaseID)
	state.drafts.Save(entityID, "")

	entity := dispatch.EntityContext{
		ID:   entityID,
		Kind: models.EntityKind(entityKind),
		Name: entityName,
	}

	// The answer can take a while, so the request completes immediately
	// and the reveal panel polls for progress.
	go func() {
		sendTimeout := 2 * time.Minute
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := state.dispatcher.Send(ctx, store.CaseID, entity, question); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelError, "interrogation failed",
				slog.String("entity_id", entityID), errors.SlogError(err))
		}
	}()

	app.renderPartial(w, r, "reveal", revealData{Busy: true})
}

// interrogateReveal serves the polling partial with the typewriter's
// current prefix.
func (app *application) interrogateReveal(w http.ResponseWriter, r *http.Request) {
	h := app.htmx.NewHandler(w, r)
	if !h.IsHxRequest() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state := app.pageState(r)
	app.renderPartial(w, r, "reveal", state.revealSnapshot())
}

// saveDraft persists the in-progress question for an entity so switching
// between suspects keeps the text.
func (app *application) saveDraft(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	entityID := r.PostForm.Get("entity_id")
	if entityID == "" {
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	}

	state := app.pageState(r)
	state.drafts.Save(entityID, r.PostForm.Get("question"))
	w.WriteHeader(http.StatusNoContent)
}

// notifications serves the polling partial with the live toasts.
func (app *application) notifications(w http.ResponseWriter, r *http.Request) {
	h := app.htmx.NewHandler(w, r)
	if !h.IsHxRequest() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state := app.pageState(r)
	app.renderPartial(w, r, "notifications", state.notifier.Active())
}
