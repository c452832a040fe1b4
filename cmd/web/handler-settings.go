package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/araina/gumshoe/internal/contexthelpers"
	"github.com/araina/gumshoe/internal/dataservice"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/gamebackend"
	"github.com/araina/gumshoe/internal/models"
	"github.com/araina/gumshoe/internal/notify"
)

type settingsCase struct {
	ID         string
	Title      string
	Status     models.CaseStatus
	IsActive   bool
	Switchable bool
}

type settingsTemplateData struct {
	BaseTemplateData
	Cases       []settingsCase
	CreateError string
}

func (app *application) settings(w http.ResponseWriter, r *http.Request) {
	app.renderSettings(w, r, http.StatusOK, "")
}

func (app *application) renderSettings(w http.ResponseWriter, r *http.Request, status int, createError string) {
	ctx := r.Context()
	identityID := contexthelpers.IdentityID(ctx)

	cases, err := dataservice.UserCases(ctx, app.data, identityID)
	if err != nil {
		app.renderReadError(w, r, err)
		return
	}

	data := settingsTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Cases:            make([]settingsCase, len(cases)),
		CreateError:      createError,
	}
	for i, c := range cases {
		data.Cases[i] = settingsCase{
			ID:         c.ID,
			Title:      c.Title,
			Status:     c.Status,
			IsActive:   c.IsActive,
			Switchable: c.Status == models.CaseStatusCastReady,
		}
	}

	app.render(w, r, status, "settings", data)
}

// settingsSwitch activates the chosen case and deactivates the rest. The
// whole switch is one request-response unit from the browser's perspective.
func (app *application) settingsSwitch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	caseID := r.PostForm.Get("case_id")
	if caseID == "" {
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()
	state := app.pageState(r)
	if err := state.selector.Set(ctx, contexthelpers.IdentityID(ctx), caseID); err != nil {
		app.serverError(w, r, err)
		return
	}
	state.refreshCase(ctx)

	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (app *application) settingsReset(w http.ResponseWriter, r *http.Request) {
	state := app.pageState(r)
	state.resetCase()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// settingsCreate asks the game backend to generate a new case. Generation is
// slow, so it runs in the background and progress arrives as realtime
// notifications.
func (app *application) settingsCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	title := r.PostForm.Get("title")
	if title == "" {
		app.renderSettings(w, r, http.StatusUnprocessableEntity, "A case needs a title.")
		return
	}
	characterCount, err := strconv.Atoi(r.PostForm.Get("character_count"))
	if err != nil || characterCount < 2 {
		characterCount = 5
	}
	params := gamebackend.CreateCaseParams{
		Title:          title,
		Description:    r.PostForm.Get("description"),
		CharacterCount: characterCount,
	}

	ctx := r.Context()
	identityID := contexthelpers.IdentityID(ctx)
	state := app.pageState(r)
	state.notifier.Notify(notify.Notification{
		Category: "case-created",
		Kind:     notify.KindInfo,
		Message:  "Case generation started",
	})

	go func() {
		createTimeout := 5 * time.Minute
		bgCtx, cancel := context.WithTimeout(context.Background(), createTimeout)
		defer cancel()
		if _, err := app.backend.CreateCase(bgCtx, identityID, params); err != nil {
			app.logger.LogAttrs(bgCtx, slog.LevelError, "case creation failed",
				slog.String("identity_id", identityID), errors.SlogError(err))
			state.notifier.Notify(notify.Notification{
				Category: "case-created",
				Kind:     notify.KindError,
				Message:  "Case generation failed. Please try again.",
			})
		}
	}()

	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}
