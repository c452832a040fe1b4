package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/araina/gumshoe/internal/authservice"
	"github.com/araina/gumshoe/internal/contexthelpers"
	"github.com/araina/gumshoe/internal/errors"
)

type authTemplateData struct {
	BaseTemplateData
	Email string
	Error string
}

func (app *application) loginForm(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusOK, "login", authTemplateData{BaseTemplateData: newBaseTemplateData(r)})
}

func (app *application) signupForm(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusOK, "signup", authTemplateData{BaseTemplateData: newBaseTemplateData(r)})
}

func (app *application) loginPost(w http.ResponseWriter, r *http.Request) {
	app.handleCredentials(w, r, "login", app.auth.SignIn)
}

func (app *application) signupPost(w http.ResponseWriter, r *http.Request) {
	app.handleCredentials(w, r, "signup", app.auth.SignUp)
}

// handleCredentials runs the shared sign-in/sign-up flow. Credential errors
// render inline on the form; only unexpected failures become server errors.
func (app *application) handleCredentials(
	w http.ResponseWriter,
	r *http.Request,
	page string,
	exchange func(ctx context.Context, email, password string) (*authservice.Session, error),
) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")
	if email == "" || password == "" {
		app.render(w, r, http.StatusUnprocessableEntity, page, authTemplateData{
			BaseTemplateData: newBaseTemplateData(r),
			Email:            email,
			Error:            "Email and password are required.",
		})
		return
	}

	ctx := r.Context()
	session, err := exchange(ctx, email, password)
	if err != nil {
		if errors.Is(err, authservice.ErrInvalidCredentials) {
			app.render(w, r, http.StatusUnprocessableEntity, page, authTemplateData{
				BaseTemplateData: newBaseTemplateData(r),
				Email:            email,
				Error:            "Invalid email or password.",
			})
			return
		}
		app.serverError(w, r, err)
		return
	}

	if err = app.sessionManager.RenewToken(ctx); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.sessionManager.Put(ctx, identityIDSessionKey, session.Identity.ID)
	app.sessionManager.Put(ctx, accessTokenSessionKey, session.AccessToken)

	state := app.stateFor(ctx)
	state.ensureIdentity(ctx, session.Identity.ID, session.AccessToken)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (app *application) logoutPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accessToken := contexthelpers.AccessToken(ctx)

	if state := app.states.drop(app.sessionManager.Token(ctx)); state != nil {
		state.signOut()
	}

	// Revocation failures only lose the server-side token; the local
	// session is cleared regardless.
	if err := app.auth.SignOut(ctx, accessToken); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "could not revoke session", errors.SlogError(err))
	}

	if err := app.sessionManager.Destroy(ctx); err != nil {
		app.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
