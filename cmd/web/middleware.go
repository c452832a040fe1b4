package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/araina/gumshoe/internal/contexthelpers"
	"github.com/araina/gumshoe/internal/logging"
	"github.com/araina/gumshoe/internal/random"
	"github.com/google/uuid"
	"github.com/justinas/nosurf"
)

func (app *application) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonceLength := uint(24)
		nonce, err := random.Letters(nonceLength)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		r = r.WithContext(contexthelpers.SetCSPNonce(r.Context(), nonce))

		w.Header().Set("Content-Security-Policy",
			fmt.Sprintf(`script-src 'nonce-%s' 'strict-dynamic' https: http:;
				   object-src 'none';
				   base-uri 'none';`, nonce))

		w.Header().Set("Referrer-Policy", "origin-when-cross-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-XSS-Protection", "0")

		next.ServeHTTP(w, r)
	})
}

func cacheForeverHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

		next.ServeHTTP(w, r)
	})
}

// logRequest tags every request with an id so log lines from handlers and
// their background work can be correlated.
func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			proto  = r.Proto
			method = r.Method
			uri    = r.URL.RequestURI()
		)

		ctx := logging.WithAttrs(r.Context(), slog.String("request_id", uuid.NewString()))
		app.logger.LogAttrs(ctx, slog.LevelDebug, "received request",
			slog.String("proto", proto), slog.String("method", method), slog.String("uri", uri))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// authenticate copies the signed-in identity from the session into the
// request context.
func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identityID := app.sessionManager.GetString(r.Context(), identityIDSessionKey)
		if identityID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := contexthelpers.SetIsAuthenticated(r.Context(), true)
		ctx = contexthelpers.SetIdentityID(ctx, identityID)
		ctx = contexthelpers.SetAccessToken(ctx, app.sessionManager.GetString(r.Context(), accessTokenSessionKey))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (app *application) requireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !contexthelpers.IsAuthenticated(r.Context()) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		// Pages holding session state must not end up in shared caches.
		w.Header().Add("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

func commonContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := contexthelpers.SetCurrentPath(r.Context(), r.URL.Path)
		ctx = contexthelpers.SetCSRFToken(ctx, nosurf.Token(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// noSurf implements CSRF protection using https://github.com/justinas/nosurf
func noSurf(next http.Handler) http.Handler {
	csrfHandler := nosurf.New(next)
	csrfHandler.SetBaseCookie(http.Cookie{
		HttpOnly: true,
		Path:     "/",
		Secure:   true,
	})

	return csrfHandler
}
