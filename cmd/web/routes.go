package main

import (
	"io/fs"
	"net/http"

	"github.com/araina/gumshoe/ui"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	staticFiles, _ := fs.Sub(ui.Files, "static")
	fileServer := http.FileServerFS(staticFiles)
	mux.Handle("GET /static/", cacheForeverHeaders(http.StripPrefix("/static", fileServer)))

	dynamic := alice.New(app.sessionManager.LoadAndSave, noSurf, app.authenticate, commonContext)
	protected := dynamic.Append(app.requireAuthentication)

	mux.Handle("GET /{$}", dynamic.ThenFunc(app.home))
	mux.Handle("GET /login", dynamic.ThenFunc(app.loginForm))
	mux.Handle("POST /login", dynamic.ThenFunc(app.loginPost))
	mux.Handle("GET /signup", dynamic.ThenFunc(app.signupForm))
	mux.Handle("POST /signup", dynamic.ThenFunc(app.signupPost))
	mux.Handle("POST /logout", protected.ThenFunc(app.logoutPost))

	mux.Handle("GET /characters", protected.ThenFunc(app.characters))
	mux.Handle("GET /locations", protected.ThenFunc(app.locations))
	mux.Handle("GET /clues", protected.ThenFunc(app.clues))
	mux.Handle("GET /timeline", protected.ThenFunc(app.timeline))

	mux.Handle("POST /interrogate", protected.ThenFunc(app.interrogate))
	mux.Handle("GET /interrogate/reveal", protected.ThenFunc(app.interrogateReveal))
	mux.Handle("POST /draft", protected.ThenFunc(app.saveDraft))
	mux.Handle("GET /notifications", protected.ThenFunc(app.notifications))

	mux.Handle("GET /settings", protected.ThenFunc(app.settings))
	mux.Handle("POST /settings/switch", protected.ThenFunc(app.settingsSwitch))
	mux.Handle("POST /settings/reset", protected.ThenFunc(app.settingsReset))
	mux.Handle("POST /settings/create", protected.ThenFunc(app.settingsCreate))

	mux.Handle("GET /api/healthy", http.HandlerFunc(app.healthy))

	return app.recoverPanic(app.logRequest(app.secureHeaders(mux)))
}
