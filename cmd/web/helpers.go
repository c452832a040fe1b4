package main

import (
	"log/slog"
	"net/http"

	"github.com/araina/gumshoe/internal/contexthelpers"
	"github.com/araina/gumshoe/internal/errors"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.Debug(http.StatusText(status), "method", method, "uri", uri, slog.Any("formdata", r.Form))
	http.Error(w, http.StatusText(status), status)
}

type errorTemplateData struct {
	BaseTemplateData
	Message   string
	RetryPath string
}

// renderReadError shows the full-page error with a retry link. Used when an
// entity read fails and the page has nothing sensible to show.
func (app *application) renderReadError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "read failed",
		slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
	data := errorTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Message:          "The case files could not be loaded.",
		RetryPath:        contexthelpers.CurrentPath(r.Context()),
	}
	app.render(w, r, http.StatusInternalServerError, "error", data)
}
