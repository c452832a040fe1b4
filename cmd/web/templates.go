package main

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/araina/gumshoe/internal/contexthelpers"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/ui"
	"log/slog"
)

type BaseTemplateData struct {
	Authenticated bool
	CurrentPath   string
}

func newBaseTemplateData(r *http.Request) BaseTemplateData {
	ctx := r.Context()
	return BaseTemplateData{
		Authenticated: contexthelpers.IsAuthenticated(ctx),
		CurrentPath:   contexthelpers.CurrentPath(ctx),
	}
}

// pageTemplate returns a template for the given page name.
//
// pageName corresponds to a directory inside ui/templates/pages. It has to
// include a template named "page". Shared templates at the top of
// ui/templates are parsed alongside.
func pageTemplate(pageName string) (*template.Template, error) {
	patterns := []string{
		"templates/*.gohtml",
		fmt.Sprintf("templates/pages/%s/*.gohtml", pageName),
	}

	// The FuncMap must exist before parsing. The render function overrides
	// these with the request-scoped values.
	t, err := template.New(pageName).Funcs(template.FuncMap{
		"nonce": func() string {
			panic("not implemented")
		},
		"csrf": func() string {
			panic("not implemented")
		},
	}).ParseFS(ui.Files, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "parse templates", slog.String("page", pageName))
	}
	return t, nil
}

func (app *application) requestFuncs(r *http.Request) template.FuncMap {
	ctx := r.Context()
	nonce := fmt.Sprintf("nonce=%q", contexthelpers.CSPNonce(ctx))
	csrf := fmt.Sprintf("<input type=\"hidden\" name=\"csrf_token\" value=%q/>", contexthelpers.CSRFToken(ctx))
	return template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // The nonce is not user-provided.
		},
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // The token is not user-provided.
		},
	}
}

func (app *application) render(w http.ResponseWriter, r *http.Request, status int, file string, data any) {
	t, err := pageTemplate(file)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	buf := new(bytes.Buffer)
	if err = t.Funcs(app.requestFuncs(r)).ExecuteTemplate(buf, "base", data); err != nil {
		app.serverError(w, r, errors.Wrap(err, "execute template", slog.String("template", file)))
		return
	}

	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial executes a single named template from the shared set, for
// the htmx polling endpoints.
func (app *application) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	t, err := template.New(name).Funcs(app.requestFuncs(r)).ParseFS(ui.Files, "templates/*.gohtml")
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse partial", slog.String("template", name)))
		return
	}

	buf := new(bytes.Buffer)
	if err = t.ExecuteTemplate(buf, name, data); err != nil {
		app.serverError(w, r, errors.Wrap(err, "execute partial", slog.String("template", name)))
		return
	}

	_, _ = buf.WriteTo(w)
}
