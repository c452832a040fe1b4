package main

import (
	"net/http"

	"github.com/araina/gumshoe/internal/contexthelpers"
	"github.com/araina/gumshoe/internal/models"
)

type homeTemplateData struct {
	BaseTemplateData
	CaseName string
	History  []models.ConversationTurn
}

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	data := homeTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
	}

	if contexthelpers.IsAuthenticated(r.Context()) {
		state := app.pageState(r)
		current := state.selector.Current()
		data.CaseName = current.CaseName

		if store := state.currentStore(); store != nil {
			history, err := store.History.Get(r.Context())
			if err != nil {
				app.renderReadError(w, r, err)
				return
			}
			data.History = history
		}
	}

	app.render(w, r, http.StatusOK, "home", data)
}
