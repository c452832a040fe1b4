package main

import (
	"net/http"

	"github.com/araina/gumshoe/internal/models"
)

type entityItem struct {
	ID          string
	Name        string
	Note        string
	Description string
	Selected    bool
}

type revealData struct {
	Busy bool
	Done bool
	Text string
}

type interrogationData struct {
	ID          string
	Kind        models.EntityKind
	Name        string
	Description string
	Draft       string
	Busy        bool
	Reveal      revealData
}

type entitiesTemplateData struct {
	BaseTemplateData
	Title         string
	Entities      []entityItem
	Interrogation *interrogationData
}

func (app *application) characters(w http.ResponseWriter, r *http.Request) {
	app.entityPage(w, r, "Characters", models.EntityKindCharacter,
		func(state *sessionState) ([]entityItem, error) {
			characters, err := state.currentStore().Characters.Get(r.Context())
			if err != nil {
				return nil, err
			}
			items := make([]entityItem, len(characters))
			for i, c := range characters {
				note := ""
				if c.IsVictim {
					note = "victim"
				} else if !c.IsAlive {
					note = "deceased"
				}
				items[i] = entityItem{ID: c.ID, Name: c.Name, Note: note, Description: c.Description}
			}
			return items, nil
		})
}

func (app *application) locations(w http.ResponseWriter, r *http.Request) {
	app.entityPage(w, r, "Locations", models.EntityKindLocation,
		func(state *sessionState) ([]entityItem, error) {
			locations, err := state.currentStore().Locations.Get(r.Context())
			if err != nil {
				return nil, err
			}
			items := make([]entityItem, len(locations))
			for i, l := range locations {
				items[i] = entityItem{ID: l.ID, Name: l.Name, Note: l.Atmosphere, Description: l.Description}
			}
			return items, nil
		})
}

func (app *application) clues(w http.ResponseWriter, r *http.Request) {
	app.entityPage(w, r, "Clues", models.EntityKindClue,
		func(state *sessionState) ([]entityItem, error) {
			clues, err := state.currentStore().Clues.Get(r.Context())
			if err != nil {
				return nil, err
			}
			items := make([]entityItem, len(clues))
			for i, c := range clues {
				items[i] = entityItem{ID: c.ID, Name: c.Title, Note: c.DiscoveryMethod, Description: c.Description}
			}
			return items, nil
		})
}

func (app *application) timeline(w http.ResponseWriter, r *http.Request) {
	app.entityPage(w, r, "Timeline", models.EntityKindTimeline,
		func(state *sessionState) ([]entityItem, error) {
			events, err := state.currentStore().Timeline.Get(r.Context())
			if err != nil {
				return nil, err
			}
			items := make([]entityItem, len(events))
			for i, e := range events {
				items[i] = entityItem{ID: e.ID, Name: e.EventTime, Note: e.EventDescription, Description: e.EventDescription}
			}
			return items, nil
		})
}

// entityPage renders one of the four investigation surfaces. Selecting an
// entity opens the interrogation panel for it, filled from the same read
// that produced the list so a failed re-read cannot blank the panel.
func (app *application) entityPage(
	w http.ResponseWriter,
	r *http.Request,
	title string,
	kind models.EntityKind,
	list func(*sessionState) ([]entityItem, error),
) {
	state := app.pageState(r)
	store := state.currentStore()
	if store == nil {
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}

	items, err := list(state)
	if err != nil {
		app.renderReadError(w, r, err)
		return
	}

	data := entitiesTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Title:            title,
		Entities:         items,
	}

	if selectedID := r.URL.Query().Get("selected"); selectedID != "" {
		for i := range data.Entities {
			if data.Entities[i].ID != selectedID {
				continue
			}
			data.Entities[i].Selected = true
			state.selectEntity(selectedID, store.CaseID)
			data.Interrogation = app.interrogationData(state, data.Entities[i], kind)
			break
		}
	}

	app.render(w, r, http.StatusOK, "entities", data)
}

func (app *application) interrogationData(state *sessionState, item entityItem, kind models.EntityKind) *interrogationData {
	return &interrogationData{
		ID:          item.ID,
		Kind:        kind,
		Name:        item.Name,
		Description: item.Description,
		Draft:       state.drafts.Load(item.ID),
		Busy:        state.dispatcher.Busy(item.ID),
		Reveal:      state.revealSnapshot(),
	}
}
