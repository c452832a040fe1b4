package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeUpstream stands in for the managed auth and data services plus the game
// engine, speaking just enough of their REST dialects for the handler tests.
type fakeUpstream struct {
	server *httptest.Server

	mu         sync.Mutex
	passwords  map[string]string
	identities map[string]string
	nextID     int
	tables     map[string][]map[string]any
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		passwords:  map[string]string{},
		identities: map[string]string{},
		tables:     map[string][]map[string]any{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/signup", f.signup)
	mux.HandleFunc("POST /auth/v1/token", f.token)
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/rest/v1/{table}", f.rest)
	mux.HandleFunc("POST /api/games/create/{identityID}", f.createGame)
	mux.HandleFunc("POST /api/games/query/{caseID}", f.queryGame)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) URL() string {
	return f.server.URL
}

type fakeCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f *fakeUpstream) signup(w http.ResponseWriter, r *http.Request) {
	var creds fakeCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("identity-%d", f.nextID)
	f.passwords[creds.Email] = creds.Password
	f.identities[creds.Email] = id
	f.mu.Unlock()

	f.writeSession(w, id, creds.Email)
}

func (f *fakeUpstream) token(w http.ResponseWriter, r *http.Request) {
	var creds fakeCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	password, known := f.passwords[creds.Email]
	id := f.identities[creds.Email]
	f.mu.Unlock()

	if !known || password != creds.Password {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		return
	}
	f.writeSession(w, id, creds.Email)
}

func (f *fakeUpstream) writeSession(w http.ResponseWriter, id, email string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "token-" + id,
		"user":         map[string]any{"id": id, "email": email},
	})
}

// rest serves table-scoped selects and partial-row patches with eq/neq
// query-string filters, the dialect the data service client speaks.
func (f *fakeUpstream) rest(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")

	f.mu.Lock()
	defer f.mu.Unlock()

	matched := make([]map[string]any, 0)
	for _, row := range f.tables[table] {
		if rowMatches(row, r) {
			matched = append(matched, row)
		}
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(matched)
	case http.MethodPatch:
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, row := range matched {
			for k, v := range patch {
				row[k] = v
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func rowMatches(row map[string]any, r *http.Request) bool {
	for column, filters := range r.URL.Query() {
		switch column {
		case "select", "order", "limit":
			continue
		}
		value := fmt.Sprint(row[column])
		for _, filter := range filters {
			switch {
			case strings.HasPrefix(filter, "eq."):
				if value != strings.TrimPrefix(filter, "eq.") {
					return false
				}
			case strings.HasPrefix(filter, "neq."):
				if value == strings.TrimPrefix(filter, "neq.") {
					return false
				}
			}
		}
	}
	return true
}

func (f *fakeUpstream) createGame(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("case-%d", f.nextID)
	f.mu.Unlock()

	f.addCase(r.PathValue("identityID"), id, "Generated case", "INIT", false)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"game_id": id})
}

func (f *fakeUpstream) queryGame(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"response": "I was in the library all evening."})
}

func (f *fakeUpstream) addCase(identityID, caseID, title, status string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables["games"] = append(f.tables["games"], map[string]any{
		"id":         caseID,
		"title":      title,
		"status":     status,
		"is_active":  active,
		"user_id":    identityID,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (f *fakeUpstream) addCharacter(caseID, id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables["characters"] = append(f.tables["characters"], map[string]any{
		"id":         id,
		"game_id":    caseID,
		"name":       name,
		"is_alive":   true,
		"is_victim":  false,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (f *fakeUpstream) identityID(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identities[email]
}

func (f *fakeUpstream) casesOwned(identityID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.tables["games"] {
		if row["user_id"] == identityID {
			count++
		}
	}
	return count
}

func (f *fakeUpstream) activeCases(identityID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.tables["games"] {
		if row["user_id"] == identityID && fmt.Sprint(row["is_active"]) == "true" {
			count++
		}
	}
	return count
}
