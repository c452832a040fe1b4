package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/araina/gumshoe/internal/activecase"
	"github.com/araina/gumshoe/internal/dataservice"
	"github.com/araina/gumshoe/internal/notify"
	"github.com/araina/gumshoe/internal/querycache"
	"github.com/araina/gumshoe/internal/testhelpers"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeRealtimeServer speaks just enough of the phoenix framing to accept
// joins and push change events at the client.
type fakeRealtimeServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	joins  chan frame
	leaves chan frame
}

func newFakeRealtimeServer(t *testing.T) *fakeRealtimeServer {
	t.Helper()
	s := &fakeRealtimeServer{
		joins:  make(chan frame, 8),
		leaves: make(chan frame, 8),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *fakeRealtimeServer) endpoint() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *fakeRealtimeServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Event {
		case "phx_join":
			s.joins <- f
			reply, _ := json.Marshal(map[string]string{"status": "ok"})
			s.write(frame{Topic: f.Topic, Event: "phx_reply", Payload: reply, Ref: f.Ref})
		case "phx_leave":
			s.leaves <- f
		}
	}
}

func (s *fakeRealtimeServer) write(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteJSON(f)
}

func (s *fakeRealtimeServer) push(t *testing.T, topic string, change Change) {
	t.Helper()
	payload, err := json.Marshal(change)
	require.NoError(t, err)
	s.write(frame{Topic: topic, Event: "postgres_changes", Payload: payload})
}

func (s *fakeRealtimeServer) awaitJoin(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-s.joins:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("client did not join in time")
		return frame{}
	}
}

func dialTestClient(t *testing.T, s *fakeRealtimeServer) *Client {
	t.Helper()
	client, err := Dial(context.Background(), s.endpoint(), "test-key", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_SubscribeLifecycle(t *testing.T) {
	t.Parallel()
	server := newFakeRealtimeServer(t)
	client := dialTestClient(t, server)

	statuses := make(chan Status, 8)
	ch := client.Channel("realtime:case:case-1")
	ch.On("clues", []string{"INSERT"}, func(Change) {})
	require.NoError(t, ch.Subscribe(func(s Status) { statuses <- s }))

	require.Equal(t, StatusSubscribing, <-statuses)
	require.Equal(t, StatusSubscribed, <-statuses)

	join := server.awaitJoin(t)
	require.Equal(t, "realtime:case:case-1", join.Topic)
	require.Contains(t, string(join.Payload), `"table":"clues"`)
}

func TestClient_DispatchesToMatchingBinding(t *testing.T) {
	t.Parallel()
	server := newFakeRealtimeServer(t)
	client := dialTestClient(t, server)

	received := make(chan Change, 8)
	ch := client.Channel("realtime:case:case-1")
	ch.On("clues", []string{"INSERT"}, func(c Change) { received <- c })
	require.NoError(t, ch.Subscribe(func(Status) {}))
	server.awaitJoin(t)

	// Neither the wrong table nor the wrong event type reaches the handler.
	server.push(t, "realtime:case:case-1", Change{EventType: "UPDATE", Table: "clues"})
	server.push(t, "realtime:case:case-1", Change{EventType: "INSERT", Table: "characters"})
	server.push(t, "realtime:case:case-1", Change{EventType: "INSERT", Table: "clues", New: json.RawMessage(`{"id":"clue-1"}`)})

	select {
	case c := <-received:
		require.Equal(t, "INSERT", c.EventType)
		require.Equal(t, "clues", c.Table)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not receive change")
	}
	select {
	case c := <-received:
		t.Fatalf("unexpected extra change %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestRouter(t *testing.T, client *Client) (*Router, *notify.Center) {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	// The selector never reaches the data service in these tests.
	dsClient := dataservice.NewClient("http://127.0.0.1:1", "test-key", logger)
	notifier := notify.NewCenter()
	selector := activecase.NewSelector(dsClient, notifier, logger)
	return NewRouter(client, selector, notifier, logger), notifier
}

func activeCategories(notifier *notify.Center) map[string]string {
	categories := map[string]string{}
	for _, n := range notifier.Active() {
		categories[n.Category] = n.Message
	}
	return categories
}

func TestRouter_CoalescesRepeatedCategories(t *testing.T) {
	t.Parallel()
	server := newFakeRealtimeServer(t)
	client := dialTestClient(t, server)
	router, notifier := newTestRouter(t, client)

	logger := testhelpers.NewLogger(io.Discard)
	store := querycache.NewStore(dataservice.NewClient("http://127.0.0.1:1", "test-key", logger), "case-1", time.Minute)
	router.Rebuild("identity-1", "case-1", store)
	server.awaitJoin(t)

	topic := "realtime:case:case-1"
	for range 3 {
		server.push(t, topic, Change{EventType: "INSERT", Table: "clues",
			New: json.RawMessage(`{"id":"clue-1","game_id":"case-1"}`)})
	}
	server.push(t, topic, Change{EventType: "INSERT", Table: "timeline_events",
		New: json.RawMessage(`{"id":"event-1","game_id":"case-1"}`)})

	require.Eventually(t, func() bool {
		categories := activeCategories(notifier)
		return categories["clue-discovered"] == "New clue discovered" &&
			categories["timeline-updated"] == "Timeline updated"
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, notifier.Active(), 2, "repeats of a category must coalesce")
}

func TestRouter_DropsCrossCaseEvents(t *testing.T) {
	t.Parallel()
	server := newFakeRealtimeServer(t)
	client := dialTestClient(t, server)
	router, notifier := newTestRouter(t, client)

	router.Rebuild("identity-1", "case-1", nil)
	server.awaitJoin(t)

	topic := "realtime:case:case-1"
	server.push(t, topic, Change{EventType: "INSERT", Table: "characters",
		New: json.RawMessage(`{"id":"char-9","name":"Intruder","game_id":"case-other"}`)})
	server.push(t, topic, Change{EventType: "INSERT", Table: "characters",
		New: json.RawMessage(`{"id":"char-1","name":"James Wilson","game_id":"case-1"}`)})

	require.Eventually(t, func() bool {
		return activeCategories(notifier)["character-added"] == "New character added: James Wilson"
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, notifier.Active(), 1, "event for another case must be dropped")
}

func TestRouter_RebuildTearsDownPriorChannel(t *testing.T) {
	t.Parallel()
	server := newFakeRealtimeServer(t)
	client := dialTestClient(t, server)
	router, notifier := newTestRouter(t, client)

	router.Rebuild("identity-1", "case-1", nil)
	server.awaitJoin(t)

	// Signing out leaves the topic. Events arriving afterwards go nowhere.
	router.Rebuild("", "", nil)
	select {
	case leave := <-server.leaves:
		require.Equal(t, "realtime:case:case-1", leave.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not leave on rebuild")
	}

	server.push(t, "realtime:case:case-1", Change{EventType: "INSERT", Table: "clues",
		New: json.RawMessage(`{"id":"clue-1","game_id":"case-1"}`)})
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, notifier.Active())
}

func TestRouter_MysterySolved(t *testing.T) {
	t.Parallel()
	server := newFakeRealtimeServer(t)
	client := dialTestClient(t, server)
	router, notifier := newTestRouter(t, client)

	router.Rebuild("identity-1", "case-1", nil)
	server.awaitJoin(t)

	server.push(t, "realtime:case:case-1", Change{EventType: "UPDATE", Table: "games",
		New: json.RawMessage(`{"id":"case-1","status":"DONE"}`)})

	require.Eventually(t, func() bool {
		return activeCategories(notifier)["case-solved"] == "Mystery solved"
	}, 2*time.Second, 10*time.Millisecond)

	// An intermediate status change must not announce anything new.
	server.push(t, "realtime:case:case-1", Change{EventType: "UPDATE", Table: "games",
		New: json.RawMessage(`{"id":"case-1","status":"IN_PROGRESS"}`)})
	time.Sleep(100 * time.Millisecond)
	require.Len(t, notifier.Active(), 1)
}
