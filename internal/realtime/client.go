// Package realtime subscribes to row-change broadcasts from the managed
// realtime service and routes them into notifications and cache
// invalidations. The wire protocol is phoenix-style frames
// {topic, event, payload, ref} over a websocket.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/araina/gumshoe/internal/errors"
	"github.com/gorilla/websocket"
)

// Status is the lifecycle state of one channel subscription.
type Status string

const (
	StatusSubscribing  Status = "SUBSCRIBING"
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)

// Change is one decoded row-change event.
type Change struct {
	EventType string          `json:"eventType"`
	Table     string          `json:"table"`
	New       json.RawMessage `json:"new"`
	Old       json.RawMessage `json:"old"`
}

// Handler receives decoded changes for one binding.
type Handler func(Change)

type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type outFrame struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref"`
}

const (
	joinTimeout       = 10 * time.Second
	heartbeatInterval = 30 * time.Second
)

// Client multiplexes channels over one websocket connection.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	// writeMu serializes all writes to the connection.
	writeMu sync.Mutex

	mu       sync.Mutex
	channels map[string]*Channel
	nextRef  int
	closed   bool
	done     chan struct{}
}

// Dial connects to the realtime service and starts the reader and heartbeat
// goroutines. The api key rides the query string the way the service expects.
func Dial(ctx context.Context, endpoint, apiKey string, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx,
		fmt.Sprintf("%s/realtime/v1/websocket?apikey=%s&vsn=1.0.0", endpoint, apiKey), nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial realtime service")
	}
	c := &Client{
		conn:     conn,
		logger:   logger.With("source", "realtime"),
		channels: map[string]*Channel{},
		done:     make(chan struct{}),
	}
	go c.readLoop()
	go c.heartbeatLoop()
	return c, nil
}

// Channel returns the channel for the given topic, creating it if needed.
func (c *Client) Channel(topic string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.channels[topic]; ok {
		return ch
	}
	ch := &Channel{client: c, topic: topic, status: StatusClosed}
	c.channels[topic] = ch
	return ch
}

// RemoveChannel leaves the channel's topic and forgets it. Safe to call on a
// channel that never subscribed.
func (c *Client) RemoveChannel(ch *Channel) {
	c.mu.Lock()
	delete(c.channels, ch.topic)
	ref := c.ref()
	subscribed := ch.status == StatusSubscribing || ch.status == StatusSubscribed
	ch.setStatusLocked(StatusClosed)
	c.mu.Unlock()

	if subscribed {
		if err := c.send(outFrame{Topic: ch.topic, Event: "phx_leave", Payload: struct{}{}, Ref: ref}); err != nil {
			c.logger.LogAttrs(context.Background(), slog.LevelError, "could not leave channel",
				slog.String("topic", ch.topic), errors.SlogError(err))
		}
	}
}

// Close tears down the connection. All channels report CLOSED.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	for _, ch := range c.channels {
		ch.setStatusLocked(StatusClosed)
	}
	c.channels = map[string]*Channel{}
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) ref() string {
	c.nextRef++
	return fmt.Sprint(c.nextRef)
}

func (c *Client) send(f outFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		return errors.Wrap(err, "write frame", slog.String("event", f.Event))
	}
	return nil
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			ref := c.ref()
			c.mu.Unlock()
			err := c.send(outFrame{Topic: "phoenix", Event: "heartbeat", Payload: struct{}{}, Ref: ref})
			if err != nil {
				c.logger.LogAttrs(context.Background(), slog.LevelError, "heartbeat failed", errors.SlogError(err))
			}
		}
	}
}

func (c *Client) readLoop() {
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.LogAttrs(context.Background(), slog.LevelError, "realtime connection lost", errors.SlogError(err))
				_ = c.Close()
			}
			return
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	c.mu.Lock()
	ch, ok := c.channels[f.Topic]
	c.mu.Unlock()
	if !ok {
		return
	}

	switch f.Event {
	case "phx_reply":
		ch.handleReply(f)
	case "phx_error":
		ch.setStatus(StatusChannelError)
	case "phx_close":
		ch.setStatus(StatusClosed)
	case "postgres_changes":
		var change Change
		if err := json.Unmarshal(f.Payload, &change); err != nil {
			c.logger.LogAttrs(context.Background(), slog.LevelError, "could not decode change",
				slog.String("topic", f.Topic), errors.SlogError(err))
			return
		}
		ch.handleChange(change)
	}
}

type binding struct {
	table   string
	events  []string
	handler Handler
}

// Channel is one topic-scoped subscription carrying row-change bindings.
type Channel struct {
	client *Client
	topic  string

	bindings []binding
	status   Status
	statusCh chan Status
	joinRef  string
	timer    *time.Timer
}

// On registers a handler for changes on table matching one of events
// (INSERT, UPDATE, DELETE). Must be called before Subscribe.
func (ch *Channel) On(table string, events []string, handler Handler) *Channel {
	ch.client.mu.Lock()
	ch.bindings = append(ch.bindings, binding{table: table, events: events, handler: handler})
	ch.client.mu.Unlock()
	return ch
}

type joinConfig struct {
	PostgresChanges []changeConfig `json:"postgres_changes"`
}

type changeConfig struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// Subscribe joins the topic. statusCb observes every status transition,
// starting with SUBSCRIBING. A missing reply within the join timeout reports
// TIMED_OUT; there is no automatic retry.
func (ch *Channel) Subscribe(statusCb func(Status)) error {
	ch.client.mu.Lock()
	// Status transitions are queued and delivered in order from a single
	// goroutine so callbacks can call back into the client.
	ch.statusCh = make(chan Status, 16)
	go func(statuses <-chan Status) {
		for s := range statuses {
			statusCb(s)
			if s == StatusClosed {
				return
			}
		}
	}(ch.statusCh)
	ch.joinRef = ch.client.ref()
	ref := ch.joinRef
	var changes []changeConfig
	for _, b := range ch.bindings {
		for _, event := range b.events {
			changes = append(changes, changeConfig{Event: event, Schema: "public", Table: b.table})
		}
	}
	ch.setStatusLocked(StatusSubscribing)
	ch.timer = time.AfterFunc(joinTimeout, func() {
		ch.client.mu.Lock()
		timedOut := ch.status == StatusSubscribing
		if timedOut {
			ch.setStatusLocked(StatusTimedOut)
		}
		ch.client.mu.Unlock()
	})
	ch.client.mu.Unlock()

	payload := map[string]any{"config": joinConfig{PostgresChanges: changes}}
	if err := ch.client.send(outFrame{Topic: ch.topic, Event: "phx_join", Payload: payload, Ref: ref}); err != nil {
		ch.setStatus(StatusChannelError)
		return err
	}
	return nil
}

type replyPayload struct {
	Status string `json:"status"`
}

func (ch *Channel) handleReply(f frame) {
	ch.client.mu.Lock()
	if f.Ref != ch.joinRef || ch.status != StatusSubscribing {
		ch.client.mu.Unlock()
		return
	}
	if ch.timer != nil {
		ch.timer.Stop()
	}
	var reply replyPayload
	if err := json.Unmarshal(f.Payload, &reply); err == nil && reply.Status == "ok" {
		ch.setStatusLocked(StatusSubscribed)
	} else {
		ch.setStatusLocked(StatusChannelError)
	}
	ch.client.mu.Unlock()
}

func (ch *Channel) handleChange(change Change) {
	ch.client.mu.Lock()
	var handlers []Handler
	for _, b := range ch.bindings {
		if b.table != change.Table {
			continue
		}
		for _, event := range b.events {
			if event == change.EventType {
				handlers = append(handlers, b.handler)
				break
			}
		}
	}
	ch.client.mu.Unlock()

	for _, h := range handlers {
		h(change)
	}
}

func (ch *Channel) setStatus(s Status) {
	ch.client.mu.Lock()
	ch.setStatusLocked(s)
	ch.client.mu.Unlock()
}

// setStatusLocked requires client.mu.
func (ch *Channel) setStatusLocked(s Status) {
	if ch.status == s {
		return
	}
	ch.status = s
	if ch.statusCh != nil {
		select {
		case ch.statusCh <- s:
		default:
		}
	}
}
