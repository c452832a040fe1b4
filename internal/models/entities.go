package models

import "time"

// EntityKind identifies which investigation surface an entity belongs to.
type EntityKind string

const (
	EntityKindCharacter EntityKind = "character"
	EntityKindLocation  EntityKind = "location"
	EntityKindClue      EntityKind = "clue"
	EntityKindTimeline  EntityKind = "timeline_event"
)

// Character is a suspect, witness, or victim scoped to a case. Entities are
// read-only from the client; changes arrive through realtime events.
type Character struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"game_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LiePolicy   string    `json:"lie_policy"`
	IsAlive     bool      `json:"is_alive"`
	IsVictim    bool      `json:"is_victim"`
	CreatedAt   time.Time `json:"created_at"`
}

type Location struct {
	ID                 string    `json:"id"`
	CaseID             string    `json:"game_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	IsAccessible       bool      `json:"is_accessible"`
	Atmosphere         string    `json:"atmosphere"`
	ConnectedLocations []string  `json:"connected_locations"`
	CreatedAt          time.Time `json:"created_at"`
}

type Clue struct {
	ID                string    `json:"id"`
	CaseID            string    `json:"game_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	LocationID        string    `json:"location_id"`
	IsRevealed        bool      `json:"is_revealed"`
	DiscoveryMethod   string    `json:"discovery_method"`
	SignificanceLevel int       `json:"significance_level"`
	CreatedAt         time.Time `json:"created_at"`
}

type TimelineEvent struct {
	ID               string    `json:"id"`
	CaseID           string    `json:"game_id"`
	EventTime        string    `json:"event_time"`
	EventDescription string    `json:"event_description"`
	EventType        string    `json:"event_type"`
	IsPublic         bool      `json:"is_public"`
	CreatedAt        time.Time `json:"created_at"`
}

// ConversationTurn is one question/answer pair in the case's interrogation
// history. Append-only and scoped by case id.
type ConversationTurn struct {
	UserQuery     string    `json:"user_query"`
	AgentResponse string    `json:"agent_response"`
	CreatedAt     time.Time `json:"created_at"`
}
