package dataservice

import (
	"context"
	"sort"

	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/models"
)

// historyWindow limits how many conversation turns the client pulls for the
// interrogation view.
const historyWindow = 5

// Characters returns the case's characters ordered by name.
func Characters(ctx context.Context, c *Client, caseID string) ([]models.Character, error) {
	var characters []models.Character
	err := c.From("characters").
		Eq("game_id", caseID).
		Order("name", true).
		Get(ctx, &characters)
	if err != nil {
		return nil, errors.Wrap(err, "fetch characters")
	}
	return characters, nil
}

// Locations returns the case's currently accessible locations ordered by name.
func Locations(ctx context.Context, c *Client, caseID string) ([]models.Location, error) {
	var locations []models.Location
	err := c.From("locations").
		Eq("game_id", caseID).
		Eq("is_accessible", "true").
		Order("name", true).
		Get(ctx, &locations)
	if err != nil {
		return nil, errors.Wrap(err, "fetch locations")
	}
	return locations, nil
}

// Clues returns the case's clues, newest first.
func Clues(ctx context.Context, c *Client, caseID string) ([]models.Clue, error) {
	var clues []models.Clue
	err := c.From("clues").
		Eq("game_id", caseID).
		Order("created_at", false).
		Get(ctx, &clues)
	if err != nil {
		return nil, errors.Wrap(err, "fetch clues")
	}
	return clues, nil
}

// TimelineEvents returns the case's timeline in event-time order.
func TimelineEvents(ctx context.Context, c *Client, caseID string) ([]models.TimelineEvent, error) {
	var events []models.TimelineEvent
	err := c.From("timeline_events").
		Eq("game_id", caseID).
		Order("event_time", true).
		Get(ctx, &events)
	if err != nil {
		return nil, errors.Wrap(err, "fetch timeline events")
	}
	return events, nil
}

// ConversationHistory returns the most recent interrogation turns for the
// case in ascending created_at order. The service is asked for the newest
// turns first so the window stays bounded, then the slice is re-sorted for
// display oldest to newest.
func ConversationHistory(ctx context.Context, c *Client, caseID string) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := c.From("interactions").
		Select("user_query, agent_response, created_at").
		Eq("game_id", caseID).
		Order("created_at", false).
		Limit(historyWindow).
		Get(ctx, &turns)
	if err != nil {
		return nil, errors.Wrap(err, "fetch conversation history")
	}
	sort.Slice(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
	return turns, nil
}

// UserCases returns every case owned by the identity, newest first.
func UserCases(ctx context.Context, c *Client, ownerID string) ([]models.Case, error) {
	var cases []models.Case
	err := c.From("games").
		Eq("user_id", ownerID).
		Order("created_at", false).
		Get(ctx, &cases)
	if err != nil {
		return nil, errors.Wrap(err, "fetch user cases")
	}
	return cases, nil
}
