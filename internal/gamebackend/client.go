// Package gamebackend is a client for the game engine API that generates
// cases and answers in-character questions. The engine hides the AI behind
// plain HTTP endpoints.
package gamebackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/araina/gumshoe/internal/errors"
)

type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a game backend client. The timeout is generous because
// both endpoints wait on AI completions.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	requestTimeout := 120 * time.Second
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger.With("source", "gamebackend"),
	}
}

// CreateCaseParams are the knobs for generating a new case.
type CreateCaseParams struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	CharacterCount int    `json:"character_count"`
}

type createCaseResponse struct {
	GameID string `json:"game_id"`
}

// CreateCase asks the engine to generate a new case for the identity and
// returns the new case id. Generation runs server-side and can take a while.
func (c *Client) CreateCase(ctx context.Context, identityID string, params CreateCaseParams) (string, error) {
	endpoint := fmt.Sprintf("%s/api/games/create/%s", c.baseURL, identityID)
	var resp createCaseResponse
	if err := c.post(ctx, endpoint, params, &resp); err != nil {
		return "", errors.Wrap(err, "create case", slog.String("identity_id", identityID))
	}
	return resp.GameID, nil
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Response string `json:"response"`
}

// Query sends a natural language question about the given case and returns
// the engine's answer.
func (c *Client) Query(ctx context.Context, caseID, query string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/games/query/%s", c.baseURL, caseID)
	var resp queryResponse
	if err := c.post(ctx, endpoint, queryRequest{Query: query}, &resp); err != nil {
		return "", errors.Wrap(err, "query case", slog.String("case_id", caseID))
	}
	return resp.Response, nil
}

type backendError struct {
	Detail string `json:"detail"`
}

func (c *Client) post(ctx context.Context, endpoint string, body, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute request")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "could not close response body", errors.SlogError(closeErr))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// The engine reports failures as {"detail": "..."}.
		var backendErr backendError
		if json.Unmarshal(raw, &backendErr) == nil && backendErr.Detail != "" {
			return errors.New(backendErr.Detail, slog.Int("status", resp.StatusCode))
		}
		return errors.New("game backend error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)))
	}
	if err = json.Unmarshal(raw, dest); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
