// Package authservice wraps the managed identity provider's REST interface
// and tracks the client's view of the authenticated session.
package authservice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/araina/gumshoe/internal/errors"
)

// ErrInvalidCredentials is returned when the provider rejects a sign-in.
var ErrInvalidCredentials = errors.NewSentinel("invalid email or password")

// Identity is the authenticated principal as the provider reports it.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the provider-issued session for an identity.
type Session struct {
	AccessToken string   `json:"access_token"`
	Identity    Identity `json:"user"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	requestTimeout := 10 * time.Second
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger.With("source", "authservice"),
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a new identity with the provider.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.postCredentials(ctx, "/auth/v1/signup", email, password)
	if err != nil {
		return nil, errors.Wrap(err, "sign up")
	}
	return session, nil
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.postCredentials(ctx, "/auth/v1/token?grant_type=password", email, password)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut revokes the session's access token. A failed revocation is logged
// by the caller; the local session is cleared regardless.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return errors.Wrap(err, "create sign-out request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute sign-out request")
	}
	if err = resp.Body.Close(); err != nil {
		return errors.Wrap(err, "close response body")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.New("sign-out rejected", slog.Int("status", resp.StatusCode))
	}
	return nil
}

func (c *Client) postCredentials(ctx context.Context, path, email, password string) (*Session, error) {
	encoded, err := json.Marshal(credentials{Email: email, Password: password})
	if err != nil {
		return nil, errors.Wrap(err, "encode credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "execute request")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "could not close response body", errors.SlogError(closeErr))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.New("auth service error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)))
	}

	var session Session
	if err = json.Unmarshal(raw, &session); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return &session, nil
}
