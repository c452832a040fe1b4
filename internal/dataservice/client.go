// Package dataservice is a thin client for the managed relational data
// service. It speaks the service's REST dialect: table-scoped selects with
// query-string filters and partial-row PATCH updates, both returning JSON.
package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araina/gumshoe/internal/errors"
)

// ErrNoRows is returned by Single when the filter matches nothing.
var ErrNoRows = errors.NewSentinel("no rows matched the query")

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a data service client. baseURL points at the service's
// REST root, apiKey is sent with every request.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	requestTimeout := 10 * time.Second
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger.With("source", "dataservice"),
	}
}

// From starts a query against the given table.
func (c *Client) From(table string) *Query {
	return &Query{
		client: c,
		table:  table,
		params: url.Values{},
	}
}

// Query accumulates filters for one table-scoped read or update.
type Query struct {
	client *Client
	table  string
	params url.Values
	token  string
}

// Select names the columns to return. Defaults to "*" when not called.
// Spaces are stripped so a readable column list does not end up encoded
// into the select parameter.
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", strings.ReplaceAll(columns, " ", ""))
	return q
}

// Eq filters rows where column equals value.
func (q *Query) Eq(column, value string) *Query {
	q.params.Add(column, "eq."+value)
	return q
}

// Neq filters rows where column differs from value.
func (q *Query) Neq(column, value string) *Query {
	q.params.Add(column, "neq."+value)
	return q
}

// Order sorts the result by column.
func (q *Query) Order(column string, ascending bool) *Query {
	direction := "desc"
	if ascending {
		direction = "asc"
	}
	q.params.Set("order", fmt.Sprintf("%s.%s", column, direction))
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", fmt.Sprint(n))
	return q
}

// Auth attaches the identity's access token so row-level security applies.
func (q *Query) Auth(token string) *Query {
	q.token = token
	return q
}

// Get executes the select and decodes the JSON array into dest.
func (q *Query) Get(ctx context.Context, dest any) error {
	if q.params.Get("select") == "" {
		q.params.Set("select", "*")
	}
	body, err := q.do(ctx, http.MethodGet, nil)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, dest); err != nil {
		return errors.Wrap(err, "decode rows", slog.String("table", q.table))
	}
	return nil
}

// Single executes the select and decodes exactly one row into dest.
// Returns ErrNoRows when the filter matches nothing.
func (q *Query) Single(ctx context.Context, dest any) error {
	var rows []json.RawMessage
	if err := q.Get(ctx, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNoRows
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return errors.Wrap(err, "decode row", slog.String("table", q.table))
	}
	return nil
}

// Update applies a partial-row patch to every row matching the filters.
func (q *Query) Update(ctx context.Context, patch any) error {
	encoded, err := json.Marshal(patch)
	if err != nil {
		return errors.Wrap(err, "encode patch", slog.String("table", q.table))
	}
	if _, err = q.do(ctx, http.MethodPatch, encoded); err != nil {
		return err
	}
	return nil
}

func (q *Query) do(ctx context.Context, method string, body []byte) ([]byte, error) {
	c := q.client
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, q.table, q.params.Encode())

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "create request", slog.String("table", q.table))
	}
	req.Header.Set("apikey", c.apiKey)
	token := q.token
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "execute request", slog.String("table", q.table))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "could not close response body", errors.SlogError(closeErr))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response", slog.String("table", q.table))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.New("data service error",
			slog.String("table", q.table),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)))
	}
	return raw, nil
}
