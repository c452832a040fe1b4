package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	url2 "net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func waitForReady(ctx context.Context, endpoint string) error {
	timeout := 1 * time.Second
	client := http.Client{}
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			endpoint,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(250 * time.Millisecond)
		}
	}
}

// testLookupEnv points the server at the fake upstream and an in-memory
// database.
func testLookupEnv(upstream *fakeUpstream) func(string) (string, bool) {
	return func(key string) (string, bool) {
		switch key {
		case "GUMSHOE_ADDR":
			return "localhost:0", true
		case "GUMSHOE_SQLITE_URL":
			return ":memory:", true
		case "GUMSHOE_SERVICE_URL":
			return upstream.URL(), true
		case "GUMSHOE_SERVICE_KEY":
			return "test-service-key", true
		case "GUMSHOE_BACKEND_URL":
			return upstream.URL(), true
		default:
			return "", false
		}
	}
}

type testServer struct {
	url    string
	client http.Client
}

// startTestServer starts the test server, waits for it to be ready, and
// returns a client whose cookie jar ignores the Secure flag.
func startTestServer(t *testing.T, w io.Writer, lookupEnv func(string) (string, bool)) testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "Addr" {
				addrCh <- a.Value.String()
			}
			return a
		},
	})))

	// Start the server and wait for it to be ready.
	go func() {
		if err := run(ctx, logger, lookupEnv); err != nil {
			cancel()
			assert.NoError(t, err)
		}
	}()
	select {
	case <-ctx.Done():
		t.Fatal("server failed to start")
		return testServer{} //nolint:exhaustruct // This is unreachable.
	case addr := <-addrCh:
		serverURL := fmt.Sprintf("http://%s", addr)
		if err := waitForReady(ctx, fmt.Sprintf("%s/api/healthy", serverURL)); err != nil {
			require.NoError(t, err)
		}
		jar, err := newUnsafeCookieJar()
		require.NoError(t, err)
		return testServer{
			url:    serverURL,
			client: http.Client{Jar: jar},
		}
	}
}

// Get fetches a URL and returns the response.
func (s *testServer) Get(t *testing.T, urlPath string) *http.Response {
	t.Helper()
	resp, err := s.client.Get(s.url + urlPath)
	require.NoError(t, err)
	return resp
}

// GetDoc fetches a URL and returns a goquery document.
func (s *testServer) GetDoc(t *testing.T, urlPath string) *goquery.Document {
	t.Helper()
	resp := s.Get(t, urlPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer func() {
		err := resp.Body.Close()
		require.NoError(t, err)
	}()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

// GetPartial fetches one of the htmx polling endpoints, which reject plain
// navigation requests.
func (s *testServer) GetPartial(t *testing.T, urlPath string) *goquery.Document {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.url+urlPath, nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer func() {
		err := resp.Body.Close()
		require.NoError(t, err)
	}()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

// SubmitForm loads formURLPath, finds the form posting to formActionURLPath,
// fills it with the given fields plus the CSRF token, and returns the
// response document after redirects.
func (s *testServer) SubmitForm(t *testing.T, formURLPath, formActionURLPath string, fields url2.Values) *goquery.Document {
	t.Helper()
	doc := s.GetDoc(t, formURLPath)
	return s.SubmitFormIn(t, doc, formActionURLPath, fields)
}

// SubmitFormIn submits a form found in an already fetched document.
func (s *testServer) SubmitFormIn(t *testing.T, doc *goquery.Document, formActionURLPath string, fields url2.Values) *goquery.Document {
	t.Helper()
	html, err := doc.Html()
	require.NoError(t, err)

	// Extract CSRF token from the form.
	formSelector := fmt.Sprintf("form[action='%s']", formActionURLPath)
	form := doc.Find(formSelector)
	require.GreaterOrEqual(t, form.Length(), 1, "form %s not found in document:\n%s", formSelector, html)
	csrfToken, ok := form.Find("input[name=csrf_token]").Attr("value")
	require.True(t, ok, "csrf_token not found in form %s", formSelector)

	formData := url2.Values{}
	formData.Add("csrf_token", csrfToken)
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name, _ := input.Attr("name")
		if name == "" || name == "csrf_token" {
			return
		}
		value, _ := input.Attr("value")
		formData.Set(name, value)
	})
	for name, values := range fields {
		for _, value := range values {
			formData.Set(name, value)
		}
	}
	data := strings.NewReader(formData.Encode())

	resp, err := s.client.Post(s.url+formActionURLPath, "application/x-www-form-urlencoded", data)
	require.NoError(t, err)
	defer func(body io.ReadCloser) {
		err = body.Close()
		assert.NoError(t, err)
	}(resp.Body)
	require.Less(t, resp.StatusCode, http.StatusInternalServerError)

	doc, err = goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

// SignUp registers a fresh identity through the signup form and returns the
// front page document.
func (s *testServer) SignUp(t *testing.T, email, password string) *goquery.Document {
	t.Helper()
	return s.SubmitForm(t, "/signup", "/signup", url2.Values{
		"email":    {email},
		"password": {password},
	})
}

// SignIn logs in through the login form and returns the front page document.
func (s *testServer) SignIn(t *testing.T, email, password string) *goquery.Document {
	t.Helper()
	return s.SubmitForm(t, "/login", "/login", url2.Values{
		"email":    {email},
		"password": {password},
	})
}
