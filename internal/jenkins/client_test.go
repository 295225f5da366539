package jenkins

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// newTestClient builds a client against the given test server with sleeps
// disabled.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	c := NewClient(srv.URL, "admin", "secret-token", srv.Client(), nil)
	c.sleepFunc = noopSleep

	return c
}

func TestGet_SetsBasicAuthAndUserAgent(t *testing.T) {
	var gotUser, gotPass, gotAgent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		gotAgent = r.UserAgent()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	resp, err := c.Get(context.Background(), "/api/json")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "admin", gotUser)
	assert.Equal(t, "secret-token", gotPass)
	assert.Equal(t, userAgent, gotAgent)
}

func TestGet_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	body, err := c.GetBody(context.Background(), "/api/json")
	require.NoError(t, err)

	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_NotFoundClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such job", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	_, err := c.Get(context.Background(), "/job/missing/config.xml")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNotFound)

	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, http.StatusNotFound, srvErr.StatusCode)
}

func TestPost_NeverRetried(t *testing.T) {
	var posts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == crumbIssuerPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		posts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	err := c.Post(context.Background(), "/createItem?name=a", "application/xml", []byte("<project/>"))
	require.Error(t, err)

	// Mutations are not idempotent: exactly one attempt.
	assert.Equal(t, int32(1), posts.Load())
	assert.ErrorIs(t, err, ErrServerError)
}

func TestPost_AttachesCrumb(t *testing.T) {
	var crumbFetches atomic.Int32
	var gotCrumb string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == crumbIssuerPath {
			crumbFetches.Add(1)
			io.WriteString(w, `{"crumb":"abc123","crumbRequestField":"Jenkins-Crumb"}`)

			return
		}

		gotCrumb = r.Header.Get("Jenkins-Crumb")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	require.NoError(t, c.Post(context.Background(), "/job/a/doDelete", "", nil))
	require.NoError(t, c.Post(context.Background(), "/job/b/doDelete", "", nil))

	assert.Equal(t, "abc123", gotCrumb)
	// The issuer is consulted once per session, not per POST.
	assert.Equal(t, int32(1), crumbFetches.Load())
}

func TestPost_NoCrumbIssuerMeansNoHeader(t *testing.T) {
	var hadHeader bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == crumbIssuerPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, hadHeader = r.Header["Jenkins-Crumb"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	require.NoError(t, c.Post(context.Background(), "/job/a/doDelete", "", nil))
	assert.False(t, hadHeader)
}

func TestGet_ContextCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())

	c := newTestClient(t, srv)
	c.sleepFunc = func(_ context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Get(ctx, "/api/json")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalcBackoff_GrowsAndIsCapped(t *testing.T) {
	c := NewClient("http://example.invalid", "u", "t", nil, nil)

	small := c.calcBackoff(0)
	assert.Greater(t, small, time.Duration(0))

	// With jitter the cap can overshoot by at most 25%.
	huge := c.calcBackoff(20)
	assert.LessOrEqual(t, huge, maxBackoff+maxBackoff/4)
}
