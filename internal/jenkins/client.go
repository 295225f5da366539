package jenkins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Retry and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "jenkins-job-builder/0.1"
)

// crumbIssuerPath is the CSRF protection endpoint. Jenkins instances with
// CSRF protection enabled require the issued crumb on every POST.
const crumbIssuerPath = "/crumbIssuer/api/json"

// Client is an HTTP client for the Jenkins remote API. It handles request
// construction, basic authentication, the CSRF crumb protocol, retry with
// exponential backoff for reads, and error classification.
//
// Reads (Get) retry on network errors and retryable statuses. Mutations
// (Post) are issued exactly once: create/reconfig/delete are not idempotent,
// so a retried POST could double-apply.
type Client struct {
	baseURL    string
	user       string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	// CSRF crumb state, resolved lazily before the first POST. A 404 from
	// the crumb issuer means the server has CSRF protection disabled.
	crumbChecked bool
	crumbField   string
	crumbValue   string

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Jenkins API client. baseURL is the server root, e.g.
// "https://ci.example.com:8080". user/token are the basic-auth credentials
// (the token is a Jenkins API token, not the account password).
func NewClient(baseURL, user, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		user:       user,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// BaseURL returns the server root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get executes a GET request against the Jenkins API, retrying on network
// errors and retryable statuses. The caller must close the response body
// on success.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int
	for {
		resp, err := c.doOnce(ctx, http.MethodGet, url, "", nil, false)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("jenkins: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("jenkins: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("jenkins: GET %s failed after %d retries: %w", path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("jenkins: request canceled: %w", err)
			}

			attempt++

			continue
		}

		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// GetBody executes a GET request and returns the full response body.
func (c *Client) GetBody(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jenkins: reading response from %s: %w", path, err)
	}

	return body, nil
}

// Post executes a single POST against the Jenkins API with the CSRF crumb
// attached when the server requires one. Never retried. A nil body issues a
// bare POST (Jenkins mutation endpoints like doDelete take no payload).
func (c *Client) Post(ctx context.Context, path, contentType string, body []byte) error {
	if err := c.ensureCrumb(ctx); err != nil {
		return err
	}

	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	resp, err := c.doOnce(ctx, http.MethodPost, url, contentType, reader, true)
	if err != nil {
		return fmt.Errorf("jenkins: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusBadRequest {
		c.logger.Debug("mutation succeeded",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	return &ServerError{
		StatusCode: resp.StatusCode,
		Message:    string(errBody),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url, contentType string, body io.Reader, withCrumb bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if withCrumb && c.crumbField != "" {
		req.Header.Set(c.crumbField, c.crumbValue)
	}

	return c.httpClient.Do(req)
}

// crumbResponse mirrors the crumb issuer JSON payload.
type crumbResponse struct {
	Crumb             string `json:"crumb"`
	CrumbRequestField string `json:"crumbRequestField"`
}

// ensureCrumb resolves the server's CSRF crumb before the first mutation.
// A 404 from the issuer means CSRF protection is disabled; that answer is
// remembered so the issuer is queried at most once per session.
func (c *Client) ensureCrumb(ctx context.Context) error {
	if c.crumbChecked {
		return nil
	}

	body, err := c.GetBody(ctx, crumbIssuerPath)
	if err != nil {
		var srvErr *ServerError
		if errors.As(err, &srvErr) && srvErr.StatusCode == http.StatusNotFound {
			c.logger.Debug("no crumb issuer, CSRF protection disabled")
			c.crumbChecked = true

			return nil
		}

		return fmt.Errorf("fetching CSRF crumb: %w", err)
	}

	var cr crumbResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return fmt.Errorf("jenkins: decoding crumb response: %w", err)
	}

	c.crumbField = cr.CrumbRequestField
	c.crumbValue = cr.Crumb
	c.crumbChecked = true

	c.logger.Debug("CSRF crumb acquired", slog.String("field", c.crumbField))

	return nil
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
