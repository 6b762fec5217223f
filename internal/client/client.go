// Package client wraps the persistence service API with timeouts, retry with
// exponential backoff, cache busting, and a connection prober that tracks
// server reachability across fallback addresses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/roomboard/internal/meeting"
)

const (
	defaultTimeout = 30 * time.Second
	maxAttempts    = 3

	listVersionHeader = "X-List-Version"
	ifMatchHeader     = "If-Match-Version"
)

var (
	// ErrNotFound is returned when the server reports the meeting no longer
	// exists.
	ErrNotFound = errors.New("client: not found")
	// ErrConflict is returned when the server rejects a write as conflicting
	// or version-stale.
	ErrConflict = errors.New("client: conflict")
)

// StatusError carries a non-2xx response the API layer chose not to retry.
type StatusError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("client: server responded %d: %s", e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	// BaseURL locates the persistence service, e.g. "http://localhost:3000".
	BaseURL string
	// Timeout is the per-call deadline; zero means 30 seconds.
	Timeout time.Duration
	// HTTPClient overrides the transport; nil uses http.DefaultClient.
	HTTPClient *http.Client
	// Now supplies the cache-buster timestamps; nil means time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Client is the HTTP API client for the persistence service.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
	now     func() time.Time
	logger  *slog.Logger
}

// New constructs an API client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:    base,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		now:     opts.Now,
		logger:  logger,
	}, nil
}

// BaseURL returns the server address the client currently targets.
func (c *Client) BaseURL() string { return c.base }

// SetBaseURL redirects the client, typically after the prober adopted a
// fallback address.
func (c *Client) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base != "" {
		c.base = base
	}
}

// ListMeetings fetches the full meeting list and the server's list version.
func (c *Client) ListMeetings(ctx context.Context) ([]meeting.Meeting, int64, error) {
	var list []meeting.Meeting
	var version int64
	err := c.do(ctx, http.MethodGet, "/api/meetings", nil, nil, func(resp *http.Response) error {
		version, _ = strconv.ParseInt(resp.Header.Get(listVersionHeader), 10, 64)
		return json.NewDecoder(resp.Body).Decode(&list)
	})
	if err != nil {
		return nil, 0, err
	}
	return list, version, nil
}

// GetMeeting fetches a single meeting by id.
func (c *Client) GetMeeting(ctx context.Context, id string) (meeting.Meeting, error) {
	var m meeting.Meeting
	err := c.do(ctx, http.MethodGet, "/api/meetings/"+id, nil, nil, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&m)
	})
	return m, err
}

// CreateMeeting stores a meeting and returns the record the server kept.
func (c *Client) CreateMeeting(ctx context.Context, draft meeting.Meeting) (meeting.Meeting, error) {
	var stored meeting.Meeting
	err := c.do(ctx, http.MethodPost, "/api/meetings", draft, nil, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&stored)
	})
	return stored, err
}

// UpdateMeeting replaces the stored record with the supplied meeting.
func (c *Client) UpdateMeeting(ctx context.Context, updated meeting.Meeting) (meeting.Meeting, error) {
	var reply struct {
		Success bool            `json:"success"`
		Meeting meeting.Meeting `json:"meeting"`
	}
	err := c.do(ctx, http.MethodPut, "/api/meetings/"+updated.ID, updated, nil, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&reply)
	})
	return reply.Meeting, err
}

// DeleteMeeting removes a meeting and returns the removed record.
func (c *Client) DeleteMeeting(ctx context.Context, id string) (meeting.Meeting, error) {
	var removed meeting.Meeting
	err := c.do(ctx, http.MethodDelete, "/api/meetings/"+id, nil, nil, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&removed)
	})
	return removed, err
}

// ReplaceAll swaps the whole server-side list. A positive ifVersion makes
// the replace conditional on the list version returned by ListMeetings.
func (c *Client) ReplaceAll(ctx context.Context, list []meeting.Meeting, ifVersion int64) (int, error) {
	if list == nil {
		list = []meeting.Meeting{}
	}
	headers := map[string]string{}
	if ifVersion > 0 {
		headers[ifMatchHeader] = strconv.FormatInt(ifVersion, 10)
	}
	var reply struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	err := c.do(ctx, http.MethodPost, "/api/meetings/batch", list, headers, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&reply)
	})
	if err != nil {
		return 0, err
	}
	return reply.Count, nil
}

// do issues one API call with the per-call deadline and up to three attempts.
// Backoff grows 1s, 2s, 4s capped at 5s; 4xx responses are never retried.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, decode func(*http.Response) error) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		payload = encoded
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.Multiplier = 2
	policy.MaxInterval = 5 * time.Second
	policy.RandomizationFactor = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := c.attempt(ctx, method, path, payload, headers, decode)
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status < http.StatusInternalServerError {
			return backoff.Permanent(translateStatus(statusErr))
		}
		if attempt >= maxAttempts {
			return backoff.Permanent(err)
		}
		c.logger.Warn("api request failed, retrying", "method", method, "path", path, "attempt", attempt, "error", err)
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, headers map[string]string, decode func(*http.Response) error) error {
	url := c.base + path
	if method == http.MethodGet {
		// Cache buster; the server ignores unknown query keys.
		url += "?_t=" + strconv.FormatInt(c.now().UnixMilli(), 10)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if decode == nil {
			return nil
		}
		return decode(resp)
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

func translateStatus(err *StatusError) error {
	switch err.Status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, err.Body)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, err.Body)
	default:
		return err
	}
}
