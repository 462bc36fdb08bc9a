// Package client is the player's rate-limited client for the readalong HTTP API.
package client

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/logger"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRPS     = 10.0
	defaultBurst   = 20

	// Error bodies are read up to this size for the detail message.
	maxErrorBody = 64 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client talks to the readalong API.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a client for the API at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Validationf("invalid API base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		base:    base,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger.OrDiscard(cfg.Logger).With("component", "client"),
	}, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// resolve turns an API path, or an absolute URL, into a request URL.
func (c *Client) resolve(ref string, query url.Values) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.Validationf("invalid URL %q", ref)
	}
	if !u.IsAbs() {
		// Relative to the base path, not the host root.
		u.Path = strings.TrimPrefix(u.Path, "/")
		u.RawPath = ""
	}
	full := c.base.ResolveReference(u)
	if len(query) > 0 {
		full.RawQuery = query.Encode()
	}
	return full.String(), nil
}

// do sends a request and returns the response when its status is 2xx.
// Any other status becomes a *TransportError.
func (c *Client) do(ctx context.Context, method, ref string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	target, err := c.resolve(ref, query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "readalong/1.0")

	c.logger.Debug("api request", "method", method, "url", target)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close() //nolint:errcheck // error path
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			Method: method,
			URL:    target,
			Status: resp.StatusCode,
			Detail: detailFrom(body),
		}
	}
	return resp, nil
}

// Do sends a request on the client's rate-limited transport. Service clients
// for other backends are built on it.
func (c *Client) Do(ctx context.Context, method, ref string, query url.Values) (*http.Response, error) {
	return c.do(ctx, method, ref, query)
}

// SendJSON sends a request and decodes the JSON response into out.
func (c *Client) SendJSON(ctx context.Context, method, ref string, query url.Values, out any) error {
	return c.sendJSON(ctx, method, ref, query, out)
}

// getJSON decodes a JSON response into out.
func (c *Client) getJSON(ctx context.Context, ref string, query url.Values, out any) error {
	return c.sendJSON(ctx, http.MethodGet, ref, query, out)
}

func (c *Client) sendJSON(ctx context.Context, method, ref string, query url.Values, out any) error {
	resp, err := c.do(ctx, method, ref, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if err := json.UnmarshalRead(resp.Body, out); err != nil {
		return errors.Wrapf(err, errors.CodeTransport, "decode %s response", ref)
	}
	return nil
}

// Open streams the resource at ref, which may be an API path or an absolute
// URL. It satisfies the engines' Opener.
func (c *Client) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// TransportError is a failed API request: either no response, or a non-2xx
// status with the server's detail message.
type TransportError struct {
	Method string
	URL    string
	Status int
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.URL, e.Status, e.Detail)
	default:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport, plus ErrNotFound and ErrValidation for 404 and 400
// responses.
func (e *TransportError) Is(target error) bool {
	var coded *errors.Error
	if !errors.As(target, &coded) {
		return false
	}
	switch coded.Code {
	case errors.CodeTransport:
		return true
	case errors.CodeNotFound:
		return e.Status == http.StatusNotFound
	case errors.CodeValidation:
		return e.Status == http.StatusBadRequest
	case errors.CodeRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// Message returns what to show the user: the server's detail when present.
func (e *TransportError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

// detailFrom extracts "detail" or "message" from a JSON error body.
func detailFrom(body []byte) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch d := payload.Detail.(type) {
	case string:
		if d != "" {
			return d
		}
	case nil:
	default:
		if b, err := json.Marshal(d); err == nil {
			return string(b)
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Title
}
