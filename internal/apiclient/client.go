// Package apiclient talks to the finance backend REST API.
// Every call is a single request: no retries and no caching at this layer.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every request unless Config.Timeout says otherwise.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 10 << 20

// TokenSource supplies the bearer token. An empty token means the user is logged out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Observer receives one observation per completed call. status is 0 when no response arrived.
type Observer interface {
	ObserveRequest(name, method string, status int, d time.Duration)
}

// Config configures the client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
	UserAgent string
}

// Client is a JSON REST client with bearer authentication.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	tokens     TokenSource
	limiter    *rate.Limiter
	observer   Observer
	userAgent  string
	log        zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver reports request outcomes, typically to prometheus.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger used for request debug output.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for the backend at cfg.BaseURL.
func New(cfg Config, tokens TokenSource, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("New: base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("New: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "finance-dashboard/1.0"
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    u,
		tokens:     tokens,
		limiter:    rate.NewLimiter(limit, burst),
		userAgent:  cfg.UserAgent,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request describes one API call.
type Request struct {
	// Name labels the call in metrics and logs, e.g. "goals.list".
	Name   string
	Method string
	// Path is relative to the base URL and already escaped.
	Path  string
	Query url.Values
	Body  interface{}
	// Public requests are sent without a bearer token (login, register).
	Public bool
}

// Do executes req and decodes a 2xx JSON body into out (if out is non-nil).
//
// Errors: ErrUnauthenticated when no token is stored (nothing is sent),
// *NetworkError on transport failure or timeout, *RequestFailedError on non-2xx.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	if req.Name == "" {
		req.Name = req.Method + " " + req.Path
	}

	var token string
	if !req.Public {
		if c.tokens == nil {
			return ErrUnauthenticated
		}
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("Do: reading token: %w", err)
		}
		if t == "" {
			return ErrUnauthenticated
		}
		token = t
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req, 0, time.Since(start))
		c.log.Debug().Err(err).Str("call", req.Name).Msg("API request failed")
		return &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	duration := time.Since(start)
	c.observe(req, resp.StatusCode, duration)
	if err != nil {
		return &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}

	c.log.Debug().
		Str("call", req.Name).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("API request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestFailedError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(body, resp.StatusCode),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("Do: decoding %s response: %w", req.Name, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("Do: encoding %s body: %w", req.Name, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("Do: building %s request: %w", req.Name, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func (c *Client) observe(req Request, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(req.Name, req.Method, status, d)
	}
}

// serverMessage extracts {"message": ...} or {"error": ...} from an error body.
func serverMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return msg
		}
	}
	return genericMessage(status)
}
