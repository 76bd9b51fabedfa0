// Package remote talks to the shared project store over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/roach88/contextsync/internal/domain"
)

// ErrNotFound is returned when the shared store has no such project.
var ErrNotFound = errors.New("remote: project not found")

// StatusError is an unexpected HTTP status from the shared store.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// BreakerConfig tunes the circuit breaker in front of the shared store.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig trips after 5 requests with at least 80% failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     30 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.8,
	}
}

// Client uploads and downloads whole projects.
type Client struct {
	base    *url.URL
	http    *http.Client
	logger  *slog.Logger
	breaker BreakerConfig
	cb      *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) {
		c.breaker = cfg
	}
}

// New returns a client for the store at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: base url %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("remote: base url %q has no host", baseURL)
	}

	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
		breaker: DefaultBreakerConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := c.breaker
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "shared-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, ErrNotFound) {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Code < 500
		},
	})
	return c, nil
}

// UploadProject stores p under its id, replacing any previous copy.
func (c *Client) UploadProject(ctx context.Context, p domain.Project) error {
	if p.ID == "" {
		return errors.New("remote: upload: project has no id")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("remote: encode project %s: %w", p.ID, err)
	}
	_, err = c.cb.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, http.MethodPut, p.ID, body, nil)
	})
	if err != nil {
		return fmt.Errorf("upload project %s: %w", p.ID, err)
	}
	return nil
}

// DownloadProject fetches a project. A missing project is ErrNotFound.
func (c *Client) DownloadProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, http.MethodGet, id, nil, &p)
	})
	if err != nil {
		return domain.Project{}, fmt.Errorf("download project %s: %w", id, err)
	}
	p.Normalize()
	return p, nil
}

func (c *Client) do(ctx context.Context, method, id string, body []byte, out any) error {
	u := c.base.JoinPath("projects", id)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
