package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnhealthy is returned when the relay answers but does not report "ok".
var ErrUnhealthy = errors.New("relay: unhealthy")

// Health is the body of GET /health. Timestamp is in Unix milliseconds.
type Health struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// CheckHealth queries the relay's health endpoint at url.
func CheckHealth(ctx context.Context, client *http.Client, url string) (Health, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Health{}, fmt.Errorf("relay: health request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("relay: health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("relay: decode health: %w", err)
	}
	if h.Status != "ok" {
		return h, fmt.Errorf("%w: %q", ErrUnhealthy, h.Status)
	}
	return h, nil
}
