package relay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidHost is returned for relay hosts that cannot form a room URL.
var ErrInvalidHost = errors.New("relay: invalid host")

// RoomURL returns the WebSocket URL of a document's room.
func RoomURL(host, kind, docID string, secure bool) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   "/parties/" + kind + "/" + docID,
	}
	return u.String()
}

// HealthURL returns the HTTP health endpoint of a relay host.
func HealthURL(host string, secure bool) string {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return scheme + "://" + host + "/health"
}

// ValidateHost checks that host is a bare host[:port].
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: empty", ErrInvalidHost)
	}
	if strings.Contains(host, "://") || strings.ContainsAny(host, "/?# ") {
		return fmt.Errorf("%w: %q must be host[:port]", ErrInvalidHost, host)
	}
	u, err := url.Parse("ws://" + host)
	if err != nil || u.Host != host || u.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	return nil
}
