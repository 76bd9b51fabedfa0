package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode categorizes connection failures.
type ErrorCode string

const (
	// CodeConstructionFailed: the provider could not be built (bad host,
	// bad configuration). Not retried automatically.
	CodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"

	// CodeConnectTimeout: no initial sync within the connect timeout.
	CodeConnectTimeout ErrorCode = "CONNECT_TIMEOUT"

	// CodeConnectionLost: the reconnect budget is spent.
	CodeConnectionLost ErrorCode = "CONNECTION_LOST"
)

// ErrSessionReplaced is returned by ConnectToDocument when another connect
// or a disconnect replaced the session before it synced.
var ErrSessionReplaced = errors.New("session: replaced before initial sync")

// ConnectionError describes a failed or lost connection.
type ConnectionError struct {
	Code       ErrorCode
	DocumentID string
	Message    string
	Err        error
	Details    map[string]string
}

func (e *ConnectionError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("%s: %s (document=%s)", e.Code, e.Message, e.DocumentID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsConstructionError reports whether err is a provider construction failure.
func IsConstructionError(err error) bool {
	return hasCode(err, CodeConstructionFailed)
}

// IsTimeoutError reports whether err is an initial-sync timeout.
func IsTimeoutError(err error) bool {
	return hasCode(err, CodeConnectTimeout)
}

// IsConnectionLost reports whether err means reconnection gave up.
func IsConnectionLost(err error) bool {
	return hasCode(err, CodeConnectionLost)
}

func newConstructionError(docID string, err error) *ConnectionError {
	return &ConnectionError{
		Code:       CodeConstructionFailed,
		DocumentID: docID,
		Message:    err.Error(),
		Err:        err,
	}
}

func newTimeoutError(docID string, timeout time.Duration) *ConnectionError {
	return &ConnectionError{
		Code:       CodeConnectTimeout,
		DocumentID: docID,
		Message:    fmt.Sprintf("connection timed out after %s", timeout),
	}
}

func newConnectionLostError(docID string, attempts, limit int, cause error) *ConnectionError {
	return &ConnectionError{
		Code:       CodeConnectionLost,
		DocumentID: docID,
		Message:    MsgConnectionLost,
		Err:        cause,
		Details: map[string]string{
			"attempts":     fmt.Sprintf("%d", attempts),
			"max_attempts": fmt.Sprintf("%d", limit),
		},
	}
}
