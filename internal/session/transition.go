package session

import "fmt"

// EventKind identifies what happened to a session.
type EventKind string

const (
	EventConnectRequested    EventKind = "connect-requested"
	EventSynced              EventKind = "synced"
	EventConnectionClosed    EventKind = "connection-closed"
	EventTimeout             EventKind = "timeout"
	EventConstructionFailed  EventKind = "construction-failed"
	EventErrorReported       EventKind = "error-reported"
	EventStateRequested      EventKind = "state-requested"
	EventDisconnectRequested EventKind = "disconnect-requested"
)

// Event is one input to the state machine. Message is used by the failure
// events; State only by EventStateRequested.
type Event struct {
	Kind    EventKind `json:"kind" yaml:"kind"`
	Message string    `json:"message,omitempty" yaml:"message,omitempty"`
	State   State     `json:"state,omitempty" yaml:"state,omitempty"`
}

// MsgConnectionLost is recorded when reconnection gives up.
const MsgConnectionLost = "connection lost"

// Policy bounds automatic reconnection.
type Policy struct {
	// MaxReconnectAttempts is the number of unsolicited closes tolerated
	// before the session goes offline.
	MaxReconnectAttempts int
}

// DefaultMaxReconnectAttempts is the default Policy.MaxReconnectAttempts.
const DefaultMaxReconnectAttempts = 5

// DefaultPolicy returns the default reconnection policy.
func DefaultPolicy() Policy {
	return Policy{MaxReconnectAttempts: DefaultMaxReconnectAttempts}
}

// allows reports whether reconnect attempt number n is within budget.
func (p Policy) allows(n int) bool {
	return n <= p.MaxReconnectAttempts
}

// Transition returns the status after ev. Events that do not apply in the
// current state return s unchanged.
func Transition(s Status, ev Event, p Policy) Status {
	switch ev.Kind {
	case EventConnectRequested:
		return Status{State: StateConnecting}

	case EventSynced:
		if s.State == StateDisconnected {
			return s
		}
		return Status{State: StateConnected}

	case EventConnectionClosed:
		switch s.State {
		case StateConnected, StateSyncing, StateReconnecting:
			next := s.ReconnectAttempts + 1
			if p.allows(next) {
				return Status{State: StateReconnecting, ReconnectAttempts: next, LastError: s.LastError}
			}
			return Status{State: StateOffline, ReconnectAttempts: next, LastError: MsgConnectionLost}
		default:
			// connecting: the timeout decides. offline: the provider keeps
			// retrying but the attempt budget is spent.
			return s
		}

	case EventTimeout:
		if s.State != StateConnecting {
			return s
		}
		return Status{State: StateError, ReconnectAttempts: s.ReconnectAttempts, LastError: ev.Message}

	case EventConstructionFailed, EventErrorReported:
		return Status{State: StateError, ReconnectAttempts: s.ReconnectAttempts, LastError: ev.Message}

	case EventStateRequested:
		if ev.State == s.State || !ev.State.Valid() {
			return s
		}
		switch ev.State {
		case StateConnected:
			return Status{State: StateConnected}
		case StateDisconnected:
			return Disconnected
		default:
			return Status{State: ev.State, ReconnectAttempts: s.ReconnectAttempts, LastError: s.LastError}
		}

	case EventDisconnectRequested:
		return Disconnected
	}
	return s
}

// String renders an event for logs and traces.
func (e Event) String() string {
	switch {
	case e.State != "":
		return fmt.Sprintf("%s(%s)", e.Kind, e.State)
	case e.Message != "":
		return fmt.Sprintf("%s(%q)", e.Kind, e.Message)
	default:
		return string(e.Kind)
	}
}
