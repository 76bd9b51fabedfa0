package session

// State is the connection state of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateSyncing      State = "syncing"
	StateOffline      State = "offline"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// States lists every state in declaration order.
var States = []State{
	StateDisconnected,
	StateConnecting,
	StateConnected,
	StateSyncing,
	StateOffline,
	StateReconnecting,
	StateError,
}

// Online reports whether edits currently reach the relay. Reconnecting is
// not online.
func (s State) Online() bool {
	return s == StateConnected || s == StateSyncing
}

// Valid reports whether s is one of States.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Status is the observable part of a session.
type Status struct {
	State             State  `json:"state"`
	ReconnectAttempts int    `json:"reconnectAttempts"`
	LastError         string `json:"lastError,omitempty"`
}

// Online reports whether s.State is online.
func (s Status) Online() bool {
	return s.State.Online()
}

// Disconnected is the status of a manager with no session.
var Disconnected = Status{State: StateDisconnected}
