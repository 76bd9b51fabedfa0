package replica

import "encoding/json"

// Stamp orders writes to a register. Higher Clock wins; ties are broken by
// Client so every replica picks the same winner.
type Stamp struct {
	Clock  int64  `json:"c"`
	Client string `json:"a"`
}

// After reports whether s wins over o.
func (s Stamp) After(o Stamp) bool {
	if s.Clock != o.Clock {
		return s.Clock > o.Clock
	}
	return s.Client > o.Client
}

// IsZero reports whether the stamp was never set.
func (s Stamp) IsZero() bool {
	return s.Clock == 0 && s.Client == ""
}

// Op is a single register write.
//
// With Field empty the op targets the record's liveness register: Delete
// tombstones the record, otherwise the record is (re)created. With Field set
// the op writes Value into that field, or tombstones the field when Delete
// is set.
type Op struct {
	Collection string          `json:"col"`
	Record     string          `json:"rec"`
	Field      string          `json:"fld,omitempty"`
	Value      json.RawMessage `json:"val,omitempty"`
	Delete     bool            `json:"del,omitempty"`
	Stamp      Stamp           `json:"ts"`
}

// Update is a batch of ops produced by one transaction, or a full-state
// dump produced by EncodeState.
type Update struct {
	Ops []Op `json:"ops"`
}

// Empty reports whether the update carries no ops.
func (u Update) Empty() bool {
	return len(u.Ops) == 0
}

// UpdateEvent is delivered to observers after every transaction and every
// applied remote update.
type UpdateEvent struct {
	Update Update
	Origin any
	Local  bool
}
