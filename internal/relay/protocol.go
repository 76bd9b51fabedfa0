package relay

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/contextsync/internal/replica"
)

// FrameType identifies a protocol message.
type FrameType string

const (
	// FrameSyncStep1 carries the sender's full state. Sent by a client right
	// after it connects.
	FrameSyncStep1 FrameType = "sync-step-1"
	// FrameSyncStep2 is the room's answer to sync-step-1: the room's full
	// state after merging the client's.
	FrameSyncStep2 FrameType = "sync-step-2"
	// FrameUpdate carries one incremental update.
	FrameUpdate FrameType = "update"
)

// Frame is one WebSocket message. Frames travel as JSON in binary messages.
type Frame struct {
	Type   FrameType      `json:"type"`
	Update replica.Update `json:"update"`
}

func encodeFrame(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("relay: encode %s frame: %w", f.Type, err)
	}
	return data, nil
}

func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("relay: decode frame: %w", err)
	}
	switch f.Type {
	case FrameSyncStep1, FrameSyncStep2, FrameUpdate:
		return f, nil
	default:
		return Frame{}, fmt.Errorf("relay: unknown frame type %q", f.Type)
	}
}
