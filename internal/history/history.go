package history

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Applier replays a command against the active document without recording
// it. Implemented by bridge.Editor.
type Applier interface {
	Apply(cmd Command) error
}

// ErrReplayInProgress is returned by Undo and Redo while another undo or
// redo is still applying its command.
var ErrReplayInProgress = errors.New("history: undo or redo already in progress")

// History holds the undo and redo stacks.
//
// Thread-safety: all methods are safe for concurrent use. The history lock
// is not held while a command is applied, so code reached from Apply (such
// as document observers) may call CanUndo, CanRedo, Record or Clear. Only
// one undo or redo runs at a time; a second one started while the first is
// applying fails with ErrReplayInProgress.
type History struct {
	mu        sync.Mutex
	undo      []Command
	redo      []Command
	applier   Applier
	replaying bool
	records   uint64 // bumped by Record
	epoch     uint64 // bumped by Clear
	logger    *slog.Logger
}

// Option configures a History.
type Option func(*History)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *History) {
		h.logger = l
	}
}

// New creates an empty history.
func New(opts ...Option) *History {
	h := &History{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Bind sets the applier used by Undo and Redo.
func (h *History) Bind(a Applier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applier = a
}

// Record pushes cmd onto the undo stack and clears the redo stack.
// Empty commands are ignored.
func (h *History) Record(cmd Command) {
	if cmd.Empty() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = append(h.undo, cmd)
	h.redo = nil
	h.records++
}

// Undo pops the latest command, applies its inverse and pushes it onto the
// redo stack. Returns false when there is nothing to undo. If the replay
// fails both stacks are left as they were.
//
// The command moves to the redo stack before it is applied, so observers
// running during the replay already see the post-undo CanUndo/CanRedo.
func (h *History) Undo() (bool, error) {
	h.mu.Lock()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return false, nil
	}
	if h.applier == nil {
		h.mu.Unlock()
		return false, fmt.Errorf("undo: no document bound")
	}
	if h.replaying {
		h.mu.Unlock()
		return false, ErrReplayInProgress
	}
	n := len(h.undo) - 1
	cmd := h.undo[n]
	h.undo = h.undo[:n]
	h.redo = append(h.redo, cmd)
	applier, records, epoch := h.applier, h.records, h.epoch
	h.replaying = true
	h.mu.Unlock()

	err := applier.Apply(cmd.Inverse())

	h.mu.Lock()
	defer h.mu.Unlock()
	h.replaying = false
	if err != nil {
		if h.epoch == epoch {
			if h.records == records {
				h.redo = h.redo[:len(h.redo)-1]
			}
			h.undo = slices.Insert(h.undo, n, cmd)
		}
		return false, fmt.Errorf("undo %s: %w", cmd.Type, err)
	}

	h.logger.Debug("command undone", "type", cmd.Type, "undo_depth", len(h.undo), "redo_depth", len(h.redo))
	return true, nil
}

// Redo pops the latest undone command, reapplies it and pushes it back onto
// the undo stack. Returns false when there is nothing to redo.
func (h *History) Redo() (bool, error) {
	h.mu.Lock()
	if len(h.redo) == 0 {
		h.mu.Unlock()
		return false, nil
	}
	if h.applier == nil {
		h.mu.Unlock()
		return false, fmt.Errorf("redo: no document bound")
	}
	if h.replaying {
		h.mu.Unlock()
		return false, ErrReplayInProgress
	}
	cmd := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	n := len(h.undo)
	h.undo = append(h.undo, cmd)
	applier, records, epoch := h.applier, h.records, h.epoch
	h.replaying = true
	h.mu.Unlock()

	err := applier.Apply(cmd)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.replaying = false
	if err != nil {
		if h.epoch == epoch {
			h.undo = slices.Delete(h.undo, n, n+1)
			if h.records == records {
				h.redo = append(h.redo, cmd)
			}
		}
		return false, fmt.Errorf("redo %s: %w", cmd.Type, err)
	}

	h.logger.Debug("command redone", "type", cmd.Type, "undo_depth", len(h.undo), "redo_depth", len(h.redo))
	return true, nil
}

// Clear empties both stacks and unbinds the applier. Called whenever the
// active document changes so commands never replay against another document.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = nil
	h.redo = nil
	h.applier = nil
	h.epoch++
}

// CanUndo reports whether Undo would do anything.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether Redo would do anything.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Depth returns the sizes of the undo and redo stacks.
func (h *History) Depth() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}
