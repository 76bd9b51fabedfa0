package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/contextsync/internal/session"
)

// matchStatus returns one message per field of e that s does not match.
func matchStatus(e Expect, s session.Status) []string {
	var msgs []string
	if e.State != "" && e.State != s.State {
		msgs = append(msgs, fmt.Sprintf("state: expected %s, got %s", e.State, s.State))
	}
	if e.Attempts != nil && *e.Attempts != s.ReconnectAttempts {
		msgs = append(msgs, fmt.Sprintf("attempts: expected %d, got %d", *e.Attempts, s.ReconnectAttempts))
	}
	if e.Online != nil && *e.Online != s.Online() {
		msgs = append(msgs, fmt.Sprintf("online: expected %t, got %t", *e.Online, s.Online()))
	}
	if e.LastError != nil && *e.LastError != s.LastError {
		msgs = append(msgs, fmt.Sprintf("last_error: expected %q, got %q", *e.LastError, s.LastError))
	}
	return msgs
}

func evaluate(a Assertion, r *Result) error {
	switch a.Type {
	case AssertFinalState:
		return assertFinalState(a.Expect, r)
	case AssertTraceContains:
		return assertTraceContains(a.State, r)
	case AssertTraceOrder:
		return assertTraceOrder(a.States, r)
	case AssertTraceCount:
		return assertTraceCount(a.State, a.Count, r)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertFinalState(e Expect, r *Result) error {
	msgs := matchStatus(e, r.Final)
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("final status mismatch: %v", msgs)
}

func assertTraceContains(state session.State, r *Result) error {
	if slices.Contains(r.entered(), state) {
		return nil
	}
	return fmt.Errorf("trace never entered %s (entered %v)", state, r.entered())
}

// assertTraceOrder checks that states appear in the entered sequence in
// order. Other states may appear in between.
func assertTraceOrder(states []session.State, r *Result) error {
	entered := r.entered()
	i := 0
	for _, st := range entered {
		if i < len(states) && st == states[i] {
			i++
		}
	}
	if i == len(states) {
		return nil
	}
	return fmt.Errorf("expected order %v, missing %s after position %d (entered %v)", states, states[i], i, entered)
}

func assertTraceCount(state session.State, want int, r *Result) error {
	got := 0
	for _, st := range r.entered() {
		if st == state {
			got++
		}
	}
	if got != want {
		return fmt.Errorf("expected %s entered %d times, got %d", state, want, got)
	}
	return nil
}
