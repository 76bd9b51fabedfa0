package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contextsync/internal/session"
)

// Scenario is a sequence of connection events with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MaxReconnectAttempts overrides the reconnect budget. Zero means the
	// default.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts,omitempty"`

	// Initial is the status before the first step.
	Initial *StatusSpec `yaml:"initial,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final status.
	Assertions []Assertion `yaml:"assertions"`
}

// StatusSpec is a status written in a scenario.
type StatusSpec struct {
	State     session.State `yaml:"state"`
	Attempts  int           `yaml:"attempts,omitempty"`
	LastError string        `yaml:"last_error,omitempty"`
}

func (s StatusSpec) status() session.Status {
	return session.Status{State: s.State, ReconnectAttempts: s.Attempts, LastError: s.LastError}
}

// Step is one event plus an optional expectation on the status after it.
type Step struct {
	session.Event `yaml:",inline"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a partial status match. Nil fields are not checked.
type Expect struct {
	State     session.State `yaml:"state,omitempty"`
	Attempts  *int          `yaml:"attempts,omitempty"`
	Online    *bool         `yaml:"online,omitempty"`
	LastError *string       `yaml:"last_error,omitempty"`
}

// Assertion validates the trace or the final status.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Expect holds the final_state fields.
	Expect `yaml:",inline"`

	// States is the expected entry order (trace_order).
	States []session.State `yaml:"states,omitempty"`

	// Count is the expected number of entries (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState    = "final_state"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

var eventKinds = map[session.EventKind]bool{
	session.EventConnectRequested:    true,
	session.EventSynced:              true,
	session.EventConnectionClosed:    true,
	session.EventTimeout:             true,
	session.EventConstructionFailed:  true,
	session.EventErrorReported:       true,
	session.EventStateRequested:      true,
	session.EventDisconnectRequested: true,
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so typos
// like "assertion:" fail loudly.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts must be non-negative")
	}
	if s.Initial != nil && !s.Initial.State.Valid() {
		return fmt.Errorf("initial: unknown state %q", s.Initial.State)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !eventKinds[step.Kind] {
			return fmt.Errorf("steps[%d]: unknown kind %q", i, step.Kind)
		}
		if step.Kind == session.EventStateRequested && !step.State.Valid() {
			return fmt.Errorf("steps[%d]: state-requested needs a valid state, got %q", i, step.State)
		}
		if step.Expect != nil {
			if err := validateExpect(step.Expect); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(e *Expect) error {
	if e.State != "" && !e.State.Valid() {
		return fmt.Errorf("unknown state %q", e.State)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.State == "" && a.Attempts == nil && a.Online == nil && a.LastError == nil {
			return fmt.Errorf("assertions[%d]: final_state needs at least one field", index)
		}
		if err := validateExpect(&a.Expect); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertTraceContains, AssertTraceCount:
		if !a.State.Valid() {
			return fmt.Errorf("assertions[%d]: %s needs a valid state, got %q", index, a.Type, a.State)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for trace_order", index)
		}
		for _, st := range a.States {
			if !st.Valid() {
				return fmt.Errorf("assertions[%d]: unknown state %q", index, st)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
