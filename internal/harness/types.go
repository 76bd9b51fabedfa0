package harness

import "github.com/roach88/contextsync/internal/session"

// TraceEntry records one step of a scenario.
type TraceEntry struct {
	Seq       int64         `json:"seq"`
	Event     string        `json:"event"`
	From      session.State `json:"from"`
	To        session.State `json:"to"`
	Attempts  int           `json:"attempts"`
	LastError string        `json:"last_error,omitempty"`
	Changed   bool          `json:"changed"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per step, including steps that changed nothing.
	Trace []TraceEntry `json:"trace"`

	// Errors contains one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// Final is the status after the last step.
	Final session.Status `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// entered returns the states the trace entered, in order.
func (r *Result) entered() []session.State {
	var out []session.State
	for _, e := range r.Trace {
		if e.From != e.To {
			out = append(out, e.To)
		}
	}
	return out
}
