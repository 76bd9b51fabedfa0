package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/contextsync/internal/session"
)

// Run applies every step of scenario to the state machine and evaluates
// the expectations and assertions.
func Run(scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("nil scenario")
	}

	policy := session.DefaultPolicy()
	if scenario.MaxReconnectAttempts > 0 {
		policy.MaxReconnectAttempts = scenario.MaxReconnectAttempts
	}
	status := session.Disconnected
	if scenario.Initial != nil {
		status = scenario.Initial.status()
	}

	result := NewResult()
	var seq int64
	for i, step := range scenario.Steps {
		next := session.Transition(status, step.Event, policy)
		seq++
		result.Trace = append(result.Trace, TraceEntry{
			Seq:       seq,
			Event:     step.Event.String(),
			From:      status.State,
			To:        next.State,
			Attempts:  next.ReconnectAttempts,
			LastError: next.LastError,
			Changed:   next != status,
		})
		status = next

		if step.Expect != nil {
			for _, msg := range matchStatus(*step.Expect, status) {
				result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Event.String(), msg))
			}
		}
	}
	result.Final = status

	for i, a := range scenario.Assertions {
		if err := evaluate(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return result, nil
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure is one scenario that did not pass.
type SuiteFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// RunDir runs every *.yaml scenario in dir, in file name order. Files
// that fail to load count as failures.
func RunDir(dir string) (*SuiteResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("list scenarios: %w", err)
		}
	}
	sort.Strings(paths)

	suite := &SuiteResult{}
	for _, path := range paths {
		suite.Total++
		scenario, err := LoadScenario(path)
		if err != nil {
			suite.Failed++
			suite.Failures = append(suite.Failures, SuiteFailure{Path: path, Errors: []string{err.Error()}})
			continue
		}
		result, err := Run(scenario)
		if err != nil {
			return nil, err
		}
		if result.Pass {
			suite.Passed++
			continue
		}
		suite.Failed++
		suite.Failures = append(suite.Failures, SuiteFailure{Path: path, Name: scenario.Name, Errors: result.Errors})
	}
	return suite, nil
}
