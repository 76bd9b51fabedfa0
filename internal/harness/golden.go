package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/contextsync/internal/canon"
	"github.com/roach88/contextsync/internal/session"
)

// TraceSnapshot is the golden-file form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Trace        []TraceEntry   `json:"trace"`
	Final        session.Status `json:"final"`
}

// Snapshot returns the canonical JSON of a run.
func Snapshot(name string, r *Result) ([]byte, error) {
	return canon.Marshal(TraceSnapshot{ScenarioName: name, Trace: r.Trace, Final: r.Final})
}

// TraceFingerprint returns the domain-separated hash of a run's snapshot.
func TraceFingerprint(name string, r *Result) (string, error) {
	return canon.Fingerprint(canon.DomainTrace, TraceSnapshot{ScenarioName: name, Trace: r.Trace, Final: r.Final})
}

// RunWithGolden runs scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden. The returned result lets callers
// check Pass as well.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
