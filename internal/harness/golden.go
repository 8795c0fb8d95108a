package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// Serialization uses indented JSON with sorted payload keys (encoding/json
// sorts map keys), so snapshots are byte-stable across runs.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Mode     string       `json:"mode,omitempty"`
	Trace    []TraceEvent `json:"trace"`
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails or the scenario's own
// expectations fail; trace mismatches fail the test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Passed {
		return result.Errors[0]
	}

	snapshot := TraceSnapshot{
		Scenario: scenario.Name,
		Mode:     scenario.Mode,
		Trace:    result.Trace,
	}
	traceJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
