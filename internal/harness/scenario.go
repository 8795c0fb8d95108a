package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a full session through the orchestrator with a fixed
// piece sequence and assert on the resulting event trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mode names the policy mode to play under. Empty means the default.
	Mode string `yaml:"mode,omitempty"`

	// Pieces is the fixed spawn sequence. The scenario fails if play
	// requires more spawns than listed.
	Pieces []string `yaml:"pieces"`

	// Board overrides the default 20×10 board, e.g. to reach a full
	// board quickly in finalize scenarios.
	Board *BoardSize `yaml:"board,omitempty"`

	// Flow contains the actions to submit, in order, each with an
	// optional expectation on the outcome.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, event_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// BoardSize is a scenario board override.
type BoardSize struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// FlowStep submits one action to the orchestrator.
type FlowStep struct {
	// Action is the action name (e.g. "MOVE_LEFT", "HARD_DROP").
	Action string `yaml:"action"`

	// Expect specifies the expected outcome.
	// If nil, the step only requires that submission itself succeeds.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of one step.
// Nil fields are not checked.
type ExpectClause struct {
	// Approved is the expected approval result.
	Approved *bool `yaml:"approved,omitempty"`

	// ReasonContains requires the refusal message to contain a substring.
	ReasonContains string `yaml:"reason_contains,omitempty"`

	// Score is the expected score after the step.
	Score *int `yaml:"score,omitempty"`

	// LinesCleared is the expected cleared-line total after the step.
	LinesCleared *int `yaml:"lines_cleared,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Stage is an event stage name (trace_contains).
	Stage string `yaml:"stage,omitempty"`

	// Stages is an expected stage order, not necessarily consecutive
	// (trace_order).
	Stages []string `yaml:"stages,omitempty"`

	// Count is the expected total number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected final state tag (final_state).
	State string `yaml:"state,omitempty"`

	// Score, LinesCleared, MoveCount are expected final values
	// (final_state; nil fields are not checked).
	Score        *int `yaml:"score,omitempty"`
	LinesCleared *int `yaml:"lines_cleared,omitempty"`
	MoveCount    *int `yaml:"move_count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertEventCount    = "event_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected, so typos fail loudly instead of silently
// skipping a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

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

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("missing required field: name")
	}
	if len(s.Pieces) == 0 {
		return fmt.Errorf("scenario %q lists no pieces", s.Name)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("scenario %q has no flow steps", s.Name)
	}
	if s.Board != nil && (s.Board.Rows < 1 || s.Board.Cols < 4) {
		return fmt.Errorf("scenario %q has unusable board %dx%d", s.Name, s.Board.Rows, s.Board.Cols)
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceContains, AssertTraceOrder, AssertEventCount, AssertFinalState:
		default:
			return fmt.Errorf("scenario %q assertion %d has unknown type %q", s.Name, i, a.Type)
		}
	}
	return nil
}
