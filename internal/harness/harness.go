// Package harness provides a conformance testing framework for the session
// pipeline. Scenarios play a scripted session against a fresh in-memory
// event log with a fixed piece sequence, a fixed session id, and a fixed
// clock, so every run produces an identical trace suitable for golden file
// comparison.
package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/adaptco/tetris/internal/event"
	"github.com/adaptco/tetris/internal/eventlog"
	"github.com/adaptco/tetris/internal/game"
	"github.com/adaptco/tetris/internal/session"
	"github.com/adaptco/tetris/internal/verify"
)

// Fixed identities for deterministic traces.
const (
	testTenant  = "test-player"
	testSession = "test-session"
)

// testClock is the frozen time used for finalize seals in scenarios.
var testClock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// TraceEvent is one recorded event as it appears in a trace snapshot.
// Hashes and timestamps are excluded: they vary with the chain domain and
// wall clock, and the verifier covers them separately.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	State   string         `json:"state"`
	Stage   string         `json:"stage"`
	Payload map[string]any `json:"payload"`
}

// Result is the outcome of running one scenario.
type Result struct {
	// Passed is true when every expectation and assertion held.
	Passed bool

	// Trace is the recorded event history, hashes and timestamps elided.
	Trace []TraceEvent

	// Final is the session snapshot after the last step.
	Final session.Snapshot

	// Report is the integrity verification of the full history.
	Report verify.Report

	// Errors collects every expectation and assertion failure.
	Errors []error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation.
// Run itself only fails on infrastructure errors; expectation and
// assertion failures are collected in the result.
func Run(scenario *Scenario) (*Result, error) {
	log, err := eventlog.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory log: %w", err)
	}
	defer log.Close()

	pieces := make([]game.Piece, len(scenario.Pieces))
	for i, p := range scenario.Pieces {
		piece := game.Piece(p)
		if !piece.IsValid() {
			return nil, fmt.Errorf("scenario %q: unknown piece %q", scenario.Name, p)
		}
		pieces[i] = piece
	}

	engineOpts := []game.Option{game.WithPieceSource(game.NewFixedSource(pieces...))}
	if scenario.Board != nil {
		engineOpts = append(engineOpts, game.WithBoardSize(scenario.Board.Rows, scenario.Board.Cols))
	}

	orch, err := session.New(log,
		session.WithIDGenerator(session.NewFixedGenerator(testSession)),
		session.WithClock(func() time.Time { return testClock }),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithEngineOptions(engineOpts...),
	)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := &Result{Passed: true}

	h, err := orch.Start(ctx, testTenant, scenario.Mode)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: start: %w", scenario.Name, err)
	}
	result.Final = h.Snapshot

	for i, step := range scenario.Flow {
		action, ok := event.ParseAction(step.Action)
		if !ok {
			// Feed the raw name through anyway: scenarios may probe how
			// unknown actions are refused.
			action = event.Action(step.Action)
		}

		out, err := orch.ExecuteAction(ctx, testTenant, h.ID, action)
		if err != nil {
			return nil, fmt.Errorf("scenario %q step %d (%s): %w", scenario.Name, i, step.Action, err)
		}
		result.Final = out.Snapshot

		if failures := checkExpect(i, step, out); len(failures) > 0 {
			result.Errors = append(result.Errors, failures...)
			result.Passed = false
		}
	}

	history, err := log.Read(ctx, testTenant, h.ID)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: reading trace: %w", scenario.Name, err)
	}

	result.Trace, err = buildTrace(history)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	result.Report = verify.Verify(history)
	if !result.Report.Valid {
		result.Errors = append(result.Errors, fmt.Errorf("integrity check failed: %s", result.Report.Reason))
		result.Passed = false
	}

	for i, assertion := range scenario.Assertions {
		if err := checkAssertion(assertion, result); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("assertion %d: %w", i, err))
			result.Passed = false
		}
	}

	return result, nil
}

// checkExpect validates one step's outcome against its expect clause.
func checkExpect(step int, fs FlowStep, out session.Outcome) []error {
	if fs.Expect == nil {
		return nil
	}

	var failures []error
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Errorf("step %d (%s): %s", step, fs.Action, fmt.Sprintf(format, args...)))
	}

	e := fs.Expect
	if e.Approved != nil && out.Approved != *e.Approved {
		fail("approved = %v, want %v (message: %s)", out.Approved, *e.Approved, out.Message)
	}
	if e.ReasonContains != "" && !strings.Contains(out.Message, e.ReasonContains) {
		fail("message %q does not contain %q", out.Message, e.ReasonContains)
	}
	if e.Score != nil && out.Snapshot.Score != *e.Score {
		fail("score = %d, want %d", out.Snapshot.Score, *e.Score)
	}
	if e.LinesCleared != nil && out.Snapshot.LinesCleared != *e.LinesCleared {
		fail("lines_cleared = %d, want %d", out.Snapshot.LinesCleared, *e.LinesCleared)
	}
	return failures
}

// buildTrace converts a history into trace events with payloads decoded to
// generic maps for stable serialization.
func buildTrace(history []event.Event) ([]TraceEvent, error) {
	trace := make([]TraceEvent, 0, len(history))
	for _, ev := range history {
		raw, err := event.MarshalPayload(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("trace seq %d: %w", ev.Seq, err)
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("trace seq %d: %w", ev.Seq, err)
		}
		trace = append(trace, TraceEvent{
			Seq:     ev.Seq,
			State:   string(ev.State),
			Stage:   string(ev.Stage),
			Payload: payload,
		})
	}
	return trace, nil
}
