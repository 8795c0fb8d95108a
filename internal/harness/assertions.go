package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace stages so failures are debuggable without rerunning.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\ntrace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %v\n", ev.Seq, ev.State, ev.Stage, ev.Payload["action"])
	}

	return buf.String()
}

// checkAssertion dispatches one assertion against the scenario result.
func checkAssertion(a Assertion, result *Result) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertEventCount:
		return assertEventCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks that at least one event carries the stage.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Stage == a.Stage {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("an event with stage %q", a.Stage),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that stages appear in the given order.
// Stages don't need to be consecutive; intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Stages) && ev.Stage == a.Stages[next] {
			next++
		}
	}
	if next == len(a.Stages) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("stages in order %v", a.Stages),
		Actual:   fmt.Sprintf("order broken at %q", a.Stages[next]),
		Trace:    trace,
	}
}

func assertEventCount(trace []TraceEvent, a Assertion) error {
	if len(trace) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d events", a.Count),
		Actual:   fmt.Sprintf("%d events", len(trace)),
		Trace:    trace,
	}
}

func assertFinalState(result *Result, a Assertion) error {
	fail := func(field string, want, got any) error {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", field, want),
			Actual:   fmt.Sprintf("%s = %v", field, got),
			Trace:    result.Trace,
		}
	}

	if a.State != "" && string(result.Final.State) != a.State {
		return fail("state", a.State, result.Final.State)
	}
	if a.Score != nil && result.Final.Score != *a.Score {
		return fail("score", *a.Score, result.Final.Score)
	}
	if a.LinesCleared != nil && result.Final.LinesCleared != *a.LinesCleared {
		return fail("lines_cleared", *a.LinesCleared, result.Final.LinesCleared)
	}
	if a.MoveCount != nil && result.Final.MoveCount != *a.MoveCount {
		return fail("move_count", *a.MoveCount, result.Final.MoveCount)
	}
	return nil
}
