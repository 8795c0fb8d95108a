// Package verify checks a session's recorded history for tampering and
// state-machine violations. It recomputes the hash chain from genesis and
// validates every structural invariant the log is supposed to uphold, so a
// defective or bypassed log implementation is caught here.
package verify

import (
	"fmt"

	"github.com/adaptco/tetris/internal/event"
)

// Report is the outcome of verifying one session history.
type Report struct {
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
	EventCount int    `json:"event_count"`
}

func invalid(count int, format string, args ...any) Report {
	return Report{Reason: fmt.Sprintf(format, args...), EventCount: count}
}

// Verify checks an ordered event history. Any violation fails the whole
// report; checks do not continue past the first failure.
//
// An empty history verifies as valid: a session that never started has
// nothing to dispute.
func Verify(events []event.Event) Report {
	count := len(events)
	if count == 0 {
		return Report{Valid: true}
	}

	if events[0].State != event.StateRunning {
		return invalid(count, "first event has state %s, want RUNNING", events[0].State)
	}

	prevHash := ""
	for i, ev := range events {
		seq := int64(i + 1)
		if ev.Seq != seq {
			return invalid(count, "event %d has seq %d, want %d", i, ev.Seq, seq)
		}
		if !ev.State.IsValid() {
			return invalid(count, "event seq %d has unknown state %q", seq, ev.State)
		}
		if i > 0 && events[i-1].State.IsTerminal() {
			return invalid(count, "event seq %d follows terminal state %s", seq, events[i-1].State)
		}

		if ev.PrevHash != prevHash {
			return invalid(count, "event seq %d prev_hash mismatch", seq)
		}
		hash, err := event.ChainHash(prevHash, ev)
		if err != nil {
			return invalid(count, "event seq %d: %v", seq, err)
		}
		if ev.Hash != hash {
			return invalid(count, "event seq %d hash mismatch: chain is broken", seq)
		}
		prevHash = ev.Hash

		if ev.State == event.StateFailed {
			if reason := failureReason(ev.Payload); reason == "" {
				return invalid(count, "FAILED event seq %d carries no reason", seq)
			}
		}
		if ev.State == event.StateFinalized && i != count-1 {
			return invalid(count, "FINALIZED event seq %d is not the last event", seq)
		}
	}

	return Report{Valid: true, EventCount: count}
}

// failureReason extracts the recorded reason from a rejection payload.
// Any other payload kind on a FAILED event yields no reason.
func failureReason(p event.Payload) string {
	switch rp := p.(type) {
	case *event.PolicyRejectPayload:
		return rp.Reason
	case *event.FraudRejectPayload:
		return rp.Reason
	default:
		return ""
	}
}
