package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptco/tetris/internal/event"
)

type entry struct {
	state   event.StateTag
	stage   event.Stage
	payload event.Payload
}

// chain builds a correctly hashed history from entries.
func chain(t *testing.T, entries ...entry) []event.Event {
	t.Helper()
	events := make([]event.Event, 0, len(entries))
	prevHash := ""
	for i, e := range entries {
		ev := event.Event{
			Tenant:   "p1",
			Session:  "s1",
			Seq:      int64(i + 1),
			State:    e.state,
			Stage:    e.stage,
			Payload:  e.payload,
			PrevHash: prevHash,
		}
		hash, err := event.ChainHash(prevHash, ev)
		require.NoError(t, err)
		ev.Hash = hash
		events = append(events, ev)
		prevHash = hash
	}
	return events
}

func spawn() entry {
	return entry{event.StateRunning, event.StageGameStart, &event.SpawnPayload{
		Act: event.ActionSpawnPiece, Piece: "T", Position: event.Coord{0, 3},
	}}
}

func move(n int) entry {
	return entry{event.StateRunning, event.StageGameAction, &event.MovePayload{
		Act: event.ActionMoveLeft, From: event.Coord{0, 3}, To: event.Coord{0, 2}, MoveNumber: n,
	}}
}

func failed(reason string) entry {
	return entry{event.StateFailed, event.StagePolicyViolation, &event.PolicyRejectPayload{
		Act: event.ActionMoveLeft, Reason: reason, PenaltyPoints: 10,
	}}
}

func finalized() entry {
	return entry{event.StateFinalized, event.StageGameOver, &event.FinalizePayload{
		Act: event.ActionFinalize, FinalScore: 100, SealedAt: "2026-08-29T00:00:00Z",
	}}
}

func TestVerify_ValidHistory(t *testing.T) {
	report := Verify(chain(t, spawn(), move(1), move(2), finalized()))
	assert.True(t, report.Valid)
	assert.Empty(t, report.Reason)
	assert.Equal(t, 4, report.EventCount)
}

func TestVerify_EmptyHistoryIsValid(t *testing.T) {
	report := Verify(nil)
	assert.True(t, report.Valid)
	assert.Equal(t, 0, report.EventCount)
}

func TestVerify_TamperedPayloadBreaksChain(t *testing.T) {
	events := chain(t, spawn(), move(1))
	events[1].Payload.(*event.MovePayload).To = event.Coord{5, 5}

	report := Verify(events)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Reason, "hash mismatch")
}

func TestVerify_PrevHashMismatch(t *testing.T) {
	events := chain(t, spawn(), move(1))
	events[1].PrevHash = "forged"

	report := Verify(events)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Reason, "prev_hash")
}

func TestVerify_SequenceGap(t *testing.T) {
	events := chain(t, spawn(), move(1))
	events[1].Seq = 3

	report := Verify(events)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Reason, "seq")
}

func TestVerify_FirstEventMustBeRunning(t *testing.T) {
	events := chain(t, failed("bad start"))

	report := Verify(events)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Reason, "want RUNNING")
}

func TestVerify_NothingFollowsTerminal(t *testing.T) {
	for _, terminal := range []entry{failed("streak"), finalized()} {
		events := chain(t, spawn(), terminal, move(1))
		report := Verify(events)
		assert.False(t, report.Valid, "state %s must seal the history", terminal.state)
		assert.Contains(t, report.Reason, "follows terminal")
	}
}

func TestVerify_FailedNeedsReason(t *testing.T) {
	events := chain(t, spawn(), failed(""))

	report := Verify(events)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Reason, "no reason")
}

func TestVerify_UnknownStateTag(t *testing.T) {
	events := chain(t, spawn())
	events[0].State = "CORRUPT"

	report := Verify(events)
	assert.False(t, report.Valid)
}
