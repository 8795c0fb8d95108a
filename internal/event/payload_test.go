package event

import (
	"strings"
	"testing"
)

func TestMarshalPayload_RoundTripByStage(t *testing.T) {
	cases := []struct {
		name    string
		stage   Stage
		payload Payload
	}{
		{
			name:  "spawn with mode",
			stage: StageGameStart,
			payload: &SpawnPayload{
				Act:      ActionSpawnPiece,
				Piece:    "T",
				Position: Coord{0, 3},
				Mode:     "arcade",
			},
		},
		{
			name:  "move",
			stage: StageGameAction,
			payload: &MovePayload{
				Act:        ActionMoveLeft,
				From:       Coord{0, 3},
				To:         Coord{0, 2},
				MoveNumber: 1,
			},
		},
		{
			name:  "rotate",
			stage: StageGameAction,
			payload: &RotatePayload{
				Act:          ActionRotateCCW,
				FromRotation: 0,
				ToRotation:   3,
				MoveNumber:   2,
			},
		},
		{
			name:  "lock with clears",
			stage: StageGameAction,
			payload: &LockPayload{
				Act:          ActionPieceLock,
				Piece:        "I",
				Position:     Coord{18, 0},
				LinesCleared: 2,
				ClearedRows:  []int{18, 19},
				PointsEarned: 300,
				TotalScore:   500,
			},
		},
		{
			name:  "hard drop",
			stage: StageGameAction,
			payload: &HardDropPayload{
				Act:          ActionHardDrop,
				From:         Coord{0, 3},
				To:           Coord{17, 3},
				DropDistance: 17,
				BonusPoints:  34,
			},
		},
		{
			name:  "policy reject",
			stage: StagePolicyViolation,
			payload: &PolicyRejectPayload{
				Act:           ActionMoveLeft,
				Reason:        "action spam: MOVE_LEFT repeated 3 times",
				PenaltyPoints: 10,
			},
		},
		{
			name:  "fraud reject",
			stage: StageFraudDetected,
			payload: &FraudRejectPayload{
				Act:           ActionFraud,
				Reason:        "invalid scoring",
				RevokedPoints: 750,
			},
		},
		{
			name:  "finalize",
			stage: StageGameOver,
			payload: &FinalizePayload{
				Act:          ActionFinalize,
				FinalScore:   1200,
				LinesCleared: 7,
				MoveCount:    94,
				SealedAt:     "2026-02-15T00:00:00Z",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := MarshalPayload(tc.payload)
			if err != nil {
				t.Fatalf("MarshalPayload() failed: %v", err)
			}

			got, err := UnmarshalPayload(tc.stage, data)
			if err != nil {
				t.Fatalf("UnmarshalPayload() failed: %v", err)
			}

			if got.Action() != tc.payload.Action() {
				t.Errorf("Action() = %q, want %q", got.Action(), tc.payload.Action())
			}

			// Re-marshal must be stable
			again, err := MarshalPayload(got)
			if err != nil {
				t.Fatalf("re-marshal failed: %v", err)
			}
			if string(again) != string(data) {
				t.Errorf("round trip changed payload:\n  first:  %s\n  second: %s", data, again)
			}
		})
	}
}

func TestUnmarshalPayload_UnknownStage(t *testing.T) {
	_, err := UnmarshalPayload(Stage("bogus"), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestUnmarshalPayload_UnknownGameAction(t *testing.T) {
	_, err := UnmarshalPayload(StageGameAction, []byte(`{"action":"TELEPORT"}`))
	if err == nil {
		t.Fatal("expected error for unknown game_action action")
	}
	if !strings.Contains(err.Error(), "TELEPORT") {
		t.Errorf("error should name the unknown action, got: %v", err)
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range PlayerActions {
		got, ok := ParseAction(string(a))
		if !ok || got != a {
			t.Errorf("ParseAction(%q) = (%q, %v), want (%q, true)", a, got, ok, a)
		}
	}

	// Spawn is system-issued, never player-submittable
	if _, ok := ParseAction(string(ActionSpawnPiece)); ok {
		t.Error("ParseAction(SPAWN_PIECE) should be rejected")
	}
	if _, ok := ParseAction("JUMP"); ok {
		t.Error("ParseAction(JUMP) should be rejected")
	}
}

func TestStateTag_Terminal(t *testing.T) {
	if StateRunning.IsTerminal() {
		t.Error("RUNNING should not be terminal")
	}
	if !StateFailed.IsTerminal() || !StateFinalized.IsTerminal() {
		t.Error("FAILED and FINALIZED should be terminal")
	}
}
