// Package policy gates player actions and scoring claims against per-mode
// thresholds. The validator is a pure function over (candidate, snapshot,
// history): it owns no storage and never mutates what it is given, so the
// orchestrator can re-run any decision from the recorded event stream.
package policy

import (
	"fmt"

	"github.com/adaptco/tetris/internal/event"
	"github.com/adaptco/tetris/internal/game"
)

// Penalty points per violation kind. Recorded for audit, never added to score.
const (
	PenaltyMovesPerPiece = 50
	PenaltyRotationLoop  = 20
	PenaltyActionStreak  = 10
	PenaltyBacktrack     = 15
)

// backtrackWindow bounds how far back the adjacent-opposite-pair count looks.
const backtrackWindow = 20

// fraudClearWindow is how many recent nonzero clears feed the volume check.
const fraudClearWindow = 5

// Result is the outcome of a validation check.
//
// Warning is a soft signal: the action is approved but flagged. It never
// terminates the session.
type Result struct {
	Approved      bool
	Reason        string
	PenaltyPoints int
	Warning       string
}

func approve() Result {
	return Result{Approved: true}
}

func reject(penalty int, format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...), PenaltyPoints: penalty}
}

// Snapshot is the minimal session summary derived from history.
type Snapshot struct {
	Score        int
	LinesCleared int
	MoveCount    int
}

// opposites pairs each action with its exact inverse.
var opposites = map[event.Action]event.Action{
	event.ActionMoveLeft:  event.ActionMoveRight,
	event.ActionMoveRight: event.ActionMoveLeft,
	event.ActionRotateCW:  event.ActionRotateCCW,
	event.ActionRotateCCW: event.ActionRotateCW,
}

func isRotation(a event.Action) bool {
	return a == event.ActionRotateCW || a == event.ActionRotateCCW
}

func isHorizontal(a event.Action) bool {
	return a == event.ActionMoveLeft || a == event.ActionMoveRight
}

// Validator applies one mode's thresholds.
type Validator struct {
	cfg Config
}

// New creates a validator for the given mode configuration.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Config returns the thresholds this validator enforces.
func (v *Validator) Config() Config {
	return v.cfg
}

// ValidateMove checks a candidate action against the recorded history.
// Checks run in a fixed order and short-circuit on the first failure.
func (v *Validator) ValidateMove(action event.Action, snap Snapshot, history []event.Event) Result {
	actions := actionTrail(history)

	// 1. Moves on the current piece.
	sinceSpawn := 0
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i] == event.ActionSpawnPiece {
			break
		}
		sinceSpawn++
	}
	if sinceSpawn >= v.cfg.MaxMovesPerPiece {
		return reject(PenaltyMovesPerPiece,
			"too many moves on current piece: %d >= %d", sinceSpawn, v.cfg.MaxMovesPerPiece)
	}

	// 2. Rotation loops.
	if isRotation(action) {
		run := trailingRun(actions, isRotation)
		if run >= v.cfg.MaxConsecutiveRotations {
			return reject(PenaltyRotationLoop,
				"rotation loop: %d consecutive rotations >= %d", run, v.cfg.MaxConsecutiveRotations)
		}
	}

	// 3. Same-action streaks on horizontal moves.
	if isHorizontal(action) {
		run := trailingRun(actions, func(a event.Action) bool { return a == action })
		if run >= v.cfg.MaxSameActionStreak {
			return reject(PenaltyActionStreak,
				"action streak: %d consecutive %s >= %d", run, action, v.cfg.MaxSameActionStreak)
		}
	}

	// 4. Backtracking. Triggers only when the candidate reverses the
	// previous action; the count covers adjacent opposite pairs within
	// the recent window.
	if len(actions) > 0 && opposites[action] == actions[len(actions)-1] {
		if countBacktracks(actions) >= v.cfg.MaxBacktrackMoves {
			return reject(PenaltyBacktrack,
				"backtracking: %s reverses %s", action, actions[len(actions)-1])
		}
	}

	return approve()
}

// ValidateLineClear re-scores a clear claim against the canonical table and
// watches aggregate clear volume. A mismatch is fraud and carries the
// submitted points as revoked; excessive volume only attaches a warning.
func (v *Validator) ValidateLineClear(linesCleared, pointsEarned int, history []event.Event) Result {
	expected := game.ClearPoints(linesCleared)
	if pointsEarned != expected {
		return Result{
			Reason: fmt.Sprintf("line clear score mismatch: claimed %d for %d lines, expected %d",
				pointsEarned, linesCleared, expected),
			PenaltyPoints: pointsEarned,
		}
	}

	recent := recentClearPoints(history)
	if len(recent) >= 3 {
		sum := 0
		for _, p := range recent {
			sum += p
		}
		if sum > v.cfg.BonusFraudThreshold {
			r := approve()
			r.Warning = fmt.Sprintf("suspicious clear volume: %d points in last %d clears exceeds %d",
				sum, len(recent), v.cfg.BonusFraudThreshold)
			return r
		}
	}

	return approve()
}

// actionTrail flattens the event history into its action sequence.
func actionTrail(history []event.Event) []event.Action {
	actions := make([]event.Action, 0, len(history))
	for _, e := range history {
		if e.Payload == nil {
			continue
		}
		actions = append(actions, e.Payload.Action())
	}
	return actions
}

// trailingRun counts how many actions at the tail of the trail satisfy match.
func trailingRun(actions []event.Action, match func(event.Action) bool) int {
	run := 0
	for i := len(actions) - 1; i >= 0; i-- {
		if !match(actions[i]) {
			break
		}
		run++
	}
	return run
}

// countBacktracks counts adjacent opposite-action pairs in the last
// backtrackWindow entries.
func countBacktracks(actions []event.Action) int {
	recent := actions
	if len(recent) > backtrackWindow {
		recent = recent[len(recent)-backtrackWindow:]
	}
	count := 0
	for i := 1; i < len(recent); i++ {
		if opp, ok := opposites[recent[i-1]]; ok && recent[i] == opp {
			count++
		}
	}
	return count
}

// recentClearPoints returns the points of the last fraudClearWindow history
// entries that report a nonzero line clear, oldest first.
func recentClearPoints(history []event.Event) []int {
	var points []int
	for i := len(history) - 1; i >= 0 && len(points) < fraudClearWindow; i-- {
		lp, ok := history[i].Payload.(*event.LockPayload)
		if !ok || lp.LinesCleared == 0 {
			continue
		}
		points = append(points, lp.PointsEarned)
	}
	// Restore chronological order.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}
