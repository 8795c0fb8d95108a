package session

import (
	"errors"
	"fmt"

	"github.com/adaptco/tetris/internal/event"
	"github.com/adaptco/tetris/internal/game"
)

// ErrDivergence is returned when replaying a history produces a state that
// contradicts what the events recorded: the log was altered, or the engine
// rules changed since the session was recorded.
var ErrDivergence = errors.New("session: replay diverged from recorded history")

// Rebuilt is the result of replaying a recorded session history.
type Rebuilt struct {
	Mode  string
	State game.State
	Tag   event.StateTag
}

// Rebuild reconstructs a session purely from its recorded events.
//
// Piece choices come from the recorded spawn payloads, so no randomness is
// re-rolled: the replay feeds them back through a fixed source and
// cross-checks every transition against the recorded payload.
func Rebuild(history []event.Event) (Rebuilt, error) {
	if len(history) == 0 {
		return Rebuilt{}, fmt.Errorf("session: cannot rebuild from empty history")
	}

	var pieces []game.Piece
	for _, ev := range history {
		if sp, ok := ev.Payload.(*event.SpawnPayload); ok {
			p := game.Piece(sp.Piece)
			if !p.IsValid() {
				return Rebuilt{}, fmt.Errorf("session: recorded spawn has unknown piece %q", sp.Piece)
			}
			pieces = append(pieces, p)
		}
	}

	engine := game.New(game.WithPieceSource(game.NewFixedSource(pieces...)))
	state := engine.NewState()
	tag := event.StateRunning
	mode := ""

	for _, ev := range history {
		switch p := ev.Payload.(type) {
		case *event.SpawnPayload:
			if ev.Stage == event.StageGameStart {
				mode = p.Mode
			}
			var tr game.Transition
			state, tr = engine.Spawn(state)
			spawned := tr.Payload.(*event.SpawnPayload)
			if spawned.Piece != p.Piece || spawned.Position != p.Position || spawned.GameOver != p.GameOver {
				return Rebuilt{}, fmt.Errorf("%w: spawn seq %d", ErrDivergence, ev.Seq)
			}

		case *event.MovePayload:
			var tr game.Transition
			state, tr = engine.Move(state, p.Act)
			moved, ok := tr.Payload.(*event.MovePayload)
			if !ok || moved.To != p.To || moved.MoveNumber != p.MoveNumber {
				return Rebuilt{}, fmt.Errorf("%w: %s seq %d", ErrDivergence, p.Act, ev.Seq)
			}

		case *event.RotatePayload:
			var tr game.Transition
			state, tr = engine.Rotate(state, p.Act == event.ActionRotateCW)
			rotated, ok := tr.Payload.(*event.RotatePayload)
			if !ok || rotated.ToRotation != p.ToRotation {
				return Rebuilt{}, fmt.Errorf("%w: %s seq %d", ErrDivergence, p.Act, ev.Seq)
			}

		case *event.LockPayload:
			// A recorded lock is a down move that collided.
			var tr game.Transition
			state, tr = engine.Move(state, event.ActionMoveDown)
			if !tr.Locked || tr.Lock == nil ||
				tr.Lock.LinesCleared != p.LinesCleared ||
				tr.Lock.TotalScore != p.TotalScore {
				return Rebuilt{}, fmt.Errorf("%w: lock seq %d", ErrDivergence, ev.Seq)
			}

		case *event.HardDropPayload:
			var tr game.Transition
			state, tr = engine.HardDrop(state)
			dropped, ok := tr.Payload.(*event.HardDropPayload)
			if !ok || dropped.To != p.To || dropped.DropDistance != p.DropDistance {
				return Rebuilt{}, fmt.Errorf("%w: hard drop seq %d", ErrDivergence, ev.Seq)
			}

		case *event.PolicyRejectPayload, *event.FraudRejectPayload:
			// Rejections never changed the game state.
			tag = event.StateFailed

		case *event.FinalizePayload:
			if p.FinalScore != state.Score || p.LinesCleared != state.LinesCleared {
				return Rebuilt{}, fmt.Errorf("%w: finalize seq %d records score %d, replay has %d",
					ErrDivergence, ev.Seq, p.FinalScore, state.Score)
			}
			tag = event.StateFinalized

		default:
			return Rebuilt{}, fmt.Errorf("session: unsupported payload at seq %d", ev.Seq)
		}
	}

	return Rebuilt{Mode: mode, State: state, Tag: tag}, nil
}
