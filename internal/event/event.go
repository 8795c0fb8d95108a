package event

import "time"

// StateTag identifies the session state recorded on an event.
//
// Tags only move along RUNNING→RUNNING, RUNNING→FAILED, RUNNING→FINALIZED.
// FAILED and FINALIZED are terminal: no event may follow them.
type StateTag string

const (
	// StateRunning marks an event appended while the session is live.
	StateRunning StateTag = "RUNNING"
	// StateFailed marks a policy or fraud rejection that ends the session.
	StateFailed StateTag = "FAILED"
	// StateFinalized marks the natural end of a session (board full).
	// At most one FINALIZED event may exist per session, and only as the last event.
	StateFinalized StateTag = "FINALIZED"
)

// IsTerminal reports whether the tag ends the session.
func (t StateTag) IsTerminal() bool {
	return t == StateFailed || t == StateFinalized
}

// IsValid reports whether the tag is one of the three known values.
func (t StateTag) IsValid() bool {
	return t == StateRunning || t == StateFailed || t == StateFinalized
}

// Stage labels the orchestration step that produced an event.
// The payload sum type dispatches on the stage (see UnmarshalPayload).
type Stage string

const (
	// StageGameStart records the initial spawn when a session starts.
	StageGameStart Stage = "game_start"
	// StageGameAction records an accepted player action.
	StageGameAction Stage = "game_action"
	// StageSpawnPiece records a system-issued spawn after a lock.
	StageSpawnPiece Stage = "spawn_piece"
	// StagePolicyViolation records a move rejected by the policy validator.
	StagePolicyViolation Stage = "policy_violation"
	// StageFraudDetected records a fraudulent line-clear claim.
	StageFraudDetected Stage = "fraud_detected"
	// StageGameOver records the terminal summary of a finished session.
	StageGameOver Stage = "game_over"
)

// Action identifies the kind of gameplay action an event records.
// Values use the original wire spelling shared with the policy validator.
type Action string

const (
	ActionSpawnPiece Action = "SPAWN_PIECE"
	ActionMoveLeft   Action = "MOVE_LEFT"
	ActionMoveRight  Action = "MOVE_RIGHT"
	ActionMoveDown   Action = "MOVE_DOWN"
	ActionRotateCW   Action = "ROTATE_CW"
	ActionRotateCCW  Action = "ROTATE_CCW"
	ActionHardDrop   Action = "HARD_DROP"
	ActionPieceLock  Action = "PIECE_LOCKED"
	ActionFraud      Action = "LINE_CLEAR_FRAUD"
	ActionFinalize   Action = "GAME_FINALIZED"
)

// PlayerActions lists the actions a caller may submit.
// Spawn is system-issued and is deliberately absent.
var PlayerActions = []Action{
	ActionMoveLeft,
	ActionMoveRight,
	ActionMoveDown,
	ActionRotateCW,
	ActionRotateCCW,
	ActionHardDrop,
}

// ParseAction maps a wire string to a player-submittable action.
// Returns false for unknown names and for system-issued actions.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	for _, p := range PlayerActions {
		if a == p {
			return a, true
		}
	}
	return "", false
}

// Coord is a (row, col) board coordinate, serialized as a two-element array.
type Coord [2]int

// Row returns the row component.
func (c Coord) Row() int { return c[0] }

// Col returns the column component.
func (c Coord) Col() int { return c[1] }

// Event is one immutable record in a session's append-only history.
//
// Seq starts at 1 and is assigned by the log on append. Hash chains each
// event to its predecessor: Hash = H(PrevHash, canonical body), with the
// first event chained to the empty string. RecordedAt is excluded from the
// hash so verification does not depend on wall time.
type Event struct {
	Tenant     string
	Session    string
	Seq        int64
	State      StateTag
	Stage      Stage
	Payload    Payload
	PrevHash   string
	Hash       string
	RecordedAt time.Time
}
