package event

import (
	"encoding/json"
	"fmt"
)

// Payload is the closed sum of per-action event payloads.
//
// Each variant has a fixed field set. The "action" field is the wire
// discriminator within a stage; rejection stages carry the attempted action
// there instead, so UnmarshalPayload dispatches on the stage first.
type Payload interface {
	// Action returns the action this payload records. For rejections it is
	// the attempted (PolicyReject) or synthetic fraud (FraudReject) action.
	Action() Action

	// canonical returns the payload fields for hashing. Values are limited
	// to strings, ints, bools, and nested slices/maps thereof.
	canonical() map[string]any

	isPayload()
}

// SpawnPayload records a system-issued piece spawn.
// Mode is set only on the game_start event.
type SpawnPayload struct {
	Act      Action `json:"action"`
	Piece    string `json:"piece"`
	Position Coord  `json:"position"`
	GameOver bool   `json:"game_over"`
	Mode     string `json:"mode,omitempty"`
}

// MovePayload records an accepted horizontal or downward move.
type MovePayload struct {
	Act        Action `json:"action"`
	From       Coord  `json:"from"`
	To         Coord  `json:"to"`
	MoveNumber int    `json:"move_number"`
}

// RotatePayload records an accepted rotation.
type RotatePayload struct {
	Act          Action `json:"action"`
	FromRotation int    `json:"from_rotation"`
	ToRotation   int    `json:"to_rotation"`
	MoveNumber   int    `json:"move_number"`
}

// LockPayload records a piece merging into the board, with any line clears.
type LockPayload struct {
	Act          Action `json:"action"`
	Piece        string `json:"piece"`
	Position     Coord  `json:"position"`
	LinesCleared int    `json:"lines_cleared"`
	ClearedRows  []int  `json:"cleared_rows"`
	PointsEarned int    `json:"points_earned"`
	TotalScore   int    `json:"total_score"`
}

// HardDropPayload records a hard drop. The lock it triggers is folded into
// the same transition; only the drop itself is surfaced to the log.
type HardDropPayload struct {
	Act          Action `json:"action"`
	From         Coord  `json:"from"`
	To           Coord  `json:"to"`
	DropDistance int    `json:"drop_distance"`
	BonusPoints  int    `json:"bonus_points"`
}

// PolicyRejectPayload records a move rejected by the policy validator.
type PolicyRejectPayload struct {
	Act           Action `json:"action"`
	Reason        string `json:"reason"`
	PenaltyPoints int    `json:"penalty_points"`
}

// FraudRejectPayload records a fraudulent line-clear claim.
// RevokedPoints equals the points the claim submitted.
type FraudRejectPayload struct {
	Act           Action `json:"action"`
	Reason        string `json:"reason"`
	RevokedPoints int    `json:"revoked_points"`
}

// FinalizePayload is the terminal summary appended with the FINALIZED tag.
type FinalizePayload struct {
	Act          Action `json:"action"`
	FinalScore   int    `json:"final_score"`
	LinesCleared int    `json:"lines_cleared"`
	MoveCount    int    `json:"move_count"`
	SealedAt     string `json:"sealed_at"`
}

func (p *SpawnPayload) Action() Action        { return ActionSpawnPiece }
func (p *MovePayload) Action() Action         { return p.Act }
func (p *RotatePayload) Action() Action       { return p.Act }
func (p *LockPayload) Action() Action         { return ActionPieceLock }
func (p *HardDropPayload) Action() Action     { return ActionHardDrop }
func (p *PolicyRejectPayload) Action() Action { return p.Act }
func (p *FraudRejectPayload) Action() Action  { return ActionFraud }
func (p *FinalizePayload) Action() Action     { return ActionFinalize }

func (*SpawnPayload) isPayload()        {}
func (*MovePayload) isPayload()         {}
func (*RotatePayload) isPayload()       {}
func (*LockPayload) isPayload()         {}
func (*HardDropPayload) isPayload()     {}
func (*PolicyRejectPayload) isPayload() {}
func (*FraudRejectPayload) isPayload()  {}
func (*FinalizePayload) isPayload()     {}

func (p *SpawnPayload) canonical() map[string]any {
	m := map[string]any{
		"action":    string(ActionSpawnPiece),
		"piece":     p.Piece,
		"position":  coordSlice(p.Position),
		"game_over": p.GameOver,
	}
	if p.Mode != "" {
		m["mode"] = p.Mode
	}
	return m
}

func (p *MovePayload) canonical() map[string]any {
	return map[string]any{
		"action":      string(p.Act),
		"from":        coordSlice(p.From),
		"to":          coordSlice(p.To),
		"move_number": p.MoveNumber,
	}
}

func (p *RotatePayload) canonical() map[string]any {
	return map[string]any{
		"action":        string(p.Act),
		"from_rotation": p.FromRotation,
		"to_rotation":   p.ToRotation,
		"move_number":   p.MoveNumber,
	}
}

func (p *LockPayload) canonical() map[string]any {
	rows := make([]any, len(p.ClearedRows))
	for i, r := range p.ClearedRows {
		rows[i] = r
	}
	return map[string]any{
		"action":        string(ActionPieceLock),
		"piece":         p.Piece,
		"position":      coordSlice(p.Position),
		"lines_cleared": p.LinesCleared,
		"cleared_rows":  rows,
		"points_earned": p.PointsEarned,
		"total_score":   p.TotalScore,
	}
}

func (p *HardDropPayload) canonical() map[string]any {
	return map[string]any{
		"action":        string(ActionHardDrop),
		"from":          coordSlice(p.From),
		"to":            coordSlice(p.To),
		"drop_distance": p.DropDistance,
		"bonus_points":  p.BonusPoints,
	}
}

func (p *PolicyRejectPayload) canonical() map[string]any {
	return map[string]any{
		"action":         string(p.Act),
		"reason":         p.Reason,
		"penalty_points": p.PenaltyPoints,
	}
}

func (p *FraudRejectPayload) canonical() map[string]any {
	return map[string]any{
		"action":         string(ActionFraud),
		"reason":         p.Reason,
		"revoked_points": p.RevokedPoints,
	}
}

func (p *FinalizePayload) canonical() map[string]any {
	return map[string]any{
		"action":        string(ActionFinalize),
		"final_score":   p.FinalScore,
		"lines_cleared": p.LinesCleared,
		"move_count":    p.MoveCount,
		"sealed_at":     p.SealedAt,
	}
}

func coordSlice(c Coord) []any {
	return []any{c[0], c[1]}
}

// MarshalPayload serializes a payload to its stored JSON form.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal payload: nil payload")
	}
	return json.Marshal(p)
}

// UnmarshalPayload decodes a stored payload by stage. Rejection and terminal
// stages map directly to their variant; game_action events dispatch on the
// embedded action discriminator. Unknown stages and actions are errors.
func UnmarshalPayload(stage Stage, data []byte) (Payload, error) {
	decode := func(p Payload) (Payload, error) {
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", stage, err)
		}
		return p, nil
	}

	switch stage {
	case StageGameStart, StageSpawnPiece:
		return decode(&SpawnPayload{})
	case StagePolicyViolation:
		return decode(&PolicyRejectPayload{})
	case StageFraudDetected:
		return decode(&FraudRejectPayload{})
	case StageGameOver:
		return decode(&FinalizePayload{})
	case StageGameAction:
		var disc struct {
			Action Action `json:"action"`
		}
		if err := json.Unmarshal(data, &disc); err != nil {
			return nil, fmt.Errorf("unmarshal game_action discriminator: %w", err)
		}
		switch disc.Action {
		case ActionMoveLeft, ActionMoveRight, ActionMoveDown:
			return decode(&MovePayload{})
		case ActionRotateCW, ActionRotateCCW:
			return decode(&RotatePayload{})
		case ActionPieceLock:
			return decode(&LockPayload{})
		case ActionHardDrop:
			return decode(&HardDropPayload{})
		default:
			return nil, fmt.Errorf("unmarshal game_action payload: unknown action %q", disc.Action)
		}
	default:
		return nil, fmt.Errorf("unmarshal payload: unknown stage %q", stage)
	}
}
