package policy

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed modes.cue
var modesCUE []byte

// Config holds the five per-mode thresholds the validator enforces.
// The json tags double as the CUE field names.
type Config struct {
	MaxMovesPerPiece        int `json:"max_moves_per_piece"`
	MaxConsecutiveRotations int `json:"max_consecutive_rotations"`
	MaxSameActionStreak     int `json:"max_same_action_streak"`
	MaxBacktrackMoves       int `json:"max_backtrack_moves"`
	BonusFraudThreshold     int `json:"bonus_fraud_threshold"`
}

// DefaultMode is used when a caller starts a session without naming a mode.
const DefaultMode = "casual"

// Modes returns the built-in mode presets, validated against the embedded
// CUE schema.
func Modes() (map[string]Config, error) {
	return decodeModes(modesCUE, "embedded modes")
}

// LoadModes reads mode definitions from a CUE file on disk, unified with
// the embedded schema so external files face the same constraints as the
// presets. Modes in the file override presets of the same name.
func LoadModes(path string) (map[string]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading modes file: %w", err)
	}
	merged := append(append([]byte{}, modesCUE...), '\n')
	merged = append(merged, data...)
	return decodeModes(merged, path)
}

func decodeModes(src []byte, origin string) (map[string]Config, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", origin, err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating %s: %w", origin, err)
	}

	modesVal := value.LookupPath(cue.ParsePath("mode"))
	if !modesVal.Exists() {
		return nil, fmt.Errorf("%s: no mode definitions found", origin)
	}

	iter, err := modesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating modes in %s: %w", origin, err)
	}

	modes := make(map[string]Config)
	for iter.Next() {
		var cfg Config
		if err := iter.Value().Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decoding mode %q: %w", iter.Label(), err)
		}
		modes[iter.Label()] = cfg
	}
	return modes, nil
}

// ModeNames returns the available mode names in sorted order.
func ModeNames(modes map[string]Config) []string {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
