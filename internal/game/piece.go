package game

import (
	"math/rand"
	"sync"
)

// Piece identifies one of the seven tetromino shapes.
type Piece string

const (
	PieceI Piece = "I"
	PieceO Piece = "O"
	PieceT Piece = "T"
	PieceS Piece = "S"
	PieceZ Piece = "Z"
	PieceJ Piece = "J"
	PieceL Piece = "L"
)

// Pieces lists every tetromino in a fixed order.
// The order matters for uniform selection and for tests.
var Pieces = []Piece{PieceI, PieceO, PieceT, PieceS, PieceZ, PieceJ, PieceL}

// Offset is a (row, col) block offset relative to the piece position.
type Offset struct {
	Row, Col int
}

// shapes holds the rotation-0 block offsets for each piece.
var shapes = map[Piece][]Offset{
	PieceI: {{0, 0}, {0, 1}, {0, 2}, {0, 3}},
	PieceO: {{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	PieceT: {{0, 1}, {1, 0}, {1, 1}, {1, 2}},
	PieceS: {{0, 1}, {0, 2}, {1, 0}, {1, 1}},
	PieceZ: {{0, 0}, {0, 1}, {1, 1}, {1, 2}},
	PieceJ: {{0, 0}, {1, 0}, {1, 1}, {1, 2}},
	PieceL: {{0, 2}, {1, 0}, {1, 1}, {1, 2}},
}

// IsValid reports whether p names a known tetromino.
func (p Piece) IsValid() bool {
	_, ok := shapes[p]
	return ok
}

// Blocks returns the occupied offsets for the piece at the given rotation.
// Each quarter turn maps (dr, dc) → (dc, −dr); no wall-kick adjustment exists.
func (p Piece) Blocks(rotation int) []Offset {
	base := shapes[p]
	blocks := make([]Offset, len(base))
	copy(blocks, base)

	turns := ((rotation % 4) + 4) % 4
	for i := 0; i < turns; i++ {
		for j, b := range blocks {
			blocks[j] = Offset{Row: b.Col, Col: -b.Row}
		}
	}
	return blocks
}

// PieceSource selects the piece for each spawn.
// Implemented by RandomSource (production) and FixedSource (tests, replay).
type PieceSource interface {
	Next() Piece
}

// RandomSource selects pieces uniformly at random.
//
// Thread-safety: RandomSource is stateless and safe for concurrent use
// (math/rand's global generator is goroutine-safe).
type RandomSource struct{}

// Next returns a uniformly random piece.
func (RandomSource) Next() Piece {
	return Pieces[rand.Intn(len(Pieces))]
}

// FixedSource returns a predetermined piece sequence.
//
// This enables deterministic test execution and replay from recorded spawn
// events: the same sequence with the same actions produces an identical
// session.
//
// Thread-safety: FixedSource is safe for concurrent use via internal mutex.
type FixedSource struct {
	mu     sync.Mutex
	pieces []Piece
	idx    int
}

// NewFixedSource creates a source that returns pieces in order.
//
// Panics when the sequence is exhausted. This is a fail-fast approach to
// catch misconfigured tests and truncated replay histories.
func NewFixedSource(pieces ...Piece) *FixedSource {
	return &FixedSource{pieces: pieces}
}

// Next returns the next predetermined piece.
func (s *FixedSource) Next() Piece {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.pieces) {
		panic("FixedSource: piece sequence exhausted")
	}
	p := s.pieces[s.idx]
	s.idx++
	return p
}

// Remaining returns the number of pieces not yet consumed.
func (s *FixedSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pieces) - s.idx
}
