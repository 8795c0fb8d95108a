package game

import "github.com/adaptco/tetris/internal/event"

// Board dimension and spawn defaults, matching the standard well.
const (
	DefaultRows = 20
	DefaultCols = 10

	spawnRow = 0
	spawnCol = 3
)

// State is the complete session game state.
//
// It is never stored in events; it is derived by applying transitions and can
// be reconstructed from the event stream alone (see session.Rebuild).
//
// Invariants: board dimensions never change after creation; a cell holds at
// most one piece tag (empty Piece means vacant).
type State struct {
	Board        [][]Piece
	Piece        Piece // empty when no piece is active
	Pos          event.Coord
	Rotation     int // 0–3
	Score        int
	LinesCleared int
	MoveCount    int
	GameOver     bool
}

// NewState creates an empty board with no active piece.
func NewState(rows, cols int) State {
	board := make([][]Piece, rows)
	for r := range board {
		board[r] = make([]Piece, cols)
	}
	return State{
		Board: board,
		Pos:   event.Coord{spawnRow, spawnCol},
	}
}

// cloneBoard returns a deep copy of the board.
// Transitions that merge a piece must not mutate the previous state's board.
func cloneBoard(board [][]Piece) [][]Piece {
	out := make([][]Piece, len(board))
	for r, row := range board {
		out[r] = make([]Piece, len(row))
		copy(out[r], row)
	}
	return out
}

// CellCount returns the number of occupied board cells.
func (s State) CellCount() int {
	n := 0
	for _, row := range s.Board {
		for _, c := range row {
			if c != "" {
				n++
			}
		}
	}
	return n
}
