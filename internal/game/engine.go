package game

import "github.com/adaptco/tetris/internal/event"

// clearPoints is the scoring table keyed on rows cleared by a single lock.
// Counts outside the table score 0; more than 4 is unreachable with
// four-cell pieces but maps to the default rather than an error.
var clearPoints = map[int]int{
	1: 100,
	2: 300,
	3: 500,
	4: 800,
}

// ClearPoints returns the canonical score bonus for clearing k rows at once.
func ClearPoints(k int) int {
	return clearPoints[k]
}

// Transition is the outcome of an engine operation.
//
// A zero Transition (Applied() == false) is the no-op: unchanged state, no
// event. No-op is not an error — it signals "illegal, ignore" for blocked
// moves, missing pieces, and terminal states.
type Transition struct {
	// Payload is the event payload to record, nil for a no-op.
	Payload event.Payload

	// Locked reports whether this transition merged the active piece into
	// the board (direct lock or via hard drop).
	Locked bool

	// Lock carries the lock details when Locked is true. For a move-down
	// lock it is the Payload itself; for a hard drop the surfaced payload
	// is the drop and Lock feeds the line-clear validation.
	Lock *event.LockPayload
}

// Applied reports whether the operation changed the state.
func (t Transition) Applied() bool {
	return t.Payload != nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithBoardSize overrides the default 20×10 board.
func WithBoardSize(rows, cols int) Option {
	return func(e *Engine) {
		e.rows = rows
		e.cols = cols
	}
}

// WithPieceSource overrides the default random piece selection.
// Use a FixedSource for deterministic tests and replay.
func WithPieceSource(src PieceSource) Option {
	return func(e *Engine) {
		e.pieces = src
	}
}

// Engine applies the deterministic transition rules.
//
// Engine is a pure function over (state, action): it performs no I/O and
// holds no session state. The only nondeterminism is piece selection at
// spawn, which is isolated behind PieceSource.
type Engine struct {
	rows, cols int
	pieces     PieceSource
}

// New creates an engine with a 20×10 board and random piece selection.
func New(opts ...Option) *Engine {
	e := &Engine{
		rows:   DefaultRows,
		cols:   DefaultCols,
		pieces: RandomSource{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rows returns the board row count.
func (e *Engine) Rows() int { return e.rows }

// Cols returns the board column count.
func (e *Engine) Cols() int { return e.cols }

// NewState creates an empty state sized for this engine's board.
func (e *Engine) NewState() State {
	return NewState(e.rows, e.cols)
}

// Spawn places the next piece at the spawn position. If the spawn position
// already collides the board is full and the state becomes terminal — the
// sole trigger for a natural finalize.
//
// Spawn is system-issued: the orchestrator calls it, players never do.
func (e *Engine) Spawn(s State) (State, Transition) {
	ns := s
	ns.Piece = e.pieces.Next()
	ns.Pos = event.Coord{spawnRow, spawnCol}
	ns.Rotation = 0

	if e.collides(ns) {
		ns.GameOver = true
	}

	return ns, Transition{Payload: &event.SpawnPayload{
		Act:      event.ActionSpawnPiece,
		Piece:    string(ns.Piece),
		Position: ns.Pos,
		GameOver: ns.GameOver,
	}}
}

// Move shifts the active piece one cell left, right, or down.
//
// A colliding left/right move is a no-op. A colliding down move locks the
// piece instead. Actions other than the three moves are no-ops.
func (e *Engine) Move(s State, action event.Action) (State, Transition) {
	if s.Piece == "" || s.GameOver {
		return s, Transition{}
	}

	row, col := s.Pos.Row(), s.Pos.Col()
	var to event.Coord
	switch action {
	case event.ActionMoveLeft:
		to = event.Coord{row, col - 1}
	case event.ActionMoveRight:
		to = event.Coord{row, col + 1}
	case event.ActionMoveDown:
		to = event.Coord{row + 1, col}
	default:
		return s, Transition{}
	}

	ns := s
	ns.Pos = to
	ns.MoveCount = s.MoveCount + 1

	if e.collides(ns) {
		if action == event.ActionMoveDown {
			return e.lock(s)
		}
		return s, Transition{}
	}

	return ns, Transition{Payload: &event.MovePayload{
		Act:        action,
		From:       s.Pos,
		To:         to,
		MoveNumber: ns.MoveCount,
	}}
}

// Rotate turns the active piece one quarter turn. A colliding rotation is a
// no-op; no wall-kick adjustment is attempted.
func (e *Engine) Rotate(s State, clockwise bool) (State, Transition) {
	if s.Piece == "" || s.GameOver {
		return s, Transition{}
	}

	var to int
	if clockwise {
		to = (s.Rotation + 1) % 4
	} else {
		to = (s.Rotation + 3) % 4
	}

	ns := s
	ns.Rotation = to
	ns.MoveCount = s.MoveCount + 1

	if e.collides(ns) {
		return s, Transition{}
	}

	action := event.ActionRotateCW
	if !clockwise {
		action = event.ActionRotateCCW
	}
	return ns, Transition{Payload: &event.RotatePayload{
		Act:          action,
		FromRotation: s.Rotation,
		ToRotation:   to,
		MoveNumber:   ns.MoveCount,
	}}
}

// HardDrop advances the piece downward until the next step would collide,
// locks it there, and awards drop_distance × 2 bonus points on top of any
// line-clear score. The surfaced payload is the drop; the lock details ride
// on Transition.Lock.
func (e *Engine) HardDrop(s State) (State, Transition) {
	if s.Piece == "" || s.GameOver {
		return s, Transition{}
	}

	cur := s
	distance := 0
	for {
		probe := cur
		probe.Pos = event.Coord{cur.Pos.Row() + 1, cur.Pos.Col()}
		if e.collides(probe) {
			break
		}
		cur = probe
		distance++
	}

	locked, lockTr := e.lock(cur)
	locked.Score += distance * 2

	return locked, Transition{
		Payload: &event.HardDropPayload{
			Act:          event.ActionHardDrop,
			From:         s.Pos,
			To:           cur.Pos,
			DropDistance: distance,
			BonusPoints:  distance * 2,
		},
		Locked: true,
		Lock:   lockTr.Lock,
	}
}

// lock merges the active piece into the board, clears any full rows, and
// applies the scoring table. Cells falling outside the board are silently
// discarded (known edge case, preserved as-is). Cleared rows are removed and
// the same number of empty rows is inserted at the top, keeping the relative
// order of the remaining rows.
func (e *Engine) lock(s State) (State, Transition) {
	board := cloneBoard(s.Board)

	for _, b := range s.Piece.Blocks(s.Rotation) {
		row := s.Pos.Row() + b.Row
		col := s.Pos.Col() + b.Col
		if row >= 0 && row < e.rows && col >= 0 && col < e.cols {
			board[row][col] = s.Piece
		}
	}

	cleared := []int{}
	for r := 0; r < e.rows; r++ {
		full := true
		for _, c := range board[r] {
			if c == "" {
				full = false
				break
			}
		}
		if full {
			cleared = append(cleared, r)
		}
	}

	// Remove bottom-up so earlier indices stay valid, then refill on top.
	for i := len(cleared) - 1; i >= 0; i-- {
		board = append(board[:cleared[i]], board[cleared[i]+1:]...)
	}
	for range cleared {
		board = append([][]Piece{make([]Piece, e.cols)}, board...)
	}

	points := ClearPoints(len(cleared))

	ns := State{
		Board:        board,
		Piece:        "",
		Pos:          event.Coord{spawnRow, spawnCol},
		Rotation:     0,
		Score:        s.Score + points,
		LinesCleared: s.LinesCleared + len(cleared),
		MoveCount:    s.MoveCount,
		GameOver:     s.GameOver,
	}

	lp := &event.LockPayload{
		Act:          event.ActionPieceLock,
		Piece:        string(s.Piece),
		Position:     s.Pos,
		LinesCleared: len(cleared),
		ClearedRows:  cleared,
		PointsEarned: points,
		TotalScore:   ns.Score,
	}
	return ns, Transition{Payload: lp, Locked: true, Lock: lp}
}

// collides reports whether the active piece overlaps board bounds or
// occupied cells. A state without an active piece never collides.
func (e *Engine) collides(s State) bool {
	if s.Piece == "" {
		return false
	}

	for _, b := range s.Piece.Blocks(s.Rotation) {
		row := s.Pos.Row() + b.Row
		col := s.Pos.Col() + b.Col

		if row < 0 || row >= e.rows || col < 0 || col >= e.cols {
			return true
		}
		if s.Board[row][col] != "" {
			return true
		}
	}
	return false
}
