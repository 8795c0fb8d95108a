package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptco/tetris/internal/event"
)

func newTestEngine(pieces ...Piece) *Engine {
	return New(WithPieceSource(NewFixedSource(pieces...)))
}

func TestSpawn_PlacesPieceAtSpawnPosition(t *testing.T) {
	e := newTestEngine(PieceT)
	s, tr := e.Spawn(e.NewState())

	require.True(t, tr.Applied())
	assert.Equal(t, PieceT, s.Piece)
	assert.Equal(t, event.Coord{0, 3}, s.Pos)
	assert.Equal(t, 0, s.Rotation)
	assert.False(t, s.GameOver)

	payload, ok := tr.Payload.(*event.SpawnPayload)
	require.True(t, ok, "spawn must produce a SpawnPayload")
	assert.Equal(t, "T", payload.Piece)
	assert.Equal(t, event.Coord{0, 3}, payload.Position)
	assert.False(t, payload.GameOver)
}

func TestSpawn_CollisionMarksTerminal(t *testing.T) {
	e := newTestEngine(PieceO)
	s := e.NewState()

	// Occupy the spawn cells
	s.Board[0][3] = PieceI
	s.Board[0][4] = PieceI

	s, tr := e.Spawn(s)

	require.True(t, tr.Applied())
	assert.True(t, s.GameOver, "blocked spawn must mark the state terminal")
	payload := tr.Payload.(*event.SpawnPayload)
	assert.True(t, payload.GameOver)
}

func TestMove_AcceptedMovesIncrementMoveCount(t *testing.T) {
	e := newTestEngine(PieceO)
	s, _ := e.Spawn(e.NewState())

	s, tr := e.Move(s, event.ActionMoveLeft)
	require.True(t, tr.Applied())
	assert.Equal(t, event.Coord{0, 2}, s.Pos)
	assert.Equal(t, 1, s.MoveCount)

	s, tr = e.Move(s, event.ActionMoveRight)
	require.True(t, tr.Applied())
	assert.Equal(t, event.Coord{0, 3}, s.Pos)
	assert.Equal(t, 2, s.MoveCount)

	s, tr = e.Move(s, event.ActionMoveDown)
	require.True(t, tr.Applied())
	assert.Equal(t, event.Coord{1, 3}, s.Pos)
	assert.Equal(t, 3, s.MoveCount)

	payload, ok := tr.Payload.(*event.MovePayload)
	require.True(t, ok)
	assert.Equal(t, event.ActionMoveDown, payload.Act)
	assert.Equal(t, 3, payload.MoveNumber)
}

func TestMove_WallCollisionIsNoOp(t *testing.T) {
	e := newTestEngine(PieceO)
	s, _ := e.Spawn(e.NewState())

	// Walk to the left wall, then one more
	for s.Pos.Col() > 0 {
		var tr Transition
		s, tr = e.Move(s, event.ActionMoveLeft)
		require.True(t, tr.Applied())
	}

	before := s
	s, tr := e.Move(s, event.ActionMoveLeft)
	assert.False(t, tr.Applied(), "colliding horizontal move must be a no-op")
	assert.Equal(t, before.Pos, s.Pos)
	assert.Equal(t, before.MoveCount, s.MoveCount, "rejected move must not count")
}

func TestMove_DownCollisionLocksPiece(t *testing.T) {
	e := newTestEngine(PieceO)
	s, _ := e.Spawn(e.NewState())

	// O occupies rows r..r+1: 18 accepted downs reach row 18.
	for i := 0; i < 18; i++ {
		var tr Transition
		s, tr = e.Move(s, event.ActionMoveDown)
		require.True(t, tr.Applied())
		require.False(t, tr.Locked)
	}
	require.Equal(t, 18, s.Pos.Row())

	s, tr := e.Move(s, event.ActionMoveDown)
	require.True(t, tr.Applied())
	assert.True(t, tr.Locked, "down move into the floor must lock")
	require.NotNil(t, tr.Lock)
	assert.Equal(t, "O", tr.Lock.Piece)
	assert.Equal(t, event.Coord{18, 3}, tr.Lock.Position)
	assert.Equal(t, 0, tr.Lock.LinesCleared)

	assert.Empty(t, s.Piece, "lock must clear the active piece")
	assert.Equal(t, PieceO, s.Board[18][3])
	assert.Equal(t, PieceO, s.Board[19][4])
	assert.Equal(t, 18, s.MoveCount, "the locking attempt itself does not count")
}

func TestMove_NoActivePieceIsNoOp(t *testing.T) {
	e := newTestEngine()
	s := e.NewState()

	_, tr := e.Move(s, event.ActionMoveLeft)
	assert.False(t, tr.Applied())

	_, tr = e.Rotate(s, true)
	assert.False(t, tr.Applied())

	_, tr = e.HardDrop(s)
	assert.False(t, tr.Applied())
}

func TestMove_TerminalStateIsNoOp(t *testing.T) {
	e := newTestEngine(PieceT)
	s, _ := e.Spawn(e.NewState())
	s.GameOver = true

	_, tr := e.Move(s, event.ActionMoveDown)
	assert.False(t, tr.Applied())
}

func TestRotate_QuarterTurns(t *testing.T) {
	e := newTestEngine(PieceI)
	s, _ := e.Spawn(e.NewState())

	s, tr := e.Rotate(s, true)
	require.True(t, tr.Applied())
	assert.Equal(t, 1, s.Rotation)
	assert.Equal(t, 1, s.MoveCount)

	payload, ok := tr.Payload.(*event.RotatePayload)
	require.True(t, ok)
	assert.Equal(t, event.ActionRotateCW, payload.Act)
	assert.Equal(t, 0, payload.FromRotation)
	assert.Equal(t, 1, payload.ToRotation)

	s, tr = e.Rotate(s, false)
	require.True(t, tr.Applied())
	assert.Equal(t, 0, s.Rotation)

	// Counter-clockwise from 0 wraps to 3
	s, tr = e.Rotate(s, false)
	require.True(t, tr.Applied())
	assert.Equal(t, 3, s.Rotation)
}

func TestRotate_CollisionIsNoOp(t *testing.T) {
	e := newTestEngine(PieceI)
	s, _ := e.Spawn(e.NewState())

	// Vertical I at (0,3) needs rows 0..3 in column 3; block row 1.
	s.Board[1][3] = PieceO

	before := s
	s, tr := e.Rotate(s, true)
	assert.False(t, tr.Applied())
	assert.Equal(t, before.Rotation, s.Rotation)
	assert.Equal(t, before.MoveCount, s.MoveCount)
}

func TestBlocks_RotationTransform(t *testing.T) {
	// One quarter turn maps (dr, dc) → (dc, −dr)
	got := PieceI.Blocks(1)
	want := []Offset{{0, 0}, {1, 0}, {2, 0}, {3, 0}}
	assert.Equal(t, want, got)

	// Four turns is the identity
	assert.Equal(t, PieceI.Blocks(0), PieceI.Blocks(4))
	assert.Equal(t, PieceT.Blocks(2), PieceT.Blocks(-2))
}

func TestHardDrop_DistanceAndBonus(t *testing.T) {
	e := newTestEngine(PieceO)
	s, _ := e.Spawn(e.NewState())

	s, tr := e.HardDrop(s)
	require.True(t, tr.Applied())
	require.True(t, tr.Locked)

	payload, ok := tr.Payload.(*event.HardDropPayload)
	require.True(t, ok)
	assert.Equal(t, event.Coord{0, 3}, payload.From)
	assert.Equal(t, event.Coord{18, 3}, payload.To)
	assert.Equal(t, 18, payload.DropDistance)
	assert.Equal(t, 36, payload.BonusPoints)

	assert.Equal(t, 36, s.Score, "drop bonus is distance × 2")
	assert.Equal(t, 0, s.MoveCount, "hard drop is not a counted move")
	require.NotNil(t, tr.Lock)
	assert.Equal(t, 0, tr.Lock.LinesCleared)
}

func TestLock_SingleLineClear(t *testing.T) {
	e := newTestEngine(PieceI)
	s, _ := e.Spawn(e.NewState())

	// Fill the bottom row except the four columns the I will land on.
	for col := 0; col < 6; col++ {
		s.Board[19][col] = PieceO
	}

	// Shift right so the I covers columns 6..9.
	for i := 0; i < 3; i++ {
		var tr Transition
		s, tr = e.Move(s, event.ActionMoveRight)
		require.True(t, tr.Applied())
	}

	s, tr := e.HardDrop(s)
	require.True(t, tr.Locked)
	require.NotNil(t, tr.Lock)

	assert.Equal(t, 1, tr.Lock.LinesCleared)
	assert.Equal(t, []int{19}, tr.Lock.ClearedRows)
	assert.Equal(t, 100, tr.Lock.PointsEarned)

	assert.Equal(t, 1, s.LinesCleared)
	// 100 for the clear plus 19×2 drop bonus
	assert.Equal(t, 138, s.Score)
	assert.Equal(t, 0, s.CellCount(), "cleared board must be empty again")
}

func TestLock_RowShiftPreservesOrder(t *testing.T) {
	e := newTestEngine(PieceI)
	s, _ := e.Spawn(e.NewState())

	// Row 19 nearly full (clearable), row 18 partially full (must shift down).
	for col := 0; col < 6; col++ {
		s.Board[19][col] = PieceO
	}
	s.Board[18][0] = PieceT

	for i := 0; i < 3; i++ {
		s, _ = e.Move(s, event.ActionMoveRight)
	}
	s, tr := e.HardDrop(s)

	require.True(t, tr.Locked)
	assert.Equal(t, 1, tr.Lock.LinesCleared)
	assert.Equal(t, PieceT, s.Board[19][0], "surviving row must shift down intact")
	assert.Empty(t, s.Board[18][0])
}

func TestClearPoints_Table(t *testing.T) {
	want := map[int]int{0: 0, 1: 100, 2: 300, 3: 500, 4: 800, 5: 0, -1: 0}
	for k, pts := range want {
		assert.Equal(t, pts, ClearPoints(k), "ClearPoints(%d)", k)
	}
}

func TestReplay_SameInputsSameFinalState(t *testing.T) {
	run := func() State {
		e := newTestEngine(PieceT, PieceI, PieceO, PieceS)
		s, _ := e.Spawn(e.NewState())
		actions := []event.Action{
			event.ActionMoveLeft,
			event.ActionRotateCW,
			event.ActionMoveDown,
			event.ActionMoveRight,
		}
		for _, a := range actions {
			switch a {
			case event.ActionRotateCW:
				s, _ = e.Rotate(s, true)
			default:
				s, _ = e.Move(s, a)
			}
		}
		s, _ = e.HardDrop(s)
		s, _ = e.Spawn(s)
		return s
	}

	a, b := run(), run()
	assert.Equal(t, a.Board, b.Board)
	assert.Equal(t, a.Score, b.Score)
	assert.Equal(t, a.MoveCount, b.MoveCount)
	assert.Equal(t, a.Piece, b.Piece)
}

func TestFixedSource_PanicsWhenExhausted(t *testing.T) {
	src := NewFixedSource(PieceI)
	assert.Equal(t, PieceI, src.Next())
	assert.Equal(t, 0, src.Remaining())
	assert.Panics(t, func() { src.Next() })
}
