package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptco/tetris/internal/event"
	"github.com/adaptco/tetris/internal/eventlog"
	"github.com/adaptco/tetris/internal/game"
	"github.com/adaptco/tetris/internal/session"
)

// seedSession starts a session on disk and plays the given actions, so
// commands that read an existing log have something to look at.
func seedSession(t *testing.T, dbPath string, actions ...event.Action) string {
	t.Helper()

	log, err := eventlog.Open(dbPath)
	require.NoError(t, err)
	defer log.Close()

	orch, err := session.New(log,
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithEngineOptions(game.WithPieceSource(game.NewFixedSource(
			game.PieceO, game.PieceI, game.PieceT, game.PieceS, game.PieceZ,
		))),
	)
	require.NoError(t, err)

	ctx := context.Background()
	h, err := orch.Start(ctx, "local", "casual")
	require.NoError(t, err)

	for _, action := range actions {
		outcome, err := orch.ExecuteAction(ctx, "local", h.ID, action)
		require.NoError(t, err)
		if outcome.Snapshot.State.IsTerminal() {
			break
		}
	}
	return h.ID
}

func TestPlayWithActionsFlag(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "play.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	cmd := NewPlayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--actions", "MOVE_LEFT,MOVE_RIGHT,HARD_DROP"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "started (mode casual")
	assert.Contains(t, buf.String(), "MOVE_LEFT")
	assert.Contains(t, buf.String(), "final: state=RUNNING")
}

func TestPlayJSONOutput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "play.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json", Database: dbPath}
	cmd := NewPlayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--mode", "arcade", "--actions", "MOVE_DOWN"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result PlayResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "arcade", result.Mode)
	require.Len(t, result.Steps, 1)
	assert.True(t, result.Steps[0].Approved)
	assert.Equal(t, 1, result.Final.MoveCount)
}

func TestPlayReadsActionsFromStdin(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "play.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	cmd := NewPlayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("MOVE_DOWN\nMOVE_DOWN\n"))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "moves=2")
}

func TestPlayUnknownMode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "play.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	cmd := NewPlayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--mode", "nightmare"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting session")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPlayUnknownActionRefused(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "play.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	cmd := NewPlayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--actions", "TELEPORT"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "refused")
}
