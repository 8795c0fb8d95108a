package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptco/tetris/internal/event"
)

func TestSessionsLists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	first := seedSession(t, dbPath, event.ActionMoveLeft)
	second := seedSession(t, dbPath, event.ActionMoveDown, event.ActionMoveDown)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "local/"+first)
	assert.Contains(t, buf.String(), "local/"+second)
	assert.Contains(t, buf.String(), "RUNNING")
	assert.Contains(t, buf.String(), "valid")
}

func TestSessionsEmptyLog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no sessions recorded")
}
