package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adaptco/tetris/internal/eventlog"
	"github.com/adaptco/tetris/internal/verify"
)

// SessionEntry is one recorded session in the listing.
type SessionEntry struct {
	Player     string `json:"player"`
	Session    string `json:"session"`
	State      string `json:"state"`
	EventCount int    `json:"event_count"`
	Valid      bool   `json:"valid"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions in the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(cmd, rootOpts)
		},
	}
}

func runSessions(cmd *cobra.Command, opts *RootOptions) error {
	log, err := eventlog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening event log", err)
	}
	defer log.Close()

	keys, err := log.Sessions(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "listing sessions", err)
	}

	entries := make([]SessionEntry, 0, len(keys))
	for _, key := range keys {
		events, err := log.Read(cmd.Context(), key[0], key[1])
		if err != nil {
			return WrapExitError(ExitCommandError, "reading events", err)
		}
		report := verify.Verify(events)
		state := ""
		if len(events) > 0 {
			state = string(events[len(events)-1].State)
		}
		entries = append(entries, SessionEntry{
			Player:     key[0],
			Session:    key[1],
			State:      state,
			EventCount: len(events),
			Valid:      report.Valid,
		})
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "no sessions recorded")
			return
		}
		for _, e := range entries {
			integrity := "valid"
			if !e.Valid {
				integrity = "INVALID"
			}
			fmt.Fprintf(w, "%s/%s  %-9s %3d events  %s\n",
				e.Player, e.Session, e.State, e.EventCount, integrity)
		}
	})
}
