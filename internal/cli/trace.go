package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adaptco/tetris/internal/event"
	"github.com/adaptco/tetris/internal/eventlog"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Player  string
	Session string
}

// TraceEvent is one event in the timeline output.
type TraceEvent struct {
	Seq        int64  `json:"seq"`
	State      string `json:"state"`
	Stage      string `json:"stage"`
	Action     string `json:"action"`
	Hash       string `json:"hash"`
	RecordedAt string `json:"recorded_at"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Player   string       `json:"player"`
	Session  string       `json:"session"`
	Timeline []TraceEvent `json:"timeline"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded event timeline for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Player, "player", "local", "player (tenant) id")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	cmd.MarkFlagRequired("session")

	return cmd
}

func runTrace(cmd *cobra.Command, opts *TraceOptions) error {
	log, err := eventlog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening event log", err)
	}
	defer log.Close()

	events, err := log.Read(cmd.Context(), opts.Player, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading events", err)
	}
	if len(events) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no events for session %s", opts.Session))
	}

	result := TraceResult{Player: opts.Player, Session: opts.Session}
	for _, ev := range events {
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:        ev.Seq,
			State:      string(ev.State),
			Stage:      string(ev.Stage),
			Action:     string(ev.Payload.Action()),
			Hash:       ev.Hash,
			RecordedAt: ev.RecordedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "session %s (%d events)\n", opts.Session, len(events))
		for _, te := range result.Timeline {
			fmt.Fprintf(w, "  [%3d] %-9s %-16s %-16s %s\n",
				te.Seq, te.State, te.Stage, te.Action, shortHash(te.Hash))
		}
		describeTerminal(w, events)
	})
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// describeTerminal prints a one-line summary of how the session ended.
func describeTerminal(w io.Writer, events []event.Event) {
	last := events[len(events)-1]
	switch p := last.Payload.(type) {
	case *event.FinalizePayload:
		fmt.Fprintf(w, "finalized: score=%d lines=%d moves=%d sealed_at=%s\n",
			p.FinalScore, p.LinesCleared, p.MoveCount, p.SealedAt)
	case *event.PolicyRejectPayload:
		fmt.Fprintf(w, "failed: %s (penalty %d)\n", p.Reason, p.PenaltyPoints)
	case *event.FraudRejectPayload:
		fmt.Fprintf(w, "failed: %s (revoked %d)\n", p.Reason, p.RevokedPoints)
	}
}
