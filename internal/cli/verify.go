package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adaptco/tetris/internal/eventlog"
	"github.com/adaptco/tetris/internal/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Player  string
	Session string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the hash chain and state machine of a recorded session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Player, "player", "local", "player (tenant) id")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	cmd.MarkFlagRequired("session")

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions) error {
	log, err := eventlog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening event log", err)
	}
	defer log.Close()

	events, err := log.Read(cmd.Context(), opts.Player, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading events", err)
	}

	report := verify.Verify(events)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	renderErr := out.Success(report, func(w io.Writer) {
		if report.Valid {
			fmt.Fprintf(w, "session %s: valid (%d events)\n", opts.Session, report.EventCount)
		} else {
			fmt.Fprintf(w, "session %s: INVALID: %s\n", opts.Session, report.Reason)
		}
	})
	if renderErr != nil {
		return renderErr
	}

	if !report.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("integrity check failed: %s", report.Reason))
	}
	return nil
}
