package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adaptco/tetris/internal/event"
	"github.com/adaptco/tetris/internal/eventlog"
	"github.com/adaptco/tetris/internal/session"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Player  string
	Mode    string
	Actions string // comma-separated; empty means read from stdin
}

// PlayResult is the JSON output of a play run.
type PlayResult struct {
	Session string           `json:"session"`
	Mode    string           `json:"mode"`
	Steps   []PlayStep       `json:"steps"`
	Final   session.Snapshot `json:"final"`
}

// PlayStep records the outcome of one submitted action.
type PlayStep struct {
	Action   string `json:"action"`
	Approved bool   `json:"approved"`
	Message  string `json:"message,omitempty"`
	Warning  string `json:"warning,omitempty"`
	Score    int    `json:"score"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start a session and submit actions",
		Long: "Starts a new session and submits actions from --actions or, when\n" +
			"omitted, one action name per line from stdin. Play stops at the first\n" +
			"terminal event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Player, "player", "local", "player (tenant) id")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "policy mode (default: casual)")
	cmd.Flags().StringVar(&opts.Actions, "actions", "", "comma-separated action names")

	return cmd
}

func runPlay(cmd *cobra.Command, opts *PlayOptions) error {
	log, err := eventlog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening event log", err)
	}
	defer log.Close()

	orch, err := session.New(log)
	if err != nil {
		return WrapExitError(ExitCommandError, "initializing orchestrator", err)
	}

	ctx := cmd.Context()
	h, err := orch.Start(ctx, opts.Player, opts.Mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "starting session", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	result := PlayResult{Session: h.ID, Mode: h.Mode, Final: h.Snapshot}

	if opts.Format == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "session %s started (mode %s, piece %s)\n",
			h.ID, h.Mode, h.Snapshot.Piece)
	}

	for _, name := range actionSequence(opts.Actions, cmd.InOrStdin()) {
		action, ok := event.ParseAction(name)
		if !ok {
			action = event.Action(name)
		}

		outcome, err := orch.ExecuteAction(ctx, opts.Player, h.ID, action)
		if err != nil {
			return WrapExitError(ExitFailure, "executing action", err)
		}

		result.Steps = append(result.Steps, PlayStep{
			Action:   name,
			Approved: outcome.Approved,
			Message:  outcome.Message,
			Warning:  outcome.Warning,
			Score:    outcome.Snapshot.Score,
		})
		result.Final = outcome.Snapshot

		if opts.Format == "text" {
			printStep(cmd.OutOrStdout(), name, outcome)
		}

		if outcome.Snapshot.State.IsTerminal() {
			break
		}
	}

	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "final: state=%s score=%d lines=%d moves=%d\n",
			result.Final.State, result.Final.Score, result.Final.LinesCleared, result.Final.MoveCount)
	})
}

func printStep(w io.Writer, name string, outcome session.Outcome) {
	status := "ok"
	if !outcome.Approved {
		status = "refused"
	}
	fmt.Fprintf(w, "%-12s %-8s score=%d", name, status, outcome.Snapshot.Score)
	if outcome.Message != "" {
		fmt.Fprintf(w, "  (%s)", outcome.Message)
	}
	if outcome.Warning != "" {
		fmt.Fprintf(w, "  [warning: %s]", outcome.Warning)
	}
	fmt.Fprintln(w)
}

// actionSequence yields the actions to submit, either from the flag or one
// per line from the reader.
func actionSequence(flag string, stdin io.Reader) []string {
	var names []string
	if flag != "" {
		for _, name := range strings.Split(flag, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		return names
	}

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names
}
