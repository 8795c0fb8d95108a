package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adaptco/tetris/internal/policy"
)

// ModesOptions holds flags for the modes command.
type ModesOptions struct {
	*RootOptions
	ModesFile string
}

// NewModesCommand creates the modes command.
func NewModesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ModesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "modes",
		Short: "List policy modes and their thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModes(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ModesFile, "modes-file", "", "CUE file overlaying the built-in modes")

	return cmd
}

func runModes(cmd *cobra.Command, opts *ModesOptions) error {
	var modes map[string]policy.Config
	var err error
	if opts.ModesFile != "" {
		modes, err = policy.LoadModes(opts.ModesFile)
	} else {
		modes, err = policy.Modes()
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "loading modes", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(modes, func(w io.Writer) {
		for _, name := range policy.ModeNames(modes) {
			cfg := modes[name]
			marker := " "
			if name == policy.DefaultMode {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s\n", marker, name)
			fmt.Fprintf(w, "    max moves per piece:        %d\n", cfg.MaxMovesPerPiece)
			fmt.Fprintf(w, "    max consecutive rotations:  %d\n", cfg.MaxConsecutiveRotations)
			fmt.Fprintf(w, "    max same-action streak:     %d\n", cfg.MaxSameActionStreak)
			fmt.Fprintf(w, "    max backtrack moves:        %d\n", cfg.MaxBacktrackMoves)
			fmt.Fprintf(w, "    bonus fraud threshold:      %d\n", cfg.BonusFraudThreshold)
		}
	})
}
