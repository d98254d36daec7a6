package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"pkt.systems/pslog"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "measurements",
		Short:         "Export measurement collections to the measurements JSON document",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromFlags(cmd)
			if err != nil {
				return err
			}
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)
			cmd.SetContext(ctx)
			return nil
		},
	}

	addLoggingFlags(root.PersistentFlags())
	root.AddCommand(newExportCmd())
	root.AddCommand(newConcatCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// exitError carries a process exit status for failures that were already
// reported on stderr.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	os.Exit(execute(newRootCmd(), os.Stderr))
}

// execute runs cmd and returns the process exit status. Failures already
// reported by a command carry their status; cobra parse and usage errors are
// printed here.
func execute(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "ERROR: %v\n", err)
	return 1
}

func loggerFromFlags(cmd *cobra.Command) (pslog.Logger, error) {
	structured, _ := cmd.Flags().GetBool("structured")
	levelStr, _ := cmd.Flags().GetString("log-level")
	caller, _ := cmd.Flags().GetBool("log-caller")
	levelFlagSet := cmd.Flags().Lookup("log-level") != nil && cmd.Flags().Lookup("log-level").Changed
	return newLogger(structured, levelStr, levelFlagSet, caller, cmd.OutOrStdout())
}

func loggerFromCmd(cmd *cobra.Command) pslog.Logger {
	if cmd == nil {
		return pslog.NewWithOptions(os.Stdout, pslog.Options{MinLevel: pslog.InfoLevel})
	}
	if logger := pslog.LoggerFromContext(cmd.Context()); logger != nil {
		return logger
	}
	// Fallback: build from flags if context missing (tests)
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return pslog.NewWithOptions(cmd.OutOrStdout(), pslog.Options{MinLevel: pslog.InfoLevel})
	}
	return logger
}

func newLogger(structured bool, level string, flagSet bool, caller bool, w io.Writer) (pslog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}

	opts := pslog.Options{CallerKeyval: caller}
	if structured {
		opts.Mode = pslog.ModeStructured
	}
	logger := pslog.NewWithOptions(w, opts).LogLevel(pslog.InfoLevel)

	if flagSet {
		if lvl, ok := pslog.ParseLevel(level); ok {
			return logger.LogLevel(lvl), nil
		}
		return nil, fmt.Errorf("unknown level %q", level)
	}

	if lvl, ok := pslog.LevelFromEnv("LOG_LEVEL"); ok {
		return logger.LogLevel(lvl), nil
	}
	if lvl, ok := pslog.ParseLevel(level); ok {
		return logger.LogLevel(lvl), nil
	}
	return logger, nil
}

func addLoggingFlags(flags *pflag.FlagSet) {
	if flags.Lookup("log-level") == nil {
		flags.String("log-level", "info", "Log level (trace|debug|info|warn|error)")
	}
	if flags.Lookup("structured") == nil {
		flags.Bool("structured", false, "Emit structured JSON logs")
	}
	if flags.Lookup("log-caller") == nil {
		flags.Bool("log-caller", false, "Include caller function name on each log line")
	}
}

// reportFailure prints every cause of err as its own ERROR line followed by
// err itself, and returns the exit error for RunE.
func reportFailure(w io.Writer, err error) error {
	var multi interface{ Unwrap() []error }
	if errors.As(err, &multi) {
		for _, cause := range multi.Unwrap() {
			fmt.Fprintf(w, "ERROR: %v\n", cause)
		}
	}
	fmt.Fprintf(w, "ERROR: %v\n", err)
	return &exitError{code: 1}
}
