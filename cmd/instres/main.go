package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"instres/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "instres",
	Short: "Structural generic instantiation resolver",
	Long: `instres resolves structural references to generic units: it infers the
missing actuals, shares one instance per canonical key and picks the
declaration scope each instance is elaborated in.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		traceCleanup = cleanup
		stop, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		profileStop = stop
		return nil
	},
}

// traceCleanup flushes the tracer once the command has finished.
var traceCleanup = func() {}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 0, "maximum number of diagnostics kept per session (0 keeps the scenario's setting)")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (\"-\" for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "ring", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "events kept by the ring tracer")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file")
}

func main() {
	err := rootCmd.Execute()
	if stopErr := profileStop(); stopErr != nil {
		fmt.Fprintf(os.Stderr, "profiling: %v\n", stopErr)
	}
	traceCleanup()
	if err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor evaluates the --color flag against stdout and applies the
// result to fatih/color.
func useColor(cmd *cobra.Command) (bool, error) {
	flag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	var on bool
	switch flag {
	case "on":
		on = true
	case "off":
	case "auto":
		on = isTerminal(os.Stdout)
	default:
		return false, fmt.Errorf("invalid --color %q (expected: auto|on|off)", flag)
	}
	color.NoColor = !on
	return on, nil
}
