package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"instres/internal/prof"
)

// profileStop flushes the profiles started by setupProfiling.
var profileStop = func() error { return nil }

// setupProfiling reads the persistent profiling flags and starts the
// requested profilers.
func setupProfiling(cmd *cobra.Command) (func() error, error) {
	flags := cmd.Root().PersistentFlags()
	var cfg prof.Config
	var err error
	if cfg.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if cfg.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if cfg.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !cfg.Enabled() {
		return func() error { return nil }, nil
	}
	p, err := prof.Start(cfg)
	if err != nil {
		return nil, err
	}
	return p.Stop, nil
}
