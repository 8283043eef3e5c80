package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"instres/internal/observ"
	"instres/internal/scenario"
)

// loadWorld reads a scenario and builds its session, honouring the global
// --timings and --max-diagnostics flags. timer is nil unless --timings.
func loadWorld(cmd *cobra.Command, path string) (*scenario.World, *observ.Timer, error) {
	flags := cmd.Root().PersistentFlags()
	timings, err := flags.GetBool("timings")
	if err != nil {
		return nil, nil, err
	}
	maxDiagnostics, err := flags.GetInt("max-diagnostics")
	if err != nil {
		return nil, nil, err
	}

	var timer *observ.Timer
	if timings {
		timer = observ.NewTimer()
	}
	phase := -1
	if timer != nil {
		phase = timer.Begin("load")
	}
	f, err := scenario.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if maxDiagnostics > 0 {
		f.Options.MaxDiagnostics = maxDiagnostics
	}
	w, err := scenario.Build(f, scenario.Config{Timer: timer})
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if timer != nil {
		timer.End(phase, fmt.Sprintf("%d references", len(w.References)))
	}
	return w, timer, nil
}
