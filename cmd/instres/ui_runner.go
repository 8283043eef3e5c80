package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"instres/internal/driver"
	"instres/internal/scenario"
	"instres/internal/ui"
)

type runOutcome struct {
	report *driver.Report
	err    error
}

// runWithUI runs the driver while a progress view draws on out.
func runWithUI(ctx context.Context, out io.Writer, title string, w *scenario.World, opts driver.Options) (*driver.Report, error) {
	tus := w.TranslationUnits()
	names := make([]string, len(tus))
	for i, refs := range tus {
		names[i] = refs[0].TU
	}
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		opts.Progress = driver.ChannelSink{Ch: events}
		report, err := driver.Run(ctx, w, opts)
		outcomeCh <- runOutcome{report: report, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(out), tea.WithInput(nil))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.report, uiErr
	}
	return outcome.report, outcome.err
}
