package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"instres/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <scenario.toml|scenario.yaml>",
	Short: "Resolve a scenario and export the instance registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <snapshot.mp>",
	Short: "Print a previously exported snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotShow,
}

func init() {
	snapshotCmd.Flags().StringP("output", "o", "", "output file (default: <scenario>.snapshot.mp)")
	snapshotCmd.Flags().Int("jobs", 0, "translation units resolved in parallel (0 = GOMAXPROCS)")
	snapshotCmd.AddCommand(snapshotShowCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	if output == "" {
		output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".snapshot.mp"
	}

	w, report, timer, err := resolveScenario(cmd, args[0], jobs, false)
	if err != nil {
		return err
	}
	var writer snapshot.Writer
	phase := -1
	if timer != nil {
		phase = timer.Begin("snapshot")
	}
	p, err := writer.Export(output, w.Session)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if timer != nil {
		timer.End(phase, output)
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d instances, %d failed references, digest %s\n",
		output, len(p.Instances), report.Failed(), p.Digest()[:16])
	return nil
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	p, err := snapshot.Read(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s, %d units, %d instances, digest %s\n", p.Session, len(p.Units), len(p.Instances), p.Digest()[:16])
	width := 0
	for _, x := range p.Instances {
		width = max(width, runewidth.StringWidth(x.Label))
	}
	for _, x := range p.Instances {
		fmt.Fprintf(out, "  %4d  %s  %-10s  %d:%d level %d, %d sites", x.ID, runewidth.FillRight(x.Label, width), x.State, x.Decl.Scope, x.Decl.Pos, x.Level, len(x.Sites))
		if x.Error != "" {
			fmt.Fprintf(out, "  %s", x.Error)
		}
		fmt.Fprintln(out)
	}
	return nil
}
