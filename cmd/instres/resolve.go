package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"instres/internal/diagfmt"
	"instres/internal/driver"
	"instres/internal/observ"
	"instres/internal/scenario"
	"instres/internal/version"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <scenario.toml|scenario.yaml>",
	Short: "Resolve every reference of a scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().Int("jobs", 0, "translation units resolved in parallel (0 = GOMAXPROCS)")
	resolveCmd.Flags().String("format", "pretty", "output format (pretty|json|sarif)")
	resolveCmd.Flags().String("progress", "auto", "show live progress on stderr (auto|on|off)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	switch format {
	case "pretty", "json", "sarif":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty, json or sarif)", format)
	}
	colored, err := useColor(cmd)
	if err != nil {
		return err
	}
	progress, err := useProgress(cmd)
	if err != nil {
		return err
	}

	w, report, timer, err := resolveScenario(cmd, args[0], jobs, progress)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(jsonReport(w, report)); err != nil {
			return err
		}
	case "sarif":
		meta := diagfmt.SarifRunMeta{ToolName: "instres", ToolVersion: version.Version, InvocationArgs: os.Args[1:]}
		if err := diagfmt.Sarif(out, report.Diagnostics, w.Files, meta); err != nil {
			return err
		}
	default:
		renderTable(out, w, report, colored)
		if len(report.Diagnostics) > 0 {
			fmt.Fprintln(out)
			diagfmt.Pretty(out, report.Diagnostics, w.Files, diagfmt.PrettyOpts{Color: colored, ShowNotes: true})
		}
	}
	if timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if n := report.Failed(); n > 0 {
		dumpRing()
		return fmt.Errorf("%d of %d references did not resolve as expected", n, len(report.Results))
	}
	return nil
}

// useProgress evaluates --progress. auto draws only when stderr is a terminal.
func useProgress(cmd *cobra.Command) (bool, error) {
	flag, err := cmd.Flags().GetString("progress")
	if err != nil {
		return false, err
	}
	switch flag {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return isTerminal(os.Stderr), nil
	default:
		return false, fmt.Errorf("invalid --progress %q (expected: auto|on|off)", flag)
	}
}

// resolveScenario loads path and runs it through the driver.
func resolveScenario(cmd *cobra.Command, path string, jobs int, progress bool) (*scenario.World, *driver.Report, *observ.Timer, error) {
	w, timer, err := loadWorld(cmd, path)
	if err != nil {
		return nil, nil, nil, err
	}
	opts := driver.Options{Jobs: jobs, Timer: timer}
	var report *driver.Report
	if progress {
		report, err = runWithUI(cmd.Context(), cmd.ErrOrStderr(), "resolving "+path, w, opts)
	} else {
		report, err = driver.Run(cmd.Context(), w, opts)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return w, report, timer, nil
}

type jsonResult struct {
	Index    int      `json:"index"`
	TU       string   `json:"tu"`
	Generic  string   `json:"generic"`
	Site     string   `json:"site"`
	OK       bool     `json:"ok"`
	Code     string   `json:"code,omitempty"`
	Expect   string   `json:"expect,omitempty"`
	Error    string   `json:"error,omitempty"`
	Instance uint32   `json:"instance,omitempty"`
	Key      string   `json:"key,omitempty"`
	Action   string   `json:"action,omitempty"`
	Decl     string   `json:"decl,omitempty"`
	Level    uint32   `json:"level,omitempty"`
	Inferred []string `json:"inferred,omitempty"`
	Entity   string   `json:"entity,omitempty"`
}

type jsonOutput struct {
	Session     string                    `json:"session"`
	Failed      int                       `json:"failed"`
	Results     []jsonResult              `json:"results"`
	Diagnostics diagfmt.DiagnosticsOutput `json:"diagnostics"`
}

func jsonReport(w *scenario.World, report *driver.Report) jsonOutput {
	out := jsonOutput{
		Session:     w.Session.ID().String(),
		Failed:      report.Failed(),
		Results:     make([]jsonResult, len(report.Results)),
		Diagnostics: diagfmt.Build(report.Diagnostics, w.Files, diagfmt.JSONOpts{IncludeNotes: true}),
	}
	for i, res := range report.Results {
		row := jsonResult{
			Index:   res.Ref.Index,
			TU:      res.Ref.TU,
			Generic: res.Ref.Generic,
			Site:    siteLabel(w, res.Ref.Request.Site),
			OK:      res.OK(),
			Code:    res.Code(),
			Expect:  res.Ref.Expect,
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
		}
		if res.Handle.ID.IsValid() {
			u := w.Session.Units().Get(res.Handle.Key.Unit)
			row.Instance = uint32(res.Handle.ID)
			row.Key = res.Handle.Key.Label(u, w.Session.Types())
			row.Action = res.Handle.Action.String()
			row.Decl = siteLabel(w, res.Handle.Decl)
			row.Level = res.Handle.Level
			for _, f := range res.Handle.Inferred {
				row.Inferred = append(row.Inferred, u.Formals[f].Name)
			}
			row.Entity = res.Entity.Name
		}
		out.Results[i] = row
	}
	return out
}
