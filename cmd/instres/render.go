package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"instres/internal/driver"
	"instres/internal/scenario"
	"instres/internal/scope"
)

var (
	okColor       = color.New(color.FgGreen)
	expectedColor = color.New(color.FgYellow)
	failColor     = color.New(color.FgRed, color.Bold)
	headerColor   = color.New(color.Bold)
)

func siteLabel(w *scenario.World, site scope.Site) string {
	return w.ScopeName(site.Scope) + "@" + strconv.FormatUint(uint64(site.Pos), 10)
}

// renderTable prints one row per reference. Widths are measured with
// runewidth so unit and type names outside ASCII stay aligned.
func renderTable(out io.Writer, w *scenario.World, report *driver.Report, colored bool) {
	header := []string{"#", "TU", "SITE", "RESULT", "INST", "ACTION", "DECL", "LEVEL"}
	rows := make([][]string, len(report.Results))
	paint := make([]*color.Color, len(report.Results))
	for i, res := range report.Results {
		row := []string{
			strconv.Itoa(res.Ref.Index),
			res.Ref.TU,
			siteLabel(w, res.Ref.Request.Site),
			"", "-", "-", "-", "-",
		}
		switch {
		case res.Err == nil:
			u := w.Session.Units().Get(res.Handle.Key.Unit)
			row[3] = res.Handle.Key.Label(u, w.Session.Types())
			paint[i] = okColor
		case res.OK():
			row[3] = res.Ref.Generic + ": " + res.Code() + " (expected)"
			paint[i] = expectedColor
		default:
			row[3] = res.Ref.Generic + ": " + res.Code()
			paint[i] = failColor
		}
		if res.Handle.ID.IsValid() {
			row[4] = strconv.FormatUint(uint64(res.Handle.ID), 10)
			row[5] = res.Handle.Action.String()
			row[6] = siteLabel(w, res.Handle.Decl)
			row[7] = strconv.FormatUint(uint64(res.Handle.Level), 10)
		}
		rows[i] = row
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	line := func(cells []string, c *color.Color, col int) {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			padded := runewidth.FillRight(cell, widths[i])
			if i == len(cells)-1 {
				padded = strings.TrimRight(padded, " ")
			}
			if colored && c != nil && (col < 0 || i == col) {
				padded = c.Sprint(padded)
			}
			b.WriteString(padded)
		}
		fmt.Fprintln(out, b.String())
	}
	line(header, headerColor, -1)
	for i, row := range rows {
		line(row, paint[i], 3)
	}
}
