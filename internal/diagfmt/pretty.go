package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"instres/internal/diag"
	"instres/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	codeColor    = color.New(color.Bold)
)

// Pretty writes one block per diagnostic:
//
//	<unit>:<start>-<end>: <SEV> <CODE>: <message>
//	    note: <message>
func Pretty(w io.Writer, diags []diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range diags {
		sev := d.Severity.String()
		code := d.Code.ID()
		if opts.Color {
			sev = severityColor(d.Severity).Sprint(sev)
			code = codeColor.Sprint(code)
		}
		fmt.Fprintf(w, "%s: %s %s: %s\n", location(d.Primary, fs), sev, code, d.Message)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "    note: %s\n", n.Msg)
		}
	}
}

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

func location(sp source.Span, fs *source.FileSet) string {
	if sp.File == source.NoFileID {
		return "<session>"
	}
	if fs == nil {
		return sp.String()
	}
	return fs.Format(sp)
}
