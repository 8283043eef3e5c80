package diagfmt

import (
	"encoding/json"
	"io"

	"instres/internal/diag"
	"instres/internal/source"
)

// LocationJSON is a span with the translation unit spelled out.
type LocationJSON struct {
	Unit  string `json:"unit,omitempty"`
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Notes    []NoteJSON   `json:"notes,omitempty"`
}

// DiagnosticsOutput is the root of the JSON form.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
}

func makeLocation(sp source.Span, fs *source.FileSet) LocationJSON {
	loc := LocationJSON{Start: sp.Start, End: sp.End}
	if fs != nil {
		loc.Unit = fs.Name(sp.File)
	}
	return loc
}

// Build converts diagnostics into their JSON form. Count is the number
// before truncation.
func Build(diags []diag.Diagnostic, fs *source.FileSet, opts JSONOpts) DiagnosticsOutput {
	out := DiagnosticsOutput{Count: len(diags), Diagnostics: make([]DiagnosticJSON, 0, len(diags))}
	for i, d := range diags {
		if opts.Max > 0 && i >= opts.Max {
			break
		}
		dj := DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code.ID(),
			Message:  d.Message,
			Location: makeLocation(d.Primary, fs),
		}
		if opts.IncludeNotes {
			for _, n := range d.Notes {
				dj.Notes = append(dj.Notes, NoteJSON{Message: n.Msg, Location: makeLocation(n.Span, fs)})
			}
		}
		out.Diagnostics = append(out.Diagnostics, dj)
	}
	return out
}

// JSON writes diagnostics as an indented JSON document.
func JSON(w io.Writer, diags []diag.Diagnostic, fs *source.FileSet, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Build(diags, fs, opts))
}
