package driver

import (
	"encoding/json"
	"fmt"

	"instres/internal/diag"
	"instres/internal/observ"
	"instres/internal/source"
)

// timingDiagnostic packs a timing report into an info diagnostic whose
// note carries the JSON form.
func timingDiagnostic(report observ.Report) diag.Diagnostic {
	d := diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, fmt.Sprintf("timings: total %.2f ms", report.TotalMS))
	data, err := json.Marshal(report)
	if err != nil {
		return d
	}
	return d.WithNote(source.Span{}, string(data))
}

// limitDiagnostic tells the reader that the session bag filled up.
func limitDiagnostic(limit int) diag.Diagnostic {
	return diag.New(diag.SevWarning, diag.ObsDiagnosticLimit, source.Span{},
		fmt.Sprintf("diagnostic limit of %d reached; later failures are not listed", limit))
}
