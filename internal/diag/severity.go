package diag

// Severity orders diagnostics; higher is more severe.
type Severity uint8

const (
	SevInfo Severity = iota // timings and other notes
	SevWarning
	SevError
)

var severityNames = [...]string{
	SevInfo:    "INFO",
	SevWarning: "WARNING",
	SevError:   "ERROR",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}

// SarifLevel maps s onto a SARIF result level.
func (s Severity) SarifLevel() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "note"
	}
}
