package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Actual list alignment
	KeyInfo              Code = 1000
	KeyUnknownFormalName Code = 1001
	KeyDuplicateBinding  Code = 1002
	KeyUnknownUnit       Code = 1003

	// Inference and consistency
	InfInfo                      Code = 2000
	InfCannotInfer               Code = 2001
	InfOverspecificationConflict Code = 2002
	InfAmbiguousActualName       Code = 2003
	InfShapeMismatch             Code = 2004

	// Registry admission
	RegInfo                      Code = 3000
	RegStatefulGenericNotAllowed Code = 3001

	// Placement
	PlcInfo                    Code = 4000
	PlcNoDeclarationSite       Code = 4001
	PlcAccessBeforeElaboration Code = 4002

	// Elaboration
	ElbInfo               Code = 5000
	ElbElaborationFailure Code = 5001

	// Observability
	ObsInfo            Code = 6000
	ObsTimings         Code = 6001
	ObsDiagnosticLimit Code = 6002
)

var codeDescription = map[Code]string{
	UnknownCode:                  "Unknown error",
	KeyInfo:                      "Actual list information",
	KeyUnknownFormalName:         "Named actual does not match any formal",
	KeyDuplicateBinding:          "Formal bound more than once",
	KeyUnknownUnit:               "Unknown generic unit",
	InfInfo:                      "Inference information",
	InfCannotInfer:               "Cannot infer generic actual",
	InfOverspecificationConflict: "Conflicting bindings for generic formal",
	InfAmbiguousActualName:       "Ambiguous actual subprogram name",
	InfShapeMismatch:             "Actual does not have the shape required by the formal",
	RegInfo:                      "Registry information",
	RegStatefulGenericNotAllowed: "Structural instantiation of a stateful generic",
	PlcInfo:                      "Placement information",
	PlcNoDeclarationSite:         "No legal declaration site for instantiation",
	PlcAccessBeforeElaboration:   "Instantiation would elaborate before generic body",
	ElbInfo:                      "Elaboration information",
	ElbElaborationFailure:        "Elaboration of instance failed",
	ObsInfo:                      "Observability information",
	ObsTimings:                   "Phase timings",
	ObsDiagnosticLimit:           "Diagnostic limit reached",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("KEY%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("INF%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("REG%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("PLC%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("ELB%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
