package diag

import (
	"fmt"
	"strings"

	"instres/internal/source"
)

// Error is a local resolution failure reported at a reference site.
type Error struct {
	Code       Code
	Unit       string   // generic unit name
	Formal     string   // formal the failure concerns, if any
	Candidates []string // disagreeing or ambiguous candidates, sorted
	Span       source.Span
	Detail     string
	Cause      error
}

// Sentinels for errors.Is comparisons; only the Code is compared.
var (
	ErrUnknownFormalName         = &Error{Code: KeyUnknownFormalName}
	ErrDuplicateBinding          = &Error{Code: KeyDuplicateBinding}
	ErrUnknownUnit               = &Error{Code: KeyUnknownUnit}
	ErrCannotInfer               = &Error{Code: InfCannotInfer}
	ErrOverspecificationConflict = &Error{Code: InfOverspecificationConflict}
	ErrAmbiguousActualName       = &Error{Code: InfAmbiguousActualName}
	ErrShapeMismatch             = &Error{Code: InfShapeMismatch}
	ErrStatefulGenericNotAllowed = &Error{Code: RegStatefulGenericNotAllowed}
	ErrNoDeclarationSite         = &Error{Code: PlcNoDeclarationSite}
	ErrAccessBeforeElaboration   = &Error{Code: PlcAccessBeforeElaboration}
	ErrElaborationFailure        = &Error{Code: ElbElaborationFailure}
)

// Errorf builds an *Error with a formatted detail message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.ID())
	b.WriteString(": ")
	b.WriteString(e.Code.Title())
	if e.Unit != "" {
		b.WriteString(" in ")
		b.WriteString(e.Unit)
	}
	if e.Formal != "" {
		b.WriteString(" (formal ")
		b.WriteString(e.Formal)
		b.WriteString(")")
	}
	if len(e.Candidates) > 0 {
		b.WriteString(" {")
		b.WriteString(strings.Join(e.Candidates, ", "))
		b.WriteString("}")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// At returns a copy of e located at span, leaving e untouched. Cached
// failures are re-surfaced at each new reference site this way.
func (e *Error) At(span source.Span) *Error {
	cp := *e
	cp.Candidates = append([]string(nil), e.Candidates...)
	cp.Span = span
	return &cp
}

// Diagnostic converts the error into a reportable diagnostic.
func (e *Error) Diagnostic() Diagnostic {
	msg := e.Code.Title()
	if e.Formal != "" {
		msg += ": " + e.Formal
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	d := NewError(e.Code, e.Span, msg)
	for _, c := range e.Candidates {
		d = d.WithNote(e.Span, "candidate: "+c)
	}
	if e.Cause != nil {
		d = d.WithNote(e.Span, "caused by: "+e.Cause.Error())
	}
	return d
}

// Report emits e through r.
func (e *Error) Report(r Reporter) {
	if r == nil {
		return
	}
	d := e.Diagnostic()
	r.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes)
}
