package diag

import (
	"errors"
	"fmt"
	"testing"

	"instres/internal/source"
)

func TestErrorIsComparesCodes(t *testing.T) {
	err := &Error{Code: InfCannotInfer, Formal: "Index"}
	if !errors.Is(err, ErrCannotInfer) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if errors.Is(err, ErrOverspecificationConflict) {
		t.Fatalf("different codes must not match")
	}
	wrapped := fmt.Errorf("request failed: %w", err)
	if !errors.Is(wrapped, ErrCannotInfer) {
		t.Fatalf("expected wrapped error to match")
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("body raised Program_Error")
	err := &Error{Code: ElbElaborationFailure, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
}

func TestErrorAtCopies(t *testing.T) {
	orig := &Error{Code: ElbElaborationFailure, Candidates: []string{"a"}}
	moved := orig.At(source.Span{File: 2, Start: 1, End: 4})
	if orig.Span != (source.Span{}) {
		t.Fatalf("At must not modify the receiver")
	}
	moved.Candidates[0] = "b"
	if orig.Candidates[0] != "a" {
		t.Fatalf("At must copy candidates")
	}
}

func TestErrorReportAddsCandidateNotes(t *testing.T) {
	bag := NewBag(10)
	err := &Error{
		Code:       InfOverspecificationConflict,
		Formal:     "Designated",
		Candidates: []string{"Integer", "Natural"},
		Span:       source.Span{File: 1, Start: 5, End: 9},
	}
	err.Report(NewBagReporter(bag))
	if bag.Len() != 1 {
		t.Fatalf("expected one diagnostic, got %d", bag.Len())
	}
	d := bag.Items()[0]
	if d.Code != InfOverspecificationConflict || len(d.Notes) != 2 {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
	if d.Code.ID() != "INF2002" {
		t.Fatalf("unexpected code id %s", d.Code.ID())
	}
}

func TestDedupReporterSuppressesRepeats(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(NewBagReporter(bag))
	sp := source.Span{File: 1, Start: 1, End: 2}
	ReportError(r, ElbElaborationFailure, sp, "boom").Emit()
	ReportError(r, ElbElaborationFailure, sp, "boom").Emit()
	if bag.Len() != 1 {
		t.Fatalf("expected duplicates to be dropped, got %d", bag.Len())
	}
}

func TestBagSortIsDeterministic(t *testing.T) {
	bag := NewBag(10)
	bag.Add(NewError(PlcNoDeclarationSite, source.Span{File: 2, Start: 1}, "b"))
	bag.Add(NewError(InfCannotInfer, source.Span{File: 1, Start: 9}, "a"))
	bag.Add(NewError(KeyDuplicateBinding, source.Span{File: 1, Start: 3}, "c"))
	bag.Sort()
	got := []Code{bag.Items()[0].Code, bag.Items()[1].Code, bag.Items()[2].Code}
	want := []Code{KeyDuplicateBinding, InfCannotInfer, PlcNoDeclarationSite}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sort order = %v, want %v", got, want)
		}
	}
}
