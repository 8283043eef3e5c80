package infer

import (
	"errors"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/types"
)

func TestInferIsPure(t *testing.T) {
	f := newFixture()
	u := minBy(t, f)
	eng := NewEngine(f.in)
	choices := []types.TypeID{types.NoTypeID, f.person, f.b.Natural, f.personArray, f.intArray, f.ageOf}
	rapid.Check(t, func(rt *rapid.T) {
		list := make(keys.List, len(u.Formals))
		for i := range list {
			if c := rapid.SampledFrom(choices).Draw(rt, "actual"); c != types.NoTypeID {
				list[i] = keys.Slot{State: keys.Bound, Type: c}
			}
		}
		before := list.Clone()
		r1, err1 := eng.Infer(u, list)
		r2, err2 := eng.Infer(u, list)
		if !slices.EqualFunc(list, before, func(a, b keys.Slot) bool { return a.State == b.State && a.Type == b.Type }) {
			rt.Fatalf("input list was modified")
		}
		if (err1 == nil) != (err2 == nil) {
			rt.Fatalf("outcome differs between runs: %v vs %v", err1, err2)
		}
		if err1 != nil {
			if err1.Error() != err2.Error() {
				rt.Fatalf("error differs between runs: %v vs %v", err1, err2)
			}
			return
		}
		for i := range r1.List {
			if r1.List[i].Type != r2.List[i].Type || r1.Bindings[i] != r2.Bindings[i] {
				rt.Fatalf("binding %d differs between runs", i)
			}
		}
	})
}

func TestConflictIsOrderIndependent(t *testing.T) {
	f := newFixture()
	forward := f.declare(t, "Forward",
		generic.Formal{Name: "D"},
		generic.Formal{Name: "R1", Shape: generic.AccessTo(generic.RefFormal(0))},
		generic.Formal{Name: "R2", Shape: generic.AccessTo(generic.RefFormal(0))},
	)
	backward := f.declare(t, "Backward",
		generic.Formal{Name: "R2", Shape: generic.AccessTo(generic.RefFormal(2))},
		generic.Formal{Name: "R1", Shape: generic.AccessTo(generic.RefFormal(2))},
		generic.Formal{Name: "D"},
	)
	designated := []types.TypeID{f.b.Integer, f.b.Natural, f.b.Positive, f.person}
	eng := NewEngine(f.in)
	rapid.Check(t, func(rt *rapid.T) {
		d1 := rapid.SampledFrom(designated).Draw(rt, "d1")
		d2 := rapid.SampledFrom(designated).Draw(rt, "d2")
		a1 := f.in.AnonymousAccess(d1, false)
		a2 := f.in.AnonymousAccess(d2, false)

		_, errF := eng.Infer(forward, bound(0, a1, a2))
		_, errB := eng.Infer(backward, bound(a2, a1, 0))
		if d1 == d2 {
			if errF != nil || errB != nil {
				rt.Fatalf("agreeing candidates must not conflict: %v / %v", errF, errB)
			}
			return
		}
		var ef, eb *diag.Error
		if !errors.As(errF, &ef) || !errors.As(errB, &eb) || !errors.Is(errF, diag.ErrOverspecificationConflict) || !errors.Is(errB, diag.ErrOverspecificationConflict) {
			rt.Fatalf("expected conflicts, got %v / %v", errF, errB)
		}
		if !slices.Equal(ef.Candidates, eb.Candidates) {
			rt.Fatalf("candidate sets differ: %v vs %v", ef.Candidates, eb.Candidates)
		}
	})
}
