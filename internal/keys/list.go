package keys

import (
	"slices"

	"instres/internal/source"
	"instres/internal/types"
)

// SlotState tells whether a formal has an actual yet.
type SlotState uint8

const (
	Hole SlotState = iota
	Bound
	// Ambiguous slots hold an overload set that name resolution could not
	// narrow to one subprogram. Such a set contributes no inferred binding.
	Ambiguous
)

func (s SlotState) String() string {
	switch s {
	case Hole:
		return "hole"
	case Bound:
		return "bound"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Slot is one position of an actual parameter list, aligned to a formal.
type Slot struct {
	State      SlotState
	Type       types.TypeID   // Bound
	Candidates []types.TypeID // Ambiguous, sorted and distinct
	Span       source.Span    // where the actual was written, if it was
}

// List is an actual parameter list aligned positionally to the formals.
type List []Slot

// Clone returns a deep copy.
func (l List) Clone() List {
	out := make(List, len(l))
	for i, s := range l {
		s.Candidates = slices.Clone(s.Candidates)
		out[i] = s
	}
	return out
}

// Complete reports whether every slot is Bound.
func (l List) Complete() bool {
	for _, s := range l {
		if s.State != Bound {
			return false
		}
	}
	return true
}

// Holes lists the indices of unbound slots.
func (l List) Holes() []int {
	var out []int
	for i, s := range l {
		if s.State != Bound {
			out = append(out, i)
		}
	}
	return out
}

// Resolution is the answer of name resolution for one actual expression:
// a single resolved descriptor, or an ambiguous candidate set.
type Resolution struct {
	Candidates []types.TypeID
}

// Resolved wraps a single descriptor.
func Resolved(t types.TypeID) Resolution {
	return Resolution{Candidates: []types.TypeID{t}}
}

// AmbiguousSet wraps an overload set.
func AmbiguousSet(ts ...types.TypeID) Resolution {
	return Resolution{Candidates: ts}
}

// Ambiguous reports whether more than one candidate remains.
func (r Resolution) Ambiguous() bool { return len(r.Candidates) > 1 }

// Type returns the single candidate, or NoTypeID.
func (r Resolution) Type() types.TypeID {
	if len(r.Candidates) != 1 {
		return types.NoTypeID
	}
	return r.Candidates[0]
}
