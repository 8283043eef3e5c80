package keys

import (
	"slices"
	"strconv"
	"strings"

	"instres/internal/generic"
	"instres/internal/types"
)

// CanonicalKey identifies an instantiation: the unit plus its fully resolved
// actuals. Two keys are equal iff both components are equal.
type CanonicalKey struct {
	Unit generic.UnitID
	Args []types.TypeID
}

// FromList builds a key out of a complete list. ok is false if a slot is
// not Bound.
func FromList(unit generic.UnitID, l List) (CanonicalKey, bool) {
	args := make([]types.TypeID, len(l))
	for i, s := range l {
		if s.State != Bound {
			return CanonicalKey{}, false
		}
		args[i] = s.Type
	}
	return CanonicalKey{Unit: unit, Args: args}, true
}

// Equal compares two keys structurally.
func (k CanonicalKey) Equal(o CanonicalKey) bool {
	return k.Unit == o.Unit && slices.Equal(k.Args, o.Args)
}

// String returns a stable form usable as a map key.
//
// Go maps cannot use slices as keys, so the registry interns this string.
func (k CanonicalKey) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(k.Unit), 10))
	b.WriteByte(':')
	for i, arg := range k.Args {
		if i > 0 {
			b.WriteByte('#')
		}
		b.WriteString(strconv.FormatUint(uint64(arg), 10))
	}
	return b.String()
}

// Label renders the key with unit and descriptor names.
func (k CanonicalKey) Label(unit *generic.Unit, in *types.Interner) string {
	var b strings.Builder
	if unit != nil {
		b.WriteString(unit.Name)
	} else {
		b.WriteString("unit#")
		b.WriteString(strconv.FormatUint(uint64(k.Unit), 10))
	}
	b.WriteByte('(')
	for i, arg := range k.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		if unit != nil && i < len(unit.Formals) {
			b.WriteString(unit.Formals[i].Name)
			b.WriteString(" => ")
		}
		b.WriteString(in.Label(arg))
	}
	b.WriteByte(')')
	return b.String()
}
