package keys

import (
	"errors"
	"fmt"
	"slices"

	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/scope"
	"instres/internal/source"
	"instres/internal/types"
)

// Expr is an actual expression as produced by the front end. The builder
// never looks inside; it hands it back to the NameResolver.
type Expr any

// Actual is one authored actual parameter. Name is empty for positional
// association. A nil Expr is the box "<>": the formal is named but left for
// inference.
type Actual struct {
	Name string
	Expr Expr
	Span source.Span
}

// NameResolver resolves an actual expression at a site to a descriptor or
// an overload set. It is provided by the host front end.
type NameResolver interface {
	ResolveActual(expr Expr, formal generic.Formal, at scope.Site) (Resolution, error)
}

// ErrUnresolvedActual is returned when name resolution yields no candidate.
var ErrUnresolvedActual = errors.New("actual does not resolve")

// Builder aligns authored actual lists to formals and normalizes every
// supplied actual to its resolved descriptor. It performs no inference.
type Builder struct {
	types *types.Interner
	names NameResolver
}

// NewBuilder creates a builder.
func NewBuilder(in *types.Interner, names NameResolver) *Builder {
	return &Builder{types: in, names: names}
}

// Align produces a list aligned positionally to u's formals. Positional
// actuals come first; named ones may follow in any order.
func (b *Builder) Align(u *generic.Unit, actuals []Actual, at scope.Site) (List, error) {
	slots := make(List, len(u.Formals))
	mentioned := make([]bool, len(u.Formals))
	named := false
	next := 0
	for _, a := range actuals {
		idx, err := b.slotFor(u, a, &named, &next)
		if err != nil {
			return nil, err
		}
		if mentioned[idx] {
			return nil, &diag.Error{
				Code:   diag.KeyDuplicateBinding,
				Unit:   u.Name,
				Formal: u.Formals[idx].Name,
				Span:   a.Span,
			}
		}
		mentioned[idx] = true
		if a.Expr == nil {
			slots[idx].Span = a.Span
			continue
		}
		slot, err := b.resolve(u, idx, a, at)
		if err != nil {
			return nil, err
		}
		slots[idx] = slot
	}
	return slots, nil
}

func (b *Builder) slotFor(u *generic.Unit, a Actual, named *bool, next *int) (int, error) {
	if a.Name == "" {
		if *named {
			return 0, &diag.Error{
				Code:   diag.KeyUnknownFormalName,
				Unit:   u.Name,
				Span:   a.Span,
				Detail: "positional actual follows named association",
			}
		}
		if *next >= len(u.Formals) {
			return 0, &diag.Error{
				Code:   diag.KeyUnknownFormalName,
				Unit:   u.Name,
				Span:   a.Span,
				Detail: fmt.Sprintf("too many actuals, unit has %d formals", len(u.Formals)),
			}
		}
		idx := *next
		*next = idx + 1
		return idx, nil
	}
	*named = true
	idx, ok := u.FormalIndex(a.Name)
	if !ok {
		return 0, &diag.Error{
			Code:   diag.KeyUnknownFormalName,
			Unit:   u.Name,
			Formal: a.Name,
			Span:   a.Span,
		}
	}
	return idx, nil
}

func (b *Builder) resolve(u *generic.Unit, idx int, a Actual, at scope.Site) (Slot, error) {
	formal := u.Formals[idx]
	res, err := b.names.ResolveActual(a.Expr, formal, at)
	if err != nil {
		return Slot{}, fmt.Errorf("%s: actual for %s: %w", u.Name, formal.Name, err)
	}
	cands := b.canonicalSet(res.Candidates)
	switch {
	case len(cands) == 0:
		return Slot{}, fmt.Errorf("%s: actual for %s: %w", u.Name, formal.Name, ErrUnresolvedActual)
	case len(cands) == 1:
		return Slot{State: Bound, Type: cands[0], Span: a.Span}, nil
	case formal.Kind != generic.FormalSubprogram:
		return Slot{}, &diag.Error{
			Code:       diag.InfAmbiguousActualName,
			Unit:       u.Name,
			Formal:     formal.Name,
			Candidates: b.types.Labels(cands),
			Span:       a.Span,
		}
	default:
		return Slot{State: Ambiguous, Candidates: cands, Span: a.Span}, nil
	}
}

// canonicalSet strips spellings and removes duplicates, so that a
// subprogram reachable through a renaming does not look overloaded.
func (b *Builder) canonicalSet(ids []types.TypeID) []types.TypeID {
	out := make([]types.TypeID, 0, len(ids))
	for _, id := range ids {
		if id == types.NoTypeID {
			continue
		}
		out = append(out, b.types.Canonical(id))
	}
	slices.Sort(out)
	return slices.Compact(out)
}
