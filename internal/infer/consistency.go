package infer

import (
	"slices"

	"instres/internal/generic"
	"instres/internal/types"
)

// candidate is one proposed binding for a formal.
type candidate struct {
	Type     types.TypeID
	Strength generic.Strength
	Source   int
	Role     generic.Role
	Position int
}

type candKey struct {
	target   int
	source   int
	role     generic.Role
	position int
}

// table collects every candidate seen for every formal. A given edge
// contributes at most once.
type table struct {
	cands [][]candidate
	seen  map[candKey]struct{}
}

func newTable(n int) *table {
	return &table{
		cands: make([][]candidate, n),
		seen:  make(map[candKey]struct{}, n),
	}
}

func (t *table) add(target int, c candidate) bool {
	k := candKey{target: target, source: c.Source, role: c.Role, position: c.Position}
	if _, ok := t.seen[k]; ok {
		return false
	}
	t.seen[k] = struct{}{}
	t.cands[target] = append(t.cands[target], c)
	return true
}

func (t *table) of(target int) []candidate {
	return t.cands[target]
}

// class folds Explicit into Strong: an explicit actual and a shape-derived
// candidate that disagree are a conflict, not an override.
func class(s generic.Strength) generic.Strength {
	if s == generic.Explicit {
		return generic.Strong
	}
	return s
}

// decide picks the binding of an unbound formal. Only candidates of the
// highest class present are considered; they must agree.
func decide(cands []candidate) (candidate, []types.TypeID, bool) {
	if len(cands) == 0 {
		return candidate{}, nil, false
	}
	top := generic.Strength(0)
	for _, c := range cands {
		top = max(top, class(c.Strength))
	}
	var (
		pick  candidate
		found bool
		seen  []types.TypeID
	)
	for _, c := range cands {
		if class(c.Strength) != top {
			continue
		}
		if !found || c.Source < pick.Source {
			pick, found = c, true
		}
		seen = append(seen, c.Type)
	}
	seen = distinct(seen)
	if len(seen) > 1 {
		return candidate{}, seen, false
	}
	return pick, nil, true
}

// check verifies candidates against an accepted binding. Candidates of a
// lower class are overridden; those of the same or a higher class must
// agree.
func check(b Binding, cands []candidate) []types.TypeID {
	var bad []types.TypeID
	for _, c := range cands {
		if class(c.Strength) < class(b.Strength) || c.Type == b.Type {
			continue
		}
		bad = append(bad, c.Type)
	}
	if len(bad) == 0 {
		return nil
	}
	return distinct(append(bad, b.Type))
}

func distinct(ids []types.TypeID) []types.TypeID {
	slices.Sort(ids)
	return slices.Compact(ids)
}
