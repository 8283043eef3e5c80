package infer

import (
	"fmt"
	"slices"

	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/types"
)

// Binding records how a formal got its actual.
type Binding struct {
	Type     types.TypeID
	Strength generic.Strength
	Source   int // formal the binding was read from, -1 when written
}

// Bound reports whether the binding is set.
func (b Binding) Bound() bool { return b.Strength != 0 }

// Result is a complete list plus the provenance of each binding.
type Result struct {
	List     keys.List
	Bindings []Binding
	Rounds   int
}

// Inferred lists the formals whose actual was deduced rather than written.
func (r Result) Inferred() []int {
	var out []int
	for i, b := range r.Bindings {
		if b.Source >= 0 {
			out = append(out, i)
		}
	}
	return out
}

// Engine runs inference against one type interner. It keeps no state
// between calls and is safe for concurrent use.
type Engine struct {
	types *types.Interner
}

// NewEngine creates an engine.
func NewEngine(in *types.Interner) *Engine {
	return &Engine{types: in}
}

// Infer fills the holes of list. The input is not modified. The outcome
// depends only on the unit and the list.
func (e *Engine) Infer(u *generic.Unit, list keys.List) (Result, error) {
	if len(list) != len(u.Formals) {
		return Result{}, fmt.Errorf("%s: list has %d slots, unit has %d formals", u.Name, len(list), len(u.Formals))
	}
	r := &run{
		e:     e,
		u:     u,
		slots: list.Clone(),
		bound: make([]Binding, len(list)),
		table: newTable(len(list)),
	}
	return r.solve()
}

type run struct {
	e      *Engine
	u      *generic.Unit
	slots  keys.List
	bound  []Binding
	table  *table
	rounds int
}

func (r *run) solve() (Result, error) {
	if err := r.seed(); err != nil {
		return Result{}, err
	}
	// Strong closure first: weak candidates never flow before every shape
	// relation from written actuals has been read.
	if err := r.closure(r.boundFormals(), true); err != nil {
		return Result{}, err
	}
	// An overload set still ambiguous here stays unbound and is reported by
	// verify.
	if err := r.closure(r.boundFormals(), false); err != nil {
		return Result{}, err
	}
	if err := r.verify(); err != nil {
		return Result{}, err
	}
	return r.result(), nil
}

// seed binds the written actuals and narrows overload sets by mode
// conformance.
func (r *run) seed() error {
	for i, s := range r.slots {
		switch s.State {
		case keys.Bound:
			if err := r.bind(i, Binding{Type: r.e.types.Canonical(s.Type), Strength: generic.Explicit, Source: -1}); err != nil {
				return err
			}
		case keys.Ambiguous:
			viable := r.filter(i, s.Candidates, r.conformant)
			if len(viable) == 1 {
				if err := r.bind(i, Binding{Type: viable[0], Strength: generic.Explicit, Source: -1}); err != nil {
					return err
				}
				continue
			}
			if len(viable) > 1 {
				r.slots[i].Candidates = viable
			}
		}
	}
	return nil
}

func (r *run) closure(frontier []int, strongOnly bool) error {
	g := r.u.Graph()
	for len(frontier) > 0 {
		r.rounds++
		var touched []int
		for _, src := range frontier {
			for _, edge := range g.From(src) {
				str := min(edge.Strength, class(r.bound[src].Strength))
				if strongOnly && str != generic.Strong {
					continue
				}
				t, err := r.derive(src, edge)
				if err != nil {
					return err
				}
				c := candidate{Type: t, Strength: str, Source: src, Role: edge.Role, Position: edge.Position}
				if r.table.add(edge.Target, c) {
					touched = append(touched, edge.Target)
				}
			}
		}
		slices.Sort(touched)
		touched = slices.Compact(touched)

		var next []int
		for _, target := range touched {
			if r.bound[target].Bound() {
				if bad := check(r.bound[target], r.table.of(target)); bad != nil {
					return r.conflict(target, bad)
				}
				continue
			}
			c, bad, ok := decide(r.table.of(target))
			if bad != nil {
				return r.conflict(target, bad)
			}
			if !ok {
				continue
			}
			if err := r.bind(target, Binding{Type: c.Type, Strength: c.Strength, Source: c.Source}); err != nil {
				return err
			}
			next = append(next, target)
		}
		frontier = next
	}
	return nil
}

// verify is the final consistency pass over every collected candidate.
func (r *run) verify() error {
	for i := range r.bound {
		if !r.bound[i].Bound() {
			continue
		}
		if bad := check(r.bound[i], r.table.of(i)); bad != nil {
			return r.conflict(i, bad)
		}
	}
	for i, s := range r.slots {
		if s.State == keys.Ambiguous && !r.bound[i].Bound() {
			return &diag.Error{
				Code:       diag.InfAmbiguousActualName,
				Unit:       r.u.Name,
				Formal:     r.u.Formals[i].Name,
				Candidates: r.labels(s.Candidates),
				Span:       s.Span,
			}
		}
	}
	for i := range r.bound {
		if !r.bound[i].Bound() {
			return &diag.Error{
				Code:   diag.InfCannotInfer,
				Unit:   r.u.Name,
				Formal: r.u.Formals[i].Name,
				Span:   r.slots[i].Span,
			}
		}
	}
	return nil
}

func (r *run) result() Result {
	out := make(keys.List, len(r.slots))
	for i, b := range r.bound {
		out[i] = keys.Slot{State: keys.Bound, Type: b.Type, Span: r.slots[i].Span}
	}
	return Result{List: out, Bindings: slices.Clone(r.bound), Rounds: r.rounds}
}

func (r *run) bind(i int, b Binding) error {
	r.bound[i] = b
	return r.validate(i)
}

func (r *run) boundFormals() []int {
	var out []int
	for i, b := range r.bound {
		if b.Bound() {
			out = append(out, i)
		}
	}
	return out
}

func (r *run) filter(i int, cands []types.TypeID, keep func(int, types.TypeID) bool) []types.TypeID {
	var out []types.TypeID
	for _, c := range cands {
		if keep(i, c) {
			out = append(out, c)
		}
	}
	return out
}

func (r *run) conflict(i int, ids []types.TypeID) error {
	return &diag.Error{
		Code:       diag.InfOverspecificationConflict,
		Unit:       r.u.Name,
		Formal:     r.u.Formals[i].Name,
		Candidates: r.labels(ids),
		Span:       r.slots[i].Span,
	}
}

// labels renders candidates in a stable order independent of discovery.
func (r *run) labels(ids []types.TypeID) []string {
	out := r.e.types.Labels(ids)
	slices.Sort(out)
	return out
}
