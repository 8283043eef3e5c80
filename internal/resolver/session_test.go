package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"

	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/placement"
	"instres/internal/registry"
	"instres/internal/scope"
	"instres/internal/source"
	"instres/internal/trace"
	"instres/internal/types"
)

type names map[string]keys.Resolution

func (n names) ResolveActual(expr keys.Expr, _ generic.Formal, _ scope.Site) (keys.Resolution, error) {
	name, _ := expr.(string)
	res, ok := n[name]
	if !ok {
		return keys.Resolution{}, errors.New("undefined: " + name)
	}
	return res, nil
}

type countingElaborator struct {
	calls  atomic.Int32
	fail   error
	panics bool
}

func (e *countingElaborator) Elaborate(_ context.Context, u *generic.Unit, key keys.CanonicalKey) (registry.Entity, error) {
	e.calls.Add(1)
	if e.panics {
		panic("elaborator bug")
	}
	if e.fail != nil {
		return registry.Entity{}, e.fail
	}
	return registry.Entity{Name: fmt.Sprintf("%s#%d", u.Name, len(key.Args))}, nil
}

type fixture struct {
	s      *Session
	in     *types.Interner
	names  names
	elab   *countingElaborator
	lib    scope.ID
	proc   scope.ID
	arrOps generic.UnitID
	stack  generic.UnitID
}

// tb is the part of testing.T and rapid.T the fixture needs.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

func newFixture(t tb, opts Options) *fixture {
	t.Helper()
	tree := scope.NewTree()
	lib, err := tree.New(scope.KindLibrary, "Lib", scope.RootID, 1)
	if err != nil {
		t.Fatalf("lib: %v", err)
	}
	proc, err := tree.New(scope.KindSubprogramBody, "Proc", lib, 5)
	if err != nil {
		t.Fatalf("proc: %v", err)
	}
	in := types.NewInterner()
	b := in.Builtins()
	arr := in.RegisterArray("Int_Array", []types.TypeID{b.Positive}, b.Integer, scope.Site{Scope: lib, Pos: 2})
	f := &fixture{
		in:   in,
		elab: &countingElaborator{},
		lib:  lib,
		proc: proc,
		names: names{
			"Integer":   keys.Resolved(b.Integer),
			"Positive":  keys.Resolved(b.Positive),
			"Int_Array": keys.Resolved(arr),
		},
	}
	f.s, err = New(Config{Types: in, Scopes: tree, Names: f.names, Elaborator: f.elab, Options: opts})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	f.arrOps, err = f.s.DeclareGenericUnit(generic.Decl{
		Name: "Array_Operations",
		Formals: []generic.Formal{
			{Name: "Element"},
			{Name: "Index"},
			{Name: "Array_Type", Shape: generic.ArrayOf(generic.RefFormal(0), generic.RefFormal(1))},
		},
		Body: scope.Site{Scope: lib, Pos: 3},
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	f.stack, err = f.s.DeclareGenericUnit(generic.Decl{
		Name:     "Counter",
		Formals:  []generic.Formal{{Name: "T"}},
		Stateful: true,
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	return f
}

func (f *fixture) arrayRequest(pos uint32) Request {
	return Request{
		Unit:    f.arrOps,
		Actuals: []keys.Actual{{Name: "Array_Type", Expr: "Int_Array"}},
		Site:    scope.Site{Scope: f.proc, Pos: pos},
		Span:    source.Span{File: 1, Start: pos, End: pos + 1},
	}
}

func TestRequestInfersAndShares(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	h1, err := f.s.RequestInstantiation(ctx, f.arrayRequest(3))
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if h1.Action != placement.Created {
		t.Fatalf("expected created, got %s", h1.Action)
	}
	b := f.in.Builtins()
	if h1.Key.Args[0] != b.Integer || h1.Key.Args[1] != b.Positive {
		t.Fatalf("unexpected key %s", h1.Key)
	}
	if len(h1.Inferred) != 2 {
		t.Fatalf("expected Element and Index inferred, got %v", h1.Inferred)
	}
	if h1.Decl.Scope != f.lib {
		t.Fatalf("expected hoist into Lib, got %s", h1.Decl)
	}

	h2, err := f.s.RequestInstantiation(ctx, f.arrayRequest(9))
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if h2.ID != h1.ID || h2.Action != placement.Shared {
		t.Fatalf("expected the second reference to share %d, got %d (%s)", h1.ID, h2.ID, h2.Action)
	}
	sc, level, ok := f.s.DeclarationScope(h1.ID)
	if !ok || sc != f.lib || level != h1.Level {
		t.Fatalf("unexpected declaration scope %d level %d", sc, level)
	}
}

func TestStatefulGenericRejected(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	bag := diag.NewBag(10)
	_, err := f.s.RequestInstantiation(context.Background(), Request{
		Unit:     f.stack,
		Actuals:  []keys.Actual{{Expr: "Integer"}},
		Site:     scope.Site{Scope: f.proc, Pos: 1},
		Span:     source.Span{File: 1, Start: 4, End: 9},
		Reporter: diag.NewBagReporter(bag),
	})
	if !errors.Is(err, diag.ErrStatefulGenericNotAllowed) {
		t.Fatalf("expected stateful rejection, got %v", err)
	}
	if f.s.Registry().Len() != 0 {
		t.Fatalf("rejected request must not create a record")
	}
	if bag.Len() != 1 || len(f.s.Diagnostics()) != 1 {
		t.Fatalf("expected the failure in both bags, got %d and %d", bag.Len(), len(f.s.Diagnostics()))
	}
	var de *diag.Error
	if !errors.As(err, &de) || de.Span.Start != 4 {
		t.Fatalf("error should be located at the reference, got %+v", de)
	}
}

func TestUnknownUnit(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.s.RequestInstantiation(context.Background(), Request{Unit: 99})
	if !errors.Is(err, diag.ErrUnknownUnit) {
		t.Fatalf("expected unknown unit, got %v", err)
	}
}

func TestFailedRequestLeavesRegistryUntouched(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.s.RequestInstantiation(context.Background(), Request{
		Unit:    f.arrOps,
		Actuals: []keys.Actual{{Expr: "Integer"}},
		Site:    scope.Site{Scope: f.proc, Pos: 1},
	})
	if !errors.Is(err, diag.ErrCannotInfer) {
		t.Fatalf("expected cannot infer, got %v", err)
	}
	if f.s.Registry().Len() != 0 {
		t.Fatalf("failed request created a record")
	}
}

func TestAwaitElaboratesOnce(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	h, err := f.s.RequestInstantiation(ctx, f.arrayRequest(3))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for range 16 {
		g.Go(func() error {
			e, err := f.s.Await(gctx, h.ID)
			if err != nil {
				return err
			}
			if e.Name != "Array_Operations#3" {
				return fmt.Errorf("unexpected entity %q", e.Name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("await: %v", err)
	}
	if got := f.elab.calls.Load(); got != 1 {
		t.Fatalf("expected one elaboration, got %d", got)
	}
}

func TestElaborationFailureIsCached(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	boom := errors.New("backend crashed")
	f.elab.fail = boom
	ctx := context.Background()

	h, err := f.s.RequestInstantiation(ctx, f.arrayRequest(3))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_, err = f.s.Await(ctx, h.ID)
	if !errors.Is(err, diag.ErrElaborationFailure) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped elaboration failure, got %v", err)
	}
	if _, err2 := f.s.Await(ctx, h.ID); !errors.Is(err2, boom) {
		t.Fatalf("second await should see the cached failure, got %v", err2)
	}

	_, err = f.s.RequestInstantiation(ctx, f.arrayRequest(9))
	var de *diag.Error
	if !errors.As(err, &de) || de.Code != diag.ElbElaborationFailure {
		t.Fatalf("later reference should re-surface the failure, got %v", err)
	}
	if de.Span.Start != 9 {
		t.Fatalf("re-surfaced failure should be located at the new reference, got %+v", de.Span)
	}
	if got := f.elab.calls.Load(); got != 1 {
		t.Fatalf("elaboration retried: %d calls", got)
	}
}

// A reference whose region is disjoint from the failed record's must not
// get a fresh sibling record.
func TestFailedKeyIsNeverSplit(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	boom := errors.New("backend crashed")
	f.elab.fail = boom
	ctx := context.Background()
	tree := f.s.Scopes()
	inner := func(anchor uint32) scope.ID {
		ex, err := tree.New(scope.KindExpression, fmt.Sprintf("E%d", anchor), f.proc, anchor)
		if err != nil {
			t.Fatalf("expression scope: %v", err)
		}
		blk, err := tree.New(scope.KindBlock, fmt.Sprintf("B%d", anchor), ex, 1)
		if err != nil {
			t.Fatalf("block scope: %v", err)
		}
		return blk
	}
	b1, b2 := inner(4), inner(8)
	request := func(blk scope.ID, pos uint32) Request {
		req := f.arrayRequest(pos)
		req.Site = scope.Site{Scope: blk, Pos: 1}
		return req
	}

	h, err := f.s.RequestInstantiation(ctx, request(b1, 4))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.s.Await(ctx, h.ID); !errors.Is(err, boom) {
		t.Fatalf("expected elaboration failure, got %v", err)
	}
	before := f.s.Registry().Snapshot()

	_, err = f.s.RequestInstantiation(ctx, request(b2, 8))
	var de *diag.Error
	if !errors.As(err, &de) || de.Code != diag.ElbElaborationFailure || de.Span.Start != 8 {
		t.Fatalf("disjoint reference should re-surface the failure, got %v", err)
	}
	after := f.s.Registry().Snapshot()
	if len(after) != 1 {
		t.Fatalf("failed key was split into %d records", len(after))
	}
	if len(after[0].Sites) != len(before[0].Sites) || after[0].Decl != before[0].Decl {
		t.Fatalf("failed request changed the record: %+v -> %+v", before[0], after[0])
	}
	if got := f.elab.calls.Load(); got != 1 {
		t.Fatalf("elaboration retried: %d calls", got)
	}
}

func TestElaboratorPanicIsCached(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.elab.panics = true
	ctx := context.Background()
	h, err := f.s.RequestInstantiation(ctx, f.arrayRequest(3))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for range 2 {
		_, err := f.s.Await(ctx, h.ID)
		if !errors.Is(err, diag.ErrElaborationFailure) || !errors.Is(err, registry.ErrPanicked) {
			t.Fatalf("expected the panic as an elaboration failure, got %v", err)
		}
	}
	if got := f.elab.calls.Load(); got != 1 {
		t.Fatalf("elaboration retried after panic: %d calls", got)
	}
}

func TestPackageActualMustInstantiateFormalGeneric(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	h, err := f.s.RequestInstantiation(ctx, f.arrayRequest(3))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	user, err := f.s.DeclareGenericUnit(generic.Decl{
		Name:    "Reporter",
		Formals: []generic.Formal{{Name: "Ops", Kind: generic.FormalPackage, Package: f.arrOps}},
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	f.names["Ops_Inst"] = keys.Resolved(f.s.PackageActual(h.ID))
	f.names["Bogus"] = keys.Resolved(f.s.PackageActual(registry.ID(42)))

	if _, err := f.s.RequestInstantiation(ctx, Request{
		Unit:    user,
		Actuals: []keys.Actual{{Expr: "Ops_Inst"}},
		Site:    scope.Site{Scope: f.proc, Pos: 4},
	}); err != nil {
		t.Fatalf("package actual rejected: %v", err)
	}
	_, err = f.s.RequestInstantiation(ctx, Request{
		Unit:    user,
		Actuals: []keys.Actual{{Expr: "Bogus"}},
		Site:    scope.Site{Scope: f.proc, Pos: 4},
	})
	if !errors.Is(err, diag.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestDeclareRejectsUnknownFormalPackage(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.s.DeclareGenericUnit(generic.Decl{
		Name:    "Broken",
		Formals: []generic.Formal{{Name: "P", Kind: generic.FormalPackage, Package: 77}},
	})
	if !errors.Is(err, generic.ErrInvalidUnit) {
		t.Fatalf("expected invalid unit, got %v", err)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Sharing = placement.Policy(9)
	if _, err := New(Config{Types: types.NewInterner(), Scopes: scope.NewTree(), Names: names{}, Options: opts}); err == nil {
		t.Fatalf("expected invalid policy to be rejected")
	}
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing collaborators to be rejected")
	}
}

func TestStatefulNeverRegistered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t, DefaultOptions())
		ops := rapid.SliceOfN(rapid.Bool(), 1, 20).Draw(t, "stateful")
		want := 0
		for i, stateful := range ops {
			req := f.arrayRequest(uint32(i + 1))
			if stateful {
				req = Request{Unit: f.stack, Actuals: []keys.Actual{{Expr: "Integer"}}, Site: req.Site}
			} else {
				want = 1
			}
			_, err := f.s.RequestInstantiation(context.Background(), req)
			if stateful != errors.Is(err, diag.ErrStatefulGenericNotAllowed) {
				t.Fatalf("request %d: stateful=%v err=%v", i, stateful, err)
			}
		}
		for _, info := range f.s.Registry().Snapshot() {
			if info.Key.Unit == f.stack {
				t.Fatalf("stateful generic registered: %+v", info)
			}
		}
		if got := f.s.Registry().Len(); got != want {
			t.Fatalf("expected %d records, got %d", want, got)
		}
	})
}

func TestRequestEmitsPhaseSpans(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ring := trace.NewRingTracer(64, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	if _, err := f.s.RequestInstantiation(ctx, f.arrayRequest(3)); err != nil {
		t.Fatalf("request: %v", err)
	}
	seen := map[string]bool{}
	var inferred int
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanEnd {
			seen[ev.Name] = true
		}
		if ev.Kind == trace.KindPoint && ev.Name == "inferred" {
			inferred++
		}
	}
	for _, name := range []string{"request", "key", "infer", "place"} {
		if !seen[name] {
			t.Fatalf("missing span %q in %v", name, seen)
		}
	}
	if inferred != 2 {
		t.Fatalf("expected two inference points, got %d", inferred)
	}
}
