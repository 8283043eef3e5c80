package types

import (
	"sync"
	"testing"

	"instres/internal/scope"
)

var lib = scope.Site{Scope: scope.RootID, Pos: 1}

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Integer == NoTypeID || b.Natural == NoTypeID || b.String == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	nat, _ := in.Lookup(b.Natural)
	if nat.Kind != KindSubtype || nat.Elem != b.Integer {
		t.Fatalf("expected Natural to be a subtype of Integer, got %+v", nat)
	}
	if b.Natural == b.Integer || b.Natural == b.Positive {
		t.Fatalf("subtypes must be distinct descriptors")
	}
	info, ok := in.ArrayInfo(b.String)
	if !ok || info.Element != b.Character || len(info.Indices) != 1 || info.Indices[0] != b.Positive {
		t.Fatalf("unexpected String shape: %+v", info)
	}
}

func TestAliasResolvesToTarget(t *testing.T) {
	in := NewInterner()
	alias := in.RegisterAlias("Int", in.Builtins().Integer, lib)
	chained := in.RegisterAlias("Int2", alias, lib)
	if got := in.Canonical(chained); got != in.Builtins().Integer {
		t.Fatalf("expected alias chain to resolve to Integer, got %s", in.Label(got))
	}
	if in.Label(alias) != "Int" {
		t.Fatalf("alias keeps its own spelling for labels")
	}
}

func TestAnonymousDescriptorsAreDeduplicated(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	intAlias := in.RegisterAlias("Int", b.Integer, lib)
	arr1 := in.AnonymousArray([]TypeID{b.Positive}, b.Integer)
	arr2 := in.AnonymousArray([]TypeID{b.Positive}, intAlias)
	if arr1 != arr2 {
		t.Fatalf("anonymous array types should be deduplicated through aliases")
	}
	acc1 := in.AnonymousAccess(b.Integer, false)
	acc2 := in.AnonymousAccess(b.Integer, true)
	if acc1 == acc2 {
		t.Fatalf("access and access-constant must differ")
	}
}

func TestNamedArraysAreNominal(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	a := in.RegisterArray("A", []TypeID{b.Positive}, b.Integer, lib)
	c := in.RegisterArray("C", []TypeID{b.Positive}, b.Integer, lib)
	if a == c {
		t.Fatalf("named array types must be distinct")
	}
	sub := in.RegisterSubtype("A10", a, lib)
	info, ok := in.ArrayInfo(sub)
	if !ok || info.Element != b.Integer {
		t.Fatalf("array info should look through constrained subtypes")
	}
}

func TestProfilesAndSubprograms(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	person := in.RegisterScalar("Person", lib)
	p1 := in.RegisterProfile([]Param{{Mode: ModeIn, Type: person}}, b.Natural)
	p2 := in.RegisterProfile([]Param{{Mode: ModeIn, Type: person}}, b.Natural)
	if p1 != p2 {
		t.Fatalf("profiles are structural")
	}
	ageOf := in.RegisterSubprogram("Age_Of", p1, lib)
	info, ok := in.ProfileInfo(ageOf)
	if !ok || len(info.Params) != 1 || info.Result != b.Natural {
		t.Fatalf("unexpected profile info %+v", info)
	}
	if got := in.Label(p1); got != "(in Person) -> Natural" {
		t.Fatalf("unexpected profile label %q", got)
	}
}

func TestRequirementsFollowComponents(t *testing.T) {
	in := NewInterner()
	local := scope.Site{Scope: scope.ID(5), Pos: 3}
	rec := in.RegisterScalar("Rec", local)
	anon := in.AnonymousAccess(rec, false)
	reqs := in.Requirements(anon)
	if len(reqs) != 1 || reqs[0] != local {
		t.Fatalf("anonymous access should require its target's site, got %v", reqs)
	}
	named := in.RegisterAccess("Rec_Ref", rec, false, lib)
	reqs = in.Requirements(named)
	if len(reqs) != 1 || reqs[0] != lib {
		t.Fatalf("named access should require only its own site, got %v", reqs)
	}
}

func TestInternerConcurrentStructuralInterning(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	const workers = 16
	ids := make([]TypeID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = in.AnonymousAccess(b.Float, false)
		}(i)
	}
	wg.Wait()
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent interning produced different IDs: %v", ids)
		}
	}
}
