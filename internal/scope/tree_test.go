package scope

import "testing"

// buildTree creates:
//
//	Standard
//	└── Lib (library @1)
//	    └── Proc (subprogram @4)
//	        ├── B1 (block @2)
//	        │   └── E (expression @1)
//	        └── B2 (block @6)
func buildTree(t *testing.T) (tr *Tree, lib, proc, b1, b2, e ID) {
	t.Helper()
	tr = NewTree()
	var err error
	if lib, err = tr.New(KindLibrary, "Lib", RootID, 1); err != nil {
		t.Fatalf("new lib: %v", err)
	}
	if proc, err = tr.New(KindSubprogramBody, "Proc", lib, 4); err != nil {
		t.Fatalf("new proc: %v", err)
	}
	if b1, err = tr.New(KindBlock, "B1", proc, 2); err != nil {
		t.Fatalf("new b1: %v", err)
	}
	if b2, err = tr.New(KindBlock, "B2", proc, 6); err != nil {
		t.Fatalf("new b2: %v", err)
	}
	if e, err = tr.New(KindExpression, "E", b1, 1); err != nil {
		t.Fatalf("new e: %v", err)
	}
	return tr, lib, proc, b1, b2, e
}

func TestTreeDepthAndChain(t *testing.T) {
	tr, lib, proc, b1, _, e := buildTree(t)
	if got := tr.Level(e); got != 4 {
		t.Fatalf("expected depth 4 for expression scope, got %d", got)
	}
	chain := tr.Chain(e)
	want := []ID{e, b1, proc, lib, RootID}
	if len(chain) != len(want) {
		t.Fatalf("chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("chain = %v, want %v", chain, want)
		}
	}
}

func TestTreeCommonAncestor(t *testing.T) {
	tr, lib, proc, b1, b2, e := buildTree(t)
	if got := tr.CommonAncestor(b1, b2); got != proc {
		t.Fatalf("common(b1, b2) = %d, want %d", got, proc)
	}
	if got := tr.CommonAncestor(e, b2); got != proc {
		t.Fatalf("common(e, b2) = %d, want %d", got, proc)
	}
	if got := tr.CommonAncestor(lib, e); got != lib {
		t.Fatalf("common(lib, e) = %d, want %d", got, lib)
	}
}

func TestTreePrecedes(t *testing.T) {
	tr, _, proc, b1, b2, _ := buildTree(t)
	tests := []struct {
		name string
		a, b Site
		want bool
	}{
		{"earlier position in same scope", Site{proc, 1}, Site{proc, 3}, true},
		{"later position in same scope", Site{proc, 5}, Site{proc, 3}, false},
		{"outer declaration before nested block", Site{proc, 1}, Site{b1, 9}, true},
		{"outer declaration after nested block", Site{proc, 3}, Site{b1, 0}, false},
		{"anchor precedes nested contents", Site{proc, 2}, Site{b1, 0}, true},
		{"nested contents do not precede anchor", Site{b1, 0}, Site{proc, 2}, false},
		{"sibling blocks ordered by anchor", Site{b1, 7}, Site{b2, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Precedes(tt.a, tt.b); got != tt.want {
				t.Fatalf("Precedes(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTreeVisible(t *testing.T) {
	tr, lib, proc, b1, b2, _ := buildTree(t)
	if !tr.Visible(Predefined, Site{b2, 0}) {
		t.Fatalf("predefined entities must be visible everywhere")
	}
	if !tr.Visible(Site{lib, 2}, Site{b1, 0}) {
		t.Fatalf("library declaration before the procedure must be visible in nested block")
	}
	if tr.Visible(Site{b1, 1}, Site{b2, 3}) {
		t.Fatalf("declaration local to b1 must not be visible in sibling b2")
	}
	if tr.Visible(Site{b1, 1}, Site{proc, 5}) {
		t.Fatalf("declaration local to b1 must not be visible in enclosing scope")
	}
}

func TestTreeRejectsBadScopes(t *testing.T) {
	tr := NewTree()
	if _, err := tr.New(KindBlock, "orphan", ID(42), 1); err == nil {
		t.Fatalf("expected error for unknown parent")
	}
	if _, err := tr.New(KindLibrary, "L", RootID, 0); err == nil {
		t.Fatalf("expected error for reserved root position")
	}
	if _, err := tr.New(KindRoot, "R", RootID, 1); err == nil {
		t.Fatalf("expected error for second root")
	}
}
