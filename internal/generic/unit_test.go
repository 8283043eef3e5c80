package generic

import (
	"errors"
	"testing"

	"instres/internal/types"
)

func arrayOperations() Decl {
	return Decl{
		Name: "Array_Operations",
		Formals: []Formal{
			{Name: "Element", Kind: FormalType},
			{Name: "Index", Kind: FormalType},
			{Name: "Array_Type", Kind: FormalType, Shape: ArrayOf(RefFormal(0), RefFormal(1))},
		},
	}
}

func TestDeclareBuildsStrongEdges(t *testing.T) {
	us := NewUnits()
	id, err := us.Declare(arrayOperations())
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	u := us.Get(id)
	edges := u.Graph().From(2)
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges from Array_Type, got %d", len(edges))
	}
	if edges[0].Target != 1 || edges[0].Role != RoleIndex || edges[0].Strength != Strong {
		t.Fatalf("unexpected index edge %+v", edges[0])
	}
	if edges[1].Target != 0 || edges[1].Role != RoleElement {
		t.Fatalf("unexpected element edge %+v", edges[1])
	}
	if len(u.Graph().From(0)) != 0 || len(u.Graph().From(1)) != 0 {
		t.Fatalf("element and index formals must not synthesize the array")
	}
}

func TestDeclareBuildsWeakEdges(t *testing.T) {
	us := NewUnits()
	id, err := us.Declare(Decl{
		Name: "Min_By",
		Formals: []Formal{
			{Name: "Element", Kind: FormalType},
			{Name: "Array_Type", Kind: FormalType, Shape: ArrayOf(RefFormal(0), Any)},
			{Name: "Key", Kind: FormalType},
			{Name: "Key_Fn", Kind: FormalSubprogram, Profile: Profile{
				Params:    []Param{{Name: "E", Mode: types.ModeIn, Type: RefFormal(0)}},
				Result:    RefFormal(2),
				HasResult: true,
			}},
		},
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	edges := us.Get(id).Graph().From(3)
	if len(edges) != 2 || edges[0].Strength != Weak || edges[1].Role != RoleResult || edges[1].Target != 2 {
		t.Fatalf("unexpected weak edges %+v", edges)
	}
}

func TestFormalIndexFoldsCase(t *testing.T) {
	us := NewUnits()
	id, err := us.Declare(arrayOperations())
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	u := us.Get(id)
	for _, name := range []string{"ARRAY_TYPE", "array_type", "Array_Type"} {
		if i, ok := u.FormalIndex(name); !ok || i != 2 {
			t.Fatalf("FormalIndex(%q) = %d, %v", name, i, ok)
		}
	}
	if _, ok := u.FormalIndex("Elem"); ok {
		t.Fatalf("unexpected match for unknown formal")
	}
}

func TestDeclareRejectsMalformedUnits(t *testing.T) {
	tests := []struct {
		name string
		decl Decl
	}{
		{"empty name", Decl{}},
		{"duplicate formal", Decl{Name: "G", Formals: []Formal{{Name: "T"}, {Name: "t"}}}},
		{"out of range ref", Decl{Name: "G", Formals: []Formal{{Name: "A", Shape: AccessTo(RefFormal(4))}}}},
		{"self ref", Decl{Name: "G", Formals: []Formal{{Name: "A", Shape: AccessTo(RefFormal(0))}}}},
		{"shape on object", Decl{Name: "G", Formals: []Formal{{Name: "T"}, {Name: "X", Kind: FormalObject, Shape: AccessTo(RefFormal(0))}}}},
		{"ref to subprogram", Decl{Name: "G", Formals: []Formal{
			{Name: "F", Kind: FormalSubprogram},
			{Name: "A", Shape: AccessTo(RefFormal(0))},
		}}},
		{"array without index", Decl{Name: "G", Formals: []Formal{{Name: "E"}, {Name: "A", Shape: ArrayOf(RefFormal(0))}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := NewUnits()
			if _, err := us.Declare(tt.decl); !errors.Is(err, ErrInvalidUnit) {
				t.Fatalf("expected ErrInvalidUnit, got %v", err)
			}
		})
	}
}
