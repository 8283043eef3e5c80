package generic

import (
	"fmt"

	"instres/internal/types"
)

// FormalKind enumerates the kinds of generic formal parameters.
type FormalKind uint8

const (
	FormalType FormalKind = iota
	FormalObject
	FormalSubprogram
	FormalPackage
)

func (k FormalKind) String() string {
	switch k {
	case FormalType:
		return "type"
	case FormalObject:
		return "object"
	case FormalSubprogram:
		return "subprogram"
	case FormalPackage:
		return "package"
	default:
		return fmt.Sprintf("FormalKind(%d)", k)
	}
}

// ParseFormalKind converts a textual kind as written in scenario files.
func ParseFormalKind(s string) (FormalKind, error) {
	switch s {
	case "", "type":
		return FormalType, nil
	case "object":
		return FormalObject, nil
	case "subprogram", "procedure", "function":
		return FormalSubprogram, nil
	case "package":
		return FormalPackage, nil
	default:
		return FormalType, fmt.Errorf("invalid formal kind: %q (expected: type|object|subprogram|package)", s)
	}
}

// Ref names the type a shape or profile position stands for: another formal
// of the same unit, a fixed descriptor, or nothing at all. The zero Ref
// places no constraint.
type Ref struct {
	slot  int // formal index + 1
	Fixed types.TypeID
}

// Any is the unconstrained Ref.
var Any = Ref{}

// RefFormal refers to the formal at index i.
func RefFormal(i int) Ref { return Ref{slot: i + 1} }

// RefFixed refers to a fixed descriptor.
func RefFixed(t types.TypeID) Ref { return Ref{Fixed: t} }

// IsFormal reports whether r names another formal.
func (r Ref) IsFormal() bool { return r.slot > 0 }

// Index returns the referenced formal, or -1.
func (r Ref) Index() int { return r.slot - 1 }

// IsAny reports whether r places no constraint.
func (r Ref) IsAny() bool { return r.slot == 0 && r.Fixed == types.NoTypeID }

// ShapeKind describes the structure a formal type requires of its actual.
type ShapeKind uint8

const (
	ShapeNone ShapeKind = iota
	ShapeArray
	ShapeAccess
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeNone:
		return "none"
	case ShapeArray:
		return "array"
	case ShapeAccess:
		return "access"
	default:
		return fmt.Sprintf("ShapeKind(%d)", k)
	}
}

// Shape is the structural pattern of a formal type.
type Shape struct {
	Kind       ShapeKind
	Indices    []Ref // ShapeArray
	Element    Ref   // ShapeArray
	Designated Ref   // ShapeAccess
	Constant   bool  // ShapeAccess: access constant
}

// ArrayOf builds an array shape.
func ArrayOf(element Ref, indices ...Ref) Shape {
	return Shape{Kind: ShapeArray, Indices: indices, Element: element}
}

// AccessTo builds an access shape.
func AccessTo(designated Ref) Shape {
	return Shape{Kind: ShapeAccess, Designated: designated}
}

// Param is one parameter of a formal subprogram profile.
type Param struct {
	Name string
	Mode types.Mode
	Type Ref
}

// Profile is a formal subprogram profile expressed in terms of other formals.
type Profile struct {
	Params    []Param
	Result    Ref
	HasResult bool
}

// Formal is one generic formal parameter.
type Formal struct {
	Name string
	Kind FormalKind
	// Shape applies to FormalType.
	Shape Shape
	// Profile applies to FormalSubprogram.
	Profile Profile
	// ObjectType applies to FormalObject.
	ObjectType Ref
	// Package applies to FormalPackage: the generic the actual must be an
	// instance of.
	Package UnitID
}

func (f Formal) refs() []Ref {
	switch f.Kind {
	case FormalType:
		switch f.Shape.Kind {
		case ShapeArray:
			out := append([]Ref(nil), f.Shape.Indices...)
			return append(out, f.Shape.Element)
		case ShapeAccess:
			return []Ref{f.Shape.Designated}
		}
	case FormalSubprogram:
		out := make([]Ref, 0, len(f.Profile.Params)+1)
		for _, p := range f.Profile.Params {
			out = append(out, p.Type)
		}
		if f.Profile.HasResult {
			out = append(out, f.Profile.Result)
		}
		return out
	case FormalObject:
		return []Ref{f.ObjectType}
	}
	return nil
}
