package scope

import "fmt"

// ID identifies a scope in the Tree arena.
type ID uint32

const (
	// NoID marks the absence of a scope reference.
	NoID ID = 0
	// RootID is the predefined environment every tree starts with.
	RootID ID = 1
)

// IsValid reports whether the ID refers to an allocated scope.
func (id ID) IsValid() bool { return id != NoID }

// Kind enumerates lexical constructs that open a scope.
type Kind uint8

const (
	KindInvalid        Kind = iota
	KindRoot                // predefined environment (Standard)
	KindLibrary             // library unit
	KindPackage             // package declaration or body
	KindSubprogramBody      // subprogram body declarative part
	KindBlock               // declare block
	KindExpression          // expression-bodied construct, no declarative region
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindLibrary:
		return "library"
	case KindPackage:
		return "package"
	case KindSubprogramBody:
		return "subprogram"
	case KindBlock:
		return "block"
	case KindExpression:
		return "expression"
	default:
		return "invalid"
	}
}

// ParseKind converts a textual kind as written in scenario files.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "library":
		return KindLibrary, nil
	case "package":
		return KindPackage, nil
	case "subprogram", "procedure", "function":
		return KindSubprogramBody, nil
	case "block":
		return KindBlock, nil
	case "expression":
		return KindExpression, nil
	default:
		return KindInvalid, fmt.Errorf("unknown scope kind %q (expected: library|package|subprogram|block|expression)", s)
	}
}

// Declarative reports whether constructs of this kind can host declarations.
func (k Kind) Declarative() bool {
	switch k {
	case KindLibrary, KindPackage, KindSubprogramBody, KindBlock:
		return true
	default:
		return false
	}
}

// Scope is one node of the lexical tree.
type Scope struct {
	Kind   Kind
	Name   string
	Parent ID
	// Depth is 0 for the root and grows by one per nesting level.
	Depth uint32
	// Anchor is the position in Parent at which this construct is declared.
	Anchor   uint32
	Children []ID
}

// Level returns the accessibility level of declarations made in the scope.
func (s Scope) Level() uint32 { return s.Depth }

// Site is a point of elaboration: position Pos inside Scope.
type Site struct {
	Scope ID
	Pos   uint32
}

func (s Site) String() string {
	return fmt.Sprintf("%d@%d", s.Scope, s.Pos)
}

// Predefined is where the language-defined entities are declared.
var Predefined = Site{Scope: RootID, Pos: 0}
