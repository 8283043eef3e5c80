package types

import "fmt"

// TypeID uniquely identifies a resolved descriptor inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a descriptor.
const NoTypeID TypeID = 0

// Kind enumerates all descriptor kinds.
type Kind uint8

const (
	KindInvalid    Kind = iota
	KindScalar          // nominal root type (Integer, Boolean, records, enumerations)
	KindSubtype         // constrained subtype of a base type
	KindAlias           // another spelling of an existing descriptor
	KindArray           // array type, nominal when named
	KindAccess          // access type, nominal when named
	KindProfile         // subprogram profile, always structural
	KindObject          // object actual (constant or variable entity)
	KindSubprogram      // subprogram entity with a profile
	KindPackage         // package instance used as a package actual
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindScalar:
		return "scalar"
	case KindSubtype:
		return "subtype"
	case KindAlias:
		return "alias"
	case KindArray:
		return "array"
	case KindAccess:
		return "access"
	case KindProfile:
		return "profile"
	case KindObject:
		return "object"
	case KindSubprogram:
		return "subprogram"
	case KindPackage:
		return "package"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Mode is the passing mode of a subprogram parameter.
type Mode uint8

const (
	ModeIn Mode = iota
	ModeInOut
	ModeOut
	ModeAccess
)

func (m Mode) String() string {
	switch m {
	case ModeIn:
		return "in"
	case ModeInOut:
		return "in out"
	case ModeOut:
		return "out"
	case ModeAccess:
		return "access"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ParseMode converts a textual mode; the empty string means "in".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "in":
		return ModeIn, nil
	case "in out", "inout", "in_out":
		return ModeInOut, nil
	case "out":
		return ModeOut, nil
	case "access":
		return ModeAccess, nil
	default:
		return ModeIn, fmt.Errorf("invalid parameter mode: %q (expected: in|in out|out|access)", s)
	}
}

// Type is a compact descriptor. Elem is the array element, access target,
// subtype base, alias target, object subtype or subprogram profile depending
// on Kind. Payload indexes per-kind side tables.
type Type struct {
	Kind     Kind
	Elem     TypeID
	Payload  uint32
	Constant bool // access-to-constant
}
