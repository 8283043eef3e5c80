package generic

import (
	"errors"
	"fmt"
	"sync"

	"fortio.org/safecast"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"instres/internal/scope"
)

// UnitID identifies a generic unit inside a Units table.
type UnitID uint32

// NoUnitID marks the absence of a unit.
const NoUnitID UnitID = 0

// IsValid reports whether the ID refers to a declared unit.
func (id UnitID) IsValid() bool { return id != NoUnitID }

// ErrInvalidUnit is wrapped by every declaration error.
var ErrInvalidUnit = errors.New("invalid generic unit")

// Decl is what the front end supplies when it processes a generic declaration.
type Decl struct {
	Name    string
	Formals []Formal
	// Stateful units have observable elaboration side effects and are never
	// eligible for structural instantiation.
	Stateful bool
	// ObservableIdentity is set when instances declare tagged or access types,
	// so two instances of one key could be told apart by the program.
	ObservableIdentity bool
	// Body is where the unit's body is elaborated.
	Body scope.Site
}

// Unit is an immutable generic unit.
type Unit struct {
	ID                 UnitID
	Name               string
	Formals            []Formal
	Stateful           bool
	ObservableIdentity bool
	Body               scope.Site

	graph  *Graph
	byName map[string]int
}

// Graph returns the inference dependency graph.
func (u *Unit) Graph() *Graph { return u.graph }

// FormalIndex finds a formal by name. Matching follows the host language's
// identifier rules: case-insensitive, after Unicode normalization.
func (u *Unit) FormalIndex(name string) (int, bool) {
	i, ok := u.byName[FoldName(name)]
	return i, ok
}

// FoldName normalizes an identifier for comparison.
func FoldName(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}

// Units is the session table of declared generic units.
type Units struct {
	mu   sync.RWMutex
	data []*Unit
}

// NewUnits creates an empty table.
func NewUnits() *Units {
	return &Units{data: make([]*Unit, 1, 16)} // index 0 reserved for NoUnitID
}

// Declare validates decl and stores it as an immutable unit.
func (us *Units) Declare(decl Decl) (UnitID, error) {
	if decl.Name == "" {
		return NoUnitID, fmt.Errorf("%w: empty name", ErrInvalidUnit)
	}
	byName := make(map[string]int, len(decl.Formals))
	formals := make([]Formal, len(decl.Formals))
	for i, f := range decl.Formals {
		key := FoldName(f.Name)
		if key == "" {
			return NoUnitID, fmt.Errorf("%w: %s: formal #%d has no name", ErrInvalidUnit, decl.Name, i+1)
		}
		if _, dup := byName[key]; dup {
			return NoUnitID, fmt.Errorf("%w: %s: duplicate formal %q", ErrInvalidUnit, decl.Name, f.Name)
		}
		byName[key] = i
		if err := validateFormal(decl, i, f); err != nil {
			return NoUnitID, err
		}
		formals[i] = cloneFormal(f)
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	value, err := safecast.Conv[uint32](len(us.data))
	if err != nil {
		panic(fmt.Errorf("units overflow: %w", err))
	}
	id := UnitID(value)
	us.data = append(us.data, &Unit{
		ID:                 id,
		Name:               decl.Name,
		Formals:            formals,
		Stateful:           decl.Stateful,
		ObservableIdentity: decl.ObservableIdentity,
		Body:               decl.Body,
		graph:              buildGraph(formals),
		byName:             byName,
	})
	return id, nil
}

// Get returns the unit, or nil when id is unknown.
func (us *Units) Get(id UnitID) *Unit {
	us.mu.RLock()
	defer us.mu.RUnlock()
	if !id.IsValid() || int(id) >= len(us.data) {
		return nil
	}
	return us.data[id]
}

// Len reports the number of declared units.
func (us *Units) Len() int {
	us.mu.RLock()
	defer us.mu.RUnlock()
	return len(us.data) - 1
}

func validateFormal(decl Decl, i int, f Formal) error {
	if f.Kind != FormalType && f.Shape.Kind != ShapeNone {
		return fmt.Errorf("%w: %s: %s formal %q cannot have a type shape", ErrInvalidUnit, decl.Name, f.Kind, f.Name)
	}
	if f.Kind == FormalType && f.Shape.Kind == ShapeArray && len(f.Shape.Indices) == 0 {
		return fmt.Errorf("%w: %s: array formal %q needs at least one index", ErrInvalidUnit, decl.Name, f.Name)
	}
	for _, r := range f.refs() {
		if !r.IsFormal() {
			continue
		}
		if r.Index() >= len(decl.Formals) {
			return fmt.Errorf("%w: %s: formal %q refers to formal #%d out of range", ErrInvalidUnit, decl.Name, f.Name, r.Index())
		}
		if r.Index() == i {
			return fmt.Errorf("%w: %s: formal %q refers to itself", ErrInvalidUnit, decl.Name, f.Name)
		}
		if decl.Formals[r.Index()].Kind != FormalType {
			return fmt.Errorf("%w: %s: formal %q refers to non-type formal %q", ErrInvalidUnit, decl.Name, f.Name, decl.Formals[r.Index()].Name)
		}
	}
	return nil
}

func cloneFormal(f Formal) Formal {
	f.Shape.Indices = append([]Ref(nil), f.Shape.Indices...)
	f.Profile.Params = append([]Param(nil), f.Profile.Params...)
	return f
}
