package generic

// Strength classifies how reliable an inferred binding is.
type Strength uint8

const (
	// Weak bindings come from subprogram profiles, checked by mode
	// conformance only.
	Weak Strength = iota + 1
	// Strong bindings come from array and access shapes.
	Strong
	// Explicit bindings were written at the reference site.
	Explicit
)

func (s Strength) String() string {
	switch s {
	case Weak:
		return "weak"
	case Strong:
		return "strong"
	case Explicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// Role tells which part of the source formal's actual yields the target.
type Role uint8

const (
	RoleIndex      Role = iota + 1 // Position-th index type of an array
	RoleElement                    // component type of an array
	RoleDesignated                 // designated type of an access
	RoleParam                      // Position-th parameter type of a profile
	RoleResult                     // result type of a profile
)

// Edge says that once formal Source is bound, Target can be read off its
// actual through Role.
type Edge struct {
	Source   int
	Target   int
	Role     Role
	Position int
	Strength Strength
}

// Graph is the inference dependency graph of a unit: for each formal, the
// edges leading out of it to the formals it helps resolve. Edges only point
// from composite formals to their parts; element and index formals never
// synthesize the composite.
type Graph struct {
	out [][]Edge
}

// From returns the edges leaving formal i, in declaration order.
func (g *Graph) From(i int) []Edge {
	if g == nil || i < 0 || i >= len(g.out) {
		return nil
	}
	return g.out[i]
}

// Len reports the number of formals in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.out)
}

func buildGraph(formals []Formal) *Graph {
	g := &Graph{out: make([][]Edge, len(formals))}
	for i, f := range formals {
		switch f.Kind {
		case FormalType:
			switch f.Shape.Kind {
			case ShapeArray:
				for pos, idx := range f.Shape.Indices {
					if idx.IsFormal() {
						g.out[i] = append(g.out[i], Edge{Source: i, Target: idx.Index(), Role: RoleIndex, Position: pos, Strength: Strong})
					}
				}
				if f.Shape.Element.IsFormal() {
					g.out[i] = append(g.out[i], Edge{Source: i, Target: f.Shape.Element.Index(), Role: RoleElement, Strength: Strong})
				}
			case ShapeAccess:
				if f.Shape.Designated.IsFormal() {
					g.out[i] = append(g.out[i], Edge{Source: i, Target: f.Shape.Designated.Index(), Role: RoleDesignated, Strength: Strong})
				}
			}
		case FormalSubprogram:
			for pos, p := range f.Profile.Params {
				if p.Type.IsFormal() {
					g.out[i] = append(g.out[i], Edge{Source: i, Target: p.Type.Index(), Role: RoleParam, Position: pos, Strength: Weak})
				}
			}
			if f.Profile.HasResult && f.Profile.Result.IsFormal() {
				g.out[i] = append(g.out[i], Edge{Source: i, Target: f.Profile.Result.Index(), Role: RoleResult, Strength: Weak})
			}
		}
	}
	return g
}
