package scenario

import (
	"fmt"
	"strings"
	"sync"

	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/registry"
	"instres/internal/scope"
	"instres/internal/types"
)

// nameTable resolves actual expressions the way a front end's visibility
// rules would: a name denotes every declaration of that name visible at the
// reference. Subprogram names overload; any other name is hidden by an
// inner declaration of the same name.
type nameTable struct {
	in   *types.Interner
	tree *scope.Tree

	mu        sync.RWMutex
	decls     map[string][]types.TypeID
	instances map[string]registry.ID // reference id -> instance
	packages  func(registry.ID) types.TypeID
}

func newNameTable(in *types.Interner, tree *scope.Tree) *nameTable {
	n := &nameTable{
		in:        in,
		tree:      tree,
		decls:     make(map[string][]types.TypeID),
		instances: make(map[string]registry.ID),
	}
	b := in.Builtins()
	for name, id := range map[string]types.TypeID{
		"Integer":   b.Integer,
		"Natural":   b.Natural,
		"Positive":  b.Positive,
		"Boolean":   b.Boolean,
		"Float":     b.Float,
		"Character": b.Character,
		"String":    b.String,
	} {
		n.declare(name, id)
	}
	return n
}

func (n *nameTable) declare(name string, id types.TypeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := generic.FoldName(name)
	n.decls[key] = append(n.decls[key], id)
}

// lookup finds a declaration by name regardless of visibility; used while
// building the scenario, where a name must be unique.
func (n *nameTable) lookup(name string) (types.TypeID, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := n.decls[generic.FoldName(name)]
	switch len(ids) {
	case 0:
		return types.NoTypeID, fmt.Errorf("undefined type %q", name)
	case 1:
		return ids[0], nil
	default:
		return types.NoTypeID, fmt.Errorf("type name %q is overloaded", name)
	}
}

func (n *nameTable) bind(id string, x registry.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.instances[id] = x
}

func (n *nameTable) ResolveActual(expr keys.Expr, formal generic.Formal, at scope.Site) (keys.Resolution, error) {
	name, ok := expr.(string)
	if !ok {
		return keys.Resolution{}, fmt.Errorf("unsupported actual expression %T", expr)
	}
	if ref, ok := strings.CutPrefix(name, "@"); ok {
		return n.instance(ref)
	}

	n.mu.RLock()
	ids := append([]types.TypeID(nil), n.decls[generic.FoldName(name)]...)
	n.mu.RUnlock()

	var visible []types.TypeID
	for _, id := range ids {
		if n.visible(id, at) {
			visible = append(visible, id)
		}
	}
	if len(visible) == 0 {
		return keys.Resolution{}, fmt.Errorf("%q is not visible at %s", name, at)
	}
	if formal.Kind == generic.FormalSubprogram {
		var subs []types.TypeID
		for _, id := range visible {
			if n.in.MustLookup(id).Kind == types.KindSubprogram {
				subs = append(subs, id)
			}
		}
		if len(subs) > 0 {
			return keys.AmbiguousSet(subs...), nil
		}
	}
	return keys.Resolved(n.innermost(visible)), nil
}

func (n *nameTable) instance(ref string) (keys.Resolution, error) {
	n.mu.RLock()
	x, ok := n.instances[strings.ToLower(ref)]
	n.mu.RUnlock()
	if !ok {
		return keys.Resolution{}, fmt.Errorf("reference @%s has not been resolved", ref)
	}
	return keys.Resolved(n.packages(x)), nil
}

func (n *nameTable) visible(id types.TypeID, at scope.Site) bool {
	for _, req := range n.in.Requirements(id) {
		if !n.tree.Visible(req, at) {
			return false
		}
	}
	return true
}

// innermost picks the declaration that hides the others: the one whose
// requirements sit deepest in the tree, later positions winning ties.
func (n *nameTable) innermost(ids []types.TypeID) types.TypeID {
	best, bestDepth, bestPos := ids[0], -1, uint32(0)
	for _, id := range ids {
		depth, pos := -1, uint32(0)
		for _, req := range n.in.Requirements(id) {
			d := int(n.tree.Level(req.Scope))
			if d > depth || (d == depth && req.Pos > pos) {
				depth, pos = d, req.Pos
			}
		}
		if depth > bestDepth || (depth == bestDepth && pos > bestPos) {
			best, bestDepth, bestPos = id, depth, pos
		}
	}
	return best
}
