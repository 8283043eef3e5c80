package scope

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// Tree stores all scopes of a session in a slice-based arena.
// Scopes are append-only; the tree is safe for concurrent use.
type Tree struct {
	mu   sync.RWMutex
	data []Scope
}

// NewTree creates an arena holding only the root scope.
func NewTree() *Tree {
	t := &Tree{
		data: make([]Scope, 1, 32), // index 0 reserved for NoID
	}
	t.data = append(t.data, Scope{Kind: KindRoot, Name: "Standard"})
	return t
}

// Root returns the ID of the predefined environment.
func (t *Tree) Root() ID { return RootID }

// New allocates a scope nested in parent, declared at position anchor of parent.
func (t *Tree) New(kind Kind, name string, parent ID, anchor uint32) (ID, error) {
	if kind == KindInvalid || kind == KindRoot {
		return NoID, fmt.Errorf("scope %q: invalid kind %s", name, kind)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !parent.IsValid() || int(parent) >= len(t.data) {
		return NoID, fmt.Errorf("scope %q: unknown parent %d", name, parent)
	}
	if parent == RootID && anchor == 0 {
		return NoID, fmt.Errorf("scope %q: position 0 of the root is reserved", name)
	}
	value, err := safecast.Conv[uint32](len(t.data))
	if err != nil {
		panic(fmt.Errorf("scope arena overflow: %w", err))
	}
	id := ID(value)
	t.data = append(t.data, Scope{
		Kind:   kind,
		Name:   name,
		Parent: parent,
		Depth:  t.data[parent].Depth + 1,
		Anchor: anchor,
	})
	t.data[parent].Children = append(t.data[parent].Children, id)
	return id, nil
}

// Get returns a copy of the scope.
func (t *Tree) Get(id ID) (Scope, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !id.IsValid() || int(id) >= len(t.data) {
		return Scope{}, false
	}
	s := t.data[id]
	s.Children = append([]ID(nil), s.Children...)
	return s, true
}

// Len reports the number of scopes including the root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data) - 1
}

// Level returns the accessibility level of id, or 0 for unknown scopes.
func (t *Tree) Level(id ID) uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !id.IsValid() || int(id) >= len(t.data) {
		return 0
	}
	return t.data[id].Depth
}

// Chain lists id and its ancestors, innermost first.
func (t *Tree) Chain(id ID) []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []ID
	for id.IsValid() && int(id) < len(t.data) {
		out = append(out, id)
		id = t.data[id].Parent
	}
	return out
}

// Encloses reports whether outer is inner or one of its ancestors.
func (t *Tree) Encloses(outer, inner ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enclosesLocked(outer, inner)
}

func (t *Tree) enclosesLocked(outer, inner ID) bool {
	if !outer.IsValid() || int(outer) >= len(t.data) {
		return false
	}
	depth := t.data[outer].Depth
	for inner.IsValid() && int(inner) < len(t.data) {
		if inner == outer {
			return true
		}
		if t.data[inner].Depth <= depth {
			return false
		}
		inner = t.data[inner].Parent
	}
	return false
}

// CommonAncestor returns the innermost scope enclosing both a and b.
func (t *Tree) CommonAncestor(a, b ID) ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.commonLocked(a, b)
}

func (t *Tree) commonLocked(a, b ID) ID {
	if !a.IsValid() || !b.IsValid() || int(a) >= len(t.data) || int(b) >= len(t.data) {
		return NoID
	}
	for t.data[a].Depth > t.data[b].Depth {
		a = t.data[a].Parent
	}
	for t.data[b].Depth > t.data[a].Depth {
		b = t.data[b].Parent
	}
	for a != b {
		a = t.data[a].Parent
		b = t.data[b].Parent
	}
	return a
}

// Project maps site onto the enclosing scope anc: the result is the position
// in anc of the construct that contains site. ok is false when anc does not
// enclose site.
func (t *Tree) Project(site Site, anc ID) (Site, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.projectLocked(site, anc)
}

func (t *Tree) projectLocked(site Site, anc ID) (Site, bool) {
	if !t.enclosesLocked(anc, site.Scope) {
		return Site{}, false
	}
	for site.Scope != anc {
		s := t.data[site.Scope]
		site = Site{Scope: s.Parent, Pos: s.Anchor}
	}
	return site, true
}

// Precedes reports whether a is elaborated strictly before b. A site placed at
// the anchor of a nested construct precedes everything inside that construct.
func (t *Tree) Precedes(a, b Site) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.precedesLocked(a, b)
}

func (t *Tree) precedesLocked(a, b Site) bool {
	c := t.commonLocked(a.Scope, b.Scope)
	if !c.IsValid() {
		return false
	}
	pa, _ := t.projectLocked(a, c)
	pb, _ := t.projectLocked(b, c)
	if pa.Pos != pb.Pos {
		return pa.Pos < pb.Pos
	}
	return a.Scope == c && b.Scope != c
}

// Visible reports whether an entity declared at decl can be named at site:
// decl's scope encloses site and the declaration is elaborated first.
func (t *Tree) Visible(decl, site Site) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.enclosesLocked(decl.Scope, site.Scope) {
		return false
	}
	return t.precedesLocked(decl, site)
}
