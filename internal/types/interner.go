package types

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"fortio.org/safecast"

	"instres/internal/scope"
)

// Builtins stores TypeIDs for the predefined environment.
type Builtins struct {
	Integer   TypeID
	Natural   TypeID
	Positive  TypeID
	Boolean   TypeID
	Float     TypeID
	Character TypeID
	String    TypeID
}

// Interner provides stable TypeIDs for resolved descriptors. Named
// declarations get a fresh identity; anonymous descriptors are deduplicated
// structurally. Safe for concurrent use by parallel front-end threads.
type Interner struct {
	mu         sync.RWMutex
	types      []Type
	names      []string
	decls      []scope.Site
	structural map[string]TypeID
	arrays     []ArrayInfo
	profiles   []ProfileInfo
	builtins   Builtins
}

// NewInterner constructs an interner seeded with the predefined types.
func NewInterner() *Interner {
	in := &Interner{
		types:      make([]Type, 1, 64), // index 0 reserved for NoTypeID
		names:      make([]string, 1, 64),
		decls:      make([]scope.Site, 1, 64),
		structural: make(map[string]TypeID, 64),
		arrays:     make([]ArrayInfo, 1, 16),
		profiles:   make([]ProfileInfo, 1, 16),
	}
	std := scope.Predefined
	in.builtins.Integer = in.RegisterScalar("Integer", std)
	in.builtins.Natural = in.RegisterSubtype("Natural", in.builtins.Integer, std)
	in.builtins.Positive = in.RegisterSubtype("Positive", in.builtins.Integer, std)
	in.builtins.Boolean = in.RegisterScalar("Boolean", std)
	in.builtins.Float = in.RegisterScalar("Float", std)
	in.builtins.Character = in.RegisterScalar("Character", std)
	in.builtins.String = in.RegisterArray("String", []TypeID{in.builtins.Positive}, in.builtins.Character, std)
	return in
}

// Builtins returns TypeIDs of predefined types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// RegisterScalar declares a new nominal root type.
func (in *Interner) RegisterScalar(name string, decl scope.Site) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.appendLocked(Type{Kind: KindScalar}, name, decl)
}

// RegisterSubtype declares a constrained subtype of base. The subtype is a
// descriptor of its own: Natural and Integer never compare equal.
func (in *Interner) RegisterSubtype(name string, base TypeID, decl scope.Site) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.appendLocked(Type{Kind: KindSubtype, Elem: in.canonicalLocked(base)}, name, decl)
}

// RegisterAlias declares another spelling of target (a renaming or an
// unconstrained subtype). Canonical resolves it back to target.
func (in *Interner) RegisterAlias(name string, target TypeID, decl scope.Site) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.appendLocked(Type{Kind: KindAlias, Elem: in.canonicalLocked(target)}, name, decl)
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.lookupLocked(id)
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Name returns the declared name of id, or "" for anonymous descriptors.
func (in *Interner) Name(id TypeID) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if !in.validLocked(id) {
		return ""
	}
	return in.names[id]
}

// Canonical strips alias spellings so that two spellings of one subtype
// yield the same TypeID.
func (in *Interner) Canonical(id TypeID) TypeID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.canonicalLocked(id)
}

// Len reports the number of interned descriptors.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.types) - 1
}

// Requirements lists the declaration sites that must all be visible for id
// to be nameable: the descriptor's own site when it is named, otherwise the
// sites of its components.
func (in *Interner) Requirements(id TypeID) []scope.Site {
	in.mu.RLock()
	defer in.mu.RUnlock()
	var out []scope.Site
	seen := make(map[TypeID]struct{}, 4)
	in.requirementsLocked(id, seen, &out)
	return out
}

func (in *Interner) requirementsLocked(id TypeID, seen map[TypeID]struct{}, out *[]scope.Site) {
	if !in.validLocked(id) {
		return
	}
	if _, ok := seen[id]; ok {
		return
	}
	seen[id] = struct{}{}
	if in.names[id] != "" {
		*out = append(*out, in.decls[id])
		return
	}
	tt := in.types[id]
	switch tt.Kind {
	case KindArray:
		info := in.arrays[tt.Payload]
		for _, idx := range info.Indices {
			in.requirementsLocked(idx, seen, out)
		}
		in.requirementsLocked(info.Element, seen, out)
	case KindAccess:
		in.requirementsLocked(tt.Elem, seen, out)
	case KindProfile:
		info := in.profiles[tt.Payload]
		for _, p := range info.Params {
			in.requirementsLocked(p.Type, seen, out)
		}
		in.requirementsLocked(info.Result, seen, out)
	case KindPackage:
		// package instances carry their own placement; nothing to add here
	}
}

func (in *Interner) validLocked(id TypeID) bool {
	return id != NoTypeID && int(id) < len(in.types)
}

func (in *Interner) lookupLocked(id TypeID) (Type, bool) {
	if !in.validLocked(id) {
		return Type{}, false
	}
	return in.types[id], true
}

func (in *Interner) canonicalLocked(id TypeID) TypeID {
	for steps := 0; in.validLocked(id) && steps < len(in.types); steps++ {
		tt := in.types[id]
		if tt.Kind != KindAlias {
			return id
		}
		id = tt.Elem
	}
	return id
}

// shapeBaseLocked resolves aliases and subtypes down to the type that
// carries the structural shape (array or access).
func (in *Interner) shapeBaseLocked(id TypeID) TypeID {
	for steps := 0; in.validLocked(id) && steps < len(in.types); steps++ {
		tt := in.types[id]
		if tt.Kind != KindAlias && tt.Kind != KindSubtype {
			return id
		}
		id = tt.Elem
	}
	return id
}

func (in *Interner) appendLocked(t Type, name string, decl scope.Site) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.names = append(in.names, name)
	in.decls = append(in.decls, decl)
	return id
}

// internStructuralLocked deduplicates anonymous descriptors by key.
func (in *Interner) internStructuralLocked(key string, build func() Type) TypeID {
	if id, ok := in.structural[key]; ok {
		return id
	}
	id := in.appendLocked(build(), "", scope.Site{})
	in.structural[key] = id
	return id
}

func idsKey(prefix string, ids []TypeID) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i, id := range ids {
		if i > 0 {
			b.WriteByte('#')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}
