package types

import (
	"strconv"

	"instres/internal/scope"
)

// RegisterObject declares a constant or variable entity of the given subtype
// so it can serve as an actual for a formal object.
func (in *Interner) RegisterObject(name string, subtype TypeID, decl scope.Site) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.appendLocked(Type{Kind: KindObject, Elem: in.canonicalLocked(subtype)}, name, decl)
}

// PackageInstance interns the descriptor of an instance used as a formal
// package actual; instance is the registry ID of that instance.
func (in *Interner) PackageInstance(instance uint32) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.internStructuralLocked("package:"+strconv.FormatUint(uint64(instance), 10), func() Type {
		return Type{Kind: KindPackage, Payload: instance}
	})
}
