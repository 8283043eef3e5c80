package types

import "instres/internal/scope"

// RegisterAccess declares a named access type designating target.
func (in *Interner) RegisterAccess(name string, target TypeID, constant bool, decl scope.Site) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.appendLocked(Type{Kind: KindAccess, Elem: in.canonicalLocked(target), Constant: constant}, name, decl)
}

// AnonymousAccess interns a structural access descriptor.
func (in *Interner) AnonymousAccess(target TypeID, constant bool) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	target = in.canonicalLocked(target)
	prefix := "access:"
	if constant {
		prefix = "access-constant:"
	}
	return in.internStructuralLocked(idsKey(prefix, []TypeID{target}), func() Type {
		return Type{Kind: KindAccess, Elem: target, Constant: constant}
	})
}

// AccessInfo returns the designated type when id denotes an access type,
// looking through aliases and subtypes.
func (in *Interner) AccessInfo(id TypeID) (designated TypeID, constant, ok bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, found := in.lookupLocked(in.shapeBaseLocked(id))
	if !found || tt.Kind != KindAccess {
		return NoTypeID, false, false
	}
	return tt.Elem, tt.Constant, true
}
