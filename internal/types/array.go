package types

import (
	"fmt"

	"fortio.org/safecast"

	"instres/internal/scope"
)

// ArrayInfo describes the index and component types of an array type.
type ArrayInfo struct {
	Indices []TypeID
	Element TypeID
}

// RegisterArray declares a named array type. Array types are nominal: two
// declarations with the same structure are distinct types.
func (in *Interner) RegisterArray(name string, indices []TypeID, elem TypeID, decl scope.Site) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	slot := in.appendArrayLocked(indices, elem)
	return in.appendLocked(Type{Kind: KindArray, Elem: in.arrays[slot].Element, Payload: slot}, name, decl)
}

// AnonymousArray interns a structural array descriptor.
func (in *Interner) AnonymousArray(indices []TypeID, elem TypeID) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	canon := make([]TypeID, 0, len(indices)+1)
	for _, idx := range indices {
		canon = append(canon, in.canonicalLocked(idx))
	}
	canon = append(canon, in.canonicalLocked(elem))
	return in.internStructuralLocked(idsKey("array:", canon), func() Type {
		slot := in.appendArrayLocked(indices, elem)
		return Type{Kind: KindArray, Elem: in.arrays[slot].Element, Payload: slot}
	})
}

// ArrayInfo returns index and element types when id denotes an array type,
// looking through aliases and constrained subtypes.
func (in *Interner) ArrayInfo(id TypeID) (ArrayInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	base := in.shapeBaseLocked(id)
	tt, ok := in.lookupLocked(base)
	if !ok || tt.Kind != KindArray {
		return ArrayInfo{}, false
	}
	info := in.arrays[tt.Payload]
	return ArrayInfo{
		Indices: append([]TypeID(nil), info.Indices...),
		Element: info.Element,
	}, true
}

func (in *Interner) appendArrayLocked(indices []TypeID, elem TypeID) uint32 {
	info := ArrayInfo{
		Indices: make([]TypeID, len(indices)),
		Element: in.canonicalLocked(elem),
	}
	for i, idx := range indices {
		info.Indices[i] = in.canonicalLocked(idx)
	}
	in.arrays = append(in.arrays, info)
	slot, err := safecast.Conv[uint32](len(in.arrays) - 1)
	if err != nil {
		panic(fmt.Errorf("array info overflow: %w", err))
	}
	return slot
}
