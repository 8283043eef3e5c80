package infer

import (
	"fmt"

	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/types"
)

// derive reads the edge target's actual off the source formal's actual.
func (r *run) derive(src int, edge generic.Edge) (types.TypeID, error) {
	actual := r.bound[src].Type
	in := r.e.types
	switch edge.Role {
	case generic.RoleIndex, generic.RoleElement:
		info, ok := in.ArrayInfo(actual)
		if !ok {
			return types.NoTypeID, r.mismatch(src, "expected an array type, got %s", in.Label(actual))
		}
		if edge.Role == generic.RoleElement {
			return info.Element, nil
		}
		if edge.Position >= len(info.Indices) {
			return types.NoTypeID, r.mismatch(src, "%s has %d indices", in.Label(actual), len(info.Indices))
		}
		return info.Indices[edge.Position], nil
	case generic.RoleDesignated:
		designated, _, ok := in.AccessInfo(actual)
		if !ok {
			return types.NoTypeID, r.mismatch(src, "expected an access type, got %s", in.Label(actual))
		}
		return designated, nil
	case generic.RoleParam, generic.RoleResult:
		info, ok := in.ProfileInfo(actual)
		if !ok {
			return types.NoTypeID, r.mismatch(src, "expected a subprogram, got %s", in.Label(actual))
		}
		if edge.Role == generic.RoleResult {
			return info.Result, nil
		}
		if edge.Position >= len(info.Params) {
			return types.NoTypeID, r.mismatch(src, "%s has %d parameters", in.Label(actual), len(info.Params))
		}
		return info.Params[edge.Position].Type, nil
	default:
		return types.NoTypeID, fmt.Errorf("infer: unknown edge role %d", edge.Role)
	}
}

// validate checks that formal i's actual has the structure the formal
// requires. Shapes are checked for every binding, written or inferred.
func (r *run) validate(i int) error {
	f := r.u.Formals[i]
	actual := r.bound[i].Type
	in := r.e.types
	tt, ok := in.Lookup(actual)
	if !ok {
		return r.mismatch(i, "unknown descriptor")
	}
	switch f.Kind {
	case generic.FormalType:
		switch tt.Kind {
		case types.KindObject, types.KindSubprogram, types.KindPackage:
			return r.mismatch(i, "expected a type, got %s %s", tt.Kind, in.Label(actual))
		}
		return r.validateShape(i, f.Shape, actual)
	case generic.FormalObject:
		if tt.Kind != types.KindObject {
			return r.mismatch(i, "expected an object, got %s", in.Label(actual))
		}
	case generic.FormalSubprogram:
		if !r.conformant(i, actual) {
			return r.mismatch(i, "%s is not mode conformant with the formal profile", in.Label(actual))
		}
	case generic.FormalPackage:
		if tt.Kind != types.KindPackage {
			return r.mismatch(i, "expected a package instance, got %s", in.Label(actual))
		}
	}
	return nil
}

func (r *run) validateShape(i int, sh generic.Shape, actual types.TypeID) error {
	in := r.e.types
	switch sh.Kind {
	case generic.ShapeArray:
		info, ok := in.ArrayInfo(actual)
		if !ok {
			return r.mismatch(i, "expected an array type, got %s", in.Label(actual))
		}
		if len(info.Indices) != len(sh.Indices) {
			return r.mismatch(i, "expected %d indices, %s has %d", len(sh.Indices), in.Label(actual), len(info.Indices))
		}
		for k, idx := range sh.Indices {
			if !r.fixedMatches(idx, info.Indices[k]) {
				return r.mismatch(i, "index %d of %s is not %s", k+1, in.Label(actual), in.Label(idx.Fixed))
			}
		}
		if !r.fixedMatches(sh.Element, info.Element) {
			return r.mismatch(i, "component of %s is not %s", in.Label(actual), in.Label(sh.Element.Fixed))
		}
	case generic.ShapeAccess:
		designated, constant, ok := in.AccessInfo(actual)
		if !ok {
			return r.mismatch(i, "expected an access type, got %s", in.Label(actual))
		}
		if constant != sh.Constant {
			return r.mismatch(i, "access constant mismatch for %s", in.Label(actual))
		}
		if !r.fixedMatches(sh.Designated, designated) {
			return r.mismatch(i, "%s does not designate %s", in.Label(actual), in.Label(sh.Designated.Fixed))
		}
	}
	return nil
}

func (r *run) fixedMatches(ref generic.Ref, got types.TypeID) bool {
	if ref.IsFormal() || ref.IsAny() {
		return true
	}
	return r.e.types.Canonical(ref.Fixed) == got
}

// conformant checks parameter count, passing modes and function-ness.
func (r *run) conformant(i int, actual types.TypeID) bool {
	info, ok := r.e.types.ProfileInfo(actual)
	if !ok {
		return false
	}
	fp := r.u.Formals[i].Profile
	if len(info.Params) != len(fp.Params) || info.HasResult() != fp.HasResult {
		return false
	}
	for k, p := range fp.Params {
		if info.Params[k].Mode != p.Mode {
			return false
		}
	}
	return true
}

func (r *run) mismatch(i int, format string, args ...any) error {
	return &diag.Error{
		Code:   diag.InfShapeMismatch,
		Unit:   r.u.Name,
		Formal: r.u.Formals[i].Name,
		Span:   r.slots[i].Span,
		Detail: fmt.Sprintf(format, args...),
	}
}
