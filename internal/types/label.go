package types

import (
	"fmt"
	"strings"
)

// Label renders a descriptor for diagnostics: its declared name when it has
// one, a structural rendering otherwise.
func (in *Interner) Label(id TypeID) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.labelLocked(id, 0)
}

// Labels renders a list of descriptors.
func (in *Interner) Labels(ids []TypeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = in.Label(id)
	}
	return out
}

func (in *Interner) labelLocked(id TypeID, depth int) string {
	if !in.validLocked(id) {
		return "<none>"
	}
	if name := in.names[id]; name != "" {
		return name
	}
	if depth > 8 {
		return "..."
	}
	tt := in.types[id]
	switch tt.Kind {
	case KindArray:
		info := in.arrays[tt.Payload]
		idx := make([]string, len(info.Indices))
		for i, x := range info.Indices {
			idx[i] = in.labelLocked(x, depth+1)
		}
		return fmt.Sprintf("array (%s) of %s", strings.Join(idx, ", "), in.labelLocked(info.Element, depth+1))
	case KindAccess:
		if tt.Constant {
			return "access constant " + in.labelLocked(tt.Elem, depth+1)
		}
		return "access " + in.labelLocked(tt.Elem, depth+1)
	case KindProfile:
		info := in.profiles[tt.Payload]
		parts := make([]string, len(info.Params))
		for i, p := range info.Params {
			parts[i] = p.Mode.String() + " " + in.labelLocked(p.Type, depth+1)
		}
		out := "(" + strings.Join(parts, "; ") + ")"
		if info.Result != NoTypeID {
			out += " -> " + in.labelLocked(info.Result, depth+1)
		}
		return out
	case KindPackage:
		return fmt.Sprintf("instance#%d", tt.Payload)
	default:
		return tt.Kind.String()
	}
}
