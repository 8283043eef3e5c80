package types

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"instres/internal/scope"
)

// Param is one parameter of a subprogram profile.
type Param struct {
	Mode Mode
	Type TypeID
}

// ProfileInfo stores metadata for subprogram profiles.
type ProfileInfo struct {
	Params []Param // parameter types and modes (in order)
	Result TypeID  // NoTypeID for procedures
}

// HasResult reports whether the profile is a function profile.
func (p ProfileInfo) HasResult() bool { return p.Result != NoTypeID }

// RegisterProfile creates or finds a profile descriptor.
func (in *Interner) RegisterProfile(params []Param, result TypeID) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	info := ProfileInfo{
		Params: make([]Param, len(params)),
		Result: in.canonicalLocked(result),
	}
	var b strings.Builder
	b.WriteString("profile:")
	for i, p := range params {
		info.Params[i] = Param{Mode: p.Mode, Type: in.canonicalLocked(p.Type)}
		b.WriteString(strconv.FormatUint(uint64(p.Mode), 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(info.Params[i].Type), 10))
		b.WriteByte('|')
	}
	b.WriteString("->")
	b.WriteString(strconv.FormatUint(uint64(info.Result), 10))
	return in.internStructuralLocked(b.String(), func() Type {
		in.profiles = append(in.profiles, info)
		slot, err := safecast.Conv[uint32](len(in.profiles) - 1)
		if err != nil {
			panic(fmt.Errorf("profile info overflow: %w", err))
		}
		return Type{Kind: KindProfile, Payload: slot}
	})
}

// ProfileInfo retrieves profile metadata. id may be a profile or a
// subprogram entity.
func (in *Interner) ProfileInfo(id TypeID) (ProfileInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(in.canonicalLocked(id))
	if !ok {
		return ProfileInfo{}, false
	}
	if tt.Kind == KindSubprogram {
		tt, ok = in.lookupLocked(tt.Elem)
		if !ok {
			return ProfileInfo{}, false
		}
	}
	if tt.Kind != KindProfile || int(tt.Payload) >= len(in.profiles) {
		return ProfileInfo{}, false
	}
	info := in.profiles[tt.Payload]
	return ProfileInfo{
		Params: append([]Param(nil), info.Params...),
		Result: info.Result,
	}, true
}

// RegisterSubprogram declares a subprogram entity with the given profile.
func (in *Interner) RegisterSubprogram(name string, profile TypeID, decl scope.Site) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.appendLocked(Type{Kind: KindSubprogram, Elem: profile}, name, decl)
}
