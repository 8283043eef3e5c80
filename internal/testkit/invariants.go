// Package testkit holds structural checks shared by the resolver tests.
package testkit

import (
	"fmt"

	"instres/internal/placement"
	"instres/internal/registry"
	"instres/internal/resolver"
)

// CheckRegistryInvariants runs the placement invariants over every record
// of a session:
// 1) the record's unit is declared and is not stateful
// 2) a placed record is visible from every reference attached to it
// 3) the recorded level is the depth of the declaration scope
// 4) only placed records have left the pending state
// 5) under strict sharing an observably distinct unit has one record per key
func CheckRegistryInvariants(s *resolver.Session) error {
	if s == nil {
		return fmt.Errorf("nil session")
	}
	tree := s.Scopes()
	families := make(map[string][]registry.Info)
	for _, info := range s.Registry().Snapshot() {
		u := s.Units().Get(info.Key.Unit)
		if u == nil {
			return fmt.Errorf("instance %d: unknown unit %d", info.ID, info.Key.Unit)
		}
		if u.Stateful {
			return fmt.Errorf("instance %d: stateful unit %s registered", info.ID, u.Name)
		}
		if !info.Placed {
			if info.State != registry.Pending {
				return fmt.Errorf("instance %d: %s before placement", info.ID, info.State)
			}
			continue
		}
		if got, want := info.Level, tree.Level(info.Decl.Scope); got != want {
			return fmt.Errorf("instance %d: level %d, declaration scope is at %d", info.ID, got, want)
		}
		for _, site := range info.Sites {
			if site != info.Decl && !tree.Visible(info.Decl, site) {
				return fmt.Errorf("instance %d: declaration %s not visible from %s", info.ID, info.Decl, site)
			}
		}
		k := info.Key.String()
		families[k] = append(families[k], info)
	}
	if s.Options().Sharing != placement.SharingStrict {
		return nil
	}
	for _, fam := range families {
		if len(fam) < 2 {
			continue
		}
		if u := s.Units().Get(fam[0].Key.Unit); u.ObservableIdentity {
			return fmt.Errorf("unit %s: %d records for one key under strict sharing", u.Name, len(fam))
		}
	}
	return nil
}
