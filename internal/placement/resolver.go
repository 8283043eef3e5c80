// Package placement decides where an implicit instance is declared.
//
// A reference's legal region is a contiguous segment of its scope chain.
// Visibility of the key's descriptors and elaboration of the generic body
// only get harder to satisfy further out, so the segment starts at the
// reference and ends at the first scope where either test fails.
package placement

import (
	"fmt"

	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/registry"
	"instres/internal/scope"
	"instres/internal/types"
)

// Policy governs what happens when two references of one key have
// disjoint regions.
type Policy uint8

const (
	// SharingStrict refuses a second record when instances of the unit can
	// be told apart by the program.
	SharingStrict Policy = iota
	// SharingRelaxed always allows a second record.
	SharingRelaxed
)

func (p Policy) String() string {
	switch p {
	case SharingStrict:
		return "strict"
	case SharingRelaxed:
		return "relaxed"
	default:
		return fmt.Sprintf("Policy(%d)", p)
	}
}

// ParsePolicy converts a textual policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "strict":
		return SharingStrict, nil
	case "relaxed":
		return SharingRelaxed, nil
	default:
		return SharingStrict, fmt.Errorf("invalid sharing policy: %q (expected: strict|relaxed)", s)
	}
}

// Options configures the resolver.
type Options struct {
	Policy Policy
	// PassThroughExpressions lets the walk cross expression-bodied
	// constructs instead of stopping there.
	PassThroughExpressions bool
	// PackageSite reports where the instance behind a package actual is
	// declared; the site must be visible wherever the key is placed.
	PackageSite func(types.TypeID) (scope.Site, bool)
}

// Action says what Place did.
type Action uint8

const (
	Created Action = iota + 1 // first record of the key
	Shared                    // existing record already in the region
	Moved                     // existing record hoisted further out
	Split                     // sibling record for a disjoint region
)

func (a Action) String() string {
	switch a {
	case Created:
		return "created"
	case Shared:
		return "shared"
	case Moved:
		return "moved"
	case Split:
		return "split"
	default:
		return "unknown"
	}
}

// Decision is the outcome of placing one reference.
type Decision struct {
	Instance *registry.Instance
	Action   Action
	From     scope.Site // previous declaration site for Shared and Moved
	To       scope.Site
	Region   Region
}

// Resolver places instances in the scope tree.
type Resolver struct {
	tree  *scope.Tree
	types *types.Interner
	opts  Options
}

// New creates a resolver.
func New(tree *scope.Tree, in *types.Interner, opts Options) *Resolver {
	return &Resolver{tree: tree, types: in, opts: opts}
}

// Place attaches ref to a record of key, creating, sharing, moving or
// splitting as needed. The decision is taken under the key's registry
// transaction. A record already serving a reference whose region intersects
// ref's region is preferred, so overlapping references share one record even
// after a split sibling has moved outward. Once a record of the key has failed, every later reference
// gets its cached error and nothing is attached, moved or split.
func (p *Resolver) Place(reg *registry.Registry, u *generic.Unit, key keys.CanonicalKey, ref scope.Site) (Decision, error) {
	var dec Decision
	err := reg.Update(key, func(tx *registry.Txn) error {
		members := tx.Members()
		for _, x := range members {
			if x.State() == registry.Failed {
				return x.Err()
			}
		}
		region, err := p.Region(u, key, ref)
		if err != nil {
			return err
		}
		c := p.checkFor(u, key)
		if len(members) == 0 {
			x, _ := tx.GetOrCreate()
			dec = p.commit(x, Created, scope.Site{}, region.Outer(), ref)
			dec.Region = region
			return nil
		}
		if x := p.owner(u, key, members, region); x != nil {
			d, ok := p.share(x, region, ref)
			if !ok {
				d, ok = p.move(c, x, region, ref)
			}
			if ok {
				d.Region = region
				dec = d
				return nil
			}
		}
		for _, x := range members {
			if d, ok := p.share(x, region, ref); ok {
				d.Region = region
				dec = d
				return nil
			}
		}
		for _, x := range members {
			if d, ok := p.move(c, x, region, ref); ok {
				d.Region = region
				dec = d
				return nil
			}
		}
		if p.opts.Policy == SharingStrict && u.ObservableIdentity {
			return &diag.Error{
				Code:   diag.PlcNoDeclarationSite,
				Unit:   u.Name,
				Detail: "hoist regions do not overlap and a second instance would be observably distinct",
			}
		}
		dec = p.commit(tx.Split(), Split, scope.Site{}, region.Outer(), ref)
		dec.Region = region
		return nil
	})
	return dec, err
}

// owner returns the member holding a reference whose region intersects
// region. At most one member can: a split only happens when no region of an
// attached reference intersects the new one.
func (p *Resolver) owner(u *generic.Unit, key keys.CanonicalKey, members []*registry.Instance, region Region) *registry.Instance {
	for _, x := range members {
		seen := make(map[scope.Site]bool)
		for _, site := range x.Sites() {
			if seen[site] {
				continue
			}
			seen[site] = true
			r, err := p.Region(u, key, site)
			if err == nil && r.Intersects(region) {
				return x
			}
		}
	}
	return nil
}

// share reuses x when its declaration scope lies in the region, keeping the
// earlier of the two sites, or when x is already visible from ref.
func (p *Resolver) share(x *registry.Instance, region Region, ref scope.Site) (Decision, bool) {
	d, _ := x.Placement()
	if s, ok := region.At(d.Scope); ok {
		to := d
		if s.Pos < d.Pos {
			to = s
		}
		return p.commit(x, Shared, d, to, ref), true
	}
	if p.reaches(d, ref) {
		return p.commit(x, Shared, d, d, ref), true
	}
	return Decision{}, false
}

// move hoists x to the innermost region scope that encloses its current
// declaration. Every reference already attached must still follow the new
// site.
func (p *Resolver) move(c check, x *registry.Instance, region Region, ref scope.Site) (Decision, bool) {
	d, _ := x.Placement()
	attached := x.Sites()
	for _, s := range region.Sites {
		if s.Scope == d.Scope || !p.tree.Encloses(s.Scope, d.Scope) {
			continue
		}
		to := s
		if proj, ok := p.tree.Project(d, s.Scope); ok && proj.Pos < s.Pos && c.legal(proj) {
			to = proj
		}
		if !p.precedesAll(to, attached) {
			continue
		}
		return p.commit(x, Moved, d, to, ref), true
	}
	return Decision{}, false
}

func (p *Resolver) precedesAll(site scope.Site, refs []scope.Site) bool {
	for _, r := range refs {
		if !p.reaches(site, r) {
			return false
		}
	}
	return true
}

// reaches reports whether an instance declared at decl can be named at ref.
// An instance placed at the reference itself is declared just before it.
func (p *Resolver) reaches(decl, ref scope.Site) bool {
	return decl == ref || p.tree.Visible(decl, ref)
}

func (p *Resolver) commit(x *registry.Instance, action Action, from, to scope.Site, ref scope.Site) Decision {
	x.Place(to, p.tree.Level(to.Scope))
	x.Attach(ref)
	return Decision{Instance: x, Action: action, From: from, To: to}
}
