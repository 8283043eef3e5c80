package placement

import (
	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/scope"
)

// Region is the legal hoist region of one reference: the declaration sites
// at which its instance could be elaborated, innermost first. Each entry is
// in a distinct scope on the reference's scope chain.
type Region struct {
	Sites []scope.Site
}

// Inner returns the innermost legal site.
func (r Region) Inner() scope.Site { return r.Sites[0] }

// Outer returns the outermost legal site.
func (r Region) Outer() scope.Site { return r.Sites[len(r.Sites)-1] }

// At returns the region's site in scope id, if the region reaches it.
func (r Region) At(id scope.ID) (scope.Site, bool) {
	for _, s := range r.Sites {
		if s.Scope == id {
			return s, true
		}
	}
	return scope.Site{}, false
}

// Intersects reports whether the two regions share a scope.
func (r Region) Intersects(o Region) bool {
	for _, s := range o.Sites {
		if _, ok := r.At(s.Scope); ok {
			return true
		}
	}
	return false
}

// check holds the per-key legality tests.
type check struct {
	tree *scope.Tree
	body scope.Site
	reqs []scope.Site
}

func (p *Resolver) checkFor(u *generic.Unit, key keys.CanonicalKey) check {
	var reqs []scope.Site
	for _, arg := range key.Args {
		reqs = append(reqs, p.types.Requirements(arg)...)
		if p.opts.PackageSite == nil {
			continue
		}
		if site, ok := p.opts.PackageSite(arg); ok {
			reqs = append(reqs, site)
		}
	}
	return check{tree: p.tree, body: u.Body, reqs: reqs}
}

// elaborated reports whether the generic body is elaborated before site.
func (c check) elaborated(site scope.Site) bool {
	if !c.body.Scope.IsValid() {
		return true
	}
	return c.tree.Precedes(c.body, site)
}

// visible reports whether every descriptor of the key can be named at site.
func (c check) visible(site scope.Site) bool {
	for _, req := range c.reqs {
		if !c.tree.Visible(req, site) {
			return false
		}
	}
	return true
}

func (c check) legal(site scope.Site) bool {
	return c.elaborated(site) && c.visible(site)
}

// Region walks from ref outward. A site joins the region while both tests
// pass; the walk stops at the first failure or at a construct without a
// declarative region.
func (p *Resolver) Region(u *generic.Unit, key keys.CanonicalKey, ref scope.Site) (Region, error) {
	c := p.checkFor(u, key)
	var (
		sites []scope.Site
		abe   bool
	)
	cur := ref
	for {
		sc, ok := p.tree.Get(cur.Scope)
		if !ok {
			return Region{}, diag.Errorf(diag.PlcNoDeclarationSite, "unknown scope %d", cur.Scope)
		}
		if sc.Kind.Declarative() {
			if !c.elaborated(cur) {
				abe = true
				break
			}
			if !c.visible(cur) {
				break
			}
			sites = append(sites, cur)
		} else if !(sc.Kind == scope.KindExpression && p.opts.PassThroughExpressions) {
			break
		}
		if !sc.Parent.IsValid() {
			break
		}
		cur = scope.Site{Scope: sc.Parent, Pos: sc.Anchor}
	}
	if len(sites) == 0 {
		if abe {
			return Region{}, &diag.Error{
				Code:   diag.PlcAccessBeforeElaboration,
				Unit:   u.Name,
				Detail: "generic body is not elaborated before " + p.describe(cur),
			}
		}
		return Region{}, &diag.Error{
			Code:   diag.PlcNoDeclarationSite,
			Unit:   u.Name,
			Detail: "no enclosing declarative region can name " + p.keyLabel(u, key),
		}
	}
	return Region{Sites: sites}, nil
}

func (p *Resolver) describe(site scope.Site) string {
	sc, ok := p.tree.Get(site.Scope)
	if !ok || sc.Name == "" {
		return site.String()
	}
	return sc.Name + "@" + site.String()
}

func (p *Resolver) keyLabel(u *generic.Unit, key keys.CanonicalKey) string {
	return key.Label(u, p.types)
}

