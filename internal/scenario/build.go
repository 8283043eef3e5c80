package scenario

import (
	"context"
	"fmt"
	"strings"

	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/observ"
	"instres/internal/placement"
	"instres/internal/registry"
	"instres/internal/resolver"
	"instres/internal/scope"
	"instres/internal/source"
	"instres/internal/types"
)

// DefaultTU names the translation unit of references that do not set one.
const DefaultTU = "main"

// Config adjusts how a scenario is built.
type Config struct {
	Timer *observ.Timer
	// Options replaces the scenario's [options] table when set.
	Options *resolver.Options
}

// World is a built scenario: a live session plus the references to run
// against it.
type World struct {
	Session    *resolver.Session
	Files      *source.FileSet
	References []Reference

	scopes map[string]scope.ID
	units  map[string]generic.UnitID
	names  *nameTable
}

// Reference is a compiled ReferenceSpec.
type Reference struct {
	Index   int // position in the scenario file
	ID      string
	TU      string
	Generic string
	Request resolver.Request
	Await   bool
	Expect  string
}

// Build declares everything in f against a fresh session.
func Build(f *File, cfg Config) (*World, error) {
	opts, err := f.options()
	if err != nil {
		return nil, err
	}
	if cfg.Options != nil {
		opts = *cfg.Options
	}

	tree := scope.NewTree()
	in := types.NewInterner()
	w := &World{
		Files:  source.NewFileSet(),
		scopes: map[string]scope.ID{"standard": scope.RootID},
		units:  make(map[string]generic.UnitID),
		names:  newNameTable(in, tree),
	}
	for i, s := range f.Scopes {
		if err := w.declareScope(tree, s); err != nil {
			return nil, fmt.Errorf("scopes[%d]: %w", i, err)
		}
	}
	for i, t := range f.Types {
		if err := w.declareType(in, t); err != nil {
			return nil, fmt.Errorf("types[%d] %s: %w", i, t.Name, err)
		}
	}

	failing := make(map[string]bool)
	w.Session, err = resolver.New(resolver.Config{
		Types:      in,
		Scopes:     tree,
		Names:      w.names,
		Elaborator: &elaborator{types: in, failing: failing},
		Timer:      cfg.Timer,
		Options:    opts,
	})
	if err != nil {
		return nil, err
	}
	w.names.packages = func(x registry.ID) types.TypeID { return w.Session.PackageActual(x) }

	for i, u := range f.Units {
		if err := w.declareUnit(u); err != nil {
			return nil, fmt.Errorf("units[%d] %s: %w", i, u.Name, err)
		}
		if u.FailElaboration {
			failing[u.Name] = true
		}
	}
	if err := w.compileReferences(f.References); err != nil {
		return nil, err
	}
	return w, nil
}

func (f *File) options() (resolver.Options, error) {
	opts := resolver.DefaultOptions()
	policy, err := placement.ParsePolicy(f.Options.Sharing)
	if err != nil {
		return opts, fmt.Errorf("options: %w", err)
	}
	opts.Sharing = policy
	opts.PassThroughExpressions = f.Options.PassThroughExpressions
	if f.Options.MaxDiagnostics != 0 {
		opts.MaxDiagnostics = f.Options.MaxDiagnostics
	}
	return opts, nil
}

func (w *World) scope(name string) (scope.ID, error) {
	if name == "" {
		return scope.RootID, nil
	}
	id, ok := w.scopes[strings.ToLower(name)]
	if !ok {
		return scope.NoID, fmt.Errorf("unknown scope %q", name)
	}
	return id, nil
}

func (w *World) site(scopeName string, pos uint32) (scope.Site, error) {
	id, err := w.scope(scopeName)
	if err != nil {
		return scope.Site{}, err
	}
	return scope.Site{Scope: id, Pos: pos}, nil
}

func (w *World) declareScope(tree *scope.Tree, s ScopeSpec) error {
	kind, err := scope.ParseKind(s.Kind)
	if err != nil {
		return err
	}
	parent, err := w.scope(s.Parent)
	if err != nil {
		return err
	}
	id, err := tree.New(kind, s.Name, parent, s.Anchor)
	if err != nil {
		return err
	}
	w.scopes[strings.ToLower(s.Name)] = id
	return nil
}

func (w *World) declareType(in *types.Interner, t TypeSpec) error {
	decl, err := w.site(t.Scope, t.Pos)
	if err != nil {
		return err
	}
	if t.Scope == "" {
		decl = scope.Predefined
	}
	ref := w.names.lookup
	var id types.TypeID
	switch t.Kind {
	case "", "scalar":
		id = in.RegisterScalar(t.Name, decl)
	case "subtype", "alias", "object":
		base, err := ref(t.Base)
		if err != nil {
			return err
		}
		switch t.Kind {
		case "subtype":
			id = in.RegisterSubtype(t.Name, base, decl)
		case "alias":
			id = in.RegisterAlias(t.Name, base, decl)
		default:
			id = in.RegisterObject(t.Name, base, decl)
		}
	case "array":
		elem, err := ref(t.Element)
		if err != nil {
			return err
		}
		indices := make([]types.TypeID, len(t.Indices))
		for i, name := range t.Indices {
			if indices[i], err = ref(name); err != nil {
				return err
			}
		}
		if t.Anonymous {
			id = in.AnonymousArray(indices, elem)
		} else {
			id = in.RegisterArray(t.Name, indices, elem, decl)
		}
	case "access":
		target, err := ref(t.Designated)
		if err != nil {
			return err
		}
		if t.Anonymous {
			id = in.AnonymousAccess(target, t.Constant)
		} else {
			id = in.RegisterAccess(t.Name, target, t.Constant, decl)
		}
	case "subprogram", "procedure", "function":
		params := make([]types.Param, len(t.Params))
		for i, p := range t.Params {
			mode, err := types.ParseMode(p.Mode)
			if err != nil {
				return err
			}
			pt, err := ref(p.Type)
			if err != nil {
				return err
			}
			params[i] = types.Param{Mode: mode, Type: pt}
		}
		var result types.TypeID
		if t.Result != "" {
			if result, err = ref(t.Result); err != nil {
				return err
			}
		}
		id = in.RegisterSubprogram(t.Name, in.RegisterProfile(params, result), decl)
	default:
		return fmt.Errorf("unknown type kind %q (expected: scalar|subtype|alias|array|access|object|subprogram)", t.Kind)
	}
	w.names.declare(t.Name, id)
	return nil
}

func (w *World) declareUnit(u UnitSpec) error {
	decl := generic.Decl{
		Name:               u.Name,
		Stateful:           u.Stateful,
		ObservableIdentity: u.ObservableIdentity,
		Formals:            make([]generic.Formal, len(u.Formals)),
	}
	if u.Scope != "" {
		body, err := w.site(u.Scope, u.Pos)
		if err != nil {
			return err
		}
		decl.Body = body
	}
	index := make(map[string]int, len(u.Formals))
	for i, f := range u.Formals {
		index[generic.FoldName(f.Name)] = i
	}
	for i, f := range u.Formals {
		formal, err := w.formal(f, index)
		if err != nil {
			return fmt.Errorf("formal %s: %w", f.Name, err)
		}
		decl.Formals[i] = formal
	}
	id, err := w.Session.DeclareGenericUnit(decl)
	if err != nil {
		return err
	}
	w.units[strings.ToLower(u.Name)] = id
	return nil
}

func (w *World) formal(f FormalSpec, index map[string]int) (generic.Formal, error) {
	kind, err := generic.ParseFormalKind(f.Kind)
	if err != nil {
		return generic.Formal{}, err
	}
	out := generic.Formal{Name: f.Name, Kind: kind}
	ref := func(name string) (generic.Ref, error) {
		if name == "" || name == "<>" {
			return generic.Any, nil
		}
		if i, ok := index[generic.FoldName(name)]; ok {
			return generic.RefFormal(i), nil
		}
		t, err := w.names.lookup(name)
		if err != nil {
			return generic.Any, err
		}
		return generic.RefFixed(t), nil
	}
	switch kind {
	case generic.FormalType:
		switch f.Shape {
		case "":
		case "array":
			elem, err := ref(f.Element)
			if err != nil {
				return out, err
			}
			indices := make([]generic.Ref, len(f.Indices))
			for i, name := range f.Indices {
				if indices[i], err = ref(name); err != nil {
					return out, err
				}
			}
			out.Shape = generic.ArrayOf(elem, indices...)
		case "access":
			target, err := ref(f.Designated)
			if err != nil {
				return out, err
			}
			out.Shape = generic.AccessTo(target)
			out.Shape.Constant = f.Constant
		default:
			return out, fmt.Errorf("unknown shape %q (expected: array|access)", f.Shape)
		}
	case generic.FormalObject:
		if out.ObjectType, err = ref(f.ObjectType); err != nil {
			return out, err
		}
	case generic.FormalSubprogram:
		for _, p := range f.Params {
			mode, err := types.ParseMode(p.Mode)
			if err != nil {
				return out, err
			}
			pt, err := ref(p.Type)
			if err != nil {
				return out, err
			}
			out.Profile.Params = append(out.Profile.Params, generic.Param{Name: p.Name, Mode: mode, Type: pt})
		}
		if f.Result != "" {
			if out.Profile.Result, err = ref(f.Result); err != nil {
				return out, err
			}
			out.Profile.HasResult = true
		}
	case generic.FormalPackage:
		id, ok := w.units[strings.ToLower(f.Package)]
		if !ok {
			return out, fmt.Errorf("unknown generic %q", f.Package)
		}
		out.Package = id
	}
	return out, nil
}

func (w *World) compileReferences(refs []ReferenceSpec) error {
	resolved := make(map[string]string) // reference id -> translation unit
	ordinal := make(map[string]uint32)
	for i, r := range refs {
		tu := r.TU
		if tu == "" {
			tu = DefaultTU
		}
		unit, ok := w.units[strings.ToLower(r.Generic)]
		if !ok {
			return fmt.Errorf("references[%d]: unknown generic %q", i, r.Generic)
		}
		site, err := w.site(r.Scope, r.Pos)
		if err != nil {
			return fmt.Errorf("references[%d]: %w", i, err)
		}
		actuals := make([]keys.Actual, len(r.Actuals))
		for j, a := range r.Actuals {
			actuals[j] = keys.Actual{Name: a.Name}
			if a.Expr == "<>" {
				continue
			}
			actuals[j].Expr = a.Expr
			if dep, ok := strings.CutPrefix(a.Expr, "@"); ok {
				if resolved[strings.ToLower(dep)] != tu {
					return fmt.Errorf("references[%d]: @%s must name an earlier reference of translation unit %s", i, dep, tu)
				}
			}
		}
		file := w.Files.Add(tu)
		n := ordinal[tu]
		ordinal[tu]++
		w.References = append(w.References, Reference{
			Index:   i,
			ID:      r.ID,
			TU:      tu,
			Generic: r.Generic,
			Await:   r.Await,
			Expect:  r.Expect,
			Request: resolver.Request{
				Unit:    unit,
				Actuals: actuals,
				Site:    site,
				Span:    source.Span{File: file, Start: n, End: n + 1},
			},
		})
		if r.ID != "" {
			resolved[strings.ToLower(r.ID)] = tu
		}
	}
	return nil
}

// TranslationUnits groups the references by translation unit, units in
// order of first appearance and references in file order.
func (w *World) TranslationUnits() [][]Reference {
	var (
		out   [][]Reference
		index = make(map[string]int)
	)
	for _, r := range w.References {
		i, ok := index[r.TU]
		if !ok {
			i = len(out)
			index[r.TU] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], r)
	}
	return out
}

// Bind records the instance serving ref so later "@id" actuals can name it.
func (w *World) Bind(ref Reference, h resolver.Handle) {
	if ref.ID != "" {
		w.names.bind(strings.ToLower(ref.ID), h.ID)
	}
}

// Resolve runs one reference: the request, then elaboration when the
// reference asks for it.
func (w *World) Resolve(ctx context.Context, ref Reference) (resolver.Handle, registry.Entity, error) {
	h, err := w.Session.RequestInstantiation(ctx, ref.Request)
	if err != nil {
		return resolver.Handle{}, registry.Entity{}, err
	}
	w.Bind(ref, h)
	if !ref.Await {
		return h, registry.Entity{}, nil
	}
	e, err := w.Session.Await(ctx, h.ID)
	return h, e, err
}

// ScopeName returns the name a scope was declared under.
func (w *World) ScopeName(id scope.ID) string {
	sc, ok := w.Session.Scopes().Get(id)
	if !ok {
		return fmt.Sprintf("scope#%d", id)
	}
	return sc.Name
}

type elaborator struct {
	types   *types.Interner
	failing map[string]bool // written only while building
}

func (e *elaborator) Elaborate(ctx context.Context, u *generic.Unit, key keys.CanonicalKey) (registry.Entity, error) {
	if e.failing[u.Name] {
		return registry.Entity{}, fmt.Errorf("body of %s rejected by scenario", u.Name)
	}
	return resolver.NamingElaborator{Types: e.types}.Elaborate(ctx, u, key)
}
