// Package resolver is the entry point of the instantiation resolver: a
// Session owns the generic units, the identity registry and the placement
// resolver of one compilation, and serves instantiation requests from any
// number of front-end threads.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/infer"
	"instres/internal/keys"
	"instres/internal/observ"
	"instres/internal/placement"
	"instres/internal/registry"
	"instres/internal/scope"
	"instres/internal/types"
)

// Elaborator produces the entity of an instance. The session calls it at
// most once per instance.
type Elaborator interface {
	Elaborate(ctx context.Context, u *generic.Unit, key keys.CanonicalKey) (registry.Entity, error)
}

// NamingElaborator names each instance after its key and does nothing else.
type NamingElaborator struct {
	Types *types.Interner
}

func (e NamingElaborator) Elaborate(_ context.Context, u *generic.Unit, key keys.CanonicalKey) (registry.Entity, error) {
	return registry.Entity{Name: key.Label(u, e.Types)}, nil
}

// Config wires a session to its collaborators.
type Config struct {
	Types      *types.Interner
	Scopes     *scope.Tree
	Names      keys.NameResolver
	Elaborator Elaborator    // NamingElaborator when nil
	Timer      *observ.Timer // optional
	Options    Options
}

// Session is one compilation's resolver state.
type Session struct {
	id       uuid.UUID
	opts     Options
	types    *types.Interner
	scopes   *scope.Tree
	units    *generic.Units
	builder  *keys.Builder
	engine   *infer.Engine
	registry *registry.Registry
	placer   *placement.Resolver
	elab     Elaborator
	timer    *observ.Timer

	mu       sync.Mutex // guards bag
	bag      *diag.Bag
	reporter diag.Reporter
}

// New creates a session.
func New(cfg Config) (*Session, error) {
	if cfg.Types == nil || cfg.Scopes == nil || cfg.Names == nil {
		return nil, errors.New("resolver: types, scopes and name resolver are required")
	}
	if err := cfg.Options.validate(); err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	elab := cfg.Elaborator
	if elab == nil {
		elab = NamingElaborator{Types: cfg.Types}
	}
	bag := diag.NewBag(cfg.Options.MaxDiagnostics)
	s := &Session{
		id:       uuid.New(),
		opts:     cfg.Options,
		types:    cfg.Types,
		scopes:   cfg.Scopes,
		units:    generic.NewUnits(),
		builder:  keys.NewBuilder(cfg.Types, cfg.Names),
		engine:   infer.NewEngine(cfg.Types),
		registry: registry.New(),
		elab:     elab,
		timer:    cfg.Timer,
		bag:      bag,
		reporter: diag.NewDedupReporter(diag.NewBagReporter(bag)),
	}
	s.placer = placement.New(cfg.Scopes, cfg.Types, placement.Options{
		Policy:                 cfg.Options.Sharing,
		PassThroughExpressions: cfg.Options.PassThroughExpressions,
		PackageSite:            s.packageSite,
	})
	return s, nil
}

func (s *Session) packageSite(id types.TypeID) (scope.Site, bool) {
	tt, ok := s.types.Lookup(id)
	if !ok || tt.Kind != types.KindPackage {
		return scope.Site{}, false
	}
	x := s.registry.Get(registry.ID(tt.Payload))
	if x == nil {
		return scope.Site{}, false
	}
	return x.Placement()
}

func (s *Session) ID() uuid.UUID                { return s.id }
func (s *Session) Options() Options             { return s.opts }
func (s *Session) Types() *types.Interner       { return s.types }
func (s *Session) Scopes() *scope.Tree          { return s.scopes }
func (s *Session) Units() *generic.Units        { return s.units }
func (s *Session) Registry() *registry.Registry { return s.registry }

// Diagnostics returns a copy of every failure reported so far.
func (s *Session) Diagnostics() []diag.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]diag.Diagnostic(nil), s.bag.Items()...)
}

// DiagnosticLimit returns the session's diagnostic cap and whether the bag
// has filled up to it. Failures reported after that are dropped.
func (s *Session) DiagnosticLimit() (limit int, reached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bag.Cap(), s.bag.Len() >= s.bag.Cap()
}

// DeclareGenericUnit registers a generic unit.
func (s *Session) DeclareGenericUnit(decl generic.Decl) (generic.UnitID, error) {
	if decl.Body.Scope.IsValid() {
		if _, ok := s.scopes.Get(decl.Body.Scope); !ok {
			return generic.NoUnitID, fmt.Errorf("%w: %s: body scope %d does not exist", generic.ErrInvalidUnit, decl.Name, decl.Body.Scope)
		}
	}
	for _, f := range decl.Formals {
		if f.Kind == generic.FormalPackage && s.units.Get(f.Package) == nil {
			return generic.NoUnitID, fmt.Errorf("%w: %s: formal package %q names unknown unit %d", generic.ErrInvalidUnit, decl.Name, f.Name, f.Package)
		}
	}
	return s.units.Declare(decl)
}

// Instance returns the record behind a handle, or nil.
func (s *Session) Instance(id registry.ID) *registry.Instance {
	return s.registry.Get(id)
}

// DeclarationScope is the accessibility checker's view of an instance:
// where it is declared and at which level.
func (s *Session) DeclarationScope(id registry.ID) (scope.ID, uint32, bool) {
	x := s.registry.Get(id)
	if x == nil {
		return scope.NoID, 0, false
	}
	decl, placed := x.Placement()
	if !placed {
		return scope.NoID, 0, false
	}
	return decl.Scope, x.Level(), true
}

// PackageActual returns the descriptor under which an instance can be
// passed as the actual of a formal package.
func (s *Session) PackageActual(id registry.ID) types.TypeID {
	return s.types.PackageInstance(uint32(id))
}
