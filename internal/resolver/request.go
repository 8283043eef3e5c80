package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"instres/internal/diag"
	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/placement"
	"instres/internal/registry"
	"instres/internal/scope"
	"instres/internal/source"
	"instres/internal/trace"
	"instres/internal/types"
)

// Request is one structural reference to a generic unit.
type Request struct {
	Unit    generic.UnitID
	Actuals []keys.Actual
	Site    scope.Site
	Span    source.Span
	// Reporter additionally receives the failure, if any.
	Reporter diag.Reporter
}

// Handle identifies the instance serving a request.
type Handle struct {
	ID       registry.ID
	Key      keys.CanonicalKey
	Action   placement.Action
	Decl     scope.Site
	Level    uint32
	Inferred []int // formals whose actual was deduced
}

// RequestInstantiation resolves one reference to a handle. Resolution is
// all or nothing: on error no record is created or changed.
func (s *Session) RequestInstantiation(ctx context.Context, req Request) (Handle, error) {
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeRequest, "request", trace.CurrentSpan(ctx))
	span.WithExtra("site", req.Site.String())

	h, err := s.request(tr, span.ID(), req)
	if err != nil {
		err = locate(err, req.Span)
		s.report(err, req)
		span.End(err.Error())
		return Handle{}, err
	}
	span.WithExtra("instance", strconv.FormatUint(uint64(h.ID), 10)).End(h.Action.String())
	return h, nil
}

func (s *Session) request(tr trace.Tracer, parent uint64, req Request) (Handle, error) {
	u := s.units.Get(req.Unit)
	if u == nil {
		return Handle{}, &diag.Error{Code: diag.KeyUnknownUnit, Detail: fmt.Sprintf("unit #%d", req.Unit)}
	}
	if u.Stateful {
		return Handle{}, &diag.Error{
			Code:   diag.RegStatefulGenericNotAllowed,
			Unit:   u.Name,
			Detail: "elaboration has observable side effects",
		}
	}

	var list keys.List
	err := s.phase(tr, parent, "key", func(uint64) (err error) {
		list, err = s.builder.Align(u, req.Actuals, req.Site)
		return err
	})
	if err != nil {
		return Handle{}, err
	}

	var (
		key      keys.CanonicalKey
		inferred []int
	)
	err = s.phase(tr, parent, "infer", func(id uint64) error {
		res, err := s.engine.Infer(u, list)
		if err != nil {
			return err
		}
		inferred = res.Inferred()
		for _, i := range inferred {
			b := res.Bindings[i]
			trace.Point(tr, trace.ScopeDetail, "inferred", id, fmt.Sprintf("%s => %s (%s from %s)",
				u.Formals[i].Name, s.types.Label(b.Type), b.Strength, u.Formals[b.Source].Name))
		}
		key, _ = keys.FromList(u.ID, res.List)
		return s.checkPackages(u, key)
	})
	if err != nil {
		return Handle{}, err
	}

	var dec placement.Decision
	err = s.phase(tr, parent, "place", func(id uint64) (err error) {
		dec, err = s.placer.Place(s.registry, u, key, req.Site)
		if err == nil {
			trace.Point(tr, trace.ScopeDetail, dec.Action.String(), id, fmt.Sprintf("%s: %s -> %s", key.Label(u, s.types), dec.From, dec.To))
		}
		return err
	})
	if err != nil {
		return Handle{}, err
	}

	x := dec.Instance
	if x.State() == registry.Failed {
		return Handle{}, x.Err()
	}
	return Handle{
		ID:       x.ID(),
		Key:      key,
		Action:   dec.Action,
		Decl:     dec.To,
		Level:    x.Level(),
		Inferred: inferred,
	}, nil
}

// checkPackages verifies that every package actual is an instance of the
// generic its formal names.
func (s *Session) checkPackages(u *generic.Unit, key keys.CanonicalKey) error {
	for i, f := range u.Formals {
		if f.Kind != generic.FormalPackage || f.Package == generic.NoUnitID {
			continue
		}
		tt, _ := s.types.Lookup(key.Args[i])
		x := s.registry.Get(registry.ID(tt.Payload))
		if tt.Kind == types.KindPackage && x != nil && x.Key().Unit == f.Package {
			continue
		}
		want := s.units.Get(f.Package)
		return &diag.Error{
			Code:   diag.InfShapeMismatch,
			Unit:   u.Name,
			Formal: f.Name,
			Detail: "expected an instance of " + want.Name,
		}
	}
	return nil
}

// Await returns the elaborated entity of an instance, elaborating it on
// first use. Later callers block until the first finishes; a failure is
// cached and returned to everyone.
func (s *Session) Await(ctx context.Context, id registry.ID) (registry.Entity, error) {
	x := s.registry.Get(id)
	if x == nil {
		return registry.Entity{}, fmt.Errorf("resolver: unknown instance %d", id)
	}
	u := s.units.Get(x.Key().Unit)
	tr := trace.FromContext(ctx)
	var e registry.Entity
	err := s.phase(tr, trace.CurrentSpan(ctx), "elaborate", func(uint64) (err error) {
		e, err = x.Elaborate(ctx, func(ctx context.Context) (e registry.Entity, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", registry.ErrPanicked, r)
				}
				if err != nil {
					e, err = registry.Entity{}, &diag.Error{
						Code:   diag.ElbElaborationFailure,
						Unit:   u.Name,
						Detail: x.Key().Label(u, s.types),
						Cause:  err,
					}
				}
			}()
			return s.elab.Elaborate(ctx, u, x.Key())
		})
		return err
	})
	var de *diag.Error
	if errors.As(err, &de) {
		s.mu.Lock()
		de.Report(s.reporter)
		s.mu.Unlock()
	}
	return e, err
}

func (s *Session) phase(tr trace.Tracer, parent uint64, name string, fn func(id uint64) error) error {
	span := trace.Begin(tr, trace.ScopePhase, name, parent)
	done := s.timer.Track(name)
	err := fn(span.ID())
	done()
	if err != nil {
		span.End(err.Error())
		return err
	}
	span.End("")
	return nil
}

func (s *Session) report(err error, req Request) {
	s.mu.Lock()
	emit(s.reporter, err, req.Span)
	s.mu.Unlock()
	if req.Reporter != nil {
		emit(req.Reporter, err, req.Span)
	}
}

func emit(r diag.Reporter, err error, span source.Span) {
	var de *diag.Error
	if errors.As(err, &de) {
		de.Report(r)
		return
	}
	diag.ReportError(r, diag.UnknownCode, span, strings.TrimSpace(err.Error())).Emit()
}

// locate anchors an unlocated resolver error at the reference span. The
// cached error of a failed instance is copied, never modified.
func locate(err error, span source.Span) error {
	de, ok := err.(*diag.Error)
	if !ok || de.Span != (source.Span{}) {
		return err
	}
	return de.At(span)
}
