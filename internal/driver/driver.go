// Package driver runs a scenario's references the way a parallel front end
// would: one goroutine per translation unit, references of a unit in order.
package driver

import (
	"context"
	"errors"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"instres/internal/diag"
	"instres/internal/observ"
	"instres/internal/registry"
	"instres/internal/resolver"
	"instres/internal/scenario"
	"instres/internal/trace"
)

// Options configures a run.
type Options struct {
	Jobs  int           // <= 0 uses GOMAXPROCS
	Timer *observ.Timer // optional; adds a "resolve" phase and a timing diagnostic

	// Progress receives per translation unit events. Optional.
	Progress ProgressSink
}

// Result is the outcome of one reference.
type Result struct {
	Ref     scenario.Reference
	Handle  resolver.Handle
	Entity  registry.Entity
	Err     error
	Elapsed time.Duration
}

// Code is the diagnostic ID of the failure, or "" on success.
func (r Result) Code() string {
	if r.Err == nil {
		return ""
	}
	var de *diag.Error
	if errors.As(r.Err, &de) {
		return de.Code.ID()
	}
	return diag.UnknownCode.ID()
}

// OK reports whether the reference behaved as the scenario expects.
func (r Result) OK() bool {
	return r.Code() == r.Ref.Expect
}

// Report collects a run's results in scenario order.
type Report struct {
	Results     []Result
	Diagnostics []diag.Diagnostic
	// DiagnosticLimit is the session's cap; LimitReached is set once the
	// session kept that many.
	DiagnosticLimit int
	LimitReached    bool
}

// Failed counts the results that did not meet their expectation.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// Run resolves every reference of w. Resolution failures are recorded in
// the results; the returned error is only set when ctx is cancelled.
func Run(ctx context.Context, w *scenario.World, opts Options) (*Report, error) {
	tus := w.TranslationUnits()
	results := make([]Result, len(w.References))
	if len(tus) == 0 {
		return &Report{}, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	phase := -1
	if opts.Timer != nil {
		phase = opts.Timer.Begin("resolve")
	}

	tr := trace.FromContext(ctx)
	root := trace.Begin(tr, trace.ScopeSession, "resolve", trace.CurrentSpan(ctx))
	root.WithExtra("session", w.Session.ID().String())
	ctx = trace.WithSpan(ctx, root)

	for _, refs := range tus {
		emit(opts.Progress, Event{TU: refs[0].TU, Status: StatusQueued, Total: len(refs)})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(tus)))
	for _, refs := range tus {
		g.Go(func() error {
			tu := refs[0].TU
			span := trace.Begin(tr, trace.ScopeSession, "tu", root.ID())
			span.WithExtra("tu", tu)
			defer span.End("")
			tctx := trace.WithSpan(gctx, span)
			began := time.Now()
			status := StatusDone
			for i, ref := range refs {
				select {
				case <-gctx.Done():
					emit(opts.Progress, Event{TU: tu, Status: StatusError, Resolved: i, Total: len(refs), Elapsed: time.Since(began)})
					return gctx.Err()
				default:
				}
				start := time.Now()
				h, e, err := w.Resolve(tctx, ref)
				// each reference owns its slot
				res := Result{Ref: ref, Handle: h, Entity: e, Err: err, Elapsed: time.Since(start)}
				results[ref.Index] = res
				if !res.OK() {
					status = StatusError
				}
				emit(opts.Progress, Event{TU: tu, Status: StatusResolving, Resolved: i + 1, Total: len(refs), Elapsed: time.Since(began)})
			}
			emit(opts.Progress, Event{TU: tu, Status: status, Resolved: len(refs), Total: len(refs), Elapsed: time.Since(began)})
			return nil
		})
	}
	err := g.Wait()
	root.End("")

	report := &Report{Results: results, Diagnostics: w.Session.Diagnostics()}
	report.DiagnosticLimit, report.LimitReached = w.Session.DiagnosticLimit()
	if report.LimitReached {
		report.Diagnostics = append(report.Diagnostics, limitDiagnostic(report.DiagnosticLimit))
	}
	if opts.Timer != nil {
		opts.Timer.End(phase, "")
		report.Diagnostics = append(report.Diagnostics, timingDiagnostic(opts.Timer.Report()))
	}
	return report, err
}
