// Package trace is the logging layer of the resolver.
//
// Sessions, requests and resolution phases open spans; sharing, hoisting
// moves and splits are recorded as point events. Tracers travel through
// context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeRequest, "request", 0)
//	defer span.End("")
//
// Implementations:
//
//   - Nop: disabled tracing, zero overhead
//   - StreamTracer: writes every event immediately
//   - RingTracer: keeps the last N events for post-mortem dumps
//   - MultiTracer: fans out to several tracers
//
// Levels map to scopes: phase shows sessions and requests, detail adds the
// per-request phases, debug adds point events inside phases.
package trace
