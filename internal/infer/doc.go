// Package infer deduces the unbound actuals of a generic instantiation from
// the actuals that were written.
//
// Array and access shapes give strong candidates, subprogram profiles give
// weak ones. Candidates flow along the unit's dependency graph in rounds
// until nothing changes; the consistency checker then applies precedence
// and reports disagreements.
package infer
