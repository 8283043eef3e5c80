// Package diag defines the error taxonomy and diagnostic model of the
// instantiation resolver.
//
// # Errors
//
// Every resolution failure is an *Error carrying a Code. Errors compare by
// code through errors.Is, so callers can test against the exported sentinels:
//
//	if errors.Is(err, diag.ErrCannotInfer) { ... }
//
// Codes are grouped in families, one per resolver component:
//
//   - KEY1xxx – malformed actual lists (Canonical Key Builder).
//   - INF2xxx – inference and consistency failures.
//   - REG3xxx – registry admission (stateful units).
//   - PLC4xxx – declaration-site placement.
//   - ELB5xxx – cached elaboration failures.
//
// # Diagnostics
//
// Errors are reported at the requesting reference site. Producers convert an
// *Error into a Diagnostic (Error.Diagnostic) and hand it to a Reporter;
// BagReporter collects them into a Bag which supports sorting and
// deduplication. Notes carry secondary information such as the disagreeing
// candidates of an overspecification conflict.
//
// The package performs no formatting or IO; rendering lives in the CLI.
package diag
