package resolver

import (
	"fmt"

	"instres/internal/placement"
)

// Options configures a session.
type Options struct {
	// Sharing decides whether a key may get a second record when two
	// references have disjoint hoist regions.
	Sharing placement.Policy
	// PassThroughExpressions lets hoisting cross expression-bodied
	// constructs.
	PassThroughExpressions bool
	// MaxDiagnostics caps the session bag; 0 takes the bag default.
	MaxDiagnostics int
}

// DefaultOptions returns the strict configuration.
func DefaultOptions() Options {
	return Options{Sharing: placement.SharingStrict, MaxDiagnostics: 500}
}

func (o Options) validate() error {
	switch o.Sharing {
	case placement.SharingStrict, placement.SharingRelaxed:
	default:
		return fmt.Errorf("invalid sharing policy %d", o.Sharing)
	}
	if o.MaxDiagnostics < 0 {
		return fmt.Errorf("max diagnostics must not be negative, got %d", o.MaxDiagnostics)
	}
	return nil
}
