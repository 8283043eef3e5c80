package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"instres/internal/keys"
	"instres/internal/scope"
)

var (
	// ErrFailed stands in for a failure recorded without an error.
	ErrFailed = errors.New("instance elaboration failed")
	// ErrPanicked wraps a panic raised while elaborating an instance.
	ErrPanicked = errors.New("instance elaboration panicked")
)

// ID identifies an instance within a Registry.
type ID uint32

// NoID marks the absence of an instance.
const NoID ID = 0

// IsValid reports whether id refers to a record.
func (id ID) IsValid() bool { return id != NoID }

// State is the elaboration state of an instance.
type State uint8

const (
	Pending State = iota
	Elaborated
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Elaborated:
		return "elaborated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entity is what the elaboration subsystem produced for an instance.
type Entity struct {
	Name    string
	Payload any
}

// Instance is one logical instantiation. Its placement has a single writer
// (the placement resolver, serialized per key) and many readers.
type Instance struct {
	id  ID
	key keys.CanonicalKey
	seq int // position within its key's family

	mu     sync.RWMutex
	decl   scope.Site
	placed bool
	level  uint32
	sites  []scope.Site

	state   State
	entity  Entity
	err     error
	claimed bool
	done    chan struct{}
}

func newInstance(id ID, key keys.CanonicalKey, seq int) *Instance {
	return &Instance{id: id, key: key, seq: seq, done: make(chan struct{})}
}

// ID returns the handle of the instance.
func (x *Instance) ID() ID { return x.id }

// Key returns the canonical key the instance was created for.
func (x *Instance) Key() keys.CanonicalKey { return x.key }

// Seq is 0 for the first record of a key and grows with each split.
func (x *Instance) Seq() int { return x.seq }

// Placement returns the declaration site; placed is false until the
// placement resolver has set it.
func (x *Instance) Placement() (decl scope.Site, placed bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.decl, x.placed
}

// DeclarationScope is read by the accessibility checker.
func (x *Instance) DeclarationScope() scope.ID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.decl.Scope
}

// Level is the accessibility level of the declaration scope.
func (x *Instance) Level() uint32 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.level
}

// Place sets the declaration site. The caller guarantees outward-only
// movement.
func (x *Instance) Place(decl scope.Site, level uint32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.decl = decl
	x.level = level
	x.placed = true
}

// Attach records a reference site served by the instance. Duplicate sites
// are ignored.
func (x *Instance) Attach(site scope.Site) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if slices.Contains(x.sites, site) {
		return
	}
	x.sites = append(x.sites, site)
}

// Sites returns the attached reference sites in attachment order.
func (x *Instance) Sites() []scope.Site {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.sites)
}

// State returns the current elaboration state.
func (x *Instance) State() State {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

// Err returns the cached failure, if any.
func (x *Instance) Err() error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.err
}

// MarkElaborated moves a Pending instance to Elaborated. It reports false
// when the instance already left Pending.
func (x *Instance) MarkElaborated(e Entity) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != Pending {
		return false
	}
	x.state = Elaborated
	x.entity = e
	x.claimed = true
	close(x.done)
	return true
}

// MarkFailed moves a Pending instance to Failed and caches err for every
// later reference.
func (x *Instance) MarkFailed(err error) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != Pending {
		return false
	}
	if err == nil {
		err = ErrFailed
	}
	x.state = Failed
	x.err = err
	x.claimed = true
	close(x.done)
	return true
}

// Elaborate runs fn at most once over the instance's lifetime. The caller
// that claims the instance runs fn; concurrent callers block until it
// finishes. A Failed instance returns its cached error without calling fn.
func (x *Instance) Elaborate(ctx context.Context, fn func(context.Context) (Entity, error)) (Entity, error) {
	if x.claim() {
		x.run(ctx, fn)
	}
	return x.Await(ctx)
}

// run records the outcome of fn. A panic fails the instance so that
// waiters are released and later references see the failure.
func (x *Instance) run(ctx context.Context, fn func(context.Context) (Entity, error)) {
	defer func() {
		if r := recover(); r != nil {
			x.MarkFailed(fmt.Errorf("%w: %v", ErrPanicked, r))
		}
	}()
	e, err := fn(ctx)
	if err != nil {
		x.MarkFailed(err)
		return
	}
	x.MarkElaborated(e)
}

func (x *Instance) claim() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.claimed {
		return false
	}
	x.claimed = true
	return true
}

// Await blocks until the instance leaves Pending.
func (x *Instance) Await(ctx context.Context) (Entity, error) {
	select {
	case <-x.done:
	case <-ctx.Done():
		return Entity{}, ctx.Err()
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.entity, x.err
}

// Info is an immutable copy of an instance's state.
type Info struct {
	ID     ID
	Key    keys.CanonicalKey
	Seq    int
	State  State
	Decl   scope.Site
	Placed bool
	Level  uint32
	Sites  []scope.Site
	Entity string
	Err    error
}

// Info snapshots the instance.
func (x *Instance) Info() Info {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Info{
		ID:     x.id,
		Key:    x.key,
		Seq:    x.seq,
		State:  x.state,
		Decl:   x.decl,
		Placed: x.placed,
		Level:  x.level,
		Sites:  slices.Clone(x.sites),
		Entity: x.entity.Name,
		Err:    x.err,
	}
}
