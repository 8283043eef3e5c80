package registry

import (
	"fmt"
	"slices"
	"sync"

	"fortio.org/safecast"

	"instres/internal/keys"
)

// Registry is the session-wide table of instances, indexed by the string
// form of their canonical key. Records live in an arena and are never
// removed during a session.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
	records  []*Instance
}

type family struct {
	mu      sync.Mutex
	key     keys.CanonicalKey
	members []*Instance
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		families: make(map[string]*family, 64),
		records:  make([]*Instance, 1, 64), // index 0 reserved for NoID
	}
}

// Txn gives exclusive access to the records of one key. Placement
// decisions for a key happen inside a Txn so that two references never act
// on a stale view of each other.
type Txn struct {
	r   *Registry
	fam *family
}

// Members returns the records of the key, oldest first.
func (t *Txn) Members() []*Instance {
	return append([]*Instance(nil), t.fam.members...)
}

// GetOrCreate returns the first record of the key, creating a Pending one
// when none exists.
func (t *Txn) GetOrCreate() (*Instance, bool) {
	if len(t.fam.members) > 0 {
		return t.fam.members[0], false
	}
	return t.add(), true
}

// Split adds a sibling record under the same key.
func (t *Txn) Split() *Instance {
	return t.add()
}

func (t *Txn) add() *Instance {
	x := t.r.alloc(t.fam.key, len(t.fam.members))
	t.fam.members = append(t.fam.members, x)
	return x
}

// Update runs fn with exclusive access to the records of key.
func (r *Registry) Update(key keys.CanonicalKey, fn func(*Txn) error) error {
	fam := r.family(key)
	fam.mu.Lock()
	defer fam.mu.Unlock()
	return fn(&Txn{r: r, fam: fam})
}

// GetOrCreate is the atomic check-then-insert on key. Concurrent first
// requests for one key produce exactly one record.
func (r *Registry) GetOrCreate(key keys.CanonicalKey) (*Instance, bool) {
	var (
		x       *Instance
		created bool
	)
	_ = r.Update(key, func(t *Txn) error {
		x, created = t.GetOrCreate()
		return nil
	})
	return x, created
}

// Lookup returns the records of key without creating anything.
func (r *Registry) Lookup(key keys.CanonicalKey) []*Instance {
	r.mu.Lock()
	fam, ok := r.families[key.String()]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	fam.mu.Lock()
	defer fam.mu.Unlock()
	return append([]*Instance(nil), fam.members...)
}

// Get returns the record with the given handle, or nil.
func (r *Registry) Get(id ID) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !id.IsValid() || int(id) >= len(r.records) {
		return nil
	}
	return r.records[id]
}

// Len reports the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records) - 1
}

// Snapshot copies every record in handle order.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	recs := append([]*Instance(nil), r.records[1:]...)
	r.mu.Unlock()
	out := make([]Info, len(recs))
	for i, x := range recs {
		out[i] = x.Info()
	}
	return out
}

func (r *Registry) family(key keys.CanonicalKey) *family {
	k := key.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	fam, ok := r.families[k]
	if !ok {
		fam = &family{key: keys.CanonicalKey{Unit: key.Unit, Args: slices.Clone(key.Args)}}
		r.families[k] = fam
	}
	return fam
}

func (r *Registry) alloc(key keys.CanonicalKey, seq int) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, err := safecast.Conv[uint32](len(r.records))
	if err != nil {
		panic(fmt.Errorf("registry overflow: %w", err))
	}
	x := newInstance(ID(value), key, seq)
	r.records = append(r.records, x)
	return x
}
