package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"instres/internal/generic"
	"instres/internal/keys"
	"instres/internal/scope"
	"instres/internal/types"
)

func key(unit uint32, args ...types.TypeID) keys.CanonicalKey {
	return keys.CanonicalKey{Unit: generic.UnitID(unit), Args: args}
}

func TestGetOrCreateIsAtomic(t *testing.T) {
	r := New()
	k := key(1, 3, 4)
	ids := make([]ID, 64)
	created := make([]bool, len(ids))
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			x, c := r.GetOrCreate(keys.CanonicalKey{Unit: k.Unit, Args: []types.TypeID{3, 4}})
			ids[i], created[i] = x.ID(), c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	winners := 0
	for i, id := range ids {
		if id != ids[0] {
			t.Fatalf("caller %d got instance %d, want %d", i, id, ids[0])
		}
		if created[i] {
			winners++
		}
	}
	if winners != 1 || r.Len() != 1 {
		t.Fatalf("expected exactly one creation, got %d (len %d)", winners, r.Len())
	}
}

func TestDistinctKeysDistinctRecords(t *testing.T) {
	r := New()
	a, _ := r.GetOrCreate(key(1, 3))
	b, _ := r.GetOrCreate(key(1, 4))
	c, _ := r.GetOrCreate(key(2, 3))
	if a.ID() == b.ID() || a.ID() == c.ID() {
		t.Fatalf("distinct keys must not share records")
	}
	if got := r.Get(b.ID()); got != b {
		t.Fatalf("Get returned a different record")
	}
	if r.Get(NoID) != nil || r.Get(99) != nil {
		t.Fatalf("Get should return nil for unknown handles")
	}
}

func TestSplitKeepsFamily(t *testing.T) {
	r := New()
	k := key(1, 7)
	var first, second *Instance
	err := r.Update(k, func(tx *Txn) error {
		first, _ = tx.GetOrCreate()
		second = tx.Split()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID() == second.ID() || second.Seq() != 1 {
		t.Fatalf("split should create a sibling, got %d/%d seq %d", first.ID(), second.ID(), second.Seq())
	}
	if got := r.Lookup(k); len(got) != 2 || got[0] != first {
		t.Fatalf("unexpected family %v", got)
	}
	again, created := r.GetOrCreate(k)
	if created || again != first {
		t.Fatalf("GetOrCreate should return the first record of the family")
	}
}

func TestMarkTransitionsOnce(t *testing.T) {
	r := New()
	x, _ := r.GetOrCreate(key(1, 2))
	if !x.MarkElaborated(Entity{Name: "inst"}) {
		t.Fatalf("first transition should succeed")
	}
	if x.MarkFailed(errors.New("late")) || x.MarkElaborated(Entity{Name: "other"}) {
		t.Fatalf("second transition must be refused")
	}
	e, err := x.Await(context.Background())
	if err != nil || e.Name != "inst" {
		t.Fatalf("unexpected result %v, %v", e, err)
	}
}

func TestElaborateRunsAtMostOnce(t *testing.T) {
	r := New()
	x, _ := r.GetOrCreate(key(1, 2))
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (Entity, error) {
		calls.Add(1)
		<-release
		return Entity{Name: "Sort_Int"}, nil
	}
	g, ctx := errgroup.WithContext(context.Background())
	for range 16 {
		g.Go(func() error {
			e, err := x.Elaborate(ctx, fn)
			if err != nil {
				return err
			}
			if e.Name != "Sort_Int" {
				return errors.New("unexpected entity " + e.Name)
			}
			return nil
		})
	}
	time.Sleep(10 * time.Millisecond)
	if x.State() != Pending {
		t.Fatalf("instance should still be pending while elaboration runs")
	}
	close(release)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Fatalf("elaborate called %d times", calls.Load())
	}
}

func TestFailureIsCached(t *testing.T) {
	r := New()
	x, _ := r.GetOrCreate(key(1, 2))
	boom := errors.New("boom")
	calls := 0
	fn := func(context.Context) (Entity, error) {
		calls++
		return Entity{}, boom
	}
	for range 3 {
		if _, err := x.Elaborate(context.Background(), fn); !errors.Is(err, boom) {
			t.Fatalf("expected cached failure, got %v", err)
		}
	}
	if calls != 1 || x.State() != Failed {
		t.Fatalf("failed elaboration must not be retried (calls=%d, state=%s)", calls, x.State())
	}
}

func TestPanicFailsInstance(t *testing.T) {
	r := New()
	x, _ := r.GetOrCreate(key(1, 2))
	_, err := x.Elaborate(context.Background(), func(context.Context) (Entity, error) {
		panic("elaborator bug")
	})
	if !errors.Is(err, ErrPanicked) {
		t.Fatalf("expected panic to fail the instance, got %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := x.Await(ctx); !errors.Is(err, ErrPanicked) {
		t.Fatalf("waiters must be released with the failure, got %v", err)
	}
	if x.State() != Failed {
		t.Fatalf("state = %s, want failed", x.State())
	}
}

func TestMarkFailedWithoutError(t *testing.T) {
	r := New()
	x, _ := r.GetOrCreate(key(1, 2))
	if !x.MarkFailed(nil) || !errors.Is(x.Err(), ErrFailed) {
		t.Fatalf("a failure without an error must still be reported, got %v", x.Err())
	}
}

func TestAwaitHonoursContext(t *testing.T) {
	r := New()
	x, _ := r.GetOrCreate(key(1, 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := x.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestPlacementAndSnapshot(t *testing.T) {
	r := New()
	x, _ := r.GetOrCreate(key(1, 2))
	if _, placed := x.Placement(); placed {
		t.Fatalf("new instance should not be placed")
	}
	site := scope.Site{Scope: 3, Pos: 4}
	x.Place(site, 2)
	x.Attach(scope.Site{Scope: 5, Pos: 1})
	x.Attach(scope.Site{Scope: 5, Pos: 1})
	if x.DeclarationScope() != 3 || x.Level() != 2 {
		t.Fatalf("unexpected placement %v level %d", x.DeclarationScope(), x.Level())
	}
	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Decl != site || len(snap[0].Sites) != 1 || snap[0].State != Pending {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
