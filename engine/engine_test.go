package engine

import (
	"context"
	"errors"
	"testing"

	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/virtual"
)

// fakeRouter is a minimal PhysicalRouter whose SetRoute applies
// immediately to its own state, standing in for a controller with a
// synchronous ack.
type fakeRouter struct {
	state *router.State
	fail  bool
}

func newFakeRouter(inputs, outputs int) *fakeRouter {
	return &fakeRouter{state: &router.State{
		Inputs: inputs, Outputs: outputs,
		Routing:      map[int]int{},
		InputLabels:  map[int]string{},
		OutputLabels: map[int]string{},
		OutputLocks:  map[int]router.Lock{},
	}}
}

func (f *fakeRouter) SetRoute(ctx context.Context, output, input, level int) error {
	if f.fail {
		return errors.New("simulated failure")
	}
	f.state.Routing[output] = input
	return nil
}

func (f *fakeRouter) State() *router.State { return f.state.Clone() }

func build(t *testing.T, e *Engine, a, b *fakeRouter) *virtual.Router {
	t.Helper()
	return virtual.Build(a.state, b.state, e.Config(), e)
}

func TestExecuteVirtualRoute_DirectIntraRouter(t *testing.T) {
	a := newFakeRouter(8, 8)
	b := newFakeRouter(8, 8)
	e := New(router.Config{})
	e.SetRouter(router.RouterA, a)
	e.SetRouter(router.RouterB, b)

	vr := build(t, e, a, b)
	res, err := e.ExecuteVirtualRoute(context.Background(), vr, 2, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.state.Routing[2] != 3 {
		t.Fatalf("A.routing[2] = %d, want 3", a.state.Routing[2])
	}
	if res.Reused {
		t.Fatal("intra-router route should not report reused")
	}
}

func TestExecuteVirtualRoute_AllocateAndReuseAndExhaust(t *testing.T) {
	a := newFakeRouter(8, 8)
	b := newFakeRouter(8, 8)
	cfg := router.Config{AToB: []router.TiePort{{Output: 7, Input: 0}}}
	e := New(cfg)
	e.SetRouter(router.RouterA, a)
	e.SetRouter(router.RouterB, b)

	vr := build(t, e, a, b)
	// virtual: A inputs 0-7, B inputs 8-14; A outputs 0-6, B outputs 7-14.
	res, err := e.ExecuteVirtualRoute(context.Background(), vr, 7, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.state.Routing[7] != 0 || b.state.Routing[0] != 0 {
		t.Fatalf("got A[7]=%d B[0]=%d, want both 0", a.state.Routing[7], b.state.Routing[0])
	}
	if res.Reused {
		t.Fatal("first allocation should not be reused")
	}

	vr = build(t, e, a, b)
	res, err = e.ExecuteVirtualRoute(context.Background(), vr, 8, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Reused {
		t.Fatal("second request from the same source should reuse the tie-line")
	}
	if a.state.Routing[7] != 0 {
		t.Fatal("reuse must not touch the source leg")
	}
	if b.state.Routing[1] != 0 {
		t.Fatalf("B.routing[1] = %d, want 0", b.state.Routing[1])
	}

	recs := e.AToB()
	if recs[0].Status != InUse || len(recs[0].Destinations) != 2 {
		t.Fatalf("got record %+v, want in-use with 2 destinations", recs[0])
	}

	vr = build(t, e, a, b)
	_, err = e.ExecuteVirtualRoute(context.Background(), vr, 7, 1, 0)
	if !errors.Is(err, router.ErrNoTieLinesAvailable) {
		t.Fatalf("got %v, want ErrNoTieLinesAvailable", err)
	}
	if a.state.Routing[7] != 0 {
		t.Fatal("exhaustion failure must not mutate physical state")
	}
}

func TestExecuteVirtualRoute_ReleaseOnRetarget(t *testing.T) {
	a := newFakeRouter(8, 8)
	b := newFakeRouter(8, 8)
	cfg := router.Config{AToB: []router.TiePort{{Output: 7, Input: 0}}}
	e := New(cfg)
	e.SetRouter(router.RouterA, a)
	e.SetRouter(router.RouterB, b)
	ctx := context.Background()

	vr := build(t, e, a, b)
	if _, err := e.ExecuteVirtualRoute(ctx, vr, 7, 0, 0); err != nil {
		t.Fatal(err)
	}
	vr = build(t, e, a, b)
	if _, err := e.ExecuteVirtualRoute(ctx, vr, 8, 0, 0); err != nil {
		t.Fatal(err)
	}

	// vOut=8 is B's output 1; retarget it to a same-router source. B's
	// physical input 0 is excluded (tie-line sink), so B's visible
	// inputs are 1..7 at virtual indices 8..14; physical input 5 is
	// virtual index 12.
	vr = build(t, e, a, b)
	if _, err := e.ExecuteVirtualRoute(ctx, vr, 8, 12, 0); err != nil {
		t.Fatal(err)
	}
	if b.state.Routing[1] != 5 {
		t.Fatalf("B.routing[1] = %d, want 5", b.state.Routing[1])
	}
	recs := e.AToB()
	if recs[0].Status != InUse || len(recs[0].Destinations) != 1 || recs[0].Destinations[0] != 0 {
		t.Fatalf("got record %+v, want in-use with destinations=[0]", recs[0])
	}
}

func TestReconstructFromRouting(t *testing.T) {
	a := newFakeRouter(8, 8)
	b := newFakeRouter(8, 8)
	a.state.Routing[7] = 3
	b.state.Routing[4] = 0
	b.state.Routing[5] = 0
	b.state.Routing[0] = 0

	cfg := router.Config{AToB: []router.TiePort{{Output: 7, Input: 0}}}
	e := New(cfg)
	e.SetRouter(router.RouterA, a)
	e.SetRouter(router.RouterB, b)

	e.Reconstruct()
	recs := e.AToB()
	if recs[0].Status != InUse || recs[0].SourceInput != 3 {
		t.Fatalf("got %+v, want in-use sourceInput=3", recs[0])
	}
	got := append([]int(nil), recs[0].Destinations...)
	if len(got) != 2 || !contains(got, 4) || !contains(got, 5) {
		t.Fatalf("got destinations %v, want [4 5]", got)
	}

	// Reconstruction is idempotent (P6).
	e.Reconstruct()
	recs2 := e.AToB()
	if recs2[0].Status != recs[0].Status || recs2[0].SourceInput != recs[0].SourceInput {
		t.Fatal("reconstruction is not idempotent")
	}
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func TestExecuteVirtualRoute_PartialFailureDoesNotCommit(t *testing.T) {
	a := newFakeRouter(8, 8)
	b := newFakeRouter(8, 8)
	b.fail = true
	cfg := router.Config{AToB: []router.TiePort{{Output: 7, Input: 0}}}
	e := New(cfg)
	e.SetRouter(router.RouterA, a)
	e.SetRouter(router.RouterB, b)

	vr := build(t, e, a, b)
	_, err := e.ExecuteVirtualRoute(context.Background(), vr, 7, 0, 0)
	if !errors.Is(err, router.ErrPartialFailure) {
		t.Fatalf("got %v, want ErrPartialFailure", err)
	}
	if got, ok := a.state.Routing[7]; !ok || got != 0 {
		t.Fatal("source leg should have been written before the destination leg failed")
	}
	recs := e.AToB()
	if recs[0].Status != Free {
		t.Fatalf("got status %v, want Free (P2: no destinations means free)", recs[0].Status)
	}
}
