package virtual

import (
	"testing"

	"tielinehub.dev/tielinehub/router"
)

type fakeTieLines struct {
	sources map[[2]int]int // (router B port) -> source A port, B always dst here
}

func (f fakeTieLines) SourceOfSink(r ID, port int) (ID, int, bool) {
	if r != B {
		return "", 0, false
	}
	if src, ok := f.sources[[2]int{int(0), port}]; ok {
		return A, src, true
	}
	return "", 0, false
}

func newState(inputs, outputs int) *router.State {
	return &router.State{
		Inputs:       inputs,
		Outputs:      outputs,
		Routing:      map[int]int{},
		InputLabels:  map[int]string{},
		OutputLabels: map[int]string{},
		OutputLocks:  map[int]router.Lock{},
	}
}

func TestBuildDirectRoutingNoTieLines(t *testing.T) {
	a := newState(8, 8)
	a.Routing[2] = 3
	b := newState(8, 8)

	v := Build(a, b, router.Config{}, nil)
	if v.Inputs != 16 || v.Outputs != 16 {
		t.Fatalf("got inputs=%d outputs=%d, want 16/16", v.Inputs, v.Outputs)
	}
	if got := v.Routing[2]; got != 3 {
		t.Fatalf("virtual routing[2] = %d, want 3", got)
	}
}

func TestBuildExcludesTieLinePorts(t *testing.T) {
	a := newState(8, 8)
	b := newState(8, 8)
	cfg := router.Config{AToB: []router.TiePort{{Output: 7, Input: 0}}}

	v := Build(a, b, cfg, nil)
	// A has 7 visible outputs (0-6), B has 7 visible inputs (1-7) -> 15x15.
	if v.Inputs != 15 || v.Outputs != 15 {
		t.Fatalf("got inputs=%d outputs=%d, want 15/15", v.Inputs, v.Outputs)
	}
	if _, ok := v.PhysicalOutputToVirtual(A, 7); ok {
		t.Fatal("tie-line output A:7 should not resolve to a virtual index")
	}
	if _, ok := v.PhysicalInputToVirtual(B, 0); ok {
		t.Fatal("tie-line input B:0 should not resolve to a virtual index")
	}
}

func TestBuildResolvesThroughTieLine(t *testing.T) {
	a := newState(8, 8)
	b := newState(8, 8)
	a.Routing[7] = 0
	b.Routing[0] = 0 // B output 0 fed from the tie-line sink
	cfg := router.Config{AToB: []router.TiePort{{Output: 7, Input: 0}}}

	ties := fakeTieLines{sources: map[[2]int]int{{0, 0}: 0}}
	v := Build(a, b, cfg, ties)

	// virtual output 7 is B's physical output 0 (A contributes outputs 0-6).
	vo, ok := v.PhysicalOutputToVirtual(B, 0)
	if !ok || vo != 7 {
		t.Fatalf("PhysicalOutputToVirtual(B,0) = %d,%v want 7,true", vo, ok)
	}
	vi, ok := v.PhysicalInputToVirtual(A, 0)
	if !ok || vi != 0 {
		t.Fatalf("PhysicalInputToVirtual(A,0) = %d,%v want 0,true", vi, ok)
	}
	if got := v.Routing[vo]; got != vi {
		t.Fatalf("virtual routing[%d] = %d, want %d (routed through tie-line)", vo, got, vi)
	}
}

func TestResolveOutOfRange(t *testing.T) {
	a := newState(4, 4)
	b := newState(4, 4)
	v := Build(a, b, router.Config{}, nil)
	if _, _, ok := v.ResolveInput(100); ok {
		t.Fatal("expected ResolveInput out of range to fail")
	}
	if _, _, ok := v.ResolveOutput(-1); ok {
		t.Fatal("expected ResolveOutput of negative index to fail")
	}
}
