// Package engine implements the tie-line allocator: the state machine
// that turns a virtual route request into one or two physical crosspoint
// changes, choosing, reusing, and releasing tie-lines per spec 4.3.
package engine

import (
	"context"

	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/router/controller"
)

// Status is a tie-line record's allocation state.
type Status int

const (
	Free Status = iota
	InUse
)

func (s Status) String() string {
	if s == InUse {
		return "in-use"
	}
	return "free"
}

// Record is the runtime state of one configured tie-line (spec
// section 3). SourceInput is meaningful only when Status is InUse.
type Record struct {
	Index        int
	Status       Status
	SourceInput  int
	Destinations []int
}

func (r Record) clone() Record {
	c := r
	c.Destinations = append([]int(nil), r.Destinations...)
	return c
}

func freeRecord(index int) Record {
	return Record{Index: index, Status: Free}
}

// PhysicalRouter is the narrow surface the engine needs from a
// controller: issuing a crosspoint change and reading the current
// mirrored state for reconstruction. Defined here rather than imported
// from package controller to keep the engine's dependency on the
// protocol layer to the bare minimum it actually uses.
type PhysicalRouter interface {
	SetRoute(ctx context.Context, output, input, level int) error
	State() *router.State
}

// Result describes the outcome of an ExecuteVirtualRoute call. On success
// Output/Input/Reused are set; on a partial failure only PartialFailure
// is set and an error is returned alongside it.
type Result struct {
	Output         int
	Input          int
	Reused         bool
	PartialFailure bool
}

// BulkSetter is implemented by controllers whose protocol can carry
// several crosspoint changes in a single physical round trip (VideoHub's
// block format allows arbitrarily many "index value" lines per write).
// ExecuteSalvo uses it opportunistically for same-router direct routes;
// controllers that don't implement it fall back to one SetRoute per
// change.
type BulkSetter interface {
	SetRoutes(ctx context.Context, changes []controller.RouteChange, level int) error
}

// VirtualRoute is one entry of a salvo: a virtual output/input pair to
// route together.
type VirtualRoute struct {
	Output int
	Input  int
}
