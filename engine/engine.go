package engine

import (
	"context"
	"fmt"
	"sync"

	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/virtual"
)

// Listener receives a notification every time the engine's runtime state
// mutates, so the orchestrator can schedule a virtual-state rebuild.
type Listener func()

// Engine owns both tie-line pools and executes virtual routes against
// them. The caller (the orchestrator) is responsible for the
// single-writer guarantee spec section 5 requires: concurrent calls into
// Engine are safe but the spec's atomicity guarantee only holds when
// callers serialize their own route requests.
type Engine struct {
	mu  sync.Mutex
	cfg router.Config

	aToB []Record
	bToA []Record

	routers map[router.ID]PhysicalRouter

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// New constructs an Engine for the given tie-line configuration. Both
// pools start free.
func New(cfg router.Config) *Engine {
	e := &Engine{
		routers:   map[router.ID]PhysicalRouter{},
		listeners: map[int]Listener{},
	}
	e.cfg = cfg
	e.resetPoolsLocked()
	return e
}

func (e *Engine) resetPoolsLocked() {
	e.aToB = make([]Record, len(e.cfg.AToB))
	for i := range e.aToB {
		e.aToB[i] = freeRecord(i)
	}
	e.bToA = make([]Record, len(e.cfg.BToA))
	for i := range e.bToA {
		e.bToA[i] = freeRecord(i)
	}
}

// Subscribe registers a listener for state-changed notifications.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	return func() {
		e.listenersMu.Lock()
		defer e.listenersMu.Unlock()
		delete(e.listeners, id)
	}
}

func (e *Engine) notify() {
	e.listenersMu.Lock()
	ls := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		ls = append(ls, l)
	}
	e.listenersMu.Unlock()
	for _, l := range ls {
		l()
	}
}

// SetRouter registers the physical router client for id, used to issue
// crosspoint changes and, on reconnect, to drive reconstruction. Called
// by the orchestrator when a controller connects.
func (e *Engine) SetRouter(id router.ID, pr PhysicalRouter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routers[id] = pr
}

// ClearRouter removes a router client, called on disconnect.
func (e *Engine) ClearRouter(id router.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.routers, id)
}

// AToB returns a snapshot of the A->B pool's runtime records.
func (e *Engine) AToB() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecords(e.aToB)
}

// BToA returns a snapshot of the B->A pool's runtime records.
func (e *Engine) BToA() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecords(e.bToA)
}

func cloneRecords(rs []Record) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = r.clone()
	}
	return out
}

// SourceOfSink implements virtual.TieLineLookup: it resolves a physical
// sink port (an input fed by a tie-line) to the in-use record's source,
// so the virtual projection can trace an inter-router hop back to its
// true origin.
func (e *Engine) SourceOfSink(sinkRouter router.ID, sinkPort int) (srcRouter router.ID, srcPort int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// sinkRouter is the destination-side router; aToB sinks land on B,
	// bToA sinks land on A.
	if sinkRouter == router.RouterB {
		for i, p := range e.cfg.AToB {
			if p.Input != sinkPort {
				continue
			}
			rec := e.aToB[i]
			if rec.Status == InUse {
				return router.RouterA, rec.SourceInput, true
			}
			return "", 0, false
		}
	} else {
		for i, p := range e.cfg.BToA {
			if p.Input != sinkPort {
				continue
			}
			rec := e.bToA[i]
			if rec.Status == InUse {
				return router.RouterB, rec.SourceInput, true
			}
			return "", 0, false
		}
	}
	return "", 0, false
}

// UpdateConfig reinitializes both pools (everything becomes free) and,
// if both controllers are connected, runs reconstruction. Does not
// disrupt physical routing (spec 4.3).
func (e *Engine) UpdateConfig(cfg router.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.resetPoolsLocked()
	bothConnected := e.bothConnectedLocked()
	e.mu.Unlock()

	if bothConnected {
		e.Reconstruct()
	}
	e.notify()
	return nil
}

// Config returns the current tie-line configuration.
func (e *Engine) Config() router.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) bothConnectedLocked() bool {
	_, okA := e.routers[router.RouterA]
	_, okB := e.routers[router.RouterB]
	return okA && okB
}

// ExecuteVirtualRoute resolves a virtual route request against the
// supplied virtual projection and issues one or two physical crosspoint
// changes, per spec 4.3's algorithm.
func (e *Engine) ExecuteVirtualRoute(ctx context.Context, vr *virtual.Router, vOut, vIn, level int) (Result, error) {
	srcRouter, srcPort, ok := vr.ResolveInput(vIn)
	if !ok {
		return Result{}, fmt.Errorf("%w: virtual input %d", router.ErrInvalidIndex, vIn)
	}
	dstRouter, dstPort, ok := vr.ResolveOutput(vOut)
	if !ok {
		return Result{}, fmt.Errorf("%w: virtual output %d", router.ErrInvalidIndex, vOut)
	}

	if srcRouter == dstRouter {
		return e.executeIntraRouter(ctx, dstRouter, dstPort, srcPort, level)
	}
	return e.executeInterRouter(ctx, srcRouter, srcPort, dstRouter, dstPort, level)
}

func (e *Engine) executeIntraRouter(ctx context.Context, r router.ID, dstPort, srcPort, level int) (Result, error) {
	e.mu.Lock()
	pr := e.routers[r]
	if pr == nil {
		e.mu.Unlock()
		return Result{}, router.ErrRouterNotConnected
	}
	// The pool whose destinations land on r: bToA feeds A, aToB feeds B.
	pool := e.poolInto(r)
	e.release(pool, dstPort)
	e.mu.Unlock()
	e.notify()

	if err := pr.SetRoute(ctx, dstPort, srcPort, level); err != nil {
		return Result{}, fmt.Errorf("%w: %s", router.ErrRouteFailed, err)
	}
	return Result{Output: dstPort, Input: srcPort}, nil
}

// poolInto returns the pool (by direction) whose Destinations live on
// router r.
func (e *Engine) poolInto(r router.ID) *[]Record {
	if r == router.RouterB {
		return &e.aToB
	}
	return &e.bToA
}

// poolFrom returns the pool whose SourceInput lives on router r and
// whose physical TiePort configuration is used for that direction.
func (e *Engine) poolFrom(r router.ID) (*[]Record, []router.TiePort) {
	if r == router.RouterA {
		return &e.aToB, e.cfg.AToB
	}
	return &e.bToA, e.cfg.BToA
}

// release removes dstPort from whichever record in pool currently claims
// it, freeing the record if that empties its destination set. Caller
// must hold e.mu.
func (e *Engine) release(pool *[]Record, dstPort int) {
	for i := range *pool {
		rec := &(*pool)[i]
		if rec.Status != InUse {
			continue
		}
		idx := indexOf(rec.Destinations, dstPort)
		if idx == -1 {
			continue
		}
		rec.Destinations = append(rec.Destinations[:idx], rec.Destinations[idx+1:]...)
		if len(rec.Destinations) == 0 {
			rec.Status = Free
			rec.SourceInput = 0
		}
		return
	}
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func (e *Engine) executeInterRouter(ctx context.Context, srcRouter router.ID, srcPort int, dstRouter router.ID, dstPort, level int) (Result, error) {
	e.mu.Lock()
	srcPR := e.routers[srcRouter]
	dstPR := e.routers[dstRouter]
	if srcPR == nil || dstPR == nil {
		e.mu.Unlock()
		return Result{}, router.ErrRouterNotConnected
	}

	pool, tiePorts := e.poolFrom(srcRouter)
	e.release(pool, dstPort)

	// Reuse: a record already carrying this source.
	if i := e.findInUseBySource(*pool, srcPort); i != -1 {
		sinkInputOnDst := tiePorts[i].Input
		e.mu.Unlock()

		if err := dstPR.SetRoute(ctx, dstPort, sinkInputOnDst, level); err != nil {
			return Result{}, fmt.Errorf("%w: %s", router.ErrRouteFailed, err)
		}

		e.mu.Lock()
		rec := &(*pool)[i]
		if indexOf(rec.Destinations, dstPort) == -1 {
			rec.Destinations = append(rec.Destinations, dstPort)
		}
		e.mu.Unlock()
		e.notify()
		return Result{Output: dstPort, Input: srcPort, Reused: true}, nil
	}

	// Allocate: first free record.
	freeIdx := -1
	inUseCount := 0
	for i, rec := range *pool {
		if rec.Status == InUse {
			inUseCount++
		} else if freeIdx == -1 {
			freeIdx = i
		}
	}
	if freeIdx == -1 {
		total := len(*pool)
		e.mu.Unlock()
		e.notify()
		return Result{}, fmt.Errorf("%w: %d/%d in use", router.ErrNoTieLinesAvailable, inUseCount, total)
	}
	sourceOutputOnSrc := tiePorts[freeIdx].Output
	sinkInputOnDst := tiePorts[freeIdx].Input
	e.mu.Unlock()

	if err := srcPR.SetRoute(ctx, sourceOutputOnSrc, srcPort, level); err != nil {
		return Result{}, fmt.Errorf("%w: %s", router.ErrRouteFailed, err)
	}

	if err := dstPR.SetRoute(ctx, dstPort, sinkInputOnDst, level); err != nil {
		// The source leg is already committed physically; the record
		// stays free (P2: in-use requires a nonempty destination set).
		// The next allocation into this record will overwrite the cable.
		e.notify()
		return Result{PartialFailure: true}, fmt.Errorf("%w: %s", router.ErrPartialFailure, err)
	}

	e.mu.Lock()
	(*pool)[freeIdx] = Record{Index: freeIdx, Status: InUse, SourceInput: srcPort, Destinations: []int{dstPort}}
	e.mu.Unlock()
	e.notify()
	return Result{Output: dstPort, Input: srcPort}, nil
}

func (e *Engine) findInUseBySource(pool []Record, srcPort int) int {
	for i, rec := range pool {
		if rec.Status == InUse && rec.SourceInput == srcPort {
			return i
		}
	}
	return -1
}
