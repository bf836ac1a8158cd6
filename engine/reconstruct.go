package engine

import "tielinehub.dev/tielinehub/router"

// Reconstruct rebuilds both pools' runtime state from the physical
// routers' observed routing, so in-flight tie-line sessions survive a
// controller reconnect (spec 4.3). Both controllers must be registered
// (via SetRouter); Reconstruct is a no-op for a pool whose controllers
// are not both connected.
func (e *Engine) Reconstruct() {
	e.mu.Lock()
	prA := e.routers[router.RouterA]
	prB := e.routers[router.RouterB]
	e.mu.Unlock()
	if prA == nil || prB == nil {
		return
	}

	stateA := prA.State()
	stateB := prB.State()
	excl := e.cfg.Excluded()

	e.mu.Lock()
	for i, tp := range e.cfg.AToB {
		e.aToB[i] = reconstructOne(i, tp, stateA, stateB, excl.BOutputs)
	}
	for i, tp := range e.cfg.BToA {
		e.bToA[i] = reconstructOne(i, tp, stateB, stateA, excl.AOutputs)
	}
	e.mu.Unlock()
	e.notify()
}

// reconstructOne derives one record: tp.Output is the source-side
// physical output, tp.Input is the destination-side physical input.
// excludedDstOutputs marks destination-side outputs that are themselves
// tie-line source ports in the opposite direction; they are excluded from
// the destination set. An output whose index equals tp.Input is also
// skipped, to suppress the power-on 1:1 passthrough many routers exhibit.
func reconstructOne(index int, tp router.TiePort, srcState, dstState *router.State, excludedDstOutputs map[int]bool) Record {
	s, ok := srcState.Routing[tp.Output]
	if !ok {
		return freeRecord(index)
	}

	var destinations []int
	for o, in := range dstState.Routing {
		if in != tp.Input {
			continue
		}
		if o == tp.Input {
			continue
		}
		if excludedDstOutputs[o] {
			continue
		}
		destinations = append(destinations, o)
	}

	if len(destinations) == 0 {
		return freeRecord(index)
	}
	return Record{Index: index, Status: InUse, SourceInput: s, Destinations: destinations}
}
