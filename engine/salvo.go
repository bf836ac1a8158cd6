package engine

import (
	"context"
	"fmt"

	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/router/controller"
	"tielinehub.dev/tielinehub/virtual"
)

// ExecuteSalvo runs a batch of virtual route requests against the given
// projection. Per spec 5's atomicity guarantee, requests that need
// tie-line allocation are executed one at a time, in order, by the same
// inter-router path ExecuteVirtualRoute uses. Consecutive entries that resolve to a
// direct (intra-router, no tie-line involved) route on the same
// destination router are coalesced into a single physical write when
// that router's controller implements BulkSetter; this never changes the
// reported per-entry results, only how many physical round trips it
// costs.
func (e *Engine) ExecuteSalvo(ctx context.Context, vr *virtual.Router, routes []VirtualRoute, level int) ([]Result, error) {
	results := make([]Result, len(routes))

	i := 0
	for i < len(routes) {
		srcRouter, srcPort, ok := vr.ResolveInput(routes[i].Input)
		if !ok {
			return results, fmt.Errorf("%w: virtual input %d", router.ErrInvalidIndex, routes[i].Input)
		}
		dstRouter, dstPort, ok := vr.ResolveOutput(routes[i].Output)
		if !ok {
			return results, fmt.Errorf("%w: virtual output %d", router.ErrInvalidIndex, routes[i].Output)
		}

		if srcRouter != dstRouter {
			res, err := e.executeInterRouter(ctx, srcRouter, srcPort, dstRouter, dstPort, level)
			if err != nil {
				return results, err
			}
			results[i] = res
			i++
			continue
		}

		// Gather a run of consecutive direct routes onto the same router.
		run := []int{i}
		for j := i + 1; j < len(routes); j++ {
			sr, _, ok := vr.ResolveInput(routes[j].Input)
			if !ok {
				break
			}
			dr, _, ok2 := vr.ResolveOutput(routes[j].Output)
			if !ok2 || dr != dstRouter || sr != dr {
				break
			}
			run = append(run, j)
		}

		if err := e.executeDirectRun(ctx, dstRouter, vr, routes, run, level, results); err != nil {
			return results, err
		}
		i += len(run)
	}

	return results, nil
}

func (e *Engine) executeDirectRun(ctx context.Context, r router.ID, vr *virtual.Router, routes []VirtualRoute, run []int, level int, results []Result) error {
	e.mu.Lock()
	pr := e.routers[r]
	if pr == nil {
		e.mu.Unlock()
		return router.ErrRouterNotConnected
	}
	pool := e.poolInto(r)

	type leg struct {
		idx    int
		output int
		input  int
	}
	legs := make([]leg, 0, len(run))
	for _, idx := range run {
		_, dstPort, _ := vr.ResolveOutput(routes[idx].Output)
		_, srcPort, _ := vr.ResolveInput(routes[idx].Input)
		e.release(pool, dstPort)
		legs = append(legs, leg{idx: idx, output: dstPort, input: srcPort})
	}
	e.mu.Unlock()
	e.notify()

	if bs, ok := pr.(BulkSetter); ok && len(legs) > 1 {
		changes := make([]controller.RouteChange, len(legs))
		for i, l := range legs {
			changes[i] = controller.RouteChange{Output: l.output, Input: l.input}
		}
		if err := bs.SetRoutes(ctx, changes, level); err != nil {
			return fmt.Errorf("%w: %s", router.ErrRouteFailed, err)
		}
		for _, l := range legs {
			results[l.idx] = Result{Output: l.output, Input: l.input}
		}
		return nil
	}

	for _, l := range legs {
		if err := pr.SetRoute(ctx, l.output, l.input, level); err != nil {
			return fmt.Errorf("%w: %s", router.ErrRouteFailed, err)
		}
		results[l.idx] = Result{Output: l.output, Input: l.input}
	}
	return nil
}
