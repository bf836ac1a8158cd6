// Package orchestrator implements the single-writer coordinator (spec
// 4.5): it owns the two controller slots, the tie-line engine, the
// derived virtual projection, and the northbound bridge, and exposes the
// narrow request/response API the external UI collaborator drives
// (spec section 6).
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"tielinehub.dev/tielinehub/bridge"
	"tielinehub.dev/tielinehub/engine"
	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/router/controller"
	"tielinehub.dev/tielinehub/virtual"
)

// RouterConnectOptions describes how to reach and interpret one physical
// router, per the upstream connectRouter(id, {host,port,protocol,levels})
// call. Inputs/Outputs are only consulted by protocols that cannot
// self-report their matrix size (SW-P-08, GV Native); VideoHub ignores
// them.
type RouterConnectOptions struct {
	Host     string
	Port     int
	Protocol string
	Levels   int
	Inputs   int
	Outputs  int
}

type routerSlot struct {
	ctrl     controller.Controller
	opts     RouterConnectOptions
	unsubCtl func()
}

// Orchestrator is the logically single-writer owner of every piece of
// mutable core state (spec section 5): the two controller slots, the
// tie-line engine, and the current virtual projection. All mutation
// happens through its exported methods; rebuilds are coalesced onto one
// background dispatch goroutine.
type Orchestrator struct {
	mu      sync.Mutex
	routers map[router.ID]*routerSlot
	eng     *engine.Engine
	vr      *virtual.Router

	bridgeMu  sync.Mutex
	bridgeSrv *bridge.Server

	dispatchCh chan struct{}
	closeCh    chan struct{}
	closeOnce  sync.Once

	notifyMu   sync.Mutex
	notifyFns  map[int]func()
	nextNotify int

	eventsMu  sync.Mutex
	eventLs   map[int]Listener
	nextEvent int
}

// New constructs an Orchestrator for the given initial tie-line
// configuration, with both router slots empty. The background rebuild
// dispatcher starts immediately.
func New(cfg router.Config) *Orchestrator {
	o := &Orchestrator{
		routers:    map[router.ID]*routerSlot{},
		eng:        engine.New(cfg),
		dispatchCh: make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
		notifyFns:  map[int]func(){},
		eventLs:    map[int]Listener{},
	}
	o.vr = virtual.Build(&router.State{}, &router.State{}, cfg, o.eng)
	o.eng.Subscribe(func() { o.scheduleRebuild() })
	go o.dispatchLoop()
	return o
}

// Close stops the background dispatcher, disconnects both routers, and
// stops the bridge if running.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() { close(o.closeCh) })

	o.mu.Lock()
	ids := make([]router.ID, 0, len(o.routers))
	for id := range o.routers {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	for _, id := range ids {
		_ = o.DisconnectRouter(id)
	}

	_ = o.StopBridge()
}

// scheduleRebuild asks the dispatch loop to rebuild the virtual
// projection. Multiple calls made before the loop catches up coalesce
// into a single rebuild, per spec 4.5's coalescing requirement.
func (o *Orchestrator) scheduleRebuild() {
	select {
	case o.dispatchCh <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) dispatchLoop() {
	for {
		select {
		case <-o.dispatchCh:
			o.rebuildVirtualState()
		case <-o.closeCh:
			return
		}
	}
}

// rebuildVirtualState recomputes the virtual projection from both
// controllers' current state mirrors and the engine's tie-line
// configuration, then notifies bridge subscribers and upstream event
// listeners.
func (o *Orchestrator) rebuildVirtualState() {
	stateA := o.routerStateOrEmpty(router.RouterA)
	stateB := o.routerStateOrEmpty(router.RouterB)
	cfg := o.eng.Config()

	vr := virtual.Build(stateA, stateB, cfg, o.eng)

	o.mu.Lock()
	o.vr = vr
	o.mu.Unlock()

	o.notify()
	o.emitEvent(Event{Kind: EventVirtualStateUpdated, VirtualState: vr})
	o.emitEvent(Event{Kind: EventTieLineStateUpdated, TieLineState: o.GetTieLineState()})
}

func (o *Orchestrator) routerStateOrEmpty(id router.ID) *router.State {
	o.mu.Lock()
	slot := o.routers[id]
	o.mu.Unlock()
	if slot == nil {
		return &router.State{}
	}
	return slot.ctrl.State()
}

// VirtualState returns the current virtual projection. Implements
// bridge.Upstream.
func (o *Orchestrator) VirtualState() *virtual.Router {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.vr
}

// GetVirtualState is the upstream API's read accessor (spec section 6),
// identical to VirtualState.
func (o *Orchestrator) GetVirtualState() *virtual.Router {
	return o.VirtualState()
}

// Subscribe registers a plain change notification, used by the bridge to
// learn when to re-diff. Implements bridge.Upstream.
func (o *Orchestrator) Subscribe(fn func()) func() {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	id := o.nextNotify
	o.nextNotify++
	o.notifyFns[id] = fn
	return func() {
		o.notifyMu.Lock()
		defer o.notifyMu.Unlock()
		delete(o.notifyFns, id)
	}
}

func (o *Orchestrator) notify() {
	o.notifyMu.Lock()
	fns := make([]func(), 0, len(o.notifyFns))
	for _, f := range o.notifyFns {
		fns = append(fns, f)
	}
	o.notifyMu.Unlock()
	for _, f := range fns {
		f()
	}
}

// ExecuteRoute executes one virtual route against the current
// projection. Implements bridge.Upstream, and is also the upstream API's
// setVirtualRoute.
func (o *Orchestrator) ExecuteRoute(ctx context.Context, vOut, vIn, level int) (engine.Result, error) {
	vr := o.VirtualState()
	return o.eng.ExecuteVirtualRoute(ctx, vr, vOut, vIn, level)
}

// SetVirtualRoute is the upstream API name for ExecuteRoute (spec
// section 6: setVirtualRoute(vOut,vIn,level)).
func (o *Orchestrator) SetVirtualRoute(ctx context.Context, vOut, vIn, level int) (engine.Result, error) {
	return o.ExecuteRoute(ctx, vOut, vIn, level)
}

// ExecuteSalvo runs a batch of virtual route changes against the current
// projection (spec section 6: salvo = batch of virtual routes).
func (o *Orchestrator) ExecuteSalvo(ctx context.Context, routes []engine.VirtualRoute, level int) ([]engine.Result, error) {
	vr := o.VirtualState()
	return o.eng.ExecuteSalvo(ctx, vr, routes, level)
}

// SetPhysicalLock resolves a virtual output to its owning physical
// router and forwards the lock change. Implements bridge.Upstream, and
// is also the upstream API's setVirtualLock.
func (o *Orchestrator) SetPhysicalLock(ctx context.Context, vOut int, state router.Lock) error {
	return o.SetVirtualLock(ctx, vOut, state)
}

// SetVirtualLock is the upstream API name for SetPhysicalLock (spec
// section 6: setVirtualLock(vOut,state)).
func (o *Orchestrator) SetVirtualLock(ctx context.Context, vOut int, state router.Lock) error {
	vr := o.VirtualState()
	id, port, ok := vr.ResolveOutput(vOut)
	if !ok {
		return fmt.Errorf("%w: virtual output %d", router.ErrInvalidIndex, vOut)
	}
	slot, err := o.slotFor(id)
	if err != nil {
		return err
	}
	return slot.ctrl.SetLock(ctx, port, state)
}

// SetInputLabel resolves a virtual input to its owning physical router
// and forwards the label write. Implements bridge.Upstream.
func (o *Orchestrator) SetInputLabel(ctx context.Context, vIdx int, text string) error {
	vr := o.VirtualState()
	id, port, ok := vr.ResolveInput(vIdx)
	if !ok {
		return fmt.Errorf("%w: virtual input %d", router.ErrInvalidIndex, vIdx)
	}
	slot, err := o.slotFor(id)
	if err != nil {
		return err
	}
	return slot.ctrl.SetInputLabel(ctx, port, text)
}

// SetOutputLabel resolves a virtual output to its owning physical router
// and forwards the label write. Implements bridge.Upstream.
func (o *Orchestrator) SetOutputLabel(ctx context.Context, vIdx int, text string) error {
	vr := o.VirtualState()
	id, port, ok := vr.ResolveOutput(vIdx)
	if !ok {
		return fmt.Errorf("%w: virtual output %d", router.ErrInvalidIndex, vIdx)
	}
	slot, err := o.slotFor(id)
	if err != nil {
		return err
	}
	return slot.ctrl.SetOutputLabel(ctx, port, text)
}

// GetRouterState returns the mirrored state of one physical router.
func (o *Orchestrator) GetRouterState(id router.ID) (*router.State, error) {
	slot, err := o.slotFor(id)
	if err != nil {
		return nil, err
	}
	return slot.ctrl.State(), nil
}

func (o *Orchestrator) slotFor(id router.ID) (*routerSlot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	slot, ok := o.routers[id]
	if !ok {
		return nil, router.ErrRouterNotConnected
	}
	return slot, nil
}
