package orchestrator

import (
	"context"
	"fmt"

	"tielinehub.dev/tielinehub/internal/obs"
	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/router/controller"
)

// ConnectRouter constructs a protocol controller from opts, connects it,
// registers it with the tie-line engine, and schedules a rebuild. Spec
// section 6: connectRouter(id, {host,port,protocol,levels}).
func (o *Orchestrator) ConnectRouter(ctx context.Context, id router.ID, opts RouterConnectOptions) error {
	ctrl, err := controller.New(opts.Protocol, controller.Options{
		Host:          opts.Host,
		Port:          opts.Port,
		Levels:        opts.Levels,
		AutoReconnect: true,
		Inputs:        opts.Inputs,
		Outputs:       opts.Outputs,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: connect router %s: %w", id, err)
	}

	unsub := ctrl.Subscribe(func(e controller.Event) { o.handleControllerEvent(id, e) })

	if err := ctrl.Connect(ctx); err != nil {
		unsub()
		return fmt.Errorf("orchestrator: connect router %s: %w", id, err)
	}

	o.mu.Lock()
	o.routers[id] = &routerSlot{ctrl: ctrl, opts: opts, unsubCtl: unsub}
	o.mu.Unlock()

	o.eng.SetRouter(id, ctrl)
	obs.WithRouter(string(id)).Info("orchestrator: router connected")
	o.scheduleRebuild()
	return nil
}

// DisconnectRouter gracefully closes a router's connection and removes
// it from the engine. Spec section 6: disconnectRouter(id).
func (o *Orchestrator) DisconnectRouter(id router.ID) error {
	o.mu.Lock()
	slot, ok := o.routers[id]
	delete(o.routers, id)
	o.mu.Unlock()
	if !ok {
		return router.ErrRouterNotConnected
	}

	slot.unsubCtl()
	o.eng.ClearRouter(id)
	err := slot.ctrl.Disconnect()
	obs.WithRouter(string(id)).Info("orchestrator: router disconnected")
	o.scheduleRebuild()
	return err
}

// handleControllerEvent translates a controller-level event into the
// orchestrator's upstream event feed and, where the event implies a
// state change, schedules a virtual-state rebuild (spec 4.5's
// coalescing dispatch).
func (o *Orchestrator) handleControllerEvent(id router.ID, e controller.Event) {
	switch e.Kind {
	case controller.EventConnected:
		// A reconnect re-delivers EventConnected on the same Controller
		// instance; rebuild tie-line state from the fresh dump so
		// in-flight sessions survive (spec 4.3 reconstruction).
		o.eng.Reconstruct()
		o.emitEvent(Event{Kind: EventRouterConnected, Router: id})
		o.scheduleRebuild()
	case controller.EventDisconnected:
		o.emitEvent(Event{Kind: EventRouterDisconnected, Router: id})
		o.scheduleRebuild()
	case controller.EventReconnecting:
		obs.WithRouter(string(id)).WithField("attempt", e.Attempt).Warn("orchestrator: reconnecting")
		o.emitEvent(Event{Kind: EventRouterReconnecting, Router: id, Attempt: e.Attempt})
	case controller.EventRoutingChanged:
		o.emitEvent(Event{Kind: EventRoutingChanged, Router: id})
		o.scheduleRebuild()
	case controller.EventInputLabelsChanged:
		o.emitEvent(Event{Kind: EventInputLabelsChanged, Router: id})
		o.scheduleRebuild()
	case controller.EventOutputLabelsChanged:
		o.emitEvent(Event{Kind: EventOutputLabelsChanged, Router: id})
		o.scheduleRebuild()
	case controller.EventLocksChanged, controller.EventStateUpdated:
		o.scheduleRebuild()
	case controller.EventError:
		obs.WithRouter(string(id)).WithError(e.Err).Warn("orchestrator: controller error")
		o.emitEvent(Event{Kind: EventRouterError, Router: id, Err: e.Err})
	}
}
