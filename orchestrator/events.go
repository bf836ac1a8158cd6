package orchestrator

import (
	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/virtual"
)

// EventKind identifies the category of an upstream Event (spec section
// 6: the per-router events plus the two aggregate "-updated" events).
type EventKind int

const (
	EventRouterConnected EventKind = iota
	EventRouterDisconnected
	EventRouterReconnecting
	EventRoutingChanged
	EventInputLabelsChanged
	EventOutputLabelsChanged
	EventRouterError
	EventVirtualStateUpdated
	EventTieLineStateUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventRouterConnected:
		return "connected"
	case EventRouterDisconnected:
		return "disconnected"
	case EventRouterReconnecting:
		return "reconnecting"
	case EventRoutingChanged:
		return "routing-changed"
	case EventInputLabelsChanged:
		return "input-labels-changed"
	case EventOutputLabelsChanged:
		return "output-labels-changed"
	case EventRouterError:
		return "error"
	case EventVirtualStateUpdated:
		return "virtual-state-updated"
	case EventTieLineStateUpdated:
		return "tie-line-state-updated"
	default:
		return "unknown"
	}
}

// Event is pushed to upstream listeners. Router is set for per-router
// events; VirtualState/TieLineState are set for the two aggregate
// events.
type Event struct {
	Kind         EventKind
	Router       router.ID
	Attempt      int
	Err          error
	VirtualState *virtual.Router
	TieLineState TieLineState
}

// Listener receives upstream Events. Listeners must not block.
type Listener func(Event)

// SubscribeEvents registers a listener for the full upstream event feed
// (spec section 6). The returned function removes it.
func (o *Orchestrator) SubscribeEvents(l Listener) func() {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()
	id := o.nextEvent
	o.nextEvent++
	o.eventLs[id] = l
	return func() {
		o.eventsMu.Lock()
		defer o.eventsMu.Unlock()
		delete(o.eventLs, id)
	}
}

func (o *Orchestrator) emitEvent(e Event) {
	o.eventsMu.Lock()
	ls := make([]Listener, 0, len(o.eventLs))
	for _, l := range o.eventLs {
		ls = append(ls, l)
	}
	o.eventsMu.Unlock()
	for _, l := range ls {
		l(e)
	}
}
