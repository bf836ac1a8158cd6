// Package controller implements one client per supported wire protocol,
// each maintaining a live mirror of a physical router's matrix state over
// a persistent TCP connection, surviving reconnects, and emitting change
// events. Controller is the common contract the tie-line engine, virtual
// router, and orchestrator depend on; callers never need to know which
// protocol a given router speaks.
package controller

import (
	"context"
	"fmt"

	"tielinehub.dev/tielinehub/router"
)

// Options configures a Controller before Connect is called.
type Options struct {
	Host          string
	Port          int // 0 selects the protocol's default port
	Levels        int // number of audio/video breakaway levels, at least 1
	AutoReconnect bool

	// Inputs and Outputs give the matrix size for protocols that do not
	// self-report it during the handshake (SW-P-08, GV Native). VideoHub
	// ignores these and uses the size reported by the device itself.
	Inputs  int
	Outputs int
}

// Controller is the per-router protocol client contract (spec 4.1).
type Controller interface {
	// Connect opens the connection, performs the protocol handshake,
	// populates the initial state mirror, and emits EventConnected.
	// Fails with router.ErrUnreachableHost, router.ErrProtocolError, or
	// router.ErrTimeout.
	Connect(ctx context.Context) error
	// Disconnect gracefully closes the connection and emits
	// EventDisconnected. It disables auto-reconnect for this controller.
	Disconnect() error
	// IsConnected reflects the socket's up state and whether the initial
	// state dump has been received.
	IsConnected() bool
	// State returns a snapshot of the mirrored router state.
	State() *router.State
	// SetRoute issues a crosspoint change and returns once the router has
	// acknowledged it. Fails with router.ErrRouterNotConnected,
	// router.ErrTimeout, or router.ErrRejected.
	SetRoute(ctx context.Context, output, input, level int) error
	// SetInputLabel sets the label of an input. Best-effort on protocols
	// that do not support label writes.
	SetInputLabel(ctx context.Context, index int, text string) error
	// SetOutputLabel sets the label of an output. Best-effort on
	// protocols that do not support label writes.
	SetOutputLabel(ctx context.Context, index int, text string) error
	// SetLock changes the lock state of an output. Best-effort on
	// protocols that do not support locking (all but VideoHub).
	SetLock(ctx context.Context, output int, state router.Lock) error
	// Subscribe registers a listener for controller events. The returned
	// function removes the listener.
	Subscribe(l Listener) (unsubscribe func())
}

// Factory constructs a Controller for one protocol from Options.
type Factory func(Options) Controller

// registry is the controller lookup table, keyed by protocol name.
// Optional controllers loaded at startup are looked up here; unknown
// protocol names return ErrUnsupportedProtocol instead of a nil
// Controller, per spec design note 9.
var registry = map[string]Factory{}

// Register adds a protocol implementation to the registry. Called from
// each protocol sub-package's init().
func Register(protocol string, f Factory) {
	registry[protocol] = f
}

// New constructs a Controller for the named protocol. Protocol names are
// case-sensitive and match the wire-protocol names in spec section 6:
// "videohub", "swp08", "gvnative".
func New(protocol string, opts Options) (Controller, error) {
	f, ok := registry[protocol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", router.ErrUnsupportedProtocol, protocol)
	}
	return f(opts), nil
}

// Protocols returns the names of all registered protocols.
func Protocols() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
