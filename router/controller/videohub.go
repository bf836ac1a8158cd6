package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tielinehub.dev/tielinehub/internal/obs"
	"tielinehub.dev/tielinehub/protocol/videohub"
	"tielinehub.dev/tielinehub/router"
)

func init() {
	Register("videohub", func(o Options) Controller { return newVideohubController(o) })
}

// videohubController mirrors a Blackmagic VideoHub device's state over its
// native ASCII protocol.
type videohubController struct {
	bus
	opts Options

	mu        sync.Mutex
	sock      *videohub.Socket
	state     router.State
	connected bool // socket up AND initial dump received
	stopped   bool // Disconnect was called; suppress reconnect

	pending chan videohub.Block // awaiting ack for the in-flight write
	writeMu sync.Mutex          // serializes writes: one in-flight request
}

func newVideohubController(o Options) *videohubController {
	c := &videohubController{opts: o}
	c.state.Routing = map[int]int{}
	c.state.InputLabels = map[int]string{}
	c.state.OutputLabels = map[int]string{}
	c.state.OutputLocks = map[int]router.Lock{}
	return c
}

func (c *videohubController) addr() string {
	if c.opts.Port != 0 {
		return fmt.Sprintf("%s:%d", c.opts.Host, c.opts.Port)
	}
	return c.opts.Host
}

func (c *videohubController) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()
	return c.connectOnce(ctx, 0)
}

func (c *videohubController) connectOnce(ctx context.Context, attempt int) error {
	type dialResult struct {
		sock *videohub.Socket
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		sock, err := videohub.Dial(c.addr())
		done <- dialResult{sock, err}
	}()

	var res dialResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", router.ErrTimeout, ctx.Err())
	}
	if res.err != nil {
		return fmt.Errorf("%w: %s", router.ErrUnreachableHost, res.err)
	}

	if err := c.handshake(res.sock); err != nil {
		res.sock.Close()
		return err
	}

	c.mu.Lock()
	c.sock = res.sock
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(res.sock)

	obs.WithRouter(c.addr()).Info("videohub: connected")
	c.emit(Event{Kind: EventConnected})
	return nil
}

// handshake reads blocks until EndPreludeBlock, populating the initial
// state mirror (spec 4.1: populate the initial state mirror before
// emitting connected).
func (c *videohubController) handshake(sock *videohub.Socket) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		blk, err := sock.Read()
		if err != nil {
			return fmt.Errorf("%w: %s", router.ErrProtocolError, err)
		}
		if _, done := blk.(*videohub.EndPreludeBlock); done {
			return nil
		}
		c.applyBlockLocked(blk)
	}
}

// applyBlockLocked updates the state mirror from one received block.
// Caller must hold c.mu.
func (c *videohubController) applyBlockLocked(blk videohub.Block) []Event {
	var events []Event
	switch b := blk.(type) {
	case *videohub.VideohubDeviceBlock:
		c.state.Inputs = b.VideoInputs
		c.state.Outputs = b.VideoOutputs
		c.state.Identity = router.Identity{
			ModelName:    b.ModelName,
			FriendlyName: b.FriendlyName,
			UniqueID:     b.UniqueID,
		}
	case *videohub.InputLabelsBlock:
		for i, l := range b.Labels {
			c.state.InputLabels[i] = l
		}
		events = append(events, Event{Kind: EventInputLabelsChanged})
	case *videohub.OutputLabelsBlock:
		for i, l := range b.Labels {
			c.state.OutputLabels[i] = l
		}
		events = append(events, Event{Kind: EventOutputLabelsChanged})
	case *videohub.VideoOutputLocksBlock:
		changed := false
		for o, l := range b.Locks {
			c.state.OutputLocks[o] = fromWireLock(l)
			changed = true
		}
		if changed {
			events = append(events, Event{Kind: EventLocksChanged})
		}
	case *videohub.VideoOutputRoutingBlock:
		var changes []RouteChange
		for o, i := range b.Routing {
			c.state.Routing[o] = i
			changes = append(changes, RouteChange{Output: o, Input: i})
		}
		if len(changes) > 0 {
			events = append(events, Event{Kind: EventRoutingChanged, Changes: changes})
		}
	}
	return events
}

func fromWireLock(l videohub.Lock) router.Lock {
	switch l {
	case videohub.LockOwned:
		return router.LockOwned
	case videohub.LockLocked:
		return router.LockLocked
	default:
		return router.LockUnlocked
	}
}

func toWireLock(l router.Lock) videohub.Lock {
	switch l {
	case router.LockOwned:
		return videohub.LockOwned
	case router.LockLocked:
		return videohub.LockLocked
	default:
		return videohub.LockUnlocked
	}
}

// readLoop processes blocks after the initial handshake: unsolicited
// tallies update state without consuming a pending ack; ACK/NAK feed the
// single in-flight write request (spec 4.1 write queue).
func (c *videohubController) readLoop(sock *videohub.Socket) {
	for {
		blk, err := sock.Read()
		if err != nil {
			c.handleReadError(sock)
			return
		}

		switch blk.(type) {
		case *videohub.AckBlock, *videohub.NakBlock:
			c.mu.Lock()
			pending := c.pending
			c.mu.Unlock()
			if pending != nil {
				pending <- blk
			}
			continue
		}

		c.mu.Lock()
		events := c.applyBlockLocked(blk)
		c.mu.Unlock()
		for _, e := range events {
			c.emit(e)
		}
		c.emit(Event{Kind: EventStateUpdated})
	}
}

func (c *videohubController) handleReadError(sock *videohub.Socket) {
	c.mu.Lock()
	if c.sock != sock {
		c.mu.Unlock()
		return // already superseded by a newer connection
	}
	c.connected = false
	c.sock = nil
	stopped := c.stopped
	autoReconnect := c.opts.AutoReconnect
	c.mu.Unlock()

	sock.Close()
	obs.WithRouter(c.addr()).Warn("videohub: connection lost")
	c.emit(Event{Kind: EventDisconnected})

	if stopped || !autoReconnect {
		return
	}
	go c.reconnectLoop()
}

func (c *videohubController) reconnectLoop() {
	b := defaultBackoff()
	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}

		c.emit(Event{Kind: EventReconnecting, Attempt: attempt})
		time.Sleep(b.delay(attempt))

		c.mu.Lock()
		stopped = c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.connectOnce(ctx, attempt)
		cancel()
		if err == nil {
			return
		}
		obs.WithRouter(c.addr()).WithError(err).Warn("videohub: reconnect attempt failed")
	}
}

func (c *videohubController) Disconnect() error {
	c.mu.Lock()
	c.stopped = true
	sock := c.sock
	c.sock = nil
	c.connected = false
	c.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
	c.emit(Event{Kind: EventDisconnected})
	return nil
}

func (c *videohubController) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *videohubController) State() *router.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Connected = c.connected
	return c.state.Clone()
}

// request sends a block and waits for the router's ACK/NAK, honoring the
// single in-flight write queue (spec 4.1): additional writes from
// concurrent callers queue behind writeMu.
func (c *videohubController) request(ctx context.Context, blk videohub.Block) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	sock := c.sock
	if sock == nil {
		c.mu.Unlock()
		return router.ErrRouterNotConnected
	}
	ack := make(chan videohub.Block, 1)
	c.pending = ack
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
	}()

	if err := sock.Write(blk); err != nil {
		return fmt.Errorf("%w: %s", router.ErrTimeout, err)
	}

	select {
	case reply := <-ack:
		if _, ok := reply.(*videohub.NakBlock); ok {
			return router.ErrRejected
		}
		return nil
	case <-ctx.Done():
		return router.ErrTimeout
	}
}

func (c *videohubController) SetRoute(ctx context.Context, output, input, level int) error {
	return c.request(ctx, &videohub.VideoOutputRoutingBlock{
		Routing: videohub.Routing{output: input},
	})
}

// SetRoutes issues several crosspoint changes in one physical write,
// exercised by the engine's salvo execution path (engine.BulkSetter).
func (c *videohubController) SetRoutes(ctx context.Context, changes []RouteChange, level int) error {
	routing := make(videohub.Routing, len(changes))
	for _, ch := range changes {
		routing[ch.Output] = ch.Input
	}
	return c.request(ctx, &videohub.VideoOutputRoutingBlock{Routing: routing})
}

func (c *videohubController) SetInputLabel(ctx context.Context, index int, text string) error {
	return c.request(ctx, &videohub.InputLabelsBlock{
		Labels: videohub.Labels{index: text},
	})
}

func (c *videohubController) SetOutputLabel(ctx context.Context, index int, text string) error {
	return c.request(ctx, &videohub.OutputLabelsBlock{
		Labels: videohub.Labels{index: text},
	})
}

func (c *videohubController) SetLock(ctx context.Context, output int, state router.Lock) error {
	return c.request(ctx, &videohub.VideoOutputLocksBlock{
		Locks: videohub.Locks{output: toWireLock(state)},
	})
}
