package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tielinehub.dev/tielinehub/internal/obs"
	"tielinehub.dev/tielinehub/protocol/gvnative"
	"tielinehub.dev/tielinehub/router"
)

func init() {
	Register("gvnative", func(o Options) Controller { return newGvnativeController(o) })
}

// gvnativeController mirrors a GV Native router's state over the
// length-prefixed JSON envelope protocol. Like SW-P-08, GV Native has no
// output-locking primitive, so SetLock is a local no-op.
type gvnativeController struct {
	bus
	opts Options

	mu        sync.Mutex
	sock      *gvnative.Socket
	state     router.State
	connected bool
	stopped   bool

	pending chan gvnative.Message
	writeMu sync.Mutex
}

func newGvnativeController(o Options) *gvnativeController {
	c := &gvnativeController{opts: o}
	c.state.Inputs = o.Inputs
	c.state.Outputs = o.Outputs
	c.state.Routing = map[int]int{}
	c.state.InputLabels = map[int]string{}
	c.state.OutputLabels = map[int]string{}
	c.state.OutputLocks = map[int]router.Lock{}
	return c
}

func (c *gvnativeController) addr() string {
	if c.opts.Port != 0 {
		return fmt.Sprintf("%s:%d", c.opts.Host, c.opts.Port)
	}
	return c.opts.Host
}

func (c *gvnativeController) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()
	return c.connectOnce(ctx)
}

func (c *gvnativeController) connectOnce(ctx context.Context) error {
	type dialResult struct {
		sock *gvnative.Socket
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		sock, err := gvnative.Dial(c.addr())
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

	obs.WithRouter(c.addr()).Info("gvnative: connected")
	c.emit(Event{Kind: EventConnected})
	return nil
}

// handshake exchanges hello, requests the full crosspoint/label dump, and
// populates the state mirror from the tally and label messages that
// follow, reading until the device's closing ack for the query.
func (c *gvnativeController) handshake(sock *gvnative.Socket) error {
	if err := sock.Write(gvnative.Message{Kind: gvnative.KindHello}); err != nil {
		return fmt.Errorf("%w: %s", router.ErrProtocolError, err)
	}
	if _, err := sock.Read(); err != nil { // hello reply
		return fmt.Errorf("%w: %s", router.ErrProtocolError, err)
	}

	if err := sock.Write(gvnative.Message{Kind: gvnative.KindQuery}); err != nil {
		return fmt.Errorf("%w: %s", router.ErrProtocolError, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		m, err := sock.Read()
		if err != nil {
			return fmt.Errorf("%w: %s", router.ErrProtocolError, err)
		}
		switch m.Kind {
		case gvnative.KindAck, gvnative.KindNak:
			return nil
		default:
			c.applyMessageLocked(m)
		}
	}
}

// applyMessageLocked updates the state mirror from one received message.
// Caller must hold c.mu.
func (c *gvnativeController) applyMessageLocked(m gvnative.Message) []Event {
	var events []Event
	switch m.Kind {
	case gvnative.KindTally:
		c.state.Routing[m.Destination] = m.Source
		events = append(events, Event{Kind: EventRoutingChanged, Changes: []RouteChange{{Output: m.Destination, Input: m.Source}}})
	case gvnative.KindLabel:
		if m.IsInput {
			c.state.InputLabels[m.Port] = m.Label
			events = append(events, Event{Kind: EventInputLabelsChanged})
		} else {
			c.state.OutputLabels[m.Port] = m.Label
			events = append(events, Event{Kind: EventOutputLabelsChanged})
		}
	}
	return events
}

func (c *gvnativeController) readLoop(sock *gvnative.Socket) {
	for {
		m, err := sock.Read()
		if err != nil {
			c.handleReadError(sock)
			return
		}

		switch m.Kind {
		case gvnative.KindAck, gvnative.KindNak:
			c.mu.Lock()
			pending := c.pending
			c.mu.Unlock()
			if pending != nil {
				pending <- m
			}
			continue
		}

		c.mu.Lock()
		events := c.applyMessageLocked(m)
		c.mu.Unlock()
		for _, e := range events {
			c.emit(e)
		}
		c.emit(Event{Kind: EventStateUpdated})
	}
}

func (c *gvnativeController) handleReadError(sock *gvnative.Socket) {
	c.mu.Lock()
	if c.sock != sock {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.sock = nil
	stopped := c.stopped
	autoReconnect := c.opts.AutoReconnect
	c.mu.Unlock()

	sock.Close()
	obs.WithRouter(c.addr()).Warn("gvnative: connection lost")
	c.emit(Event{Kind: EventDisconnected})

	if stopped || !autoReconnect {
		return
	}
	go c.reconnectLoop()
}

func (c *gvnativeController) reconnectLoop() {
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
		err := c.connectOnce(ctx)
		cancel()
		if err == nil {
			return
		}
		obs.WithRouter(c.addr()).WithError(err).Warn("gvnative: reconnect attempt failed")
	}
}

func (c *gvnativeController) Disconnect() error {
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

func (c *gvnativeController) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *gvnativeController) State() *router.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Connected = c.connected
	return c.state.Clone()
}

func (c *gvnativeController) request(ctx context.Context, m gvnative.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	sock := c.sock
	if sock == nil {
		c.mu.Unlock()
		return router.ErrRouterNotConnected
	}
	ack := make(chan gvnative.Message, 1)
	c.pending = ack
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
	}()

	if err := sock.Write(m); err != nil {
		return fmt.Errorf("%w: %s", router.ErrTimeout, err)
	}

	select {
	case reply := <-ack:
		if reply.Kind == gvnative.KindNak {
			return router.ErrRejected
		}
		return nil
	case <-ctx.Done():
		return router.ErrTimeout
	}
}

func (c *gvnativeController) SetRoute(ctx context.Context, output, input, level int) error {
	return c.request(ctx, gvnative.Message{
		Kind: gvnative.KindCrosspointSet, Destination: output, Source: input, Level: level,
	})
}

func (c *gvnativeController) SetInputLabel(ctx context.Context, index int, text string) error {
	return c.request(ctx, gvnative.Message{
		Kind: gvnative.KindLabelSet, Port: index, IsInput: true, Label: text,
	})
}

func (c *gvnativeController) SetOutputLabel(ctx context.Context, index int, text string) error {
	return c.request(ctx, gvnative.Message{
		Kind: gvnative.KindLabelSet, Port: index, IsInput: false, Label: text,
	})
}

// SetLock is a no-op: GV Native has no output-locking primitive.
func (c *gvnativeController) SetLock(ctx context.Context, output int, state router.Lock) error {
	return nil
}
