package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tielinehub.dev/tielinehub/internal/obs"
	"tielinehub.dev/tielinehub/protocol/swp08"
	"tielinehub.dev/tielinehub/router"
)

func init() {
	Register("swp08", func(o Options) Controller { return newSwp08Controller(o) })
}

// swp08Controller mirrors an SW-P-08 router's tally state over the binary
// DLE/STX framed protocol. SW-P-08 has no native concept of output
// locking, so SetLock is a local no-op and State always reports
// LockUnlocked.
type swp08Controller struct {
	bus
	opts Options

	mu        sync.Mutex
	sock      *swp08.Socket
	state     router.State
	connected bool
	stopped   bool

	pendingTally  map[tallyKey]chan swp08.TallyMessage
	pendingName   map[nameKey]chan swp08.NameMessage
	writeMu       sync.Mutex
}

type tallyKey struct {
	destination int
	level       byte
}

type nameKey struct {
	source bool
	port   int
}

func newSwp08Controller(o Options) *swp08Controller {
	c := &swp08Controller{opts: o}
	c.state.Inputs = o.Inputs
	c.state.Outputs = o.Outputs
	c.state.Routing = map[int]int{}
	c.state.InputLabels = map[int]string{}
	c.state.OutputLabels = map[int]string{}
	c.state.OutputLocks = map[int]router.Lock{}
	c.pendingTally = map[tallyKey]chan swp08.TallyMessage{}
	c.pendingName = map[nameKey]chan swp08.NameMessage{}
	return c
}

func (c *swp08Controller) addr() string {
	if c.opts.Port != 0 {
		return fmt.Sprintf("%s:%d", c.opts.Host, c.opts.Port)
	}
	return c.opts.Host
}

func (c *swp08Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()
	return c.connectOnce(ctx)
}

func (c *swp08Controller) connectOnce(ctx context.Context) error {
	type dialResult struct {
		sock *swp08.Socket
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		sock, err := swp08.Dial(c.addr())
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

	c.mu.Lock()
	c.sock = res.sock
	c.mu.Unlock()

	go c.readLoop(res.sock)

	c.dumpInitialState(ctx)

	c.mu.Lock()
	if c.sock == res.sock {
		c.connected = true
	}
	c.mu.Unlock()

	obs.WithRouter(c.addr()).Info("swp08: connected")
	c.emit(Event{Kind: EventConnected})
	return nil
}

// dumpInitialState interrogates every destination on every level to
// populate the tally mirror. Best-effort: interrogation failures are
// logged, not fatal, since a partial mirror still reflects real state as
// unsolicited tallies arrive.
func (c *swp08Controller) dumpInitialState(ctx context.Context) {
	levels := c.opts.Levels
	if levels < 1 {
		levels = 1
	}
	for dest := 0; dest < c.opts.Outputs; dest++ {
		for lvl := 0; lvl < levels; lvl++ {
			if _, err := c.interrogate(ctx, dest, byte(lvl)); err != nil {
				obs.WithRouter(c.addr()).WithError(err).Debug("swp08: initial interrogate failed")
			}
		}
	}
}

func (c *swp08Controller) readLoop(sock *swp08.Socket) {
	for {
		f, err := sock.Read()
		if err != nil {
			c.handleReadError(sock)
			return
		}

		switch f.Command {
		case swp08.CmdCrosspointTally:
			tm, err := swp08.DecodeTally(f.Payload)
			if err != nil {
				continue
			}
			c.mu.Lock()
			key := tallyKey{destination: tm.Destination, level: tm.Level}
			ch := c.pendingTally[key]
			if ch != nil {
				delete(c.pendingTally, key)
			}
			if tm.Level == 0 {
				c.state.Routing[tm.Destination] = tm.Source
			}
			c.mu.Unlock()
			if ch != nil {
				ch <- tm
			}
			c.emit(Event{Kind: EventRoutingChanged, Changes: []RouteChange{{Output: tm.Destination, Input: tm.Source}}})
			c.emit(Event{Kind: EventStateUpdated})

		case swp08.CmdSourceName, swp08.CmdDestName:
			nm, err := swp08.DecodeName(f)
			if err != nil {
				continue
			}
			c.mu.Lock()
			key := nameKey{source: nm.Source, port: nm.Port}
			ch := c.pendingName[key]
			if ch != nil {
				delete(c.pendingName, key)
			}
			if nm.Source {
				c.state.InputLabels[nm.Port] = nm.Name
			} else {
				c.state.OutputLabels[nm.Port] = nm.Name
			}
			c.mu.Unlock()
			if ch != nil {
				ch <- nm
			}
			if nm.Source {
				c.emit(Event{Kind: EventInputLabelsChanged})
			} else {
				c.emit(Event{Kind: EventOutputLabelsChanged})
			}
		}
	}
}

func (c *swp08Controller) handleReadError(sock *swp08.Socket) {
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
	obs.WithRouter(c.addr()).Warn("swp08: connection lost")
	c.emit(Event{Kind: EventDisconnected})

	if stopped || !autoReconnect {
		return
	}
	go c.reconnectLoop()
}

func (c *swp08Controller) reconnectLoop() {
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
		obs.WithRouter(c.addr()).WithError(err).Warn("swp08: reconnect attempt failed")
	}
}

func (c *swp08Controller) Disconnect() error {
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

func (c *swp08Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *swp08Controller) State() *router.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Connected = c.connected
	return c.state.Clone()
}

func (c *swp08Controller) interrogate(ctx context.Context, destination int, level byte) (swp08.TallyMessage, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	sock := c.sock
	if sock == nil {
		c.mu.Unlock()
		return swp08.TallyMessage{}, router.ErrRouterNotConnected
	}
	key := tallyKey{destination: destination, level: level}
	ch := make(chan swp08.TallyMessage, 1)
	c.pendingTally[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pendingTally, key)
		c.mu.Unlock()
	}()

	msg := swp08.InterrogateMessage{Matrix: 0, Level: level, Destination: destination}
	if err := sock.WriteBytes(msg.Encode()); err != nil {
		return swp08.TallyMessage{}, fmt.Errorf("%w: %s", router.ErrTimeout, err)
	}

	select {
	case tm := <-ch:
		return tm, nil
	case <-ctx.Done():
		return swp08.TallyMessage{}, router.ErrTimeout
	}
}

func (c *swp08Controller) SetRoute(ctx context.Context, output, input, level int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	sock := c.sock
	if sock == nil {
		c.mu.Unlock()
		return router.ErrRouterNotConnected
	}
	key := tallyKey{destination: output, level: byte(level)}
	ch := make(chan swp08.TallyMessage, 1)
	c.pendingTally[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pendingTally, key)
		c.mu.Unlock()
	}()

	msg := swp08.ConnectMessage{Matrix: 0, Level: byte(level), Destination: output, Source: input}
	if err := sock.WriteBytes(msg.Encode()); err != nil {
		return fmt.Errorf("%w: %s", router.ErrTimeout, err)
	}

	select {
	case tm := <-ch:
		if tm.Source != input {
			return router.ErrRejected
		}
		return nil
	case <-ctx.Done():
		return router.ErrTimeout
	}
}

func (c *swp08Controller) nameRequest(ctx context.Context, source bool, port int, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	sock := c.sock
	if sock == nil {
		c.mu.Unlock()
		return router.ErrRouterNotConnected
	}
	key := nameKey{source: source, port: port}
	ch := make(chan swp08.NameMessage, 1)
	c.pendingName[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pendingName, key)
		c.mu.Unlock()
	}()

	msg := swp08.NameMessage{Source: source, Port: port, Name: text}
	if err := sock.WriteBytes(msg.Encode()); err != nil {
		return fmt.Errorf("%w: %s", router.ErrTimeout, err)
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return router.ErrTimeout
	}
}

func (c *swp08Controller) SetInputLabel(ctx context.Context, index int, text string) error {
	return c.nameRequest(ctx, true, index, text)
}

func (c *swp08Controller) SetOutputLabel(ctx context.Context, index int, text string) error {
	return c.nameRequest(ctx, false, index, text)
}

// SetLock is a no-op: SW-P-08 has no output locking primitive.
func (c *swp08Controller) SetLock(ctx context.Context, output int, state router.Lock) error {
	return nil
}
