// Package bridge implements the northbound server: a VideoHub-protocol
// endpoint that re-exposes the virtual matrix so third-party control
// panels can drive it exactly as they would a physical VideoHub (spec
// 4.4). It never touches a physical router directly; every command is
// forwarded through the Upstream interface (the orchestrator).
package bridge

import (
	"context"
	"fmt"
	"net"
	"sync"

	"tielinehub.dev/tielinehub/engine"
	"tielinehub.dev/tielinehub/internal/obs"
	"tielinehub.dev/tielinehub/protocol/videohub"
	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/virtual"
)

// Upstream is the narrow surface the bridge needs from whatever owns the
// engine and virtual router; the orchestrator implements it.
type Upstream interface {
	VirtualState() *virtual.Router
	ExecuteRoute(ctx context.Context, vOut, vIn, level int) (engine.Result, error)
	SetPhysicalLock(ctx context.Context, vOut int, state router.Lock) error
	SetInputLabel(ctx context.Context, vIdx int, text string) error
	SetOutputLabel(ctx context.Context, vIdx int, text string) error
	Subscribe(fn func()) (unsubscribe func())
}

// Status reports whether the bridge is currently accepting connections.
type Status struct {
	Running bool
	Addr    string
	Clients int
}

// Server is the northbound VideoHub-protocol endpoint.
type Server struct {
	upstream Upstream

	mu       sync.Mutex
	listener *videohub.Listener
	clients  map[*client]struct{}
	unsub    func()
	locks    *sessionLocks
}

// New constructs a bridge server. Start must be called to begin
// accepting connections.
func New(upstream Upstream) *Server {
	return &Server{
		upstream: upstream,
		clients:  map[*client]struct{}{},
		locks:    newSessionLocks(),
	}
}

// Start opens the listening socket and begins accepting clients. If addr
// has no port, VideoHub's default 9990 is used.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return fmt.Errorf("bridge: already running")
	}
	l, err := videohub.Listen(addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = l
	s.unsub = s.upstream.Subscribe(s.broadcast)
	s.mu.Unlock()

	go s.acceptLoop(l)
	obs.Log.WithField("addr", l.Addr().String()).Info("bridge: listening")
	return nil
}

// Stop closes the listener and disconnects every client.
func (s *Server) Stop() error {
	s.mu.Lock()
	l := s.listener
	s.listener = nil
	unsub := s.unsub
	s.unsub = nil
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, c := range clients {
		c.sock.Close()
	}
	if l == nil {
		return nil
	}
	return l.Close()
}

// GetStatus reports whether the bridge is running.
func (s *Server) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return Status{Running: false}
	}
	return Status{Running: true, Addr: s.listener.Addr().String(), Clients: len(s.clients)}
}

func (s *Server) acceptLoop(l *videohub.Listener) {
	for {
		sock, err := l.Accept()
		if err != nil {
			return // listener closed
		}
		c := &client{
			sock:   sock,
			server: s,
			addr:   remoteAddr(sock),
			locks:  map[int]bool{},
		}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		obs.WithClient(c.addr).Info("bridge: client connected")
		go c.run()
	}
}

func remoteAddr(sock *videohub.Socket) string {
	if conn, ok := sock.Conn.(net.Conn); ok {
		return conn.RemoteAddr().String()
	}
	return "unknown"
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	freed := s.locks.releaseAll(c)
	s.mu.Unlock()

	// Release every lock this session owned and forward the release to
	// the physical router (spec 4.4: on disconnect, release and forward
	// un-lock, then broadcast).
	for _, vOut := range freed {
		if err := s.upstream.SetPhysicalLock(context.Background(), vOut, router.LockUnlocked); err != nil {
			obs.WithClient(c.addr).WithError(err).Warn("bridge: failed to release lock on disconnect")
		}
	}
	obs.WithClient(c.addr).Info("bridge: client disconnected")
	s.broadcast()
}

// broadcast diffs the current virtual state against each connected
// client's last-sent snapshot and pushes only the changed rows, per
// spec 4.4. Size changes trigger a full re-dump.
func (s *Server) broadcast() {
	vr := s.upstream.VirtualState()

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.sendDiff(vr)
	}
}
