package bridge

import (
	"context"
	"sync"

	"tielinehub.dev/tielinehub/internal/obs"
	"tielinehub.dev/tielinehub/protocol/videohub"
	"tielinehub.dev/tielinehub/virtual"
)

// client is one connected northbound control panel.
type client struct {
	sock   *videohub.Socket
	server *Server
	addr   string

	writeMu sync.Mutex

	// locks mirrors, for this client only, which virtual outputs it
	// currently holds the session lock on (authoritative state lives in
	// Server.locks, which is what disconnect handling releases from).
	locks map[int]bool

	snapMu      sync.Mutex
	sentRouting map[int]int
	sentInputs  map[int]string
	sentOutputs map[int]string
	sentLocks   map[int]string
	lastInputs  int
	lastOutputs int
}

func (c *client) write(blk videohub.Block) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.sock.Write(blk); err != nil {
		obs.WithClient(c.addr).WithError(err).Debug("bridge: write failed")
	}
}

func (c *client) run() {
	defer func() {
		c.sock.Close()
		c.server.removeClient(c)
	}()

	c.write(&videohub.ProtocolPreambleBlock{Version: videohub.VersionNumber{Major: 2, Minor: 8}})
	c.sendFullDump(c.server.upstream.VirtualState())

	for {
		blk, err := c.sock.Read()
		if err != nil {
			return
		}
		c.handle(blk)
	}
}

func (c *client) handle(blk videohub.Block) {
	ctx := context.Background()
	switch b := blk.(type) {
	case *videohub.PingBlock:
		c.write(&videohub.AckBlock{})

	case *videohub.VideoOutputRoutingBlock:
		if b.Routing == nil {
			c.write(c.routingBlock(c.server.upstream.VirtualState()))
			return
		}
		vr := c.server.upstream.VirtualState()
		for vOut, vIn := range b.Routing {
			if _, err := c.server.upstream.ExecuteRoute(ctx, vOut, vIn, 0); err != nil {
				obs.WithClient(c.addr).WithError(err).Debug("bridge: route request failed")
				// Re-broadcast the unchanged crosspoint to this client only.
				current := videohub.Routing{}
				if v, ok := vr.Routing[vOut]; ok {
					current[vOut] = v
				}
				c.write(&videohub.VideoOutputRoutingBlock{Routing: current})
			}
		}
		c.write(&videohub.AckBlock{})

	case *videohub.InputLabelsBlock:
		if b.Labels == nil {
			c.write(c.inputLabelsBlock(c.server.upstream.VirtualState()))
			return
		}
		for idx, text := range b.Labels {
			_ = c.server.upstream.SetInputLabel(ctx, idx, text)
		}
		c.write(&videohub.AckBlock{})

	case *videohub.OutputLabelsBlock:
		if b.Labels == nil {
			c.write(c.outputLabelsBlock(c.server.upstream.VirtualState()))
			return
		}
		for idx, text := range b.Labels {
			_ = c.server.upstream.SetOutputLabel(ctx, idx, text)
		}
		c.write(&videohub.AckBlock{})

	case *videohub.VideoOutputLocksBlock:
		if b.Locks == nil {
			c.write(c.locksBlock(c.server.upstream.VirtualState()))
			return
		}
		for vOut, l := range b.Locks {
			c.server.applyLockRequest(ctx, c, vOut, l.String())
		}
		c.write(&videohub.AckBlock{})

	default:
		c.write(&videohub.NakBlock{})
	}
}

func (c *client) sendFullDump(vr *virtual.Router) {
	c.write(&videohub.VideohubDeviceBlock{
		DevicePresent: videohub.DevicePresentTrue,
		ModelName:     "Tie Line Hub",
		FriendlyName:  "Tie Line Hub",
		VideoInputs:   vr.Inputs,
		VideoOutputs:  vr.Outputs,
	})
	c.write(c.inputLabelsBlock(vr))
	c.write(c.outputLabelsBlock(vr))
	c.write(c.routingBlock(vr))
	c.write(c.locksBlock(vr))
	c.write(&videohub.EndPreludeBlock{})

	c.snapMu.Lock()
	c.lastInputs, c.lastOutputs = vr.Inputs, vr.Outputs
	c.sentRouting = cloneIntMap(vr.Routing)
	c.sentInputs = cloneStrMap(vr.InputLabels)
	c.sentOutputs = cloneStrMap(vr.OutputLabels)
	c.sentLocks = c.allLockLetters(vr)
	c.snapMu.Unlock()
}

func (c *client) routingBlock(vr *virtual.Router) *videohub.VideoOutputRoutingBlock {
	return &videohub.VideoOutputRoutingBlock{Routing: videohub.Routing(cloneIntMap(vr.Routing))}
}

func (c *client) inputLabelsBlock(vr *virtual.Router) *videohub.InputLabelsBlock {
	return &videohub.InputLabelsBlock{Labels: videohub.Labels(cloneStrMap(vr.InputLabels))}
}

func (c *client) outputLabelsBlock(vr *virtual.Router) *videohub.OutputLabelsBlock {
	return &videohub.OutputLabelsBlock{Labels: videohub.Labels(cloneStrMap(vr.OutputLabels))}
}

func (c *client) locksBlock(vr *virtual.Router) *videohub.VideoOutputLocksBlock {
	letters := c.allLockLetters(vr)
	locks := make(videohub.Locks, len(letters))
	for vOut, l := range letters {
		locks[vOut] = wireLockFromLetter(l)
	}
	return &videohub.VideoOutputLocksBlock{Locks: locks}
}

func (c *client) allLockLetters(vr *virtual.Router) map[int]string {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	out := make(map[int]string, vr.Outputs)
	for vo := 0; vo < vr.Outputs; vo++ {
		out[vo] = c.server.locks.letter(vr, vo, c)
	}
	return out
}

func wireLockFromLetter(l string) videohub.Lock {
	switch l {
	case "O":
		return videohub.LockOwned
	case "L":
		return videohub.LockLocked
	default:
		return videohub.LockUnlocked
	}
}

// sendDiff compares the current virtual state against this client's
// last-sent snapshot and writes only the changed rows per section,
// falling back to a full re-dump when the port counts change.
func (c *client) sendDiff(vr *virtual.Router) {
	c.snapMu.Lock()
	if vr.Inputs != c.lastInputs || vr.Outputs != c.lastOutputs {
		c.snapMu.Unlock()
		c.sendFullDump(vr)
		return
	}

	changedRouting := videohub.Routing{}
	for vo, vi := range vr.Routing {
		if prev, ok := c.sentRouting[vo]; !ok || prev != vi {
			changedRouting[vo] = vi
		}
	}
	changedInputs := videohub.Labels{}
	for idx, label := range vr.InputLabels {
		if prev, ok := c.sentInputs[idx]; !ok || prev != label {
			changedInputs[idx] = label
		}
	}
	changedOutputs := videohub.Labels{}
	for idx, label := range vr.OutputLabels {
		if prev, ok := c.sentOutputs[idx]; !ok || prev != label {
			changedOutputs[idx] = label
		}
	}

	letters := c.allLockLetters(vr)
	changedLocks := videohub.Locks{}
	for vo, l := range letters {
		if prev, ok := c.sentLocks[vo]; !ok || prev != l {
			changedLocks[vo] = wireLockFromLetter(l)
		}
	}

	c.sentRouting = cloneIntMap(vr.Routing)
	c.sentInputs = cloneStrMap(vr.InputLabels)
	c.sentOutputs = cloneStrMap(vr.OutputLabels)
	c.sentLocks = letters
	c.snapMu.Unlock()

	if len(changedRouting) > 0 {
		c.write(&videohub.VideoOutputRoutingBlock{Routing: changedRouting})
	}
	if len(changedInputs) > 0 {
		c.write(&videohub.InputLabelsBlock{Labels: changedInputs})
	}
	if len(changedOutputs) > 0 {
		c.write(&videohub.OutputLabelsBlock{Labels: changedOutputs})
	}
	if len(changedLocks) > 0 {
		c.write(&videohub.VideoOutputLocksBlock{Locks: changedLocks})
	}
}

func cloneIntMap(m map[int]int) map[int]int {
	c := make(map[int]int, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneStrMap(m map[int]string) map[int]string {
	c := make(map[int]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
