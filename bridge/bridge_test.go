package bridge

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"tielinehub.dev/tielinehub/engine"
	"tielinehub.dev/tielinehub/protocol/videohub"
	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/virtual"
)

// discardConn is a no-op io.ReadWriteCloser standing in for a real
// connection in tests that exercise client writes without a socket.
type discardConn struct {
	bytes.Buffer
}

func (discardConn) Close() error                  { return nil }
func (c *discardConn) Read(p []byte) (int, error) { return 0, io.EOF }

func newTestSocket() *videohub.Socket {
	return &videohub.Socket{Conn: &discardConn{}}
}

type fakeUpstream struct {
	mu      sync.Mutex
	vr      *virtual.Router
	subs    []func()
	locked  map[int]router.Lock
	inputs  map[int]string
	outputs map[int]string
}

func newFakeUpstream(inputs, outputs int) *fakeUpstream {
	return &fakeUpstream{
		vr: &virtual.Router{
			Inputs:       inputs,
			Outputs:      outputs,
			Routing:      map[int]int{},
			InputLabels:  map[int]string{},
			OutputLabels: map[int]string{},
			OutputLocks:  map[int]router.Lock{},
		},
		locked:  map[int]router.Lock{},
		inputs:  map[int]string{},
		outputs: map[int]string{},
	}
}

func (f *fakeUpstream) VirtualState() *virtual.Router {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vr
}

func (f *fakeUpstream) ExecuteRoute(ctx context.Context, vOut, vIn, level int) (engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vr.Routing[vOut] = vIn
	return engine.Result{Output: vOut, Input: vIn}, nil
}

func (f *fakeUpstream) SetPhysicalLock(ctx context.Context, vOut int, state router.Lock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked[vOut] = state
	return nil
}

func (f *fakeUpstream) SetInputLabel(ctx context.Context, vIdx int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs[vIdx] = text
	return nil
}

func (f *fakeUpstream) SetOutputLabel(ctx context.Context, vIdx int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[vIdx] = text
	return nil
}

func (f *fakeUpstream) Subscribe(fn func()) func() {
	f.subs = append(f.subs, fn)
	idx := len(f.subs) - 1
	return func() { f.subs[idx] = nil }
}

func TestSessionLocksOwnershipVisibility(t *testing.T) {
	locks := newSessionLocks()
	a := &client{locks: map[int]bool{}}
	b := &client{locks: map[int]bool{}}

	if !locks.acquire(3, a) {
		t.Fatal("expected a to acquire lock 3")
	}
	if locks.acquire(3, b) {
		t.Fatal("expected b to be refused lock 3")
	}

	vr := &virtual.Router{OutputLocks: map[int]router.Lock{}}
	if got := locks.letter(vr, 3, a); got != "O" {
		t.Fatalf("owner should see O, got %s", got)
	}
	if got := locks.letter(vr, 3, b); got != "L" {
		t.Fatalf("non-owner should see L, got %s", got)
	}
	if got := locks.letter(vr, 4, a); got != "U" {
		t.Fatalf("unheld output should be U, got %s", got)
	}
}

func TestSessionLocksReleaseAllOnDisconnect(t *testing.T) {
	locks := newSessionLocks()
	a := &client{locks: map[int]bool{}}
	locks.acquire(1, a)
	locks.acquire(2, a)

	freed := locks.releaseAll(a)
	if len(freed) != 2 {
		t.Fatalf("expected 2 freed outputs, got %v", freed)
	}
	if locks.owner(1) != nil || locks.owner(2) != nil {
		t.Fatal("locks should be released after releaseAll")
	}
}

func TestApplyLockRequestForwardsPhysicalLock(t *testing.T) {
	up := newFakeUpstream(2, 2)
	s := New(up)
	c := &client{server: s, locks: map[int]bool{}}

	s.applyLockRequest(context.Background(), c, 0, "O")
	if up.locked[0] != router.LockOwned {
		t.Fatalf("expected physical lock forwarded as owned, got %v", up.locked[0])
	}

	s.applyLockRequest(context.Background(), c, 0, "U")
	if up.locked[0] != router.LockUnlocked {
		t.Fatalf("expected physical lock forwarded as unlocked, got %v", up.locked[0])
	}
}

func TestSendDiffOnlySendsChangedRouting(t *testing.T) {
	up := newFakeUpstream(2, 2)
	s := New(up)
	c := &client{server: s, locks: map[int]bool{}, sock: newTestSocket()}

	c.sendFullDump(up.VirtualState())
	if c.lastInputs != 2 || c.lastOutputs != 2 {
		t.Fatalf("snapshot sizes not recorded: %+v", c)
	}

	up.vr.Routing[0] = 1
	c.sendDiff(up.VirtualState())
	if c.sentRouting[0] != 1 {
		t.Fatalf("expected sentRouting to track the new crosspoint, got %+v", c.sentRouting)
	}
}
