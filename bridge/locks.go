package bridge

import (
	"context"

	"tielinehub.dev/tielinehub/router"
	"tielinehub.dev/tielinehub/virtual"
)

// sessionLocks tracks which connected client, if any, holds the bridge's
// own TCP-session lock ownership on each virtual output — independent of
// whatever lock state the owning physical router reports (spec 4.4).
type sessionLocks struct {
	owners map[int]*client
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{owners: map[int]*client{}}
}

// acquire grants c ownership of vOut unless another client already holds
// it. Returns false only when another client holds it; true when c now
// holds it, including when c already did.
func (l *sessionLocks) acquire(vOut int, c *client) bool {
	if owner, ok := l.owners[vOut]; ok && owner != c {
		return false
	}
	l.owners[vOut] = c
	return true
}

// release drops c's ownership of vOut; a no-op if c is not the owner.
func (l *sessionLocks) release(vOut int, c *client) bool {
	if owner, ok := l.owners[vOut]; !ok || owner != c {
		return false
	}
	delete(l.owners, vOut)
	return true
}

// forceRelease drops whatever session owns vOut, regardless of who asks.
func (l *sessionLocks) forceRelease(vOut int) {
	delete(l.owners, vOut)
}

func (l *sessionLocks) owner(vOut int) *client {
	return l.owners[vOut]
}

// releaseAll drops every lock held by c, returning the affected virtual
// outputs. Used on client disconnect.
func (l *sessionLocks) releaseAll(c *client) []int {
	var freed []int
	for vOut, owner := range l.owners {
		if owner == c {
			freed = append(freed, vOut)
		}
	}
	for _, vOut := range freed {
		delete(l.owners, vOut)
	}
	return freed
}

// letter computes the lock letter a given client should see for a
// virtual output: "O" for its own holding, "L" for another session's
// holding or a physical-router lock, "U" otherwise.
func (l *sessionLocks) letter(vr *virtual.Router, vOut int, forClient *client) string {
	if owner, ok := l.owners[vOut]; ok {
		if owner == forClient {
			return "O"
		}
		return "L"
	}
	if vr.OutputLocks[vOut] != router.LockUnlocked {
		return "L"
	}
	return "U"
}

// applyLockRequest handles one client lock write (O/U/F) for a virtual
// output: updating session ownership and forwarding the physical lock
// change through upstream.
func (s *Server) applyLockRequest(ctx context.Context, c *client, vOut int, letter string) {
	var forward router.Lock
	changed := false

	s.mu.Lock()
	switch letter {
	case "O":
		if s.locks.acquire(vOut, c) {
			c.locks[vOut] = true
			forward, changed = router.LockOwned, true
		}
	case "U":
		if s.locks.release(vOut, c) {
			delete(c.locks, vOut)
			forward, changed = router.LockUnlocked, true
		}
	case "F":
		s.locks.forceRelease(vOut)
		delete(c.locks, vOut)
		forward, changed = router.LockUnlocked, true
	}
	s.mu.Unlock()

	if changed {
		_ = s.upstream.SetPhysicalLock(ctx, vOut, forward)
	}
}
