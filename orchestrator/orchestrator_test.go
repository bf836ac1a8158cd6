package orchestrator

import (
	"testing"
	"time"

	"tielinehub.dev/tielinehub/router"
)

func waitForEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestAddAndRemoveTieLine(t *testing.T) {
	o := New(router.Config{})
	defer o.Close()

	if err := o.AddTieLine("aToB", router.TiePort{Output: 7, Input: 0}); err != nil {
		t.Fatal(err)
	}
	cfg := o.GetTieLineConfig()
	if len(cfg.AToB) != 1 || cfg.AToB[0] != (router.TiePort{Output: 7, Input: 0}) {
		t.Fatalf("unexpected config after add: %+v", cfg)
	}

	if err := o.RemoveTieLine("aToB", 0); err != nil {
		t.Fatal(err)
	}
	cfg = o.GetTieLineConfig()
	if len(cfg.AToB) != 0 {
		t.Fatalf("expected empty aToB after remove, got %+v", cfg.AToB)
	}
}

func TestRemoveTieLineOutOfRange(t *testing.T) {
	o := New(router.Config{})
	defer o.Close()

	if err := o.RemoveTieLine("aToB", 0); err == nil {
		t.Fatal("expected an error removing from an empty pool")
	}
}

func TestAddTieLineUnknownDirection(t *testing.T) {
	o := New(router.Config{})
	defer o.Close()

	if err := o.AddTieLine("sideways", router.TiePort{}); err == nil {
		t.Fatal("expected an error for an unknown tie-line direction")
	}
}

func TestSetTieLineConfigSchedulesVirtualStateRebuild(t *testing.T) {
	o := New(router.Config{})
	defer o.Close()

	events := make(chan Event, 16)
	unsub := o.SubscribeEvents(func(e Event) { events <- e })
	defer unsub()

	if err := o.AddTieLine("aToB", router.TiePort{Output: 3, Input: 0}); err != nil {
		t.Fatal(err)
	}

	e := waitForEvent(t, events, EventTieLineStateUpdated)
	if len(e.TieLineState.AToB) != 1 {
		t.Fatalf("expected one aToB record in the rebuilt state, got %+v", e.TieLineState)
	}
}

func TestBridgeLifecycle(t *testing.T) {
	o := New(router.Config{})
	defer o.Close()

	if o.GetBridgeStatus().Running {
		t.Fatal("bridge should not be running before StartBridge")
	}
	if err := o.StartBridge("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	if !o.GetBridgeStatus().Running {
		t.Fatal("expected bridge to report running after StartBridge")
	}
	if err := o.StopBridge(); err != nil {
		t.Fatal(err)
	}
	if o.GetBridgeStatus().Running {
		t.Fatal("expected bridge to report stopped after StopBridge")
	}
}

func TestDisconnectUnknownRouterFails(t *testing.T) {
	o := New(router.Config{})
	defer o.Close()

	if err := o.DisconnectRouter(router.RouterA); err == nil {
		t.Fatal("expected an error disconnecting a router that was never connected")
	}
}

func TestGetRouterStateUnknownRouterFails(t *testing.T) {
	o := New(router.Config{})
	defer o.Close()

	if _, err := o.GetRouterState(router.RouterB); err == nil {
		t.Fatal("expected an error reading state for a router that was never connected")
	}
}
