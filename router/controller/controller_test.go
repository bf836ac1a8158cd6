package controller

import (
	"errors"
	"testing"
	"time"

	"tielinehub.dev/tielinehub/router"
)

func TestRegistryKnowsBuiltinProtocols(t *testing.T) {
	names := map[string]bool{}
	for _, n := range Protocols() {
		names[n] = true
	}
	for _, want := range []string{"videohub", "swp08", "gvnative"} {
		if !names[want] {
			t.Errorf("protocol %q not registered", want)
		}
	}
}

func TestNewUnsupportedProtocol(t *testing.T) {
	_, err := New("not-a-protocol", Options{})
	if !errors.Is(err, router.ErrUnsupportedProtocol) {
		t.Fatalf("got %v, want ErrUnsupportedProtocol", err)
	}
}

func TestNewReturnsDistinctControllers(t *testing.T) {
	a, err := New("videohub", Options{Host: "127.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("videohub", Options{Host: "127.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("New should return a fresh controller each call")
	}
	if a.IsConnected() || b.IsConnected() {
		t.Fatal("fresh controllers should report disconnected")
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	b := backoff{initial: time.Second, max: 8 * time.Second, jitter: 0}
	d1 := b.delay(1)
	d2 := b.delay(2)
	d3 := b.delay(3)
	d4 := b.delay(4)
	if d1 != time.Second {
		t.Fatalf("delay(1) = %v, want 1s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("delay(2) = %v, want 2s", d2)
	}
	if d3 != 4*time.Second {
		t.Fatalf("delay(3) = %v, want 4s", d3)
	}
	if d4 != 8*time.Second {
		t.Fatalf("delay(4) = %v, want capped at 8s", d4)
	}
}

func TestEventBusFanOut(t *testing.T) {
	var b bus
	var gotA, gotB int
	unsubA := b.Subscribe(func(e Event) { gotA++ })
	_ = b.Subscribe(func(e Event) { gotB++ })

	b.emit(Event{Kind: EventConnected})
	unsubA()
	b.emit(Event{Kind: EventConnected})

	if gotA != 1 {
		t.Fatalf("gotA = %d, want 1", gotA)
	}
	if gotB != 2 {
		t.Fatalf("gotB = %d, want 2", gotB)
	}
}
