package swp08

import (
	"bufio"
	"bytes"
	"reflect"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	tests := []Frame{
		{Command: CmdConnect, Payload: []byte{0, 0, 5, 3}},
		{Command: CmdCrosspointTally, Payload: []byte{0, 0, 0x85, 0x2A, 0x00}},
		{Command: CmdSourceName, Payload: append([]byte{0x10}, []byte("CAM 1")...)}, // payload contains a literal dle byte
	}
	for _, f := range tests {
		wire := Encode(f)
		if !bytes.HasPrefix(wire, []byte{dle, stx}) {
			t.Fatalf("missing dle/stx prefix: %x", wire)
		}
		if !bytes.HasSuffix(wire, []byte{dle, etx}) {
			t.Fatalf("missing dle/etx suffix: %x", wire)
		}
		got, err := Parse(wire)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if !reflect.DeepEqual(got, f) {
			t.Fatalf("round trip mismatch: got %#v want %#v", got, f)
		}
	}
}

func TestParseRejectsBadChecksum(t *testing.T) {
	wire := Encode(Frame{Command: CmdConnect, Payload: []byte{0, 0, 1, 1}})
	wire[3] ^= 0xFF // corrupt a payload byte (not stuffed, safe to flip)
	if _, err := Parse(wire); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestSplitMultipleFrames(t *testing.T) {
	f1 := Encode(Frame{Command: CmdConnect, Payload: []byte{0, 0, 1, 2}})
	f2 := Encode(Frame{Command: CmdCrosspointTally, Payload: []byte{0, 0, 1, 2}})
	buf := bytes.NewBuffer(append(append([]byte{}, f1...), f2...))

	s := bufio.NewScanner(buf)
	s.Split(Split)

	var got [][]byte
	for s.Scan() {
		got = append(got, append([]byte{}, s.Bytes()...))
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if !bytes.Equal(got[0], f1) || !bytes.Equal(got[1], f2) {
		t.Fatalf("frame mismatch")
	}
}

func TestConnectTallyRoundTrip(t *testing.T) {
	m := ConnectMessage{Matrix: 0, Level: 1, Destination: 200, Source: 5}
	wire := m.Encode()
	f, err := Parse(wire)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeConnect(f.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if got != m {
		t.Fatalf("got %#v want %#v", got, m)
	}
}

func TestNameRoundTrip(t *testing.T) {
	m := NameMessage{Source: true, Port: 3, Name: "CAM 3"}
	wire := m.Encode()
	f, err := Parse(wire)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeName(f)
	if err != nil {
		t.Fatal(err)
	}
	if got != m {
		t.Fatalf("got %#v want %#v", got, m)
	}
}

func TestEncodeDecodePort(t *testing.T) {
	for _, p := range []int{0, 1, 127, 128, 200, 4095} {
		b := EncodePort(p)
		got, n := DecodePort(b)
		if n != len(b) || got != p {
			t.Fatalf("port %d round trip failed: got %d (consumed %d of %d)", p, got, n, len(b))
		}
	}
}
