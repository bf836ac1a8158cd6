package gvnative

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := Message{Kind: KindCrosspointSet, Destination: 3, Source: 7, Level: 0}
	wire, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}

	s := NewScanner(bytes.NewReader(wire))
	if !s.Scan() {
		t.Fatalf("scan failed: %v", s.Err())
	}
	got, err := Decode(s.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got != m {
		t.Fatalf("got %#v want %#v", got, m)
	}
}

func TestSplitMultipleFrames(t *testing.T) {
	m1, _ := Encode(Message{Kind: KindTally, Destination: 1, Source: 2})
	m2, _ := Encode(Message{Kind: KindLabel, Port: 1, Label: "Camera 1"})
	buf := bytes.NewBuffer(append(append([]byte{}, m1...), m2...))

	s := NewScanner(buf)
	var got []Message
	for s.Scan() {
		m, err := Decode(s.Bytes())
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, m)
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Kind != KindTally || got[1].Kind != KindLabel {
		t.Fatalf("unexpected frames: %#v", got)
	}
}

func TestSplitRejectsOversizedFrame(t *testing.T) {
	data := make([]byte, 4)
	data[0] = 0xFF // length prefix far beyond MaxFrameSize
	data[1] = 0xFF
	data[2] = 0xFF
	data[3] = 0xFF
	_, _, err := Split(data, false)
	if err == nil {
		t.Fatal("expected oversized frame error")
	}
}
