package videohub

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"
)

// bufConn adapts a bytes.Buffer to the io.ReadWriteCloser Socket needs.
type bufConn struct{ *bytes.Buffer }

func (bufConn) Close() error { return nil }

func testRead(buf *bytes.Buffer, msg []Block, t *testing.T) {
	v := Socket{Conn: bufConn{buf}}
	for _, bite := range msg {
		got, err := v.Read()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, bite) {
			t.Fatalf("message %#v does not match %#v", got, bite)
		}
	}
	_, eof := v.Read()
	if !errors.Is(eof, io.EOF) {
		t.Fatalf("Socket.Read() expected EOF, got %v", eof)
	}
}

func TestSocket_Read(t *testing.T) {
	testRead(bytes.NewBuffer(testSmoke), testBacon, t)
}

func TestSocket_Write(t *testing.T) {
	buf := new(bytes.Buffer)
	v := Socket{Conn: bufConn{buf}}
	for _, bite := range testBacon {
		if err := v.Write(bite); err != nil {
			t.Fatal(err)
		}
	}
	testRead(buf, testBacon, t)
}

var testSmoke = []byte(`PROTOCOL PREAMBLE:
Version: 2.8

VIDEOHUB DEVICE:
Device present: true
Model name: Blackmagic Smart Videohub 12 x 12
Friendly name: Studio A
Unique ID: 7C2E0D038143
Video inputs: 12
Video outputs: 12

INPUT LABELS:
0 Input 1
1 Input 2

OUTPUT LABELS:
0 Output 1
1 Output 2

VIDEO OUTPUT LOCKS:
0 U
1 L

VIDEO OUTPUT ROUTING:
0 0
1 1

CONFIGURATION:
Take Mode: false

END PRELUDE:

`)

var testBacon = []Block{
	&ProtocolPreambleBlock{
		Version: VersionNumber{Major: 2, Minor: 8},
	},
	&VideohubDeviceBlock{
		DevicePresent: DevicePresentTrue,
		ModelName:     "Blackmagic Smart Videohub 12 x 12",
		FriendlyName:  "Studio A",
		UniqueID:      "7C2E0D038143",
		VideoInputs:   12,
		VideoOutputs:  12,
	},
	&InputLabelsBlock{
		Labels: Labels{0: "Input 1", 1: "Input 2"},
	},
	&OutputLabelsBlock{
		Labels: Labels{0: "Output 1", 1: "Output 2"},
	},
	&VideoOutputLocksBlock{
		Locks: Locks{0: LockUnlocked, 1: LockLocked},
	},
	&VideoOutputRoutingBlock{
		Routing: Routing{0: 0, 1: 1},
	},
	&ConfigurationBlock{
		TakeMode: false,
	},
	&EndPreludeBlock{},
}

func TestAckNak(t *testing.T) {
	buf := new(bytes.Buffer)
	v := Socket{Conn: bufConn{buf}}
	if err := v.Write(&AckBlock{}); err != nil {
		t.Fatal(err)
	}
	got, err := v.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(*AckBlock); !ok {
		t.Fatalf("expected AckBlock, got %#v", got)
	}
}

func TestUnknownBlockReturnedAsUnknownBlock(t *testing.T) {
	buf := bytes.NewBufferString("SOMETHING WEIRD:\nfoo bar\n\nACK\n\n")
	v := Socket{Conn: bufConn{buf}}
	got, err := v.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(*UnknownBlock); !ok {
		t.Fatalf("expected unknown block to be returned as UnknownBlock, got %#v", got)
	}
	got, err = v.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(*AckBlock); !ok {
		t.Fatalf("expected the following ACK after the unknown block, got %#v", got)
	}
}
