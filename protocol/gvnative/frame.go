// Package gvnative implements a length-prefixed binary framing for GV
// Native protocol routers: each frame is a big-endian uint32 byte length
// followed by that many bytes of JSON payload. The wire structure beyond
// framing is proprietary to the vendor; this package treats the payload
// as an opaque envelope with the small set of fields this system's
// operation set needs (crosspoint set/query, tally, labels).
package gvnative

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// MaxFrameSize bounds a single frame's payload to guard against a
// corrupt or malicious length prefix from causing unbounded allocation.
const MaxFrameSize = 4 << 20 // 4 MiB

// Kind identifies the semantic type of a GV Native message.
type Kind string

const (
	KindHello        Kind = "hello"         // initial handshake / capability exchange
	KindCrosspointSet Kind = "xpt_set"       // request to change a crosspoint
	KindTally        Kind = "tally"          // crosspoint state notification
	KindQuery        Kind = "xpt_query"      // request full crosspoint dump
	KindLabelSet     Kind = "label_set"      // request to change a label
	KindLabel        Kind = "label"          // label state notification
	KindAck          Kind = "ack"            // acknowledges the previous request
	KindNak          Kind = "nak"            // rejects the previous request
)

// Message is the decoded JSON payload of a frame.
type Message struct {
	Kind        Kind   `json:"kind"`
	Destination int    `json:"dest,omitempty"`
	Source      int    `json:"src,omitempty"`
	Level       int    `json:"level,omitempty"`
	Port        int    `json:"port,omitempty"`
	IsInput     bool   `json:"is_input,omitempty"`
	Label       string `json:"label,omitempty"`
	Inputs      int    `json:"inputs,omitempty"`
	Outputs     int    `json:"outputs,omitempty"`
}

// Encode serializes a Message into a length-prefixed frame.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("tielinehub/gvnative: encode: %w", err)
	}
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// Split is a bufio.Scanner split function that extracts complete
// length-prefixed frames (returning the payload bytes, length prefix
// stripped) from a growing byte buffer.
func Split(data []byte, eof bool) (advance int, token []byte, err error) {
	if len(data) < 4 {
		if eof && len(data) > 0 {
			return 0, nil, fmt.Errorf("tielinehub/gvnative: truncated length prefix")
		}
		return 0, nil, nil
	}
	n := binary.BigEndian.Uint32(data)
	if n > MaxFrameSize {
		return 0, nil, fmt.Errorf("tielinehub/gvnative: frame size %d exceeds limit", n)
	}
	total := 4 + int(n)
	if len(data) < total {
		if eof {
			return 0, nil, fmt.Errorf("tielinehub/gvnative: truncated frame body")
		}
		return 0, nil, nil
	}
	return total, data[4:total], nil
}

// Decode parses a frame's payload (as produced by Split) into a Message.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("tielinehub/gvnative: decode: %w", err)
	}
	return m, nil
}

// NewScanner wraps a bufio.Scanner configured with Split and a buffer
// large enough for MaxFrameSize, ready to read Messages off of r.
func NewScanner(r interface{ Read([]byte) (int, error) }) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxFrameSize+4)
	s.Split(Split)
	return s
}
