package swp08

import "fmt"

// ConnectMessage requests a crosspoint change: route Source onto
// Destination at the given Level (an opaque audio/video breakaway
// index). Matrix identifies the crosspoint matrix/router when a device
// exposes more than one; this codec always uses matrix 0.
type ConnectMessage struct {
	Matrix      byte
	Level       byte
	Destination int
	Source      int
}

// Encode produces the wire frame for a ConnectMessage.
func (m ConnectMessage) Encode() []byte {
	payload := make([]byte, 0, 6)
	payload = append(payload, m.Matrix, m.Level)
	payload = append(payload, EncodePort(m.Destination)...)
	payload = append(payload, EncodePort(m.Source)...)
	return Encode(Frame{Command: CmdConnect, Payload: payload})
}

// DecodeConnect decodes a ConnectMessage from a parsed Frame's payload.
func DecodeConnect(payload []byte) (ConnectMessage, error) {
	if len(payload) < 4 {
		return ConnectMessage{}, fmt.Errorf("tielinehub/swp08: connect payload too short")
	}
	m := ConnectMessage{Matrix: payload[0], Level: payload[1]}
	rest := payload[2:]
	dest, n := DecodePort(rest)
	if n == 0 {
		return ConnectMessage{}, fmt.Errorf("tielinehub/swp08: malformed destination port")
	}
	rest = rest[n:]
	src, n := DecodePort(rest)
	if n == 0 {
		return ConnectMessage{}, fmt.Errorf("tielinehub/swp08: malformed source port")
	}
	m.Destination = dest
	m.Source = src
	return m, nil
}

// TallyMessage reports the current source routed to a destination. Sent
// in response to a CrosspointInterrogate, a Connect, or unsolicited when
// routing changes from another control surface.
type TallyMessage struct {
	Matrix      byte
	Level       byte
	Destination int
	Source      int
}

// Encode produces the wire frame for a TallyMessage.
func (m TallyMessage) Encode() []byte {
	payload := make([]byte, 0, 6)
	payload = append(payload, m.Matrix, m.Level)
	payload = append(payload, EncodePort(m.Destination)...)
	payload = append(payload, EncodePort(m.Source)...)
	return Encode(Frame{Command: CmdCrosspointTally, Payload: payload})
}

// DecodeTally decodes a TallyMessage from a parsed Frame's payload.
func DecodeTally(payload []byte) (TallyMessage, error) {
	m, err := DecodeConnect(payload) // identical wire shape
	return TallyMessage(m), err
}

// InterrogateMessage requests the current tally for one destination on
// one level.
type InterrogateMessage struct {
	Matrix      byte
	Level       byte
	Destination int
}

// Encode produces the wire frame for an InterrogateMessage.
func (m InterrogateMessage) Encode() []byte {
	payload := make([]byte, 0, 4)
	payload = append(payload, m.Matrix, m.Level)
	payload = append(payload, EncodePort(m.Destination)...)
	return Encode(Frame{Command: CmdCrosspointInterrogate, Payload: payload})
}

// DecodeInterrogate decodes an InterrogateMessage from a Frame's payload.
func DecodeInterrogate(payload []byte) (InterrogateMessage, error) {
	if len(payload) < 3 {
		return InterrogateMessage{}, fmt.Errorf("tielinehub/swp08: interrogate payload too short")
	}
	m := InterrogateMessage{Matrix: payload[0], Level: payload[1]}
	dest, n := DecodePort(payload[2:])
	if n == 0 {
		return InterrogateMessage{}, fmt.Errorf("tielinehub/swp08: malformed destination port")
	}
	m.Destination = dest
	return m, nil
}

// NameInterrogateMessage requests the text label of a single source or
// destination port.
type NameInterrogateMessage struct {
	Source bool
	Port   int
}

// Encode produces the wire frame for a NameInterrogateMessage. The first
// payload byte is 0 for a destination name, 1 for a source name.
func (m NameInterrogateMessage) Encode() []byte {
	dir := byte(0)
	if m.Source {
		dir = 1
	}
	payload := append([]byte{dir}, EncodePort(m.Port)...)
	return Encode(Frame{Command: CmdNameInterrogate, Payload: payload})
}

// DecodeNameInterrogate decodes a NameInterrogateMessage from a parsed
// Frame's payload.
func DecodeNameInterrogate(payload []byte) (NameInterrogateMessage, error) {
	if len(payload) < 2 {
		return NameInterrogateMessage{}, fmt.Errorf("tielinehub/swp08: name interrogate payload too short")
	}
	port, n := DecodePort(payload[1:])
	if n == 0 {
		return NameInterrogateMessage{}, fmt.Errorf("tielinehub/swp08: malformed interrogate port")
	}
	return NameInterrogateMessage{Source: payload[0] == 1, Port: port}, nil
}

// NameMessage carries the text label of a single source or destination
// port; Source distinguishes which label table it belongs to.
type NameMessage struct {
	Source bool // true: a source (input) name, false: a destination (output) name
	Port   int
	Name   string
}

// Encode produces the wire frame for a NameMessage.
func (m NameMessage) Encode() []byte {
	cmd := CmdDestName
	if m.Source {
		cmd = CmdSourceName
	}
	payload := append(EncodePort(m.Port), []byte(m.Name)...)
	return Encode(Frame{Command: cmd, Payload: payload})
}

// DecodeName decodes a NameMessage from a parsed Frame.
func DecodeName(f Frame) (NameMessage, error) {
	if len(f.Payload) < 1 {
		return NameMessage{}, fmt.Errorf("tielinehub/swp08: name payload too short")
	}
	port, n := DecodePort(f.Payload)
	if n == 0 {
		return NameMessage{}, fmt.Errorf("tielinehub/swp08: malformed name port")
	}
	return NameMessage{
		Source: f.Command == CmdSourceName,
		Port:   port,
		Name:   string(f.Payload[n:]),
	}, nil
}
