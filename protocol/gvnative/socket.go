package gvnative

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
)

// Socket wraps a GV Native connection, framing reads and writes per Split
// and Encode.
type Socket struct {
	Conn  io.ReadWriteCloser
	rlock sync.Mutex
	scan  *bufio.Scanner
}

// Dial connects to a GV Native router at the given address. If no port is
// specified, the default 12345 is assumed.
func Dial(addr string) (*Socket, error) {
	if !strings.Contains(addr, ":") {
		addr = addr + ":12345"
	}
	conn, err := net.Dial("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("tielinehub/gvnative: dial: %w", err)
	}
	return &Socket{Conn: conn}, nil
}

// Write encodes and writes a Message to the connection.
func (c *Socket) Write(m Message) error {
	wire, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := c.Conn.Write(wire); err != nil {
		return fmt.Errorf("tielinehub/gvnative: socket write: %w", err)
	}
	return nil
}

// Read reads the next complete Message from the connection, blocking
// until one arrives.
func (c *Socket) Read() (Message, error) {
	c.rlock.Lock()
	defer c.rlock.Unlock()
	if c.scan == nil {
		c.scan = NewScanner(c.Conn)
	}
	if !c.scan.Scan() {
		err := c.scan.Err()
		if err != nil {
			c.Conn.Close()
		} else {
			err = io.EOF
		}
		return Message{}, fmt.Errorf("tielinehub/gvnative: scan: %w", err)
	}
	return Decode(c.scan.Bytes())
}

// Close closes the socket, including the underlying connection.
func (c *Socket) Close() error { return c.Conn.Close() }
