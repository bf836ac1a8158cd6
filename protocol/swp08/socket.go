package swp08

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
)

// Socket wraps an SW-P-08 connection, framing reads with Split/Parse and
// writes with Encode.
type Socket struct {
	Conn  io.ReadWriteCloser
	rlock sync.Mutex
	scan  *bufio.Scanner
}

// Dial connects to an SW-P-08 router at the given address. If no port is
// specified, the default 8910 is assumed.
func Dial(addr string) (*Socket, error) {
	if !strings.Contains(addr, ":") {
		addr = addr + ":8910"
	}
	conn, err := net.Dial("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("tielinehub/swp08: dial: %w", err)
	}
	return &Socket{Conn: conn}, nil
}

// Write encodes and writes a Frame to the connection.
func (c *Socket) Write(f Frame) error {
	return c.WriteBytes(Encode(f))
}

// WriteBytes writes already-framed bytes to the connection, as produced
// by one of the message types' Encode method.
func (c *Socket) WriteBytes(b []byte) error {
	_, err := c.Conn.Write(b)
	if err != nil {
		return fmt.Errorf("tielinehub/swp08: socket write: %w", err)
	}
	return nil
}

// Read reads the next complete Frame from the connection, blocking until
// one arrives.
func (c *Socket) Read() (Frame, error) {
	c.rlock.Lock()
	defer c.rlock.Unlock()
	if c.scan == nil {
		c.scan = bufio.NewScanner(c.Conn)
		c.scan.Buffer(make([]byte, 0, 4*1024), 256*1024)
		c.scan.Split(Split)
	}
	if !c.scan.Scan() {
		err := c.scan.Err()
		if err != nil {
			c.Conn.Close()
		} else {
			err = io.EOF
		}
		return Frame{}, fmt.Errorf("tielinehub/swp08: scan: %w", err)
	}
	f, err := Parse(c.scan.Bytes())
	if err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Close closes the socket, including the underlying connection.
func (c *Socket) Close() error { return c.Conn.Close() }
