package tcp

import (
	"net"
)

// Client wraps a connection with a read buffer and a one-slot pushback. Bytes
// the parser consumed past the message boundary are returned via Unread and
// handed out again on the next Read.
type Client interface {
	Read() ([]byte, error)
	Unread([]byte)
	Write([]byte) error
	Remote() net.Addr
	Close() error
}

type client struct {
	conn    net.Conn
	buff    []byte
	pending []byte
}

func NewClient(conn net.Conn, buffSize int) Client {
	return &client{
		conn: conn,
		buff: make([]byte, buffSize),
	}
}

func (c *client) Read() ([]byte, error) {
	if len(c.pending) > 0 {
		data := c.pending
		c.pending = nil

		return data, nil
	}

	n, err := c.conn.Read(c.buff)
	if err != nil {
		return nil, err
	}

	return c.buff[:n], nil
}

func (c *client) Unread(b []byte) {
	if len(b) > 0 {
		c.pending = b
	}
}

func (c *client) Write(b []byte) error {
	_, err := c.conn.Write(b)

	return err
}

func (c *client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *client) Close() error {
	return c.conn.Close()
}
