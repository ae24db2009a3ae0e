// Package ws adapts gorilla websocket connections to the relay.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aldiwan/majlis/internal/core"
)

// ErrBackpressure is returned when a client's send buffer is full. The
// frame is dropped; slow receivers lose data instead of stalling the relay.
var ErrBackpressure = errors.New("ws: send buffer full")

// ErrConnClosed is returned for sends that raced a teardown.
var ErrConnClosed = errors.New("ws: connection closed")

type wsConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan core.Frame
	closed bool

	once sync.Once
}

func newConn(c *websocket.Conn, buffer int) *wsConn {
	return &wsConn{conn: c, send: make(chan core.Frame, buffer)}
}

// TrySend never blocks. A fan-out that snapshotted this connection just
// before teardown gets ErrConnClosed instead of a send on a closed channel.
func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
		_ = c.conn.Close()
	})
}
