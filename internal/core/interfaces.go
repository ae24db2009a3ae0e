package core

// Frame is one encoded websocket payload fanned out to connections.
type Frame []byte

type SessionID string

// Conn abstracts a client's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats of one fan-out.
// Drops are acceptable degradation; nothing is retried.
type PublishResult struct {
	Sent    int
	Dropped int
}
