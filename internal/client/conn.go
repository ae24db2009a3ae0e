// Package client implements the majlis client side: the websocket
// transport, the microphone capture pipeline, and the gapless chunk
// playback scheduler.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aldiwan/majlis/internal/domain"
)

type Handler func(data json.RawMessage)

// Conn is one websocket connection to the relay. Emits are
// fire-and-forget: a full send buffer drops the frame rather than block
// the caller, matching the at-most-once delivery contract per chunk.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu       sync.RWMutex
	handlers map[string]Handler

	once sync.Once
}

func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}
	c := &Conn{
		ws:       ws,
		send:     make(chan []byte, 64),
		done:     make(chan struct{}),
		handlers: make(map[string]Handler),
	}
	go c.writeLoop()
	return c, nil
}

// On registers the handler for an event name. One handler per event;
// registering again replaces it.
func (c *Conn) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = h
}

// Emit sends one event without waiting for delivery.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client: marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("client: marshal envelope: %w", err)
	}
	select {
	case <-c.done:
		return fmt.Errorf("client: connection closed")
	case c.send <- frame:
		return nil
	default:
		log.Warn().Str("module", "client").Str("event", event).Msg("send buffer full, frame dropped")
		return nil
	}
}

// Run reads frames and dispatches them to registered handlers until the
// context ends or the connection drops.
func (c *Conn) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				return fmt.Errorf("client: read: %w", err)
			}
			c.dispatch(data)
		}
	}
}

func (c *Conn) dispatch(data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "client").Msg("bad inbound frame")
		return
	}
	c.mu.RLock()
	h := c.handlers[env.Event]
	c.mu.RUnlock()
	if h != nil {
		h(env.Data)
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("module", "client").Msg("write failed")
				return
			}
		}
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
