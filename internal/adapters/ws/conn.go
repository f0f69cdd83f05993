// Package ws is the transport adapter: one persistent websocket per client,
// JSON event envelopes in both directions.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// Conn wraps one websocket with a buffered outbound channel. The adapter owns
// it and is the only component that closes it.
type Conn struct {
	ws         *websocket.Conn
	send       chan []byte
	pingPeriod time.Duration

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn, pingPeriod time.Duration) *Conn {
	return &Conn{
		ws:         ws,
		send:       make(chan []byte, 32),
		pingPeriod: pingPeriod,
	}
}

// TrySend queues a payload without blocking; a full buffer drops the frame.
func (c *Conn) TrySend(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- payload:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
}

func (c *Conn) writePump(ctx context.Context) {
	var ping <-chan time.Time
	if c.pingPeriod > 0 {
		ticker := time.NewTicker(c.pingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Info().Err(err).Str("module", "ws").Msg("keepalive ping failed")
				return
			}
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}
