// Package ws adapts gorilla/websocket connections to the room layer:
// a buffered send channel with backpressure, read/write pumps, and the
// gin endpoints for joining and managing rooms.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pixlverse/office/internal/domain"
	"github.com/pixlverse/office/internal/room"
)

var ErrBackpressure = errors.New("backpressure")

// Conn wraps one websocket with a bounded send queue. TrySend never
// blocks; a full queue is reported as backpressure and the room treats
// the session as disconnected.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		ws:           ws,
		send:         make(chan []byte, 32),
		writeTimeout: writeTimeout,
	}
}

func (c *Conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
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

func (c *Conn) writePump(ctx context.Context, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump feeds frames into the room until the socket errors out,
// then converges on the room's leave path. An abrupt TCP drop and a
// clean close land in the same place, distinguished only in the log.
func (c *Conn) readPump(ctx context.Context, r *room.Room, sid domain.SessionID) {
	defer func() {
		r.Leave(sid)
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("session closed")
				} else {
					log.Warn().Err(err).Str("module", "ws").Str("sid", string(sid)).Msg("session dropped")
				}
				return
			}
			r.Inbound(sid, data)
		}
	}
}
