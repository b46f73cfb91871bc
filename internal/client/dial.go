package client

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pixlverse/office/internal/protocol"
)

// WSTransport is the gorilla-backed Transport used outside tests.
// Writes are serialized; reads happen on the Run loop only.
type WSTransport struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// Dial connects to a room join endpoint, e.g.
// ws://host:2567/api/ws/join?room=<id>&password=<pw>.
func Dial(ctx context.Context, rawURL string) (*WSTransport, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return &WSTransport{ws: ws}, nil
}

func (t *WSTransport) Send(msgType string, payload any) error {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ws.WriteMessage(websocket.TextMessage, frame)
}

func (t *WSTransport) Close() error {
	return t.ws.Close()
}

// Run reads frames until the connection drops, feeding each into the
// sync layer in receipt order.
func (t *WSTransport) Run(ctx context.Context, s *Sync) error {
	defer t.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_, data, err := t.ws.ReadMessage()
			if err != nil {
				return err
			}
			if err := s.Apply(data); err != nil {
				log.Warn().Err(err).Str("module", "client").Msg("apply frame")
			}
		}
	}
}
