package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lox/envmon/internal/models"
)

const DefaultWebSocketURL = "ws://localhost:6789"

// WebSocket reads JSON sensor messages from a websocket feed.
type WebSocket struct {
	url  string
	conn *websocket.Conn
	log  *slog.Logger
	now  func() time.Time
}

func DialWebSocket(ctx context.Context, url string, logger *slog.Logger) (*WebSocket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	logger.Info("source: websocket connected", "url", url)
	return &WebSocket{url: url, conn: conn, log: logger, now: time.Now}, nil
}

// WebSocketDialer returns a Dialer for use with Reconnecting.
func WebSocketDialer(url string, logger *slog.Logger) Dialer {
	return func(ctx context.Context) (Conn, error) {
		return DialWebSocket(ctx, url, logger)
	}
}

func (w *WebSocket) Next(ctx context.Context) (models.RawReading, error) {
	for {
		stop := context.AfterFunc(ctx, func() {
			w.conn.SetReadDeadline(time.Now())
		})
		_, payload, err := w.conn.ReadMessage()
		stop()
		if err != nil {
			if ctx.Err() != nil {
				return models.RawReading{}, ctx.Err()
			}
			return models.RawReading{}, fmt.Errorf("websocket read %s: %w", w.url, err)
		}

		if r, ok := accept("websocket", payload, w.now(), w.log); ok {
			return r, nil
		}
	}
}

func (w *WebSocket) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}
