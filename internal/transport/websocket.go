package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// WSChannel adapts a WebSocket connection to the Channel interface. Writes
// are serialized with a mutex; a background read pump feeds incoming
// messages to the transport.
type WSChannel struct {
	conn      *websocket.Conn
	transport *Transport
	logger    *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialWS connects to the companion channel endpoint, attaches the channel
// to the transport and starts the read pump. The transport sees HandleOpen
// as soon as the dial succeeds since a WebSocket is usable immediately.
func DialWS(ctx context.Context, url string, t *Transport, logger *slog.Logger) (*WSChannel, error) {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	ch := &WSChannel{
		conn:      conn,
		transport: t,
		logger:    logger,
	}
	t.Attach(ch)
	t.HandleOpen()

	go ch.readPump()

	logger.Info("WebSocket channel connected", "url", url)
	return ch, nil
}

// Send writes one text message to the socket.
func (ch *WSChannel) Send(data []byte) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	return ch.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the socket down; the read pump then reports HandleClose.
func (ch *WSChannel) Close() error {
	var err error
	ch.closeOnce.Do(func() {
		err = ch.conn.Close()
	})
	return err
}

// readPump delivers incoming messages until the connection dies.
func (ch *WSChannel) readPump() {
	defer ch.transport.HandleClose()

	for {
		_, raw, err := ch.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ch.logger.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		ch.transport.HandleRaw(raw)
	}
}
