// Package ws carries sessions over gorilla websockets.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Transport adapts a websocket connection to session.Transport.
// Every frame or pong received pushes the read deadline idleTimeout further.
type Transport struct {
	conn        *websocket.Conn
	idleTimeout time.Duration
	onActivity  func()
	closeOnce   sync.Once
}

func NewTransport(conn *websocket.Conn, idleTimeout time.Duration) *Transport {
	t := &Transport{conn: conn, idleTimeout: idleTimeout}
	conn.SetReadLimit(maxMessageSize)
	t.extendDeadline()
	conn.SetPongHandler(func(string) error {
		t.extendDeadline()
		if t.onActivity != nil {
			t.onActivity()
		}
		return nil
	})
	return t
}

// OnActivity registers fn to be called on every pong. Must be set before reading.
func (t *Transport) OnActivity(fn func()) { t.onActivity = fn }

func (t *Transport) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		t.extendDeadline()
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *Transport) WriteMessage(data []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *Transport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a close frame when possible then releases the socket. Idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) extendDeadline() {
	if t.idleTimeout <= 0 {
		return
	}
	_ = t.conn.SetReadDeadline(time.Now().Add(t.idleTimeout))
}
