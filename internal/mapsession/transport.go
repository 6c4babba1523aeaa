package mapsession

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// pingInterval must stay below pongWait.
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeTimeout = 10 * time.Second
	maxFrameSize = 1 << 20
)

// eventMalformed stands in for a frame that was not a valid Message.
const eventMalformed = "malformed"

// Transport moves messages between a session and its browser. Read and Write
// are each called from a single goroutine; Close may be called concurrently
// with both and unblocks them.
type Transport interface {
	Read() (Message, error)
	Write(Message) error
	Close() error
}

// WSTransport is a Transport over a gorilla WebSocket connection. It keeps
// the connection alive with pings and drops it when pongs stop arriving.
type WSTransport struct {
	conn *websocket.Conn

	closeOnce sync.Once
	done      chan struct{}
}

var _ Transport = (*WSTransport)(nil)

// NewWSTransport takes ownership of conn and starts its ping ticker.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	t := &WSTransport{conn: conn, done: make(chan struct{})}
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go t.pingLoop()
	return t
}

func (t *WSTransport) Read() (Message, error) {
	var msg Message
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		// Malformed frames surface as an error event rather than ending the session.
		return Message{Type: eventMalformed}, nil
	}
	return msg, nil
}

func (t *WSTransport) Write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Type, err)
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		err = t.conn.Close()
	})
	return err
}

func (t *WSTransport) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}
