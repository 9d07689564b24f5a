package realtime

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 30 * time.Second
	maxFrameBytes = 64 << 10
)

// WSConn is a Conn backed by a websocket. WriteLoop is the only goroutine writing to
// the socket and closes it once the outbox is closed, so Close never blocks.
type WSConn struct {
	*Outbox
	ws      *websocket.Conn
	stopped chan struct{}
}

// NewWSConn wraps ws with an outbound buffer of the given size.
func NewWSConn(ws *websocket.Conn, buffer int) (*WSConn, error) {
	outbox, err := NewOutbox(buffer)
	if err != nil {
		return nil, err
	}
	return &WSConn{Outbox: outbox, ws: ws, stopped: make(chan struct{})}, nil
}

func (c *WSConn) shutdown() {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "connection closed"),
		time.Now().Add(writeWait))
	_ = c.ws.Close()
}

// WriteLoop writes queued events and keepalive pings until the connection closes,
// then closes the socket, which also ends ReadLoop.
func (c *WSConn) WriteLoop() {
	defer close(c.stopped)
	defer c.shutdown()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			return
		case e := <-c.Events():
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// ReadLoop hands every inbound data frame to handle until the peer goes away or the
// connection is closed. Pongs keep the read deadline moving.
func (c *WSConn) ReadLoop(handle func(payload []byte)) error {
	c.ws.SetReadLimit(maxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		handle(payload)
	}
}

// Stopped is closed once WriteLoop has returned.
func (c *WSConn) Stopped() <-chan struct{} { return c.stopped }

func (c *WSConn) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
