package realtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Sized for audio frames, not just JSON.
	maxFrameSize = 64 * 1024

	// Outbound queue depth per connection. A full queue marks the client stale.
	sendBufferSize = 256
)

// outFrame is one queued outbound write. Text frames carry envelopes, binary
// frames carry relayed audio.
type outFrame struct {
	messageType int
	data        []byte
}

// Client is one live, authenticated connection. All writes to the transport
// go through the send queue and are performed by the single writePump
// goroutine, so frames are never interleaved.
type Client struct {
	id          string
	userID      uint
	hub         *Hub
	conn        Conn
	send        chan outFrame
	connectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	closed int32
}

func NewClient(hub *Hub, conn Conn, userID uint) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:          uuid.New().String(),
		userID:      userID,
		hub:         hub,
		conn:        conn,
		send:        make(chan outFrame, sendBufferSize),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// close marks the client closed and cancels its context. Safe to call from
// multiple paths concurrently; only the first call does anything.
func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
		slog.Debug("client marked closed", "clientID", c.id, "userID", c.userID)
	}
}

// terminate closes the underlying transport without sending any frames. Used
// when this connection is evicted by a newer one for the same user.
func (c *Client) terminate() {
	c.close()
	if err := c.conn.Close(); err != nil {
		slog.Debug("error closing evicted connection", "clientID", c.id, "userID", c.userID, "error", err)
	}
}

// enqueue places a frame on the send queue without blocking. A full queue
// means the consumer is too slow to keep; the caller treats that as a failed
// delivery and evicts the connection.
func (c *Client) enqueue(messageType int, data []byte) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	select {
	case c.send <- outFrame{messageType: messageType, data: data}:
		return nil
	case <-c.ctx.Done():
		return ErrClientDisconnected
	default:
		slog.Warn("send buffer full, dropping client", "clientID", c.id, "userID", c.userID)
		return ErrSlowConsumer
	}
}

// sendEnvelope encodes env and queues it as a text frame.
func (c *Client) sendEnvelope(env *Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return c.enqueue(websocket.TextMessage, data)
}

// sendError answers the originator with an error frame. Best-effort.
func (c *Client) sendError(code, message string) {
	if err := c.sendEnvelope(NewErrorEnvelope(code, message)); err != nil {
		slog.Debug("failed to send error frame", "clientID", c.id, "userID", c.userID, "error", err)
	}
}

// readPump reads inbound frames and hands them to the hub until the transport
// closes. It runs as the connection's single reader goroutine and owns the
// disconnect trigger on exit.
func (c *Client) readPump() {
	defer func() {
		c.close()

		select {
		case c.hub.unregister <- c:
		case <-time.After(5 * time.Second):
			slog.Warn("timeout sending unregister request", "clientID", c.id, "userID", c.userID)
		}

		if err := c.conn.Close(); err != nil {
			slog.Debug("error closing connection", "clientID", c.id, "userID", c.userID, "error", err)
		}
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read error", "clientID", c.id, "userID", c.userID, "error", err)
			} else {
				slog.Debug("websocket connection closed", "clientID", c.id, "userID", c.userID, "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.hub.handleAudio(c, data)
		case websocket.TextMessage:
			c.hub.dispatch(c, data)
		default:
			// Control frames are handled by the transport.
		}
	}
}

// writePump drains the send queue onto the transport and keeps the connection
// alive with pings. One writer per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if c.isClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frame.messageType, frame.data); err != nil {
				slog.Debug("write error", "clientID", c.id, "userID", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("error sending ping", "clientID", c.id, "userID", c.userID, "error", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
