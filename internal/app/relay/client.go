package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"companysync/internal/app/user"
	"companysync/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed between the client's Pong frames.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping frame.
	pingPeriod = (pongWait * 9) / 10

	// maximum size in bytes of one inbound frame. A larger frame ends the connection.
	maxMessageSize = 100 << 20

	// sendQueueSize is the number of outbound frames buffered per connection.
	sendQueueSize = 64
)

// Client is one live WebSocket connection bound to an identity.
type Client struct {
	hub *Hub

	conn *websocket.Conn

	identity user.Identity

	// connID distinguishes connections that share a registry key.
	connID string

	// send queues outbound frames for WritePump.
	send      chan []byte
	closeOnce sync.Once

	logger zerolog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, identity user.Identity) *Client {
	connID := uuid.NewString()

	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		connID:   connID,
		send:     make(chan []byte, sendQueueSize),
		logger: logx.Logger().With().
			Str("client_key", identity.Key()).
			Str("conn_id", connID).
			Logger(),
	}
}

// enqueue hands payload to the writer without blocking. A full queue drops the frame.
// Callers must hold the hub's read lock.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping frame.")
		return false
	}
}

// closeSend stops WritePump. Callers must hold the hub's write lock.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump reads frames until the connection fails, routing each one in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in ReadPump.")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline.")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly.")
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		c.hub.HandleInbound(c.identity, payload)
	}
}

// WritePump writes queued frames and heartbeats until the send queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump.")
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline.")
				return
			}

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing frame.")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping.")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing ping.")
				return
			}
		}
	}
}
