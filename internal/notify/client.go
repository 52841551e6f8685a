package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var (
	// ErrConnectionClosed is returned by Send after the connection closed
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned by Send when the client is not keeping up
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client adapts a websocket connection to Conn and runs its read and write pumps
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity string
	send     chan Message
	done     chan struct{}
	once     sync.Once
	logger   *logrus.Logger
}

var _ Conn = (*Client)(nil)

// NewClient creates a client for an authenticated websocket connection
func NewClient(hub *Hub, conn *websocket.Conn, identity string, logger *logrus.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan Message, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Send queues msg without blocking
func (c *Client) Send(msg Message) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the pumps. Safe to call more than once.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

// Start registers the client with the hub and starts both pumps
func (c *Client) Start() {
	go c.writePump()
	c.hub.RegisterConnection(c, c.identity)
	go c.readPump()
}

// readPump reads client actions until the connection fails
func (c *Client) readPump() {
	defer func() {
		c.hub.Release(c.identity, c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WithField("user_id", c.identity).Debugf("Unexpected websocket close: %v", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.SendTo(c.identity, Error("invalid message format"))
		return
	}

	switch msg.Action {
	case ActionSubscribe:
		if msg.ResourceType == "" || msg.ResourceID == "" {
			c.hub.SendTo(c.identity, Error("resource_type and resource_id are required"))
			return
		}
		c.hub.Subscribe(c.identity, msg.ResourceType, msg.ResourceID)
	case ActionUnsubscribe:
		if msg.ResourceType == "" || msg.ResourceID == "" {
			c.hub.SendTo(c.identity, Error("resource_type and resource_id are required"))
			return
		}
		c.hub.Unsubscribe(c.identity, msg.ResourceType, msg.ResourceID)
	case ActionPing:
		c.hub.SendTo(c.identity, Pong(msg.Timestamp))
	default:
		c.hub.SendTo(c.identity, Error("unknown action: "+msg.Action))
	}
}

// writePump drains the send buffer and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.WithField("user_id", c.identity).Debugf("Websocket write failed: %v", err)
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.drain()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// drain flushes messages queued before Close
func (c *Client) drain() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
