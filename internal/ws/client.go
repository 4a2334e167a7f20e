package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/hotpotato/internal/protocol"
	"github.com/mcoot/hotpotato/internal/registry"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
)

// Client is one websocket connection. It implements session.Sink.
type Client struct {
	id     registry.ConnID
	conn   *websocket.Conn
	cfg    Config
	send   chan protocol.Message
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newClient(conn *websocket.Conn, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		conn:   conn,
		cfg:    cfg,
		send:   make(chan protocol.Message, cfg.SendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send queues msg for the write pump. It never blocks; false means the
// buffer is full or the client is closing.
func (c *Client) Send(msg protocol.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close asks the write pump to send a close frame and drop the connection
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// readPump forwards inbound frames to the engine until the connection fails,
// then reports the disconnect
func (c *Client) readPump(engine Engine) {
	defer func() {
		c.Close()
		if err := engine.Disconnect(context.Background(), c.id); err != nil {
			c.logger.Debug("disconnect not delivered", slog.Any("error", err))
		}
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})
	// The write pump answers a close after flushing queued messages
	c.conn.SetCloseHandler(func(int, string) error {
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			data = []byte{}
		}

		if err := engine.HandleFrame(context.Background(), c.id, data); err != nil {
			c.logger.Debug("engine rejected frame", slog.Any("error", err))
			return
		}
	}
}

// writePump writes queued messages and keepalive pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			// Flush what is already queued, then say goodbye
			c.drain()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

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
