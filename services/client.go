package services

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/quangdao0809/ganh-hat-loto/utils/logger"
)

// Client is one websocket connection. It starts unbound; a create, join or
// rejoin action binds it to a room and player, after which game actions are
// accepted. Connection identity travels as data on the client, never through
// a global connection map.
type Client struct {
	conn *websocket.Conn
	gw   *Gateway
	send chan []byte
	once sync.Once

	mu       sync.Mutex
	room     *Room
	playerID string
}

func newClient(gw *Gateway, conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		gw:   gw,
		send: make(chan []byte, 32),
	}
}

// Close is idempotent; the write pump exits when send closes.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// Send queues an outbound frame, dropping it if the client cannot keep up.
func (c *Client) Send(payload []byte) {
	defer func() {
		// send can race Close; a frame to a dying connection is no loss.
		_ = recover()
	}()
	select {
	case c.send <- payload:
	default:
		logger.Errorf("[Client] dropping frame to %s: buffer full", c.describe())
	}
}

func (c *Client) bind(room *Room, playerID string) {
	c.mu.Lock()
	c.room = room
	c.playerID = playerID
	c.mu.Unlock()
}

func (c *Client) binding() (*Room, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.playerID
}

func (c *Client) describe() string {
	room, playerID := c.binding()
	if room == nil {
		return "unbound connection"
	}
	return "player " + playerID + " in room " + room.Code()
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debugf("[Client] write to %s: %v", c.describe(), err)
			return
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		if room, playerID := c.binding(); room != nil {
			room.Detach(context.Background(), playerID, c)
		}
		c.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("[Client] %s disconnected", c.describe())
			} else {
				logger.Debugf("[Client] read from %s: %v", c.describe(), err)
			}
			return
		}
		c.gw.dispatch(c, message)
	}
}
