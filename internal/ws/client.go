package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
	sendBuffer     = 64
)

// Client is one websocket connection. Its id is the player id the
// connection acts as; it changes only when a token resume rebinds it.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	closed  bool // guarded by Hub.mu

	mu   sync.Mutex
	id   string
	room string
}

// NewClient wraps conn. A nil limiter lets every message through.
func NewClient(id string, conn *websocket.Conn, limiter *rate.Limiter) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: limiter,
	}
}

func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) setID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

// Room is the code of the room the connection is in, or "".
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) SetRoom(code string) {
	c.mu.Lock()
	c.room = code
	c.mu.Unlock()
}

// clearRoom unbinds the connection only if it is still bound to code.
func (c *Client) clearRoom(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code == "" || c.room != code {
		return false
	}
	c.room = ""
	return true
}

// Allow reports whether the connection may send another message now.
func (c *Client) Allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// ReadPump hands every frame to handle until the connection fails, and
// returns the read error.
func (c *Client) ReadPump(handle func(data []byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		handle(data)
	}
}

// WritePump is the only writer of the connection. It returns once the hub
// closes the send buffer or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
