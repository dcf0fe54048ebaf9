package alerthub

import (
	"flagwatch/backend/internal/notify"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// WebSocketClient implements Client over a gorilla connection.
type WebSocketClient struct {
	Conn     *websocket.Conn
	Hub      *Hub
	Send     chan notify.Alert
	Operator string

	id        string
	channels  map[notify.Channel]bool
	closeOnce sync.Once
	logger    *logrus.Logger
}

// NewWebSocketClient subscribes conn to channels; no channels means all of them.
func NewWebSocketClient(hub *Hub, conn *websocket.Conn, operator string, channels []notify.Channel, logger *logrus.Logger) *WebSocketClient {
	c := &WebSocketClient{
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan notify.Alert, sendBuffer),
		Operator: operator,
		id:       uuid.NewString(),
		logger:   logger,
	}
	if len(channels) > 0 {
		c.channels = make(map[notify.Channel]bool, len(channels))
		for _, ch := range channels {
			c.channels[ch] = true
		}
	}
	return c
}

func (c *WebSocketClient) ID() string                       { return c.id }
func (c *WebSocketClient) SendChannel() chan<- notify.Alert { return c.Send }
func (c *WebSocketClient) Wants(ch notify.Channel) bool     { return c.channels == nil || c.channels[ch] }
func (c *WebSocketClient) Close()                           { c.closeOnce.Do(func() { close(c.Send) }) }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// readPump only keeps the pong deadline fresh and notices the peer leaving.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).WithField("client_id", c.id).Debug("Alert feed read failed")
			}
			return
		}
	}
}

// writePump writes one JSON frame per alert and pings the peer between alerts.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case alert, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(alert); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
