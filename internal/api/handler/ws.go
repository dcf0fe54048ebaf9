package handler

import (
	"flagwatch/backend/internal/alerthub"
	"flagwatch/backend/internal/notify"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operators connect from local tooling; the token is the access check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamScan upgrades to a WebSocket and writes one JSON status per progress update.
// The socket is closed after the final status.
func (h *Handler) StreamScan(c *gin.Context) {
	updates, unsubscribe, err := h.Scans.Subscribe(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// The read loop only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case st, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan finished"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(st); err != nil {
				h.logger.WithError(err).Debug("WebSocket write failed")
				return
			}
		}
	}
}

// StreamAlerts subscribes the connection to live alerts. ?channels=high,watchlist narrows
// the feed; no value means every channel.
func (h *Handler) StreamAlerts(c *gin.Context) {
	if h.Feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert feed is disabled"})
		return
	}
	var channels []notify.Channel
	for _, name := range strings.Split(c.Query("channels"), ",") {
		switch ch := notify.Channel(strings.TrimSpace(name)); ch {
		case "":
		case notify.ChannelLow, notify.ChannelMedium, notify.ChannelHigh, notify.ChannelWatchlist:
			channels = append(channels, ch)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel " + string(ch)})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := alerthub.NewWebSocketClient(h.Feed, conn, c.GetString(operatorKey), channels, h.logger)
	if !h.Feed.Register(client) {
		_ = conn.Close()
		return
	}
	client.Run()
}
