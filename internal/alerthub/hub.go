package alerthub

import (
	"context"
	"flagwatch/backend/internal/notify"

	"github.com/sirupsen/logrus"
)

// Hub owns the set of live clients. Only Run touches Clients.
type Hub struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	BroadcastCh  chan notify.Alert

	done   chan struct{}
	logger *logrus.Logger
}

// NewHub Constructor
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		BroadcastCh:  make(chan notify.Alert, 64),
		done:         make(chan struct{}),
		logger:       logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.Clients {
				delete(h.Clients, id)
				c.Close()
			}
			h.logger.Info("Alert hub stopped")
			return

		case c := <-h.RegisterCh:
			h.Clients[c.ID()] = c
			h.logger.WithField("client_id", c.ID()).Debug("Alert feed client registered")

		case c := <-h.UnregisterCh:
			if existing, ok := h.Clients[c.ID()]; ok && existing == c {
				delete(h.Clients, c.ID())
				c.Close()
				h.logger.WithField("client_id", c.ID()).Debug("Alert feed client unregistered")
			}

		case alert := <-h.BroadcastCh:
			h.broadcast(alert)
		}
	}
}

// broadcast never blocks: a client whose buffer is full is dropped.
func (h *Hub) broadcast(alert notify.Alert) {
	for id, c := range h.Clients {
		if !c.Wants(alert.Channel) {
			continue
		}
		select {
		case c.SendChannel() <- alert:
		default:
			delete(h.Clients, id)
			c.Close()
			h.logger.WithField("client_id", id).Warn("Dropped slow alert feed client")
		}
	}
}

// Register adds c. It returns false once the hub has stopped.
func (h *Hub) Register(c Client) bool {
	select {
	case h.RegisterCh <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c if it is still registered.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

// Name implements notify.Sink.
func (h *Hub) Name() string { return "alert-feed" }

// Send implements notify.Sink.
func (h *Hub) Send(ctx context.Context, alert notify.Alert) error {
	select {
	case h.BroadcastCh <- alert:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
