// Package alerthub fans dispatched alerts out to live operator connections.
package alerthub

import "flagwatch/backend/internal/notify"

// Client is one live subscriber. It abstracts the underlying connection so the hub can
// manage every subscriber the same way.
type Client interface {
	// ID is unique per connection.
	ID() string
	// Wants reports whether the client subscribed to alerts on ch.
	Wants(ch notify.Channel) bool
	// SendChannel is written by the hub only.
	SendChannel() chan<- notify.Alert
	// Run starts the client's pumps.
	Run()
	// Close releases the send channel. The hub calls it exactly once.
	Close()
}
