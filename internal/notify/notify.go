// Package notify routes classified events to outbound alert channels.
package notify

import (
	"context"
	"flagwatch/backend/internal/models"

	"github.com/cockroachdb/errors"
)

// Channel names an alert destination.
type Channel string

const (
	ChannelLow       Channel = "low"
	ChannelMedium    Channel = "medium"
	ChannelHigh      Channel = "high"
	ChannelWatchlist Channel = "watchlist"
)

var (
	// ErrNoChannel is returned when an event has nowhere to go (tier none or no sink configured).
	ErrNoChannel = errors.New("no alert channel")
	// ErrDuplicate is returned when the same message was already dispatched on the channel.
	ErrDuplicate = errors.New("alert already dispatched")
)

// Alert is one event bound for one channel.
type Alert struct {
	Channel Channel                `json:"channel"`
	Event   models.ClassifiedEvent `json:"event"`
}

// Sink delivers alerts. Implementations must be safe for concurrent use.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// ChannelForRisk maps a tier to its channel. RiskNone has no channel.
func ChannelForRisk(tier models.RiskTier) (Channel, bool) {
	switch tier {
	case models.RiskLow:
		return ChannelLow, true
	case models.RiskMedium:
		return ChannelMedium, true
	case models.RiskHigh:
		return ChannelHigh, true
	}
	return "", false
}
