package models

import "time"

// InboundMessage is a chat message as delivered by the transport, stripped of platform types.
type InboundMessage struct {
	CommunityID       string
	CommunityName     string
	AuthorID          string
	AuthorDisplayName string
	Content           string
	MessageID         string
	ChannelID         string
	// IsAutomated marks messages from bot or webhook accounts; they are never classified or logged.
	IsAutomated bool
	ReceivedAt  time.Time
}

// InCommunity reports whether the message was posted in a guild rather than a DM.
func (m InboundMessage) InCommunity() bool {
	return m.CommunityID != ""
}
