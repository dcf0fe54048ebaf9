package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// RiskTier is the classifier verdict for a single message.
type RiskTier string

const (
	RiskNone   RiskTier = "none"
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Rank orders tiers so that higher risk compares greater. Unknown tiers rank as none.
func (t RiskTier) Rank() int {
	switch t {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

func (t RiskTier) String() string { return string(t) }

// ErrUnknownRiskTier is returned by ParseRiskTier for names outside none/low/medium/high.
var ErrUnknownRiskTier = errors.New("unknown risk tier")

// ParseRiskTier accepts the tier names plus the short forms used by operators (hi, med).
func ParseRiskTier(s string) (RiskTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return RiskNone, nil
	case "low":
		return RiskLow, nil
	case "medium", "med":
		return RiskMedium, nil
	case "high", "hi":
		return RiskHigh, nil
	}
	return RiskNone, errors.Wrapf(ErrUnknownRiskTier, "%q", s)
}

// ClassifiedEvent is one flagged message as stored in a case record.
// The JSON keys match the case files written by earlier deployments.
type ClassifiedEvent struct {
	// CommunityID is the guild the message was posted in.
	CommunityID string `json:"guildId"`
	// CommunityName is the guild display name at the time of the message.
	CommunityName string `json:"guildName"`
	// AuthorID is the platform user ID of the author; it keys the case record.
	AuthorID string `json:"userId"`
	// AuthorDisplayName is the author tag at the time of the message.
	AuthorDisplayName string `json:"username"`
	// Timestamp is when the message was observed, always UTC.
	Timestamp time.Time `json:"timestamp"`
	// Content is the raw message text.
	Content string `json:"content"`
	// MatchedTerms lists rule hits, high tier first, then medium, then low.
	MatchedTerms []string `json:"matched"`
	// Risk is the overall tier of the message.
	Risk RiskTier `json:"risk"`
	// Link points at the message in the platform client.
	Link string `json:"link"`

	MessageID string `json:"messageId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
}

// Fingerprint identifies the source message of an event for notification de-duplication.
func (e ClassifiedEvent) Fingerprint() string {
	if e.MessageID != "" {
		return e.CommunityID + "/" + e.ChannelID + "/" + e.MessageID
	}
	return e.CommunityID + "/" + e.AuthorID + "/" + e.Timestamp.UTC().Format(time.RFC3339Nano)
}

// MessageLink builds the jump link for a guild message.
func MessageLink(communityID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", communityID, channelID, messageID)
}

// NewClassifiedEvent freezes an inbound message together with its verdict.
func NewClassifiedEvent(msg InboundMessage, matched []string, risk RiskTier) ClassifiedEvent {
	ts := msg.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	terms := make([]string, len(matched))
	copy(terms, matched)
	return ClassifiedEvent{
		CommunityID:       msg.CommunityID,
		CommunityName:     msg.CommunityName,
		AuthorID:          msg.AuthorID,
		AuthorDisplayName: msg.AuthorDisplayName,
		Timestamp:         ts.UTC(),
		Content:           msg.Content,
		MatchedTerms:      terms,
		Risk:              risk,
		Link:              MessageLink(msg.CommunityID, msg.ChannelID, msg.MessageID),
		MessageID:         msg.MessageID,
		ChannelID:         msg.ChannelID,
	}
}
