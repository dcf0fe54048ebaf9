package telegram

import (
	"context"
	"flagwatch/backend/internal/notify"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AlertSink relays selected alert channels to an operator chat.
type AlertSink struct {
	API      Sender
	ChatID   int64
	channels map[notify.Channel]bool
}

// NewAlertSink relays only the given channels; with none given it relays high and watchlist.
func NewAlertSink(api Sender, chatID int64, channels ...notify.Channel) *AlertSink {
	if len(channels) == 0 {
		channels = []notify.Channel{notify.ChannelHigh, notify.ChannelWatchlist}
	}
	set := make(map[notify.Channel]bool, len(channels))
	for _, ch := range channels {
		set[ch] = true
	}
	return &AlertSink{API: api, ChatID: chatID, channels: set}
}

// Name implements notify.Sink.
func (s *AlertSink) Name() string { return "telegram" }

// Send implements notify.Sink. Channels outside the relay set are skipped without error.
func (s *AlertSink) Send(ctx context.Context, alert notify.Alert) error {
	if !s.channels[alert.Channel] {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.ChatID, FormatAlert(alert))
	if _, err := s.API.Send(msg); err != nil {
		return errors.Wrap(err, "send telegram alert")
	}
	return nil
}

// FormatAlert renders an alert as plain text.
func FormatAlert(alert notify.Alert) string {
	ev := alert.Event
	var b strings.Builder
	if alert.Channel == notify.ChannelWatchlist {
		b.WriteString("👁️ Watchlist alert\n")
	} else {
		fmt.Fprintf(&b, "⚠️ %s risk message\n", strings.ToUpper(string(ev.Risk)))
	}
	fmt.Fprintf(&b, "User: %s (%s)\n", ev.AuthorDisplayName, ev.AuthorID)
	fmt.Fprintf(&b, "Server: %s\n", ev.CommunityName)
	if len(ev.MatchedTerms) > 0 {
		fmt.Fprintf(&b, "Matched: %s\n", strings.Join(ev.MatchedTerms, ", "))
	}
	fmt.Fprintf(&b, "Content: %s\n", notify.Truncate(ev.Content, 500))
	b.WriteString(ev.Link)
	return b.String()
}
