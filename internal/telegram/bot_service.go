// Package telegram relays alerts to an operator chat and answers a few read-only
// commands from that chat.
package telegram

import (
	"context"
	"flagwatch/backend/internal/storage"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// BotService polls Telegram for commands from the operator chat.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	API       Sender
	ChatID    int64
	Cases     storage.CaseLedger
	Watchlist storage.SetStore
	logger    *logrus.Logger
}

// NewBotService authorizes the bot token.
func NewBotService(token string, chatID int64, cases storage.CaseLedger, watchlist storage.SetStore, logger *logrus.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "authorize telegram bot")
	}
	bot.Debug = false
	logger.WithField("account", bot.Self.UserName).Info("Telegram bot authorized")

	return &BotService{
		BotAPI:    bot,
		API:       bot,
		ChatID:    chatID,
		Cases:     cases,
		Watchlist: watchlist,
		logger:    logger,
	}, nil
}

// Run consumes updates until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(update)
		}
	}
}

// HandleUpdate answers commands sent from the operator chat and ignores everything else.
func (s *BotService) HandleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.ID != s.ChatID || !msg.IsCommand() {
		return
	}

	var reply string
	switch msg.Command() {
	case "case":
		reply = s.caseSummary(strings.TrimSpace(msg.CommandArguments()))
	case "watchlist":
		reply = s.watchlistSummary()
	case "help", "start":
		reply = "/case <user id> shows the latest flags for a user\n/watchlist lists watched users"
	default:
		return
	}

	if _, err := s.API.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		s.logger.WithError(err).Error("Failed to send Telegram reply")
	}
}

func (s *BotService) caseSummary(authorID string) string {
	if authorID == "" {
		return "Usage: /case <user id>"
	}
	events, archived, err := s.Cases.Lookup(authorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Sprintf("No case for %s", authorID)
		}
		return "Invalid user ID or storage error"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Case %s: %d flags", authorID, len(events))
	if archived {
		b.WriteString(" (archived)")
	}
	start := len(events) - 5
	if start < 0 {
		start = 0
	}
	for _, ev := range events[start:] {
		fmt.Fprintf(&b, "\n[%s] %s: %s", ev.Timestamp.Format("2006-01-02 15:04"), strings.ToUpper(string(ev.Risk)), strings.Join(ev.MatchedTerms, ", "))
	}
	return b.String()
}

func (s *BotService) watchlistSummary() string {
	ids, err := s.Watchlist.List()
	if err != nil {
		s.logger.WithError(err).Error("Failed to read watchlist")
		return "Failed to read watchlist"
	}
	if len(ids) == 0 {
		return "Watchlist is empty"
	}
	return "Watchlist:\n" + strings.Join(ids, "\n")
}
