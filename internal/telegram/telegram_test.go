package telegram_test

import (
	"context"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/notify"
	"flagwatch/backend/internal/storage"
	"flagwatch/backend/internal/telegram"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSender captures outgoing Telegram messages.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

// MockLedger implements only the lookups the bot performs.
type MockLedger struct {
	storage.CaseLedger
	mock.Mock
}

func (m *MockLedger) Lookup(authorID string) ([]models.ClassifiedEvent, bool, error) {
	args := m.Called(authorID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.ClassifiedEvent), args.Bool(1), args.Error(2)
}

func sampleAlert(ch notify.Channel) notify.Alert {
	return notify.Alert{Channel: ch, Event: models.ClassifiedEvent{
		CommunityName:     "Guild",
		AuthorID:          "100000000000000001",
		AuthorDisplayName: "alice",
		Timestamp:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Content:           "scam threat",
		MatchedTerms:      []string{"threat", "scam"},
		Risk:              models.RiskHigh,
		Link:              "https://discord.com/channels/1/2/3",
	}}
}

func TestFormatAlert(t *testing.T) {
	text := telegram.FormatAlert(sampleAlert(notify.ChannelHigh))

	assert.Contains(t, text, "HIGH risk message")
	assert.Contains(t, text, "User: alice (100000000000000001)")
	assert.Contains(t, text, "Matched: threat, scam")
	assert.Contains(t, text, "https://discord.com/channels/1/2/3")

	assert.Contains(t, telegram.FormatAlert(sampleAlert(notify.ChannelWatchlist)), "Watchlist alert")
}

func TestAlertSink_RelaysSelectedChannels(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).Return(nil)
	sink := telegram.NewAlertSink(sender, 42)

	require.NoError(t, sink.Send(context.Background(), sampleAlert(notify.ChannelHigh)))
	require.NoError(t, sink.Send(context.Background(), sampleAlert(notify.ChannelLow)))

	sender.AssertNumberOfCalls(t, "Send", 1)
	sent := sender.Calls[0].Arguments.Get(0).(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), sent.ChatID)
}

func TestBotService_CaseCommand(t *testing.T) {
	// Arrange
	sender := new(MockSender)
	sender.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).Return(nil)
	ledger := new(MockLedger)
	ev := sampleAlert(notify.ChannelHigh).Event
	ledger.On("Lookup", "100000000000000001").Return([]models.ClassifiedEvent{ev}, true, nil)

	bot := &telegram.BotService{API: sender, ChatID: 42, Cases: ledger}

	update := tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/case 100000000000000001",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
		Chat:     tgbotapi.Chat{ID: 42},
	}}

	// Act
	bot.HandleUpdate(update)

	// Assert
	sender.AssertNumberOfCalls(t, "Send", 1)
	reply := sender.Calls[0].Arguments.Get(0).(tgbotapi.MessageConfig)
	assert.Contains(t, reply.Text, "Case 100000000000000001: 1 flags (archived)")
	assert.Contains(t, reply.Text, "HIGH: threat, scam")
	ledger.AssertExpectations(t)
}

func TestBotService_IgnoresOtherChats(t *testing.T) {
	sender := new(MockSender)
	bot := &telegram.BotService{API: sender, ChatID: 42}

	bot.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/watchlist",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 10}},
		Chat:     tgbotapi.Chat{ID: 7},
	}})

	sender.AssertNotCalled(t, "Send", mock.Anything)
}
