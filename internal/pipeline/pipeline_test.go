package pipeline_test

import (
	"context"
	"flagwatch/backend/internal/analysis"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/pipeline"
	"io"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	author    = "100000000000000001"
	community = "900000000000000001"
)

type fixture struct {
	classifier *MockClassifier
	ledger     *MockLedger
	watchlist  *MockSetStore
	ignored    *MockSetStore
	notifier   *MockNotifier
	log        *MockMessageLog
	svc        *pipeline.Service
}

func newFixture() *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	f := &fixture{
		classifier: new(MockClassifier),
		ledger:     new(MockLedger),
		watchlist:  new(MockSetStore),
		ignored:    new(MockSetStore),
		notifier:   new(MockNotifier),
		log:        new(MockMessageLog),
	}
	f.svc = pipeline.NewService(f.classifier, f.ledger, f.watchlist, f.ignored, f.notifier, f.log, 2, logger)
	return f
}

func inbound(content string) models.InboundMessage {
	return models.InboundMessage{
		CommunityID:       community,
		CommunityName:     "Guild",
		AuthorID:          author,
		AuthorDisplayName: "alice",
		Content:           content,
		MessageID:         "800000000000000001",
		ChannelID:         "700000000000000001",
		ReceivedAt:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func highVerdict() analysis.Verdict {
	return analysis.Verdict{Matched: []string{"threat", "scam"}, Risk: models.RiskHigh}
}

func TestHandle_FlaggedMessageIsPersistedThenDispatched(t *testing.T) {
	// Arrange
	f := newFixture()
	msg := inbound("this is a scam threat")
	f.log.On("Append", msg).Return(nil)
	f.classifier.On("Classify", msg.Content).Return(highVerdict())
	f.watchlist.On("Contains", author).Return(false, nil)
	f.ignored.On("Contains", community).Return(false, nil)
	f.ledger.On("Append", author, mock.AnythingOfType("models.ClassifiedEvent")).Return(1, nil)
	f.notifier.On("DispatchRisk", mock.AnythingOfType("models.ClassifiedEvent")).Return(nil)

	// Act
	outcome := f.svc.Handle(msg)

	// Assert
	assert.Equal(t, pipeline.OutcomeFlagged, outcome)
	ev := f.ledger.Calls[0].Arguments.Get(1).(models.ClassifiedEvent)
	assert.Equal(t, []string{"threat", "scam"}, ev.MatchedTerms)
	assert.Equal(t, models.RiskHigh, ev.Risk)
	assert.Equal(t, "https://discord.com/channels/"+community+"/700000000000000001/800000000000000001", ev.Link)
	f.notifier.AssertNotCalled(t, "DispatchWatchlist", mock.Anything)
	f.notifier.AssertExpectations(t)
	f.log.AssertExpectations(t)
}

func TestHandle_AutomatedMessagesAreIgnoredEntirely(t *testing.T) {
	f := newFixture()
	msg := inbound("scam threat")
	msg.IsAutomated = true

	assert.Equal(t, pipeline.OutcomeAutomated, f.svc.Handle(msg))
	f.log.AssertNotCalled(t, "Append", mock.Anything)
	f.classifier.AssertNotCalled(t, "Classify", mock.Anything)
}

func TestHandle_WatchlistFiresEvenInIgnoredCommunity(t *testing.T) {
	f := newFixture()
	msg := inbound("hello there")
	f.log.On("Append", msg).Return(nil)
	f.classifier.On("Classify", msg.Content).Return(analysis.Verdict{Matched: []string{}, Risk: models.RiskNone})
	f.watchlist.On("Contains", author).Return(true, nil)
	f.ignored.On("Contains", community).Return(true, nil)
	f.notifier.On("DispatchWatchlist", mock.AnythingOfType("models.ClassifiedEvent")).Return(nil)

	assert.Equal(t, pipeline.OutcomeIgnored, f.svc.Handle(msg))

	ev := f.notifier.Calls[0].Arguments.Get(0).(models.ClassifiedEvent)
	assert.Equal(t, models.RiskNone, ev.Risk)
	f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "DispatchRisk", mock.Anything)
}

func TestHandle_IgnoredCommunitySkipsCases(t *testing.T) {
	f := newFixture()
	msg := inbound("scam threat")
	f.log.On("Append", msg).Return(nil)
	f.classifier.On("Classify", msg.Content).Return(highVerdict())
	f.watchlist.On("Contains", author).Return(false, nil)
	f.ignored.On("Contains", community).Return(true, nil)

	assert.Equal(t, pipeline.OutcomeIgnored, f.svc.Handle(msg))
	f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestHandle_CleanMessage(t *testing.T) {
	f := newFixture()
	msg := inbound("good morning")
	f.log.On("Append", msg).Return(nil)
	f.classifier.On("Classify", msg.Content).Return(analysis.Verdict{Matched: []string{}, Risk: models.RiskNone})
	f.watchlist.On("Contains", author).Return(false, nil)
	f.ignored.On("Contains", community).Return(false, nil)

	assert.Equal(t, pipeline.OutcomeClean, f.svc.Handle(msg))
	f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

// TestHandle_FailuresDoNotStopProcessing verifies that store and log failures are absorbed.
func TestHandle_FailuresDoNotStopProcessing(t *testing.T) {
	f := newFixture()
	msg := inbound("scam threat")
	f.log.On("Append", msg).Return(errors.New("disk full"))
	f.classifier.On("Classify", msg.Content).Return(highVerdict())
	f.watchlist.On("Contains", author).Return(false, errors.New("unreadable"))
	f.ignored.On("Contains", community).Return(false, nil)
	f.ledger.On("Append", author, mock.Anything).Return(0, errors.New("disk full"))
	f.notifier.On("DispatchRisk", mock.Anything).Return(nil)

	assert.Equal(t, pipeline.OutcomeFailed, f.svc.Handle(msg))
	f.notifier.AssertCalled(t, "DispatchRisk", mock.Anything)
}

func TestHandle_DirectMessagesAreNotClassified(t *testing.T) {
	f := newFixture()
	msg := inbound("scam")
	msg.CommunityID = ""

	assert.Equal(t, pipeline.OutcomeDirect, f.svc.Handle(msg))
	f.classifier.AssertNotCalled(t, "Classify", mock.Anything)
}

func TestRun_ProcessesQueuedMessages(t *testing.T) {
	f := newFixture()
	msg := inbound("good morning")
	f.log.On("Append", msg).Return(nil)
	handled := make(chan struct{})
	f.classifier.On("Classify", msg.Content).
		Return(analysis.Verdict{Matched: []string{}, Risk: models.RiskNone}).
		Run(func(mock.Arguments) { close(handled) })
	f.watchlist.On("Contains", author).Return(false, nil)
	f.ignored.On("Contains", community).Return(false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()

	assert.NoError(t, f.svc.Submit(ctx, msg))
	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("message was not processed")
	}

	cancel()
	<-done
}

func TestRun_HandlesQueuedMessagesBeforeReturning(t *testing.T) {
	// Arrange: flagged messages are already queued when shutdown begins
	f := newFixture()
	msg := inbound("this is a threat")
	f.log.On("Append", msg).Return(nil)
	f.classifier.On("Classify", msg.Content).Return(highVerdict())
	f.watchlist.On("Contains", author).Return(false, nil)
	f.ignored.On("Contains", community).Return(false, nil)
	f.ledger.On("Append", author, mock.Anything).Return(1, nil)
	f.notifier.On("DispatchRisk", mock.Anything).Return(nil)

	for i := 0; i < 3; i++ {
		assert.NoError(t, f.svc.Submit(context.Background(), msg))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	f.svc.Run(ctx)

	// Assert: every queued message reached the ledger and the notifier before Run returned
	f.ledger.AssertNumberOfCalls(t, "Append", 3)
	f.notifier.AssertNumberOfCalls(t, "DispatchRisk", 3)
	assert.Empty(t, f.svc.IncomingCh)
}
