// Package pipeline carries each inbound message through classification, the case ledger
// and alert dispatch.
package pipeline

import (
	"context"
	"flagwatch/backend/internal/analysis"
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/metrics"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/storage"
	"sync"

	"github.com/sirupsen/logrus"
)

// Outcome is what happened to a message.
type Outcome string

const (
	OutcomeAutomated Outcome = "automated"
	OutcomeDirect    Outcome = "direct"
	OutcomeIgnored   Outcome = "ignored_community"
	OutcomeClean     Outcome = "clean"
	OutcomeFlagged   Outcome = "flagged"
	OutcomeFailed    Outcome = "failed"
)

// Classifier is satisfied by *analysis.Classifier.
type Classifier interface {
	Classify(text string) analysis.Verdict
}

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	DispatchRisk(ev models.ClassifiedEvent) error
	DispatchWatchlist(ev models.ClassifiedEvent) error
}

// MessageLogger is satisfied by *storage.MessageLog.
type MessageLogger interface {
	Append(msg models.InboundMessage) error
}

// Service is the message pipeline.
type Service struct {
	Classifier Classifier
	Cases      storage.CaseLedger
	Watchlist  storage.SetStore
	Ignored    storage.SetStore
	Notifier   Notifier
	Log        MessageLogger

	// IncomingCh feeds Run. The transport writes, the workers read.
	IncomingCh chan models.InboundMessage

	workers int
	logger  *logrus.Logger
}

// NewService wires the pipeline. Log may be nil.
func NewService(c Classifier, cases storage.CaseLedger, watchlist, ignored storage.SetStore, n Notifier, log MessageLogger, workers int, logger *logrus.Logger) *Service {
	if workers < 1 {
		workers = config.DefaultPipelineWorkers
	}
	return &Service{
		Classifier: c,
		Cases:      cases,
		Watchlist:  watchlist,
		Ignored:    ignored,
		Notifier:   n,
		Log:        log,
		IncomingCh: make(chan models.InboundMessage, config.InboundQueueSize),
		workers:    workers,
		logger:     logger,
	}
}

// Submit queues msg, blocking until there is room or ctx ends.
func (s *Service) Submit(ctx context.Context, msg models.InboundMessage) error {
	select {
	case s.IncomingCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued messages with a fixed number of workers until ctx is cancelled.
// Messages already queued at cancellation are still handled; Run returns once every
// worker has finished, so callers may close the stores afterwards.
func (s *Service) Run(ctx context.Context) {
	s.logger.WithField("workers", s.workers).Info("Message pipeline started")

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					s.drain()
					return
				case msg := <-s.IncomingCh:
					s.Handle(msg)
				}
			}
		}()
	}
	wg.Wait()
	s.logger.Info("Message pipeline stopped")
}

func (s *Service) drain() {
	for {
		select {
		case msg := <-s.IncomingCh:
			s.Handle(msg)
		default:
			return
		}
	}
}

// Handle processes one message to completion. Failures are logged; nothing here panics
// the worker or blocks later messages.
func (s *Service) Handle(msg models.InboundMessage) Outcome {
	outcome := s.handle(msg)
	metrics.MessagesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (s *Service) handle(msg models.InboundMessage) Outcome {
	if msg.IsAutomated {
		return OutcomeAutomated
	}
	if !msg.InCommunity() {
		return OutcomeDirect
	}
	log := s.logger.WithFields(logrus.Fields{
		"community_id": msg.CommunityID,
		"author_id":    msg.AuthorID,
		"message_id":   msg.MessageID,
	})

	if s.Log != nil {
		if err := s.Log.Append(msg); err != nil {
			log.WithError(err).Warn("Failed to write message log")
		}
	}

	verdict := s.Classifier.Classify(msg.Content)
	ev := models.NewClassifiedEvent(msg, verdict.Matched, verdict.Risk)

	watched, err := s.Watchlist.Contains(msg.AuthorID)
	if err != nil {
		log.WithError(err).Warn("Failed to read watchlist")
	}
	if watched {
		if err := s.Notifier.DispatchWatchlist(ev); err != nil {
			log.WithError(err).Debug("Watchlist alert not queued")
		}
	}

	ignored, err := s.Ignored.Contains(msg.CommunityID)
	if err != nil {
		log.WithError(err).Warn("Failed to read ignored communities")
	}
	if ignored {
		return OutcomeIgnored
	}

	if !verdict.Flagged() {
		return OutcomeClean
	}

	outcome := OutcomeFlagged
	count, err := s.Cases.Append(msg.AuthorID, ev)
	if err != nil {
		outcome = OutcomeFailed
		log.WithError(err).Error("Failed to append case event")
	} else {
		metrics.FlagsTotal.WithLabelValues(string(verdict.Risk)).Inc()
		log.WithFields(logrus.Fields{
			"risk":    verdict.Risk,
			"matched": verdict.Matched,
			"count":   count,
		}).Info("Message flagged")
	}

	if err := s.Notifier.DispatchRisk(ev); err != nil {
		log.WithError(err).Debug("Risk alert not queued")
	}
	return outcome
}
