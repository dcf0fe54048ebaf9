package notify

import (
	"context"
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/metrics"
	"flagwatch/backend/internal/models"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Dispatcher sends each event at most once per channel. Delivery happens on its own
// goroutine; failures are logged and dropped.
type Dispatcher struct {
	routes  map[Channel]Sink
	extras  []Sink
	memory  *fingerprintMemory
	timeout time.Duration
	logger  *logrus.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the per-channel sinks. Nil entries are ignored.
func NewDispatcher(routes map[Channel]Sink, timeout time.Duration, logger *logrus.Logger) *Dispatcher {
	clean := make(map[Channel]Sink, len(routes))
	for ch, s := range routes {
		if s != nil {
			clean[ch] = s
		}
	}
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	return &Dispatcher{
		routes:  clean,
		memory:  newFingerprintMemory(config.NotificationMemorySize),
		timeout: timeout,
		logger:  logger,
	}
}

// AddSink registers a sink that receives every alert in addition to the channel route.
func (d *Dispatcher) AddSink(s Sink) {
	d.extras = append(d.extras, s)
}

// DispatchRisk routes ev to the channel for its tier.
func (d *Dispatcher) DispatchRisk(ev models.ClassifiedEvent) error {
	ch, ok := ChannelForRisk(ev.Risk)
	if !ok {
		return ErrNoChannel
	}
	return d.dispatch(Alert{Channel: ch, Event: ev})
}

// DispatchWatchlist routes ev to the watchlist channel regardless of its tier.
func (d *Dispatcher) DispatchWatchlist(ev models.ClassifiedEvent) error {
	return d.dispatch(Alert{Channel: ChannelWatchlist, Event: ev})
}

// Wait blocks until every queued delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) sinksFor(ch Channel) []Sink {
	var sinks []Sink
	if s, ok := d.routes[ch]; ok {
		sinks = append(sinks, s)
	}
	return append(sinks, d.extras...)
}

func (d *Dispatcher) dispatch(alert Alert) error {
	sinks := d.sinksFor(alert.Channel)
	if len(sinks) == 0 {
		metrics.DispatchTotal.WithLabelValues(string(alert.Channel), "no_channel").Inc()
		return errors.Wrapf(ErrNoChannel, "%s", alert.Channel)
	}
	if !d.memory.remember(string(alert.Channel) + "|" + alert.Event.Fingerprint()) {
		metrics.DispatchTotal.WithLabelValues(string(alert.Channel), "duplicate").Inc()
		return ErrDuplicate
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, s := range sinks {
			d.deliver(s, alert)
		}
	}()
	return nil
}

func (d *Dispatcher) deliver(s Sink, alert Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := s.Send(ctx, alert); err != nil {
		metrics.DispatchTotal.WithLabelValues(string(alert.Channel), "failed").Inc()
		d.logger.WithError(err).WithFields(logrus.Fields{
			"sink":      s.Name(),
			"channel":   alert.Channel,
			"author_id": alert.Event.AuthorID,
		}).Warn("Alert delivery failed")
		return
	}
	metrics.DispatchTotal.WithLabelValues(string(alert.Channel), "sent").Inc()
}
