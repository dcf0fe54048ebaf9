package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// WebhookSink posts alerts to one Discord webhook URL behind a circuit breaker.
type WebhookSink struct {
	name    string
	URL     string
	Client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewWebhookSink returns nil when url is empty so callers can pass the result straight into routes.
func NewWebhookSink(name, url string, timeout time.Duration, logger *logrus.Logger) *WebhookSink {
	if url == "" {
		return nil
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"sink": name,
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Webhook circuit breaker changed state")
		},
	}
	return &WebhookSink{
		name:    name,
		URL:     url,
		Client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return s.name }

// Send implements Sink. Any non-2xx status is an error.
func (s *WebhookSink) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(BuildWebhookParams(alert))
	if err != nil {
		return errors.Wrap(err, "encode webhook payload")
	}
	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, body)
	})
	return err
}

func (s *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post webhook %s", s.name)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("webhook %s returned status %d", s.name, resp.StatusCode)
	}
	return nil
}
