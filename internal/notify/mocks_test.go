package notify_test

import (
	"context"
	"flagwatch/backend/internal/notify"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockSink records deliveries and returns the configured error.
type MockSink struct {
	mock.Mock
	mu   sync.Mutex
	sent []notify.Alert
}

func (m *MockSink) Name() string { return "mock" }

func (m *MockSink) Send(ctx context.Context, alert notify.Alert) error {
	m.mu.Lock()
	m.sent = append(m.sent, alert)
	m.mu.Unlock()
	args := m.Called(alert.Channel)
	return args.Error(0)
}

func (m *MockSink) Sent() []notify.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Alert, len(m.sent))
	copy(out, m.sent)
	return out
}
