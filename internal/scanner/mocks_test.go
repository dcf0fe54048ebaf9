package scanner_test

import (
	"context"
	"flagwatch/backend/internal/models"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

// MockDirectory is a testify mock of scanner.Directory.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Communities(ctx context.Context) ([]models.Community, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Community), args.Error(1)
}

func (m *MockDirectory) ProbeMembership(ctx context.Context, communityID, userID string) (models.Member, bool, error) {
	args := m.Called(communityID, userID)
	return args.Get(0).(models.Member), args.Bool(1), args.Error(2)
}

// gatedDirectory blocks every probe until the gate is closed.
type gatedDirectory struct {
	communities []models.Community
	members     map[string]bool
	gate        chan struct{}

	mu     sync.Mutex
	probes int
}

func (d *gatedDirectory) Communities(ctx context.Context) ([]models.Community, error) {
	return d.communities, nil
}

func (d *gatedDirectory) ProbeMembership(ctx context.Context, communityID, userID string) (models.Member, bool, error) {
	d.mu.Lock()
	d.probes++
	d.mu.Unlock()
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return models.Member{}, false, ctx.Err()
		}
	}
	if d.members[communityID+"/"+userID] {
		return models.Member{UserID: userID, DisplayName: "user-" + userID}, true, nil
	}
	return models.Member{}, false, nil
}

func (d *gatedDirectory) Probes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.probes
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
