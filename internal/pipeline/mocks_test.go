package pipeline_test

import (
	"flagwatch/backend/internal/analysis"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(text string) analysis.Verdict {
	args := m.Called(text)
	return args.Get(0).(analysis.Verdict)
}

// MockLedger mocks the ledger operations the pipeline uses.
type MockLedger struct {
	storage.CaseLedger
	mock.Mock
}

func (m *MockLedger) Append(authorID string, ev models.ClassifiedEvent) (int, error) {
	args := m.Called(authorID, ev)
	return args.Int(0), args.Error(1)
}

type MockSetStore struct {
	mock.Mock
}

func (m *MockSetStore) List() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSetStore) Contains(value string) (bool, error) {
	args := m.Called(value)
	return args.Bool(0), args.Error(1)
}

func (m *MockSetStore) Add(value string) (bool, error) {
	args := m.Called(value)
	return args.Bool(0), args.Error(1)
}

func (m *MockSetStore) Remove(value string) (bool, error) {
	args := m.Called(value)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) DispatchRisk(ev models.ClassifiedEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

func (m *MockNotifier) DispatchWatchlist(ev models.ClassifiedEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

type MockMessageLog struct {
	mock.Mock
}

func (m *MockMessageLog) Append(msg models.InboundMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}
