package alerthub_test

import (
	"flagwatch/backend/internal/notify"
	"sync"
)

type MockClient struct {
	id          string
	channels    map[notify.Channel]bool
	RecvChannel chan notify.Alert
	Closed      chan struct{}
	once        sync.Once
}

func newMockClient(id string, buffer int, channels ...notify.Channel) *MockClient {
	c := &MockClient{
		id:          id,
		RecvChannel: make(chan notify.Alert, buffer),
		Closed:      make(chan struct{}),
	}
	if len(channels) > 0 {
		c.channels = make(map[notify.Channel]bool)
		for _, ch := range channels {
			c.channels[ch] = true
		}
	}
	return c
}

func (c *MockClient) ID() string { return c.id }

func (c *MockClient) Wants(ch notify.Channel) bool { return c.channels == nil || c.channels[ch] }

func (c *MockClient) SendChannel() chan<- notify.Alert { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.once.Do(func() { close(c.Closed) })
}
