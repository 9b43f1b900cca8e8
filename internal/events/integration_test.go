//go:build integration

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/oseayemenre/novelnest/internal/logger"
)

type recordingCounter struct {
	mu    sync.Mutex
	views map[string]int
}

func (c *recordingCounter) IncrementViews(ctx context.Context, novelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[novelID]++
	return nil
}

func (c *recordingCounter) count(novelID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.views[novelID]
}

type EventsIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
}

func (s *EventsIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *EventsIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestEventsIntegrationSuite(t *testing.T) {
	suite.Run(t, new(EventsIntegrationSuite))
}

func (s *EventsIntegrationSuite) TestPublishedViewsAreCounted() {
	queue := "test-novel-viewed"

	pub, err := NewPublisher(s.amqpURL, queue, logger.Nop{})
	s.Require().NoError(err)
	defer pub.Close()

	counter := &recordingCounter{views: map[string]int{}}
	consumer, err := NewConsumer(s.amqpURL, queue, counter, logger.Nop{})
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	for range 3 {
		s.Require().NoError(pub.IncrementViews(s.ctx, "n1"))
	}

	s.Eventually(func() bool { return counter.count("n1") == 3 }, 10*time.Second, 50*time.Millisecond)

	cancel()
	s.NoError(<-done)
}
