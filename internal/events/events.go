// Package events moves view-count increments through a RabbitMQ queue so the
// HTTP path never waits on the counter write.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/novels"
)

const (
	DefaultQueue = "novel.viewed"

	handleTimeout = 15 * time.Second
)

type ViewEvent struct {
	NovelID   string    `json:"novel_id"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger logger.Logger
}

func dial(url string, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("error opening channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("error declaring queue: %w", err)
	}

	return conn, ch, nil
}

func NewPublisher(url string, queue string, logger logger.Logger) (*Publisher, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}

	logger.Info("queue connected", "queue", queue)
	return &Publisher{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

// IncrementViews queues a view of novelID for the worker to count.
func (p *Publisher) IncrementViews(ctx context.Context, novelID string) error {
	body, err := json.Marshal(ViewEvent{NovelID: novelID, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("error marshalling view event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("error publishing view event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.ch.Close()
	return p.conn.Close()
}

type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	counter novels.ViewCounter
	logger  logger.Logger
}

func NewConsumer(url string, queue string, counter novels.ViewCounter, logger logger.Logger) (*Consumer, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, queue: queue, counter: counter, logger: logger}, nil
}

// Run consumes view events until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("error consuming messages from queue: %w", err)
	}

	c.logger.Info("worker started", "queue", c.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			handle(ctx, d, c.counter, c.logger)
		}
	}
}

func (c *Consumer) Close() error {
	c.ch.Close()
	return c.conn.Close()
}

// handle acks a counted view, drops malformed events and events for novels
// that no longer exist, and requeues everything else.
func handle(ctx context.Context, d amqp.Delivery, counter novels.ViewCounter, logger logger.Logger) {
	var event ViewEvent
	if err := json.Unmarshal(d.Body, &event); err != nil || event.NovelID == "" {
		logger.Warn("dropping malformed view event", "service", "ViewWorker")
		d.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	err := counter.IncrementViews(ctx, event.NovelID)
	switch {
	case errors.Is(err, novels.ErrNovelNotFound):
		d.Nack(false, false)
	case err != nil:
		logger.Error(fmt.Sprintf("error incrementing views, %v", err), "service", "ViewWorker", "novel", event.NovelID)
		d.Nack(false, true)
	default:
		if err := d.Ack(false); err != nil {
			logger.Error(fmt.Sprintf("error acknowledging message, %v", err), "service", "ViewWorker")
		}
	}
}
