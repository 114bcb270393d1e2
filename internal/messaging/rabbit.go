// internal/messaging/rabbit.go
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"tenant-scope/internal/model"
)

const (
	EventsQueue = "tenant_events_queue"
	EventsDLQ   = "tenant_events_dlq"
)

type RabbitClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	URL     string
	logger  *zap.Logger
}

func NewRabbitClient(url string, logger *zap.Logger) (*RabbitClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return &RabbitClient{
		conn:    conn,
		channel: ch,
		URL:     url,
		logger:  logger.Named("rabbit"),
	}, nil
}

func (r *RabbitClient) GetChannel() *amqp.Channel {
	return r.channel
}

func (r *RabbitClient) GetConnection() *amqp.Connection {
	return r.conn
}

// DeclareQueues creates the durable events queue and its dead-letter queue.
func (r *RabbitClient) DeclareQueues() error {
	// 1. DLQ
	_, err := r.channel.QueueDeclare(
		EventsDLQ,
		true, false, false, false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}

	// 2. Main Queue with DLQ binding
	_, err = r.channel.QueueDeclare(
		EventsQueue,
		true, false, false, false,
		DeadLetterArgs(EventsDLQ),
	)
	if err != nil {
		return fmt.Errorf("declare main queue: %w", err)
	}

	r.logger.Info("queues declared", zap.String("queue", EventsQueue), zap.String("dlq", EventsDLQ))
	return nil
}

// DeadLetterArgs routes rejected messages to dlq through the default exchange.
func DeadLetterArgs(dlq string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}
}

// PublishEvent sends a tenant event to the events queue
func (r *RabbitClient) PublishEvent(ev model.TenantEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	err = r.channel.Publish(
		"",          // default exchange
		EventsQueue, // routing key (queue name)
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.OccurredAt,
			Type:         string(ev.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", EventsQueue, err)
	}
	return nil
}

// QueueDepth returns the number of ready messages on queue.
func (r *RabbitClient) QueueDepth(queue string) (int, error) {
	q, err := r.channel.QueueInspect(queue)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue %s: %w", queue, err)
	}
	return q.Messages, nil
}

// Close cleans up connection and channel
func (r *RabbitClient) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	if err := r.conn.Close(); err != nil {
		return err
	}
	return nil
}
