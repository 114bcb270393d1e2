// internal/consumer/consumer.go
package consumer

import (
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type channel interface {
	Cancel(consumer string, noWait bool) error
	Close() error
}

// Consumer forwards deliveries from one queue to Jobs until stopped.
type Consumer struct {
	QueueName   string
	ConsumerTag string
	StopChan    chan struct{}
	DoneChan    chan struct{}

	channel channel
	jobs    chan amqp.Delivery
	logger  *zap.Logger
}

// StartConsumer opens a channel on conn and starts consuming queue with
// manual acks. prefetch bounds unacknowledged deliveries.
func StartConsumer(conn *amqp.Connection, queue, tag string, prefetch int, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("queue %s: failed to open channel: %w", queue, err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			return nil, fmt.Errorf("queue %s: failed to set qos: %w", queue, err)
		}
	}

	msgs, err := ch.Consume(
		queue,
		tag,
		false, // autoAck: false to handle manually
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("queue %s: failed to start consuming: %w", queue, err)
	}

	return newConsumer(ch, msgs, queue, tag, logger), nil
}

func newConsumer(ch channel, msgs <-chan amqp.Delivery, queue, tag string, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{
		QueueName:   queue,
		ConsumerTag: tag,
		StopChan:    make(chan struct{}),
		DoneChan:    make(chan struct{}),
		channel:     ch,
		jobs:        make(chan amqp.Delivery),
		logger:      logger.Named("consumer").With(zap.String("queue", queue)),
	}
	go c.consumeLoop(msgs)

	c.logger.Info("started consumer")
	return c
}

// Jobs is closed once the consumer has stopped.
func (c *Consumer) Jobs() <-chan amqp.Delivery {
	return c.jobs
}

// consumeLoop forwards messages until StopChan is closed
func (c *Consumer) consumeLoop(msgs <-chan amqp.Delivery) {
	defer func() {
		close(c.jobs)
		close(c.DoneChan)
	}()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("delivery channel closed")
				return
			}
			select {
			case c.jobs <- msg:
			case <-c.StopChan:
				_ = msg.Nack(false, true)
				c.cancel()
				return
			}

		case <-c.StopChan:
			c.cancel()
			return
		}
	}
}

func (c *Consumer) cancel() {
	c.logger.Info("stopping consumer")
	_ = c.channel.Cancel(c.ConsumerTag, false)
}

// Stop signals the consumer to stop and waits for cleanup
func (c *Consumer) Stop() {
	select {
	case <-c.StopChan:
	default:
		close(c.StopChan)
	}
	<-c.DoneChan
	_ = c.channel.Close()
	c.logger.Info("stopped consumer")
}
