package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client publishes to a direct exchange and consumes from the durable queue
// bound to it.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	logger   *slog.Logger
}

func NewRabbitMQ(url, exchange, queue string, logger *slog.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	c := &Client{conn: conn, channel: ch, exchange: exchange, queue: queue, logger: logger}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}
	if err := ch.Qos(8, 0, false); err != nil {
		c.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	logger.Info("rabbitmq initialized", "exchange", exchange, "queue", queue)
	return c, nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.logger.Info("rabbitmq connection closed")
}

// Publish sends a persistent JSON message routed to the client's queue.
func (c *Client) Publish(ctx context.Context, body []byte) error {
	err := c.channel.PublishWithContext(ctx, c.exchange, c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", c.exchange, err)
	}
	c.logger.DebugContext(ctx, "message published", "exchange", c.exchange, "bytes", len(body))
	return nil
}

// Consume delivers messages to handler until ctx is cancelled or the channel
// closes. A handler error requeues the message once; a redelivered message
// that fails again is dropped.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, []byte) error) error {
	msgs, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info("started consuming", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.deliver(ctx, d, handler)
		}
	}
}

func (c *Client) deliver(ctx context.Context, d amqp.Delivery, handler func(context.Context, []byte) error) {
	if err := handler(ctx, d.Body); err != nil {
		c.logger.WarnContext(ctx, "failed to process message", "queue", c.queue, "redelivered", d.Redelivered, "err", err)
		if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
			c.logger.ErrorContext(ctx, "nack failed", "queue", c.queue, "err", nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.ErrorContext(ctx, "ack failed", "queue", c.queue, "err", err)
	}
}
