// Package broker implements the pipeline's AMQP topology: per-stream
// fanout exchange, durable main queue, length-capped head queue, and
// dead-letter exchange/queue, plus the publish/consume/ack/reject
// operations workers use to move messages through it.
//
// It is grounded on the original implementation's RabbitMQClient
// (rabbitmq.py): a scoped connection, idempotent per-stream setup, and a
// basic_get-based consume model rather than a pushed-delivery consumer,
// which keeps each worker's main loop single-threaded and in full control
// of backpressure (§5 of SPEC_FULL.md).
package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds the connection parameters for the broker.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
}

// URL builds the AMQP connection URI for Config.
func (c Config) URL() string {
	port := c.Port
	if port == 0 {
		port = 5672
	}
	vhost := c.VHost
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, port, vhost)
}

// Client wraps a single AMQP connection and channel. It is not safe for
// concurrent use by multiple goroutines; each worker owns exactly one
// Client, matching the single-threaded cooperative loop model of §5.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker and opens a channel. The context only bounds
// the dial; once connected, the channel is held until Close.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	type result struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := amqp.Dial(cfg.URL())
		done <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("broker: dial: %w", r.err)
		}
		ch, err := r.conn.Channel()
		if err != nil {
			_ = r.conn.Close()
			return nil, fmt.Errorf("broker: open channel: %w", err)
		}
		return &Client{conn: r.conn, ch: ch}, nil
	}
}

// Close releases the underlying channel and connection. Safe to call
// more than once.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var err error
	if c.ch != nil {
		err = c.ch.Close()
	}
	if c.conn != nil {
		if cerr := c.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Setup declares the exchange/queue/head-queue/DLX/DLQ quadruple for
// each given stream. It is idempotent: re-declaring an existing topology
// with identical arguments is a no-op on the broker side.
func (c *Client) Setup(streams []Stream) error {
	for _, s := range streams {
		if err := c.setupStream(s); err != nil {
			return fmt.Errorf("broker: setup %s: %w", s, err)
		}
	}
	return nil
}

func (c *Client) setupStream(s Stream) error {
	name := string(s)

	if err := c.ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	dlx := dlxExchangeName(s)
	if err := c.ch.ExchangeDeclare(dlx, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx: %w", err)
	}

	mainArgs := amqp.Table{"x-dead-letter-exchange": dlx}
	mainQ, err := c.ch.QueueDeclare(name, true, false, false, false, mainArgs)
	if err != nil {
		return fmt.Errorf("declare main queue: %w", err)
	}
	if err := c.ch.QueueBind(mainQ.Name, "", name, false, nil); err != nil {
		return fmt.Errorf("bind main queue: %w", err)
	}

	headArgs := amqp.Table{"x-max-length": int32(1), "x-overflow": "drop-head"}
	headQ, err := c.ch.QueueDeclare(headQueueName(s), true, false, false, false, headArgs)
	if err != nil {
		return fmt.Errorf("declare head queue: %w", err)
	}
	if err := c.ch.QueueBind(headQ.Name, "", name, false, nil); err != nil {
		return fmt.Errorf("bind head queue: %w", err)
	}

	dlq, err := c.ch.QueueDeclare(dlqQueueName(s), true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare dlq: %w", err)
	}
	if err := c.ch.QueueBind(dlq.Name, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind dlq: %w", err)
	}

	return nil
}

// Produce publishes body to a stream's fanout exchange with persistent
// delivery mode, so it reaches both the main queue and the head queue.
func (c *Client) Produce(ctx context.Context, s Stream, body []byte) error {
	return c.ch.PublishWithContext(ctx, string(s), "", false, false, amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Delivery is a single message pulled off a queue via basic_get, along
// with the delivery tag needed to ack/reject it.
type Delivery struct {
	Body         []byte
	deliveryTag  uint64
	ch           *amqp.Channel
}

// Consume performs a non-blocking basic_get against a stream's main
// queue. ok is false if the queue was empty.
func (c *Client) Consume(s Stream) (d Delivery, ok bool, err error) {
	msg, ok, err := c.ch.Get(string(s), false)
	if err != nil || !ok {
		return Delivery{}, ok, err
	}
	return Delivery{Body: msg.Body, deliveryTag: msg.DeliveryTag, ch: c.ch}, true, nil
}

// ConsumeHead performs a non-blocking, auto-acked basic_get against a
// stream's head queue. Because the head queue only ever holds the most
// recent cursor and reads are non-blocking and immediately acked, this
// never competes with the main-queue FIFO consumer (§5: "head reads are
// non-blocking, no-ack path").
func (c *Client) ConsumeHead(s Stream) (body []byte, ok bool, err error) {
	msg, ok, err := c.ch.Get(headQueueName(s), true)
	if err != nil || !ok {
		return nil, ok, err
	}
	return msg.Body, true, nil
}

// Ack acknowledges successful processing of a main-queue delivery.
func (d Delivery) Ack() error {
	return d.ch.Ack(d.deliveryTag, false)
}

// Reject rejects a main-queue delivery. When requeue is false, the
// message is routed to the stream's DLQ via its dead-letter exchange.
func (d Delivery) Reject(requeue bool) error {
	return d.ch.Reject(d.deliveryTag, requeue)
}

// QueueSize returns the number of ready messages on a stream's main queue.
func (c *Client) QueueSize(s Stream) (int, error) {
	q, err := c.ch.QueueInspect(string(s))
	if err != nil {
		return 0, fmt.Errorf("broker: inspect %s: %w", s, err)
	}
	return q.Messages, nil
}
