// Package mq wraps the AMQP broker access shared by the entitlement and
// validation services: one connection per service, one channel per role,
// durable queues, persistent JSON messages, explicit ack.
package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Conn owns a single AMQP connection. Publishers and consumers each get their
// own channel; channels must not be shared between roles.
type Conn struct {
	conn *amqp.Connection
	log  *zap.Logger
}

// Dial connects to the broker.
func Dial(url string, log *zap.Logger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return &Conn{conn: conn, log: log}, nil
}

// IsClosed reports whether the underlying connection is gone. Used by
// readiness probes.
func (c *Conn) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

// Close tears down the connection and all channels derived from it.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// Publisher sends persistent JSON messages to one durable queue through the
// default exchange.
type Publisher struct {
	ch    *amqp.Channel
	queue string
}

// NewPublisher opens a dedicated channel and declares the target queue.
func (c *Conn) NewPublisher(queue string) (*Publisher, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := declareQueue(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch, queue: queue}, nil
}

// Publish marshals v and sends it with persistent delivery mode.
func (p *Publisher) Publish(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", p.queue, err)
	}
	err = p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

// Close releases the publisher channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}

// Action tells the consumer loop how to settle a delivery.
type Action int

const (
	// Ack acknowledges the delivery.
	Ack Action = iota
	// Discard rejects the delivery without requeueing. Used for poison
	// messages; at-least-once redelivery is preserved for everything else by
	// not settling until the handler returns.
	Discard
)

// HandlerFunc processes one delivery body and decides how to settle it. The
// handler performs its durable work (DB commit, result publish) before
// returning Ack.
type HandlerFunc func(ctx context.Context, body []byte) Action

// Consumer reads one durable queue with prefetch 1 so each worker handles a
// single message at a time.
type Consumer struct {
	ch    *amqp.Channel
	queue string
	log   *zap.Logger
}

// NewConsumer opens a dedicated channel, declares the queue, and applies
// prefetch 1.
func (c *Conn) NewConsumer(queue string) (*Consumer, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := declareQueue(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos on %s: %w", queue, err)
	}
	return &Consumer{ch: ch, queue: queue, log: c.log}, nil
}

// Run consumes deliveries until ctx is canceled or the channel dies. A nil
// error means clean shutdown; a closed delivery channel while the context is
// still live is reported as an error so the caller can fail fast.
func (cs *Consumer) Run(ctx context.Context, fn HandlerFunc) error {
	deliveries, err := cs.ch.ConsumeWithContext(ctx,
		cs.queue,
		"",    // server-generated consumer tag
		false, // autoAck: settlement is explicit
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cs.queue, err)
	}

	cs.log.Info("consuming", zap.String("queue", cs.queue))

	for {
		select {
		case <-ctx.Done():
			cs.log.Info("consumer stopping", zap.String("queue", cs.queue))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel for %s closed", cs.queue)
			}
			switch fn(ctx, d.Body) {
			case Ack:
				if err := d.Ack(false); err != nil {
					cs.log.Error("ack failed",
						zap.String("queue", cs.queue),
						zap.Error(err))
				}
			case Discard:
				if err := d.Nack(false, false); err != nil {
					cs.log.Error("nack failed",
						zap.String("queue", cs.queue),
						zap.Error(err))
				}
			}
		}
	}
}

// Close releases the consumer channel.
func (cs *Consumer) Close() error {
	return cs.ch.Close()
}
