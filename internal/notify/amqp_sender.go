// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package notify

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// DefaultQueue is the queue notifications are published to when none is configured.
const DefaultQueue = "tpo.notifications"

// amqpChannel is the subset of *amqp.Channel the sender uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSender publishes notifications as persistent JSON messages to a
// durable RabbitMQ queue on the default exchange.
type AMQPSender struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    amqpChannel
	queue string
	now   func() time.Time
}

// DialAMQP connects to url and declares queue.
func DialAMQP(url, queue string) (*AMQPSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, oops.Code("AMQP_DIAL_FAILED").With("operation", "dial broker").Wrap(err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close() //nolint:errcheck // channel error takes precedence
		return nil, oops.Code("AMQP_CHANNEL_FAILED").With("operation", "open channel").Wrap(err)
	}
	s, err := newAMQPSender(ch, queue)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // declare error takes precedence
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func newAMQPSender(ch amqpChannel, queue string) (*AMQPSender, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, oops.Code("AMQP_DECLARE_FAILED").With("queue", queue).Wrap(err)
	}
	return &AMQPSender{ch: ch, queue: queue, now: time.Now}, nil
}

// Send publishes n. Channels are not safe for concurrent publishing, so
// sends are serialized.
func (s *AMQPSender) Send(ctx context.Context, n identity.Notification) error {
	now := s.now()
	body, err := encode(n, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Type:         string(n.Kind),
		Body:         body,
	})
	if err != nil {
		return oops.Code("AMQP_PUBLISH_FAILED").
			With("queue", s.queue).
			With("kind", string(n.Kind)).
			Wrap(err)
	}
	return nil
}

// Close closes the channel and the connection.
func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chErr := s.ch.Close()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			return oops.Code("AMQP_CLOSE_FAILED").With("component", "connection").Wrap(err)
		}
	}
	if chErr != nil {
		return oops.Code("AMQP_CLOSE_FAILED").With("component", "channel").Wrap(chErr)
	}
	return nil
}

var _ Sender = (*AMQPSender)(nil)
