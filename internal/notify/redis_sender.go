// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "tpo:notifications"

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSender publishes notifications as JSON on a Redis pub/sub channel.
// Delivery is fire-and-forget: a message with no subscriber is dropped.
type RedisSender struct {
	client  redisPublisher
	closer  func() error
	channel string
	now     func() time.Time
}

// DialRedis parses url, pings the server and returns a sender publishing to channel.
func DialRedis(ctx context.Context, url, channel string) (*RedisSender, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("REDIS_DIAL_FAILED").With("operation", "ping redis").Wrap(err)
	}

	s := newRedisSender(client, channel)
	s.closer = client.Close
	return s, nil
}

func newRedisSender(client redisPublisher, channel string) *RedisSender {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSender{client: client, channel: channel, now: time.Now}
}

// Send publishes n.
func (s *RedisSender) Send(ctx context.Context, n identity.Notification) error {
	body, err := encode(n, s.now())
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return oops.Code("REDIS_PUBLISH_FAILED").
			With("channel", s.channel).
			With("kind", string(n.Kind)).
			Wrap(err)
	}
	return nil
}

// Close closes the underlying client when the sender owns it.
func (s *RedisSender) Close() error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer(); err != nil {
		return oops.Code("REDIS_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

var _ Sender = (*RedisSender)(nil)
