// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// Defaults for a Dispatcher.
const (
	DefaultQueueSize   = 256
	DefaultSendTimeout = 10 * time.Second
)

// DeliveriesTotal counts notification deliveries by outcome:
// "sent", "failed" or "dropped".
var DeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tpo_notify_deliveries_total",
		Help: "Total number of token notifications by delivery outcome",
	},
	[]string{"outcome"},
)

// RegisterMetrics registers the notify metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(DeliveriesTotal)
}

// Dispatcher implements identity.Notifier on top of a Sender. Notify only
// enqueues; one worker goroutine drains the queue in order.
type Dispatcher struct {
	sender      Sender
	logger      *slog.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan identity.Notification
	done   chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the queue capacity. Non-positive values are ignored.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan identity.Notification, n)
		}
	}
}

// WithSendTimeout bounds each Send call.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithDispatcherLogger sets the logger for delivery failures.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a Dispatcher and starts its worker. Call Close to
// stop it.
func NewDispatcher(sender Sender, opts ...DispatcherOption) (*Dispatcher, error) {
	if sender == nil {
		return nil, oops.Errorf("sender is required")
	}
	d := &Dispatcher{
		sender:      sender,
		logger:      slog.Default(),
		sendTimeout: DefaultSendTimeout,
		queue:       make(chan identity.Notification, DefaultQueueSize),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d, nil
}

// Notify enqueues n without blocking. It fails when the queue is full or
// the dispatcher is closed.
func (d *Dispatcher) Notify(_ context.Context, n identity.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return oops.Code("NOTIFY_CLOSED").Errorf("dispatcher is closed")
	}
	select {
	case d.queue <- n:
		return nil
	default:
		DeliveriesTotal.WithLabelValues("dropped").Inc()
		return oops.Code("NOTIFY_QUEUE_FULL").
			With("capacity", cap(d.queue)).
			Errorf("notification queue is full")
	}
}

// Close stops accepting notifications and waits until the queued ones are
// delivered or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return oops.Code("NOTIFY_DRAIN_TIMEOUT").
			With("pending", len(d.queue)).
			Wrap(ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n identity.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, n); err != nil {
		DeliveriesTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("best-effort notification delivery failed",
			"operation", "send_notification",
			"identity_id", n.IdentityID.String(),
			"kind", string(n.Kind),
			"error", err)
		return
	}
	DeliveriesTotal.WithLabelValues("sent").Inc()
}

var _ identity.Notifier = (*Dispatcher)(nil)
