// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identitytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

const plainPrefix = "plain:"

// PlainHasher is a SecretHasher that skips key stretching. Digests are
// "plain:<secret>"; any other digest simply fails to verify.
type PlainHasher struct{}

// Hash implements identity.SecretHasher.
func (PlainHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", oops.Code(identity.CodeWeakSecret).Errorf("secret cannot be empty")
	}
	return plainPrefix + secret, nil
}

// Verify implements identity.SecretHasher.
func (PlainHasher) Verify(secret, digest string) (bool, error) {
	stored, ok := strings.CutPrefix(digest, plainPrefix)
	return ok && stored == secret, nil
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// RecordingNotifier keeps every notification it receives.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []identity.Notification
	Err  error
}

// Notify implements identity.Notifier.
func (r *RecordingNotifier) Notify(_ context.Context, n identity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (r *RecordingNotifier) Sent() []identity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]identity.Notification(nil), r.sent...)
}

var (
	_ identity.SecretHasher = PlainHasher{}
	_ identity.Notifier     = (*RecordingNotifier)(nil)
)
