// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

// Package notify delivers token notifications out of band. A Dispatcher
// queues notifications from the identity services and hands them to a
// Sender on a background worker.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// Sender delivers one notification. Implementations may block.
type Sender interface {
	Send(ctx context.Context, n identity.Notification) error
}

// Message is the JSON payload published by the broker senders.
type Message struct {
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	Kind       string    `json:"kind"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	SentAt     time.Time `json:"sent_at"`
}

func encode(n identity.Notification, now time.Time) ([]byte, error) {
	body, err := json.Marshal(Message{
		IdentityID: n.IdentityID.String(),
		Email:      n.Email,
		Kind:       string(n.Kind),
		Token:      n.Token,
		ExpiresAt:  n.ExpiresAt.UTC(),
		SentAt:     now.UTC(),
	})
	if err != nil {
		return nil, oops.Code("NOTIFY_ENCODE_FAILED").With("kind", string(n.Kind)).Wrap(err)
	}
	return body, nil
}
