// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// LogSender writes notifications to a logger. It is the development
// transport; the token value is only logged when IncludeToken is set.
type LogSender struct {
	Logger       *slog.Logger
	IncludeToken bool
}

// Send logs n at INFO.
func (s *LogSender) Send(ctx context.Context, n identity.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"identity_id", n.IdentityID.String(),
		"email", n.Email,
		"kind", string(n.Kind),
		"expires_at", n.ExpiresAt,
	}
	if s.IncludeToken {
		attrs = append(attrs, "token", n.Token)
	}
	logger.InfoContext(ctx, "token notification", attrs...)
	return nil
}

var _ Sender = (*LogSender)(nil)
