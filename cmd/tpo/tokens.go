// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
	"github.com/sayedAmaan-6104/tpo-react/internal/identity/postgres"
	"github.com/sayedAmaan-6104/tpo-react/internal/store"
)

// NewTokensCmd creates the tokens command tree.
func NewTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Maintain reset and verification tokens",
	}

	var retain time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete tokens that expired more than --retain ago",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := store.Connect(ctx, url, store.ConnectOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			svc, err := identity.NewTokenService(
				postgres.NewIdentityRepository(pool),
				postgres.NewTokenRepository(pool),
				postgres.NewTransactor(pool),
				identity.NewArgon2idHasher(),
			)
			if err != nil {
				return err
			}
			return purgeOnce(ctx, cmd, svc, retain)
		},
	}
	purge.Flags().DurationVar(&retain, "retain", 0, "keep tokens that expired less than this long ago")

	cmd.AddCommand(purge)
	return cmd
}

func purgeOnce(ctx context.Context, cmd *cobra.Command, purger TokenPurger, retain time.Duration) error {
	n, err := purger.PurgeExpired(ctx, retain)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired tokens\n", n)
	return nil
}
