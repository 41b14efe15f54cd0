// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sayedAmaan-6104/tpo-react/internal/store"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

var (
	suiteCtx       context.Context
	suitePool      *pgxpool.Pool
	suiteContainer testcontainers.Container
)

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("portal_test"),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", err
	}
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, connStr, nil
}

var _ = BeforeSuite(func() {
	suiteCtx = context.Background()

	var connStr string
	var err error
	suiteContainer, connStr, err = startPostgres(suiteCtx)
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	suitePool, err = store.Connect(suiteCtx, connStr, store.ConnectOptions{Attempts: 5, Backoff: 100 * time.Millisecond})
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if suitePool != nil {
		suitePool.Close()
	}
	if suiteContainer != nil {
		_ = suiteContainer.Terminate(suiteCtx)
	}
})
