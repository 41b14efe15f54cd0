// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayedAmaan-6104/tpo-react/internal/config"
	"github.com/sayedAmaan-6104/tpo-react/internal/identity/identitytest"
	"github.com/sayedAmaan-6104/tpo-react/internal/notify"
	"github.com/sayedAmaan-6104/tpo-react/internal/observability"
	"github.com/sayedAmaan-6104/tpo-react/pkg/errutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePurger struct {
	calls  atomic.Int32
	n      int64
	err    error
	retain time.Duration
}

func (p *fakePurger) PurgeExpired(_ context.Context, retain time.Duration) (int64, error) {
	p.calls.Add(1)
	p.retain = retain
	return p.n, p.err
}

func TestRunPurgeLoop_CountsDeletedTokens(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	purger := &fakePurger{n: 3}
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "purged"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		runPurgeLoop(ctx, purger, 5*time.Millisecond, time.Hour, counter, discardLogger())
	}()

	require.Eventually(t, func() bool { return purger.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, testutil.ToFloat64(counter), 6.0)
	assert.Equal(t, time.Hour, purger.retain)
}

func TestRunPurgeLoop_FailuresAreLoggedNotFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	purger := &fakePurger{err: errors.New("connection reset")}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		runPurgeLoop(ctx, purger, 5*time.Millisecond, 0, prometheus.NewCounter(prometheus.CounterOpts{Name: "p"}), logger)
	}()

	require.Eventually(t, func() bool { return purger.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Contains(t, buf.String(), "best-effort token purge failed")
}

func TestRunPurgeLoop_DisabledReturnsImmediately(t *testing.T) {
	purger := &fakePurger{}
	runPurgeLoop(context.Background(), purger, 0, 0, prometheus.NewCounter(prometheus.CounterOpts{Name: "p"}), discardLogger())
	assert.Zero(t, purger.calls.Load())
}

type fakeAutoMigrator struct {
	upErr, closeErr error
	upCalled        bool
	closeCalled     bool
}

func (m *fakeAutoMigrator) Up() error    { m.upCalled = true; return m.upErr }
func (m *fakeAutoMigrator) Close() error { m.closeCalled = true; return m.closeErr }

func TestApplyMigrations(t *testing.T) {
	m := &fakeAutoMigrator{}
	require.NoError(t, applyMigrations(m))
	assert.True(t, m.upCalled)
	assert.True(t, m.closeCalled)

	m = &fakeAutoMigrator{upErr: errors.New("dirty")}
	errutil.AssertErrorCode(t, applyMigrations(m), "MIGRATION_FAILED")
	assert.True(t, m.closeCalled, "closed even when Up fails")

	m = &fakeAutoMigrator{closeErr: errors.New("close failed")}
	assert.NoError(t, applyMigrations(m), "close errors are only logged")
}

func TestAutoMigrate_FactoryFailure(t *testing.T) {
	err := autoMigrate(func(string) (Migrator, error) { return nil, errors.New("bad url") }, "x")
	errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
}

func TestNewSender(t *testing.T) {
	cfg := config.Default()
	cfg.ExposeTokens = true

	s, closer, err := newSender(context.Background(), &cfg, discardLogger())
	require.NoError(t, err)
	ls, ok := s.(*notify.LogSender)
	require.True(t, ok)
	assert.True(t, ls.IncludeToken)
	assert.NoError(t, closer())

	cfg.NotifyTransport = "smtp"
	_, _, err = newSender(context.Background(), &cfg, discardLogger())
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")

	cfg.NotifyTransport = config.TransportRedis
	cfg.RedisURL = "::not a url"
	_, _, err = newSender(context.Background(), &cfg, discardLogger())
	errutil.AssertErrorCode(t, err, "REDIS_CONFIG_INVALID")
}

func TestBuildAPI(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	cfg := config.Default()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	handler, tokens, err := buildAPI(pool, &cfg, discardLogger(), &identitytest.RecordingNotifier{}, metrics)
	require.NoError(t, err)
	assert.NotNil(t, handler.Routes())
	assert.NotNil(t, tokens)
	assert.NoError(t, pool.ExpectationsWereMet(), "wiring does not touch the database")
}

func TestMonitorServerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	errCh <- errors.New("listener closed")

	monitorServerErrors(ctx, cancel, errCh, "api")
	assert.Error(t, ctx.Err(), "an error cancels the context")

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	closed := make(chan error)
	close(closed)
	monitorServerErrors(ctx2, cancel2, closed, "api")
	assert.NoError(t, ctx2.Err(), "a closed channel does not cancel")
}

type ctxKey struct{}

func TestNewAPIServer_RequestsOutliveShutdownSignal(t *testing.T) {
	base, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "tpo"))
	srv := newAPIServer(base, http.NotFoundHandler())
	cancel()

	reqCtx := srv.BaseContext(nil)
	assert.NoError(t, reqCtx.Err(), "draining requests keep a live context")
	assert.Equal(t, "tpo", reqCtx.Value(ctxKey{}))
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
}

func TestPurgeOnce(t *testing.T) {
	cmd := &cobra.Command{}
	out := new(bytes.Buffer)
	cmd.SetOut(out)

	require.NoError(t, purgeOnce(context.Background(), cmd, &fakePurger{n: 4}, time.Hour))
	assert.Contains(t, out.String(), "Deleted 4 expired tokens")

	err := purgeOnce(context.Background(), cmd, &fakePurger{err: errors.New("boom")}, 0)
	assert.Error(t, err)
}
