// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tpo/identity")

// OperationsTotal counts service operations by operation and outcome.
// Outcome is "success", a lower-cased domain code, or "error".
var OperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tpo_identity_operations_total",
		Help: "Total number of identity service operations by outcome",
	},
	[]string{"operation", "outcome"},
)

// OperationDuration observes how long service operations take.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tpo_identity_operation_duration_seconds",
		Help:    "Identity service operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RegisterMetrics registers the identity metrics with reg.
// Panics if registration fails (prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(OperationsTotal)
	reg.MustRegister(OperationDuration)
}

// outcomeOf maps an operation error to a metric label.
func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if code := ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}
	return "error"
}

// observe opens a span for operation and returns a func that records the
// outcome in both the span and the metrics. Call it with a pointer to the
// named error result.
func observe(ctx context.Context, operation string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "identity."+operation, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		outcome := outcomeOf(err)
		if outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		OperationsTotal.WithLabelValues(operation, outcome).Inc()
		OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
