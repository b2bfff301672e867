// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for aggregation cache operations.
var (
	tracer = otel.Tracer("contacts.accounts.cache")
	meter  = otel.Meter("contacts.accounts.cache")
)

// Metrics for reload and join operations.
var (
	reloadTotal        metric.Int64Counter
	loadDuration       metric.Float64Histogram
	staleDiscards      metric.Int64Counter
	supersededTotal    metric.Int64Counter
	joinFailures       metric.Int64Counter
	notificationsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		reloadTotal, err = meter.Int64Counter(
			"accounts_cache_reloads_total",
			metric.WithDescription("Completed source reloads by source and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		loadDuration, err = meter.Float64Histogram(
			"accounts_cache_load_duration_seconds",
			metric.WithDescription("Duration of source loads"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		staleDiscards, err = meter.Int64Counter(
			"accounts_cache_stale_discards_total",
			metric.WithDescription("Completions discarded because their generation was no longer current"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		supersededTotal, err = meter.Int64Counter(
			"accounts_cache_superseded_total",
			metric.WithDescription("Completions discarded because a newer reload was requested in flight"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		joinFailures, err = meter.Int64Counter(
			"accounts_cache_join_failures_total",
			metric.WithDescription("Merged loads that failed because both sources failed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		notificationsTotal, err = meter.Int64Counter(
			"accounts_cache_notifications_total",
			metric.WithDescription("AccountsChanged notifications emitted"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startLoadSpan creates a span covering one source load.
func startLoadSpan(ctx context.Context, side sourceKind, gen uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "AggregationCache.load",
		trace.WithAttributes(
			attribute.String("accounts.source", side.String()),
			attribute.Int64("accounts.generation", int64(gen)),
		),
	)
}

// startJoinSpan creates a span covering one merge of the two sides.
func startJoinSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "AggregationCache.join")
}

// recordReload records a completed source load.
func recordReload(ctx context.Context, side sourceKind, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("source", side.String()),
		attribute.Bool("success", success),
	)
	reloadTotal.Add(ctx, 1, attrs)
	loadDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("source", side.String()),
	))
}

// recordStaleDiscard records a completion dropped by the generation check.
func recordStaleDiscard(ctx context.Context, side sourceKind) {
	if err := initMetrics(); err != nil {
		return
	}
	staleDiscards.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", side.String()),
	))
}

// recordSuperseded records a completion displaced by a coalesced retrigger.
func recordSuperseded(ctx context.Context, side sourceKind) {
	if err := initMetrics(); err != nil {
		return
	}
	supersededTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", side.String()),
	))
}

// recordJoinFailure records a merged load failing on both sides.
func recordJoinFailure(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	joinFailures.Add(ctx, 1)
}

// recordNotification records one emitted AccountsChanged event.
func recordNotification(ctx context.Context, side sourceKind) {
	if err := initMetrics(); err != nil {
		return
	}
	notificationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", side.String()),
	))
}
