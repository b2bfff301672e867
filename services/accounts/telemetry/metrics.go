// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the accounts service HTTP surface.
//
// Description:
//
//	Provides standard counters and histograms for HTTP requests plus an
//	observable gauge for the type catalog. The aggregation cache registers
//	its own reload instruments internally; these cover the serving layer.
//	All metrics use the "accounts_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks currently active HTTP requests. Long-lived
	// watch sockets count for as long as they stay connected.
	HTTPActiveRequests metric.Int64UpDownCounter

	// CatalogTypes reports the number of registered account types in the
	// current snapshot (0 until the first catalog load applies).
	CatalogTypes metric.Int64ObservableGauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Description:
//
//	Registers the serving-layer metrics with the provided meter.
//	Returns an error if any metric registration fails.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all counters and histograms initialized.
//	error - Non-nil if metric registration fails.
//
// Example:
//
//	meter := otel.Meter("accountsd")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	router.Use(telemetry.RequestMetrics(metrics))
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"accounts_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"accounts_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"accounts_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	// Note: CatalogTypes requires a callback registration, handled separately

	return m, nil
}

// RegisterCatalogTypes registers a callback for the catalog type count gauge.
//
// Description:
//
//	Sets up an observable gauge that reports how many account types the
//	current catalog snapshot holds. The callback is invoked each time
//	metrics are scraped, so it must not block.
//
// Inputs:
//
//	meter - The OTel meter to use for registration.
//	countFunc - A function that returns the current type count.
//
// Outputs:
//
//	metric.Registration - Registration handle for cleanup.
//	error - Non-nil if registration fails.
//
// Example:
//
//	reg, err := metrics.RegisterCatalogTypes(meter, func() int64 {
//	    return int64(svc.Manager.Catalog().Len())
//	})
func (m *Metrics) RegisterCatalogTypes(meter metric.Meter, countFunc func() int64) (metric.Registration, error) {
	var err error
	m.CatalogTypes, err = meter.Int64ObservableGauge(
		"accounts_catalog_types",
		metric.WithDescription("Account types registered in the current catalog snapshot"),
		metric.WithUnit("{type}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create catalog_types: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.CatalogTypes, countFunc())
		return nil
	}, m.CatalogTypes)
}
