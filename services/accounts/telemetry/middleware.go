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
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestMetrics creates gin middleware that records request metrics.
//
// Description:
//
//	Records HTTP request count, duration, and active request count.
//	Metrics include labels for method, route, and status code. The route
//	label uses the matched route template, not the raw URL, to keep
//	cardinality bounded. Tracing comes from otelgin mounted in front of
//	this middleware.
//
// Inputs:
//
//	metrics - Pre-configured Metrics instance.
//
// Outputs:
//
//	gin.HandlerFunc recording metrics around the rest of the chain.
//
// Example:
//
//	metrics, _ := telemetry.NewMetrics(otel.Meter("accountsd"))
//	router := gin.New()
//	router.Use(otelgin.Middleware("accountsd"), telemetry.RequestMetrics(metrics))
//
// Thread Safety: Safe for concurrent use.
func RequestMetrics(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		// Track active requests
		metrics.HTTPActiveRequests.Add(ctx, 1)
		defer metrics.HTTPActiveRequests.Add(ctx, -1)

		// Process request
		c.Next()

		// Record metrics
		duration := time.Since(start).Seconds()

		path := c.FullPath()
		if path == "" {
			// Unmatched routes share one label instead of echoing raw URLs.
			path = "unmatched"
		}

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.Int("status", c.Writer.Status()),
		)

		metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
		metrics.HTTPRequestDuration.Record(ctx, duration, attrs)
	}
}
