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
	"log/slog"
	"time"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
)

// CacheOptions configures an AggregationCache.
type CacheOptions struct {
	// Logger receives cache diagnostics. Nil falls back to slog.Default().
	Logger *slog.Logger

	// ExecutorLimit bounds how many source loads run concurrently.
	// Values below 2 are raised to 2 so the two sides can always load in
	// parallel.
	ExecutorLimit int64

	// PrimaryProviderType is the distinguished account type whose
	// writable accounts suppress the null local placeholder in merges.
	PrimaryProviderType string

	// Bus, when non-nil, receives one AccountsChanged event per applied
	// successful reload.
	Bus signal.Sink

	// Clock supplies timestamps for load duration measurement. Overridden
	// in tests.
	Clock func() time.Time
}

// DefaultCacheOptions returns sensible defaults.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		ExecutorLimit:       4,
		PrimaryProviderType: "com.google",
		Clock:               time.Now,
	}
}

// CacheOption is a functional option for configuring AggregationCache.
type CacheOption func(*CacheOptions)

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(o *CacheOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithExecutorLimit bounds concurrent source loads.
func WithExecutorLimit(n int64) CacheOption {
	return func(o *CacheOptions) {
		if n > 0 {
			o.ExecutorLimit = n
		}
	}
}

// WithPrimaryProviderType sets the distinguished primary provider type.
func WithPrimaryProviderType(accountType string) CacheOption {
	return func(o *CacheOptions) {
		if accountType != "" {
			o.PrimaryProviderType = accountType
		}
	}
}

// WithBus sets the sink that receives AccountsChanged notifications.
func WithBus(bus signal.Sink) CacheOption {
	return func(o *CacheOptions) {
		o.Bus = bus
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) CacheOption {
	return func(o *CacheOptions) {
		if clock != nil {
			o.Clock = clock
		}
	}
}
