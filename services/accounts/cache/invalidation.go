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
	"sync"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
)

// Controller wires external change signals to the cache's reload triggers:
// package, locale, and sync-settings changes restart the catalog side;
// local data changes restart the local side. The trigger calls are
// non-blocking, so running them on the bus dispatch path is safe.
//
// One Controller subscribes once at construction and holds the
// subscriptions until Close.
type Controller struct {
	cache  *AggregationCache
	bus    signal.Source
	logger *slog.Logger

	subIDs    []string
	closeOnce sync.Once
}

// NewController subscribes to bus and returns the controller owning those
// subscriptions.
func NewController(c *AggregationCache, bus signal.Source, logger *slog.Logger) (*Controller, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if bus == nil {
		return nil, ErrNilBus
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctl := &Controller{cache: c, bus: bus, logger: logger}
	ctl.subIDs = []string{
		bus.Subscribe(ctl.onCatalogSignal,
			signal.KindPackageChanged, signal.KindLocaleChanged, signal.KindSyncSettingsChanged),
		bus.Subscribe(ctl.onLocalSignal, signal.KindLocalDataChanged),
	}
	return ctl, nil
}

// Close drops the bus subscriptions. It does not close the cache.
// Idempotent.
func (ctl *Controller) Close() {
	ctl.closeOnce.Do(func() {
		for _, id := range ctl.subIDs {
			ctl.bus.Unsubscribe(id)
		}
	})
}

func (ctl *Controller) onCatalogSignal(e signal.Event) {
	ctl.logger.Debug("catalog invalidation signal",
		"kind", e.Kind.String(), "detail", e.Detail)
	ctl.cache.ReloadCatalog()
}

func (ctl *Controller) onLocalSignal(e signal.Event) {
	ctl.logger.Debug("local invalidation signal",
		"kind", e.Kind.String(), "detail", e.Detail)
	ctl.cache.ReloadLocal()
}
