// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package signal carries the change events that drive cache invalidation:
// external sources emit package, locale, sync-settings, and local-data
// changes; the aggregation layer emits AccountsChanged after every applied
// reload. The Bus is a small synchronous in-process event emitter; DirWatcher
// adapts filesystem activity onto it.
package signal

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a change event.
type Kind int

const (
	// KindUnknown is the zero value; never emitted.
	KindUnknown Kind = iota

	// KindPackageChanged fires when the set of installed descriptor
	// packages changed. Triggers a type-catalog reload.
	KindPackageChanged

	// KindLocaleChanged fires when the display locale changed. Descriptor
	// labels are locale sensitive, so this triggers a type-catalog reload.
	KindLocaleChanged

	// KindSyncSettingsChanged fires when account sync settings changed.
	// Triggers a type-catalog reload.
	KindSyncSettingsChanged

	// KindLocalDataChanged fires when the device-local contact store
	// changed. Triggers a local-account reload.
	KindLocalDataChanged

	// KindAccountsChanged is emitted by the aggregation layer after each
	// applied successful reload, exactly once per completed reload.
	KindAccountsChanged
)

// String returns the kind name for logs and wire payloads.
func (k Kind) String() string {
	switch k {
	case KindPackageChanged:
		return "package_changed"
	case KindLocaleChanged:
		return "locale_changed"
	case KindSyncSettingsChanged:
		return "sync_settings_changed"
	case KindLocalDataChanged:
		return "local_data_changed"
	case KindAccountsChanged:
		return "accounts_changed"
	default:
		return "unknown"
	}
}

// Event is one discrete change notification.
type Event struct {
	// ID uniquely identifies the event instance.
	ID string `json:"id"`

	// Kind classifies the change.
	Kind Kind `json:"kind"`

	// Time is when the event was created.
	Time time.Time `json:"time"`

	// Detail carries an optional human readable cause, e.g. the path that
	// changed or the reload source.
	Detail string `json:"detail,omitempty"`
}

// NewEvent stamps a fresh event with an ID and the current time.
func NewEvent(kind Kind, detail string) Event {
	return Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Time:   time.Now(),
		Detail: detail,
	}
}

// Handler receives events. Handlers run synchronously on the emitting
// goroutine and must not block; anything slow belongs on the handler's own
// goroutine.
type Handler func(Event)

// Filter decides whether a subscription wants an event. A nil filter
// accepts everything the kind set accepts.
type Filter func(Event) bool

// Source is the subscription half of the bus, the capability the
// aggregation core depends on for change notifications.
type Source interface {
	// Subscribe registers a handler for the given kinds (all kinds when
	// empty) and returns the subscription id.
	Subscribe(h Handler, kinds ...Kind) string

	// Unsubscribe removes a subscription. Returns false for unknown ids.
	Unsubscribe(id string) bool
}

// Sink is the emitting half of the bus.
type Sink interface {
	Emit(ev Event)
}
