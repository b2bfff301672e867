// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signal

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscription is one registered handler with its kind set and optional
// filter.
type subscription struct {
	id      string
	handler Handler
	filter  Filter
	kinds   map[Kind]bool // empty means all kinds
}

// wants reports whether the subscription should receive the event.
func (s *subscription) wants(ev Event) bool {
	if len(s.kinds) > 0 && !s.kinds[ev.Kind] {
		return false
	}
	if s.filter != nil && !s.filter(ev) {
		return false
	}
	return true
}

// Bus is a synchronous in-process event emitter.
//
// Description:
//
//	Emit invokes every matching handler on the calling goroutine, in
//	unspecified order. A panicking handler is recovered and logged so one
//	bad subscriber cannot take down the emitter or starve the others.
//	Subscriptions may be added and removed concurrently with emission.
//
// Thread Safety: All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
	logger *slog.Logger
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]*subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for the given kinds (all kinds when empty).
//
// Outputs:
//
//	string - The subscription id, for Unsubscribe. Empty when the bus is
//	closed or the handler is nil.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) string {
	return b.SubscribeWithFilter(h, nil, kinds...)
}

// SubscribeWithFilter registers a handler with an additional predicate over
// the matched events.
func (b *Bus) SubscribeWithFilter(h Handler, f Filter, kinds ...Kind) string {
	if h == nil {
		return ""
	}

	sub := &subscription{
		id:      uuid.NewString(),
		handler: h,
		filter:  f,
		kinds:   make(map[Kind]bool, len(kinds)),
	}
	for _, k := range kinds {
		sub.kinds[k] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ""
	}
	b.subs[sub.id] = sub
	return sub.id
}

// Unsubscribe removes a subscription. Returns false for unknown ids.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	return true
}

// Emit delivers the event to every matching subscription, synchronously on
// the calling goroutine.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.wants(ev) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		b.invoke(sub, ev)
	}
}

// invoke runs one handler with panic isolation.
func (b *Bus) invoke(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("signal handler panicked",
				"subscription_id", sub.id,
				"event_kind", ev.Kind.String(),
				"panic", r)
		}
	}()
	sub.handler(ev)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscriptions and rejects new ones. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string]*subscription)
}

// Recorder is a Sink that records every emitted event, for tests.
//
// Thread Safety: Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Sink.
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOfKind returns the recorded events of one kind.
func (r *Recorder) EventsOfKind(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
