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
)

// PendingLoad is a handle to an in-flight or completed background
// computation of T, tagged with the generation counter current when the
// load was requested.
//
// Description:
//
//	A load resolves exactly once; the value and error are written before
//	the ready channel closes, so anything observed after Done() fires is
//	safe to read without further synchronization. Handles held by callers
//	are snapshots: a handle that was superseded by a newer reload still
//	resolves with the result its own computation produced, the cache just
//	never applies that result.
//
// Thread Safety: all methods are safe for concurrent use.
type PendingLoad[T any] struct {
	gen   uint64
	ready chan struct{}

	once  sync.Once
	value T
	err   error
}

// newPendingLoad creates an unresolved handle tagged with gen. Derived
// loads (merges, filters) carry generation zero.
func newPendingLoad[T any](gen uint64) *PendingLoad[T] {
	return &PendingLoad[T]{gen: gen, ready: make(chan struct{})}
}

// resolvedLoad creates a handle that is already resolved. Used for
// fast-fail paths such as operations on a closed cache.
func resolvedLoad[T any](value T, err error) *PendingLoad[T] {
	p := newPendingLoad[T](0)
	p.resolve(value, err)
	return p
}

// Completed returns a handle already resolved with the given result. The
// degraded account manager and tests answer async queries with it.
func Completed[T any](value T, err error) *PendingLoad[T] {
	return resolvedLoad(value, err)
}

// resolve publishes the result. Only the first call has any effect.
func (p *PendingLoad[T]) resolve(value T, err error) {
	p.once.Do(func() {
		p.value = value
		p.err = err
		close(p.ready)
	})
}

// Generation returns the generation tag assigned at creation.
func (p *PendingLoad[T]) Generation() uint64 { return p.gen }

// Done returns a channel closed once the load has resolved.
func (p *PendingLoad[T]) Done() <-chan struct{} { return p.ready }

// Wait blocks until the load resolves or ctx is cancelled. Cancellation
// abandons the wait only; the underlying computation keeps running.
func (p *PendingLoad[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.ready:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryResult reports the result without blocking. ok is false while the
// load is still in flight.
func (p *PendingLoad[T]) TryResult() (value T, err error, ok bool) {
	select {
	case <-p.ready:
		return p.value, p.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
