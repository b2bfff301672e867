// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache implements the asynchronous aggregation cache at the heart
// of the accounts service. It owns one refreshable load per source (the
// type catalog plus primary accounts, and the local accounts), joins them
// on demand into a single sorted view, and re-triggers itself on
// invalidation signals without races or lost updates.
//
// Concurrency model:
//
//   - Source loads run on their own goroutines, bounded by a weighted
//     semaphore, and never mutate cache state directly; they post a
//     completion to a channel.
//   - A single apply goroutine consumes completions. It is the only place
//     that applies results, swaps catalog snapshots, starts superseding
//     reloads, and emits notifications, so notification delivery needs no
//     locks.
//   - One mutex guards the per-source generation, running, and dirty
//     fields against trigger-vs-apply races.
//   - There is no hard cancellation: a superseded load runs to completion
//     and its result is discarded by the generation and dirty checks.
//
// Callers must not invoke blocking accessors (PendingLoad.Wait via the
// manager's synchronous API) from a bus handler: handlers run on the apply
// goroutine's emit path, which is also what advances the loads being
// waited on.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/catalog"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/join"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/source"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/telemetry"
)

// sourceKind names the two refreshable sides of the cache.
type sourceKind int

const (
	sourceCatalog sourceKind = iota
	sourceLocal
)

func (s sourceKind) String() string {
	if s == sourceCatalog {
		return "catalog"
	}
	return "local"
}

// catalogResult is what one catalog-side load produces. The catalog is
// present whenever the descriptor load itself succeeded, even if the
// subsequent primary enumeration failed; that keeps the synchronous
// lookup fast path fresh across partial failures.
type catalogResult struct {
	catalog  *catalog.Catalog
	accounts []model.AccountIdentity
}

// completion is one finished source load, posted to the apply goroutine.
type completion struct {
	side    sourceKind
	gen     uint64
	cat     catalogResult
	local   []model.AccountIdentity
	err     error
	elapsed time.Duration
}

// sideState is the per-source bookkeeping the mutex guards.
type sideState struct {
	// gen increments on every accepted trigger. A completion whose gen no
	// longer matches is stale and must not touch cache state.
	gen uint64

	// running is true while a load for this side is in flight.
	running bool

	// dirty records that a trigger arrived mid-flight. The running load's
	// completion is then discarded and one fresh load starts.
	dirty bool
}

// AggregationCache owns the current PendingLoad for each source plus the
// memoized merged load.
//
// Thread Safety: all exported methods are safe for concurrent use.
type AggregationCache struct {
	loader  catalog.Loader
	primary source.PrimaryAccountSource
	locator source.LocalAccountLocator
	opts    CacheOptions
	logger  *slog.Logger
	sem     *semaphore.Weighted

	mu             sync.Mutex
	closed         bool
	cat            sideState
	local          sideState
	catLoad        *PendingLoad[catalogResult]
	localLoad      *PendingLoad[[]model.AccountIdentity]
	merged         *PendingLoad[[]model.AccountInfo]
	mergedCatGen   uint64
	mergedLocalGen uint64

	// snapshot is the latest successfully loaded catalog, readable without
	// the mutex. Nil until the first catalog load lands.
	snapshot atomic.Pointer[catalog.Catalog]

	completions chan completion
	stop        chan struct{}
	stopOnce    sync.Once
	applyDone   chan struct{}
}

// New creates an AggregationCache over the given collaborators. Loads are
// lazy: nothing runs until the first GetAll or reload trigger.
func New(loader catalog.Loader, primary source.PrimaryAccountSource, locator source.LocalAccountLocator, opts ...CacheOption) (*AggregationCache, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	if primary == nil {
		return nil, ErrNilPrimarySource
	}
	if locator == nil {
		return nil, ErrNilLocalLocator
	}

	options := DefaultCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.ExecutorLimit < 2 {
		options.ExecutorLimit = 2
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &AggregationCache{
		loader:      loader,
		primary:     primary,
		locator:     locator,
		opts:        options,
		logger:      logger,
		sem:         semaphore.NewWeighted(options.ExecutorLimit),
		completions: make(chan completion),
		stop:        make(chan struct{}),
		applyDone:   make(chan struct{}),
	}
	go c.applyLoop()
	return c, nil
}

// GetAll returns the handle for the merged, sorted account list.
//
// Description:
//
//	The first call bootstraps both source loads. Later calls return the
//	memoized merged load, rebuilding it only when a source generation
//	moved since the last join. The merged load resolves once both sides
//	resolved: one failed side contributes an empty list, two failed sides
//	fail the load with an error matching ErrJoinFailed.
//
// GetAll itself never blocks; resolution is observed via the returned
// handle.
func (c *AggregationCache) GetAll(ctx context.Context) *PendingLoad[[]model.AccountInfo] {
	if err := ctx.Err(); err != nil {
		return resolvedLoad[[]model.AccountInfo](nil, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return resolvedLoad[[]model.AccountInfo](nil, ErrCacheClosed)
	}

	// Lazy bootstrap: the first interest in the merged view starts both
	// sides.
	if c.catLoad == nil {
		c.reloadCatalogLocked()
	}
	if c.localLoad == nil {
		c.reloadLocalLocked()
	}

	if c.merged == nil || c.mergedCatGen != c.cat.gen || c.mergedLocalGen != c.local.gen {
		c.buildMergedLocked()
	}
	return c.merged
}

// Filter returns a derived load that applies pred to GetAll's result.
// A nil pred passes everything through.
func (c *AggregationCache) Filter(ctx context.Context, pred model.Predicate) *PendingLoad[[]model.AccountInfo] {
	base := c.GetAll(ctx)
	out := newPendingLoad[[]model.AccountInfo](0)
	go func() {
		<-base.Done()
		infos, err, _ := base.TryResult()
		if err != nil {
			out.resolve(nil, err)
			return
		}
		out.resolve(model.FilterAccounts(infos, pred), nil)
	}()
	return out
}

// CurrentCatalog returns the latest successfully loaded catalog snapshot,
// or nil if no catalog load has landed yet. This is the synchronous fast
// path for type lookups; it never blocks.
func (c *AggregationCache) CurrentCatalog() *catalog.Catalog {
	return c.snapshot.Load()
}

// ReloadCatalog requests a refresh of the catalog side (descriptors plus
// primary accounts). Triggers while a catalog load is in flight coalesce
// into one follow-up load.
func (c *AggregationCache) ReloadCatalog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.reloadCatalogLocked()
}

// ReloadLocal requests a refresh of the local account side. Coalescing
// behaves exactly as for ReloadCatalog.
func (c *AggregationCache) ReloadLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.reloadLocalLocked()
}

// Close stops the apply goroutine and resolves every outstanding handle
// with ErrCacheClosed so no waiter hangs. In-flight source loads run to
// completion and their results are dropped. Idempotent.
func (c *AggregationCache) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		// Invalidate any in-flight completion.
		c.cat.gen++
		c.local.gen++
		catLoad, localLoad, merged := c.catLoad, c.localLoad, c.merged
		c.mu.Unlock()

		if catLoad != nil {
			catLoad.resolve(catalogResult{}, ErrCacheClosed)
		}
		if localLoad != nil {
			localLoad.resolve(nil, ErrCacheClosed)
		}
		if merged != nil {
			merged.resolve(nil, ErrCacheClosed)
		}

		close(c.stop)
		<-c.applyDone
	})
}

// reloadCatalogLocked implements the trigger rules for the catalog side.
// Caller holds c.mu.
func (c *AggregationCache) reloadCatalogLocked() {
	if c.cat.running {
		c.cat.dirty = true
		c.logger.Debug("catalog reload coalesced", "generation", c.cat.gen)
		return
	}
	c.cat.gen++
	c.cat.running = true
	c.cat.dirty = false
	c.catLoad = newPendingLoad[catalogResult](c.cat.gen)
	go c.runCatalogLoad(c.cat.gen)
	c.logger.Debug("catalog load started", "generation", c.cat.gen)
}

// reloadLocalLocked implements the trigger rules for the local side.
// Caller holds c.mu.
func (c *AggregationCache) reloadLocalLocked() {
	if c.local.running {
		c.local.dirty = true
		c.logger.Debug("local reload coalesced", "generation", c.local.gen)
		return
	}
	c.local.gen++
	c.local.running = true
	c.local.dirty = false
	c.localLoad = newPendingLoad[[]model.AccountIdentity](c.local.gen)
	go c.runLocalLoad(c.local.gen)
	c.logger.Debug("local load started", "generation", c.local.gen)
}

// runCatalogLoad executes one catalog-side load: descriptor load, then
// primary account enumeration on the same goroutine. A failed descriptor
// load fails the whole side; a failed enumeration still delivers the
// parsed catalog so the snapshot fast path stays fresh.
func (c *AggregationCache) runCatalogLoad(gen uint64) {
	ctx, span := startLoadSpan(context.Background(), sourceCatalog, gen)
	defer span.End()

	start := c.opts.Clock()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return
	}
	var res catalogResult
	loaded, err := c.loader.Load(ctx)
	if err == nil {
		res.catalog = loaded
		res.accounts, err = c.primary.Enumerate(ctx)
	}
	c.sem.Release(1)

	span.SetAttributes(attribute.Bool("accounts.success", err == nil))
	c.deliver(completion{
		side:    sourceCatalog,
		gen:     gen,
		cat:     res,
		err:     err,
		elapsed: c.opts.Clock().Sub(start),
	})
}

// runLocalLoad executes one local-side load.
func (c *AggregationCache) runLocalLoad(gen uint64) {
	ctx, span := startLoadSpan(context.Background(), sourceLocal, gen)
	defer span.End()

	start := c.opts.Clock()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return
	}
	ids, err := c.locator.Locate(ctx)
	c.sem.Release(1)

	span.SetAttributes(attribute.Bool("accounts.success", err == nil))
	c.deliver(completion{
		side:    sourceLocal,
		gen:     gen,
		local:   ids,
		err:     err,
		elapsed: c.opts.Clock().Sub(start),
	})
}

// deliver posts a completion to the apply goroutine, dropping it if the
// cache shut down first (Close already resolved every handle).
func (c *AggregationCache) deliver(comp completion) {
	select {
	case c.completions <- comp:
	case <-c.stop:
	}
}

// applyLoop is the single apply goroutine.
func (c *AggregationCache) applyLoop() {
	defer close(c.applyDone)
	for {
		select {
		case <-c.stop:
			return
		case comp := <-c.completions:
			c.apply(comp)
		}
	}
}

// apply is the only code that marks loads applied, swaps the catalog
// snapshot, starts superseding reloads, and emits notifications. Runs on
// the apply goroutine.
func (c *AggregationCache) apply(comp completion) {
	ctx := context.Background()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	side := &c.cat
	if comp.side == sourceLocal {
		side = &c.local
	}

	if comp.gen != side.gen {
		current := side.gen
		c.mu.Unlock()
		recordStaleDiscard(ctx, comp.side)
		c.logger.Debug("stale completion discarded",
			"source", comp.side.String(), "generation", comp.gen, "current_generation", current)
		return
	}

	if side.dirty {
		// A trigger arrived mid-flight. The result is superseded: resolve
		// the old handle so its waiters wake, apply nothing, emit nothing,
		// and start the one load the coalesced triggers asked for.
		resolveOld := c.swapLoadLocked(comp, side)
		c.mu.Unlock()

		resolveOld()
		recordSuperseded(ctx, comp.side)
		recordReload(ctx, comp.side, comp.elapsed, comp.err == nil)
		c.logger.Debug("superseded completion discarded, reloading",
			"source", comp.side.String(), "generation", comp.gen)
		return
	}

	// Current and wanted: apply it.
	side.running = false
	var resolveCurrent func()
	if comp.side == sourceCatalog {
		load := c.catLoad
		resolveCurrent = func() { load.resolve(comp.cat, comp.err) }
		if comp.cat.catalog != nil {
			c.snapshot.Store(comp.cat.catalog)
		}
	} else {
		load := c.localLoad
		resolveCurrent = func() { load.resolve(comp.local, comp.err) }
	}
	c.mu.Unlock()

	resolveCurrent()
	recordReload(ctx, comp.side, comp.elapsed, comp.err == nil)

	if comp.err != nil {
		c.logger.Warn("source load failed",
			"source", comp.side.String(), "generation", comp.gen, "error", comp.err)
		return
	}
	c.logger.Info("source load applied",
		"source", comp.side.String(), "generation", comp.gen, "duration", comp.elapsed)
	if c.opts.Bus != nil {
		c.opts.Bus.Emit(signal.NewEvent(signal.KindAccountsChanged, comp.side.String()))
		recordNotification(ctx, comp.side)
	}
}

// swapLoadLocked replaces the superseded load with a fresh one and spawns
// its run, returning a closure that resolves the old handle with the
// superseded result. Caller holds c.mu; dirty is consumed here.
func (c *AggregationCache) swapLoadLocked(comp completion, side *sideState) func() {
	side.dirty = false
	side.gen++
	gen := side.gen

	if comp.side == sourceCatalog {
		old := c.catLoad
		c.catLoad = newPendingLoad[catalogResult](gen)
		go c.runCatalogLoad(gen)
		return func() { old.resolve(comp.cat, comp.err) }
	}
	old := c.localLoad
	c.localLoad = newPendingLoad[[]model.AccountIdentity](gen)
	go c.runLocalLoad(gen)
	return func() { old.resolve(comp.local, comp.err) }
}

// buildMergedLocked memoizes a fresh merged load over the current source
// handles. Caller holds c.mu.
func (c *AggregationCache) buildMergedLocked() {
	merged := newPendingLoad[[]model.AccountInfo](0)
	catLoad := c.catLoad
	localLoad := c.localLoad
	go c.joinLoads(merged, catLoad, localLoad)

	c.merged = merged
	c.mergedCatGen = c.cat.gen
	c.mergedLocalGen = c.local.gen
}

// joinLoads waits for both sides and resolves the merged handle with the
// combined, sorted account list.
func (c *AggregationCache) joinLoads(merged *PendingLoad[[]model.AccountInfo], catLoad *PendingLoad[catalogResult], localLoad *PendingLoad[[]model.AccountIdentity]) {
	<-catLoad.Done()
	<-localLoad.Done()

	catRes, catErr, _ := catLoad.TryResult()
	localIDs, localErr, _ := localLoad.TryResult()

	// Shutdown resolved the inputs; pass that through without treating it
	// as a data failure.
	if errors.Is(catErr, ErrCacheClosed) || errors.Is(localErr, ErrCacheClosed) {
		merged.resolve(nil, ErrCacheClosed)
		return
	}

	ctx, span := startJoinSpan(context.Background())
	defer span.End()

	if catErr != nil && localErr != nil {
		recordJoinFailure(ctx)
		span.SetAttributes(attribute.Bool("accounts.success", false))
		telemetry.LoggerWithTrace(ctx, c.logger).Error("account join failed",
			"catalog_error", catErr, "local_error", localErr)
		merged.resolve(nil, &JoinError{CatalogErr: catErr, LocalErr: localErr})
		return
	}

	// Partial failure: the failed side contributes an empty list. Local
	// identities still resolve against the parsed catalog when only the
	// enumeration failed, and against the fallback-only catalog when the
	// descriptor load itself failed.
	cat := catRes.catalog
	if cat == nil {
		cat = catalog.FallbackOnly()
	}
	var primaryIDs []model.AccountIdentity
	if catErr == nil {
		primaryIDs = catRes.accounts
	}
	if localErr != nil {
		localIDs = nil
	}

	infos := join.Merge(cat, c.opts.PrimaryProviderType, primaryIDs, localIDs)
	span.SetAttributes(
		attribute.Bool("accounts.success", true),
		attribute.Int("accounts.merged", len(infos)),
	)
	merged.resolve(infos, nil)
}
