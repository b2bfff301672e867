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
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/catalog"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
)

var (
	idAlice  = model.AccountIdentity{Name: "alice@gmail.com", Type: "com.google"}
	idBobDev = model.AccountIdentity{Name: "bob", Type: "local.device"}

	errCatalogDown = errors.New("catalog store down")
	errPrimaryDown = errors.New("account registry down")
	errLocalDown   = errors.New("local store down")
)

// catalogWithLabel builds a two-type catalog whose google label encodes
// which load produced it, so tests can tell generations apart.
func catalogWithLabel(googleLabel string) *catalog.Catalog {
	google := model.NewTypeDescriptor("com.google", "", googleLabel).
		WithCapabilities(true, true, false)
	device := model.NewTypeDescriptor("local.device", "", "My Device").
		WithCapabilities(true, true, false)
	return catalog.New([]*model.TypeDescriptor{google, device}, nil)
}

// scriptedLoader counts Load calls and can gate each call on a channel
// receive so tests control exactly when loads complete.
type scriptedLoader struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (*catalog.Catalog, error)
	gate  chan struct{}
}

func (l *scriptedLoader) Load(ctx context.Context) (*catalog.Catalog, error) {
	l.mu.Lock()
	call := l.calls
	l.calls++
	fn, gate := l.fn, l.gate
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return fn(call)
}

func (l *scriptedLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type scriptedPrimary struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) ([]model.AccountIdentity, error)
}

func (s *scriptedPrimary) Enumerate(ctx context.Context) ([]model.AccountIdentity, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	fn := s.fn
	s.mu.Unlock()
	return fn(call)
}

func (s *scriptedPrimary) EnumerateOfType(ctx context.Context, accountType string) ([]model.AccountIdentity, error) {
	all, err := s.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, id := range all {
		if id.Type == accountType {
			out = append(out, id)
		}
	}
	return out, nil
}

type scriptedLocator struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) ([]model.AccountIdentity, error)
}

func (s *scriptedLocator) Locate(ctx context.Context) ([]model.AccountIdentity, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	fn := s.fn
	s.mu.Unlock()
	return fn(call)
}

func (s *scriptedLocator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type cacheFixture struct {
	loader  *scriptedLoader
	primary *scriptedPrimary
	locator *scriptedLocator
	bus     *signal.Recorder
	cache   *AggregationCache
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture builds a cache over scripted sources. The default scripts
// serve one writable google account on the primary side and the null
// placeholder plus one device account on the local side.
func newFixture(t *testing.T, mutate func(*cacheFixture)) *cacheFixture {
	t.Helper()
	f := &cacheFixture{
		loader: &scriptedLoader{fn: func(int) (*catalog.Catalog, error) {
			return catalogWithLabel("Google"), nil
		}},
		primary: &scriptedPrimary{fn: func(int) ([]model.AccountIdentity, error) {
			return []model.AccountIdentity{idAlice}, nil
		}},
		locator: &scriptedLocator{fn: func(int) ([]model.AccountIdentity, error) {
			return []model.AccountIdentity{model.NullAccount, idBobDev}, nil
		}},
		bus: signal.NewRecorder(),
	}
	if mutate != nil {
		mutate(f)
	}

	c, err := New(f.loader, f.primary, f.locator,
		WithLogger(quietLogger()),
		WithBus(f.bus),
		WithPrimaryProviderType("com.google"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.cache = c
	t.Cleanup(c.Close)
	return f
}

// waitLoaderCalls polls until the loader has started at least n loads.
func waitLoaderCalls(t *testing.T, l *scriptedLoader, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if l.callCount() >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d loader calls, have %d", n, l.callCount())
}

// waitNotifications polls until the recorder holds at least n
// AccountsChanged events.
func waitNotifications(t *testing.T, rec *signal.Recorder, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.EventsOfKind(signal.KindAccountsChanged)) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d notifications, have %d",
		n, len(rec.EventsOfKind(signal.KindAccountsChanged)))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAggregationCache_New_Validation(t *testing.T) {
	loader := &scriptedLoader{fn: func(int) (*catalog.Catalog, error) { return nil, nil }}
	primary := &scriptedPrimary{fn: func(int) ([]model.AccountIdentity, error) { return nil, nil }}
	locator := &scriptedLocator{fn: func(int) ([]model.AccountIdentity, error) { return nil, nil }}

	if _, err := New(nil, primary, locator); !errors.Is(err, ErrNilLoader) {
		t.Errorf("err = %v, want ErrNilLoader", err)
	}
	if _, err := New(loader, nil, locator); !errors.Is(err, ErrNilPrimarySource) {
		t.Errorf("err = %v, want ErrNilPrimarySource", err)
	}
	if _, err := New(loader, primary, nil); !errors.Is(err, ErrNilLocalLocator) {
		t.Errorf("err = %v, want ErrNilLocalLocator", err)
	}
}

func TestAggregationCache_BootstrapMergesBothSources(t *testing.T) {
	f := newFixture(t, nil)

	infos, err := f.cache.GetAll(waitCtx(t)).Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// The writable google account suppresses the null placeholder; the
	// device account survives; order is display name.
	if len(infos) != 2 {
		t.Fatalf("merged len = %d, want 2: %v", len(infos), infos)
	}
	if infos[0].Identity != idAlice {
		t.Errorf("infos[0] = %v, want alice", infos[0].Identity)
	}
	if infos[1].Identity != idBobDev {
		t.Errorf("infos[1] = %v, want bob", infos[1].Identity)
	}
	if infos[0].Type == nil || infos[0].Type.Label != "Google" {
		t.Errorf("alice descriptor = %+v, want Google label", infos[0].Type)
	}

	// Bootstrap loads are ordinary reloads: one notification per side.
	waitNotifications(t, f.bus, 2)
	if got := f.cache.CurrentCatalog(); got == nil {
		t.Error("CurrentCatalog = nil after successful bootstrap")
	}
}

func TestAggregationCache_KeepsPlaceholderWithoutWritablePrimary(t *testing.T) {
	f := newFixture(t, func(f *cacheFixture) {
		f.primary.fn = func(int) ([]model.AccountIdentity, error) {
			return nil, nil
		}
	})

	infos, err := f.cache.GetAll(waitCtx(t)).Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("merged len = %d, want 2: %v", len(infos), infos)
	}
	foundNull := false
	for _, info := range infos {
		if info.Identity.IsNull() {
			foundNull = true
		}
	}
	if !foundNull {
		t.Error("null placeholder missing despite empty primary side")
	}
}

func TestAggregationCache_GetAllMemoizes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := waitCtx(t)

	first := f.cache.GetAll(ctx)
	second := f.cache.GetAll(ctx)
	if first != second {
		t.Error("GetAll built a second merged load without any invalidation")
	}

	if _, err := first.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// A reload moves the local generation, so the next GetAll rebuilds.
	f.cache.ReloadLocal()
	third := f.cache.GetAll(ctx)
	if third == first {
		t.Error("GetAll returned the stale merged load after ReloadLocal")
	}
	if _, err := third.Wait(ctx); err != nil {
		t.Fatalf("Wait after reload: %v", err)
	}
}

func TestAggregationCache_CatalogSideFailure(t *testing.T) {
	f := newFixture(t, func(f *cacheFixture) {
		f.loader.fn = func(int) (*catalog.Catalog, error) {
			return nil, errCatalogDown
		}
	})

	infos, err := f.cache.GetAll(waitCtx(t)).Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("one-sided failure must not fail the join: %v", err)
	}

	// Catalog side contributes nothing; local identities resolve against
	// the fallback-only catalog. No writable primary means the
	// placeholder stays.
	if len(infos) != 2 {
		t.Fatalf("merged len = %d, want 2: %v", len(infos), infos)
	}
	for _, info := range infos {
		if info.Type == nil {
			t.Fatalf("unresolved descriptor for %v", info.Identity)
		}
		if info.Type.Label != catalog.FallbackLabel {
			t.Errorf("descriptor label = %q, want fallback", info.Type.Label)
		}
	}

	if f.cache.CurrentCatalog() != nil {
		t.Error("CurrentCatalog non-nil after catalog load failure")
	}

	// Only the local side applied successfully: exactly one notification.
	waitNotifications(t, f.bus, 1)
	time.Sleep(50 * time.Millisecond)
	if n := len(f.bus.EventsOfKind(signal.KindAccountsChanged)); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestAggregationCache_LocalSideFailure(t *testing.T) {
	f := newFixture(t, func(f *cacheFixture) {
		f.locator.fn = func(int) ([]model.AccountIdentity, error) {
			return nil, errLocalDown
		}
	})

	infos, err := f.cache.GetAll(waitCtx(t)).Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("one-sided failure must not fail the join: %v", err)
	}
	if len(infos) != 1 || infos[0].Identity != idAlice {
		t.Fatalf("merged = %v, want just alice", infos)
	}

	waitNotifications(t, f.bus, 1)
	time.Sleep(50 * time.Millisecond)
	if n := len(f.bus.EventsOfKind(signal.KindAccountsChanged)); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestAggregationCache_BothSidesFail(t *testing.T) {
	f := newFixture(t, func(f *cacheFixture) {
		f.loader.fn = func(int) (*catalog.Catalog, error) { return nil, errCatalogDown }
		f.locator.fn = func(int) ([]model.AccountIdentity, error) { return nil, errLocalDown }
	})

	_, err := f.cache.GetAll(waitCtx(t)).Wait(waitCtx(t))
	if !errors.Is(err, ErrJoinFailed) {
		t.Fatalf("err = %v, want ErrJoinFailed match", err)
	}

	var joinErr *JoinError
	if !errors.As(err, &joinErr) {
		t.Fatalf("err %v does not unwrap to *JoinError", err)
	}
	if !errors.Is(joinErr.CatalogErr, errCatalogDown) {
		t.Errorf("CatalogErr = %v", joinErr.CatalogErr)
	}
	if !errors.Is(joinErr.LocalErr, errLocalDown) {
		t.Errorf("LocalErr = %v", joinErr.LocalErr)
	}

	// Failures never notify.
	time.Sleep(100 * time.Millisecond)
	if n := len(f.bus.EventsOfKind(signal.KindAccountsChanged)); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}

func TestAggregationCache_EnumerationFailureKeepsCatalogSnapshot(t *testing.T) {
	f := newFixture(t, func(f *cacheFixture) {
		f.primary.fn = func(int) ([]model.AccountIdentity, error) {
			return nil, errPrimaryDown
		}
		f.locator.fn = func(int) ([]model.AccountIdentity, error) {
			return []model.AccountIdentity{idBobDev}, nil
		}
	})

	infos, err := f.cache.GetAll(waitCtx(t)).Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// The catalog parsed even though enumeration failed, so the device
	// identity resolves against the real descriptor, not the fallback.
	if len(infos) != 1 || infos[0].Identity != idBobDev {
		t.Fatalf("merged = %v, want just bob", infos)
	}
	if infos[0].Type.Label != "My Device" {
		t.Errorf("descriptor label = %q, want My Device", infos[0].Type.Label)
	}

	if f.cache.CurrentCatalog() == nil {
		t.Error("catalog snapshot missing after partial catalog-side failure")
	}

	// The catalog side failed overall, so only the local apply notifies.
	waitNotifications(t, f.bus, 1)
	time.Sleep(50 * time.Millisecond)
	if n := len(f.bus.EventsOfKind(signal.KindAccountsChanged)); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestAggregationCache_CoalescedTriggersOneFollowUpLoad(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, func(f *cacheFixture) {
		f.loader.gate = gate
		f.loader.fn = func(call int) (*catalog.Catalog, error) {
			switch call {
			case 0:
				return catalogWithLabel("Gen1"), nil
			case 1:
				return catalogWithLabel("Gen2"), nil
			default:
				return catalogWithLabel("Gen3"), nil
			}
		}
		f.locator.fn = func(int) ([]model.AccountIdentity, error) {
			return nil, nil
		}
	})
	ctx := waitCtx(t)

	// Bootstrap: release the first catalog load and settle.
	m1 := f.cache.GetAll(ctx)
	gate <- struct{}{}
	infos, err := m1.Wait(ctx)
	if err != nil {
		t.Fatalf("bootstrap Wait: %v", err)
	}
	if infos[0].Type.Label != "Gen1" {
		t.Fatalf("bootstrap label = %q, want Gen1", infos[0].Type.Label)
	}
	waitNotifications(t, f.bus, 2)

	// One reload starts a new load; three more triggers while it is in
	// flight must coalesce instead of spawning work.
	f.cache.ReloadCatalog()
	waitLoaderCalls(t, f.loader, 2)
	f.cache.ReloadCatalog()
	f.cache.ReloadCatalog()
	f.cache.ReloadCatalog()
	if n := f.loader.callCount(); n != 2 {
		t.Fatalf("loader calls = %d during coalesced burst, want 2", n)
	}

	// The merged view built during the burst waits on the in-flight load.
	m2 := f.cache.GetAll(ctx)

	// Completing the in-flight load: its result is superseded. Waiters on
	// the old handle still wake with its data, but nothing is applied and
	// nobody is notified.
	gate <- struct{}{}
	infos, err = m2.Wait(ctx)
	if err != nil {
		t.Fatalf("superseded Wait: %v", err)
	}
	if infos[0].Type.Label != "Gen2" {
		t.Errorf("superseded waiters saw %q, want Gen2", infos[0].Type.Label)
	}
	if got := f.cache.CurrentCatalog().Type("com.google", "").Label; got != "Gen1" {
		t.Errorf("snapshot label = %q after superseded completion, want Gen1 still", got)
	}
	if n := len(f.bus.EventsOfKind(signal.KindAccountsChanged)); n != 2 {
		t.Errorf("notifications = %d after superseded completion, want 2", n)
	}

	// The follow-up load applies and notifies exactly once.
	gate <- struct{}{}
	waitNotifications(t, f.bus, 3)
	infos, err = f.cache.GetAll(ctx).Wait(ctx)
	if err != nil {
		t.Fatalf("final Wait: %v", err)
	}
	if infos[0].Type.Label != "Gen3" {
		t.Errorf("final label = %q, want Gen3", infos[0].Type.Label)
	}
	if got := f.cache.CurrentCatalog().Type("com.google", "").Label; got != "Gen3" {
		t.Errorf("snapshot label = %q, want Gen3", got)
	}

	// Four triggers, one in-flight load, one follow-up: three loads total
	// including bootstrap, and no further notifications.
	if n := f.loader.callCount(); n != 3 {
		t.Errorf("loader calls = %d, want 3", n)
	}
	time.Sleep(100 * time.Millisecond)
	if n := len(f.bus.EventsOfKind(signal.KindAccountsChanged)); n != 3 {
		t.Errorf("notifications = %d, want 3", n)
	}
}

func TestAggregationCache_StaleCompletionDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := waitCtx(t)

	if _, err := f.cache.GetAll(ctx).Wait(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	waitNotifications(t, f.bus, 2)
	before := f.cache.CurrentCatalog()

	// Hand the apply path a completion whose generation was long since
	// retired. It must not touch the snapshot or notify.
	f.cache.apply(completion{
		side: sourceCatalog,
		gen:  999,
		cat:  catalogResult{catalog: catalogWithLabel("Ghost")},
	})

	if f.cache.CurrentCatalog() != before {
		t.Error("stale completion replaced the catalog snapshot")
	}
	if n := len(f.bus.EventsOfKind(signal.KindAccountsChanged)); n != 2 {
		t.Errorf("notifications = %d, want 2", n)
	}
}

func TestAggregationCache_CloseResolvesWaiters(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, func(f *cacheFixture) {
		f.loader.gate = gate
	})
	ctx := waitCtx(t)

	merged := f.cache.GetAll(ctx)
	f.cache.Close()

	if _, err := merged.Wait(ctx); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("merged Wait after Close = %v, want ErrCacheClosed", err)
	}

	// Post-close operations fast-fail and schedule nothing.
	calls := f.loader.callCount()
	f.cache.ReloadCatalog()
	f.cache.ReloadLocal()
	if _, err := f.cache.GetAll(ctx).Wait(ctx); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("GetAll after Close = %v, want ErrCacheClosed", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := f.loader.callCount(); n != calls {
		t.Errorf("loader calls moved from %d to %d after Close", calls, n)
	}

	// Unblock the abandoned load; its completion is dropped.
	close(gate)
	f.cache.Close() // idempotent
}

func TestAggregationCache_FilterAppliesPredicate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := waitCtx(t)

	nonNull := func(info model.AccountInfo) bool { return !info.Identity.IsNull() }
	infos, err := f.cache.Filter(ctx, nonNull).Wait(ctx)
	if err != nil {
		t.Fatalf("Filter Wait: %v", err)
	}
	for _, info := range infos {
		if info.Identity.IsNull() {
			t.Errorf("predicate let %v through", info.Identity)
		}
	}

	all, err := f.cache.Filter(ctx, nil).Wait(ctx)
	if err != nil {
		t.Fatalf("nil-predicate Filter: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("nil-predicate result len = %d, want 2", len(all))
	}
}

func TestAggregationCache_WaitHonorsCallerContext(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, func(f *cacheFixture) {
		f.loader.gate = gate
	})

	merged := f.cache.GetAll(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := merged.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want DeadlineExceeded", err)
	}

	// The load was not cancelled; releasing it resolves the same handle.
	gate <- struct{}{}
	infos, err := merged.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if len(infos) == 0 {
		t.Error("second Wait returned empty result")
	}
}

func TestAggregationCache_ConcurrentGetAll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := waitCtx(t)

	var wg sync.WaitGroup
	results := make([][]model.AccountInfo, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			infos, err := f.cache.GetAll(ctx).Wait(ctx)
			if err != nil {
				t.Errorf("goroutine %d: %v", n, err)
				return
			}
			results[n] = infos
		}(i)
	}
	wg.Wait()

	for i, infos := range results {
		if len(infos) != len(results[0]) {
			t.Fatalf("goroutine %d saw %d accounts, goroutine 0 saw %d",
				i, len(infos), len(results[0]))
		}
		for j := range infos {
			if infos[j].Identity != results[0][j].Identity {
				t.Fatalf("goroutine %d order diverged at %d", i, j)
			}
		}
	}
}
