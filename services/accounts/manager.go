// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package accounts is the query facade over the account aggregation cache:
// typed, filtered views over the merged account list, synchronous type
// lookups against the current catalog snapshot, and the default-account
// rule. It also carries the HTTP surface the accountsd binary mounts.
package accounts

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/cache"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/catalog"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/source"
)

// Manager surfaces typed, filtered views over the aggregation cache.
//
// Description:
//
//	The synchronous accessors (Accounts, GroupWritableAccounts, Contains)
//	block on the merged load and must not be called from a bus handler;
//	the Async variants return the underlying handles. Type lookups answer
//	from the current catalog snapshot without touching the merged list.
//
// Implementations: New returns the live implementation, or the degraded
// empty one when permissions deny source access. Empty returns the
// degraded one directly.
type Manager interface {
	// Accounts returns the merged account identities, optionally narrowed
	// to contact-writable ones. Blocks until the merged load resolves;
	// fails only on join failure, shutdown, or ctx cancellation.
	Accounts(ctx context.Context, writableOnly bool) ([]model.AccountIdentity, error)

	// AccountsAsync returns the raw merged load handle.
	AccountsAsync(ctx context.Context) *cache.PendingLoad[[]model.AccountInfo]

	// FilterAsync returns a derived load narrowed by pred.
	FilterAsync(ctx context.Context, pred model.Predicate) *cache.PendingLoad[[]model.AccountInfo]

	// AccountInfoFor resolves one identity against the current catalog
	// snapshot. Nil only when no catalog has ever been applied; the call
	// kicks the bootstrap so a later call can answer.
	AccountInfoFor(ctx context.Context, id model.AccountIdentity) *model.AccountInfo

	// Catalog returns the current type-catalog snapshot, or nil when no
	// catalog load has been applied yet. Never blocks.
	Catalog() *catalog.Catalog

	// AccountType returns the descriptor registered for the exact
	// type/dataset pair, or nil. No fallback substitution.
	AccountType(accountType, dataSet string) *model.TypeDescriptor

	// AccountTypeFor is AccountType keyed by an identity; a nil identity
	// looks up the empty pair.
	AccountTypeFor(id *model.AccountIdentity) *model.TypeDescriptor

	// KindForMimeType finds the field schema serving mime: the given
	// descriptor first, then the fallback descriptor, then nil.
	KindForMimeType(desc *model.TypeDescriptor, mime string) *model.FieldSchema

	// DefaultAccount applies the default-account rule over the
	// primary-provider accounts: none registered means (nil, nil); a
	// stored preference matching an account by name and type wins;
	// otherwise the first enumerated account.
	DefaultAccount(ctx context.Context) (*model.AccountIdentity, error)

	// GroupWritableAccounts returns identities whose type allows group
	// membership edits. Blocking.
	GroupWritableAccounts(ctx context.Context) ([]model.AccountIdentity, error)

	// WritablePrimaryAccounts returns the primary-provider accounts
	// without datasets, wrapped against the current catalog.
	WritablePrimaryAccounts(ctx context.Context) ([]model.AccountInfo, error)

	// HasNonLocalAccount reports whether the primary source knows at
	// least one account.
	HasNonLocalAccount(ctx context.Context) (bool, error)

	// HasPrimaryAccount reports whether DefaultAccount would return one.
	HasPrimaryAccount(ctx context.Context) bool

	// Contains reports whether the merged view includes id.
	Contains(ctx context.Context, id model.AccountIdentity, writableOnly bool) (bool, error)

	// Close tears down the invalidation subscription and the cache.
	Close()
}

// Deps carries the collaborators the manager is built over. Loader,
// Primary, and Locator are required. Prefs, Permissions, and Bus are
// optional: a nil Permissions allows everything, a nil Bus disables
// signal-driven invalidation, and a nil Prefs means no stored default.
type Deps struct {
	Loader      catalog.Loader
	Primary     source.PrimaryAccountSource
	Locator     source.LocalAccountLocator
	Prefs       source.PreferenceStore
	Permissions source.PermissionProbe
	Bus         *signal.Bus
}

type manager struct {
	cache       *cache.AggregationCache
	ctl         *cache.Controller
	primary     source.PrimaryAccountSource
	prefs       source.PreferenceStore
	primaryType string
	logger      *slog.Logger

	sf        singleflight.Group
	closeOnce sync.Once
}

// New builds a Manager over deps. When the permission probe denies account
// or local-data access the degraded empty manager is returned instead of
// an error: missing permission is a data state, not a failure.
func New(deps Deps, opts ...cache.CacheOption) (Manager, error) {
	if deps.Loader == nil {
		return nil, cache.ErrNilLoader
	}
	if deps.Primary == nil {
		return nil, cache.ErrNilPrimarySource
	}
	if deps.Locator == nil {
		return nil, cache.ErrNilLocalLocator
	}

	options := cache.DefaultCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	perms := deps.Permissions
	if perms == nil {
		perms = source.AllowAllPermissions{}
	}
	if !perms.CanEnumerateAccounts() || !perms.CanReadLocalData() {
		logger.Warn("account source access not permitted, serving empty account view")
		return Empty(), nil
	}

	cacheOpts := opts
	if deps.Bus != nil {
		cacheOpts = append(cacheOpts, cache.WithBus(deps.Bus))
	}
	agg, err := cache.New(deps.Loader, deps.Primary, deps.Locator, cacheOpts...)
	if err != nil {
		return nil, err
	}

	m := &manager{
		cache:       agg,
		primary:     deps.Primary,
		prefs:       deps.Prefs,
		primaryType: options.PrimaryProviderType,
		logger:      logger,
	}
	if deps.Bus != nil {
		ctl, err := cache.NewController(agg, deps.Bus, logger)
		if err != nil {
			agg.Close()
			return nil, err
		}
		m.ctl = ctl
	}
	return m, nil
}

func (m *manager) Accounts(ctx context.Context, writableOnly bool) ([]model.AccountIdentity, error) {
	var pred model.Predicate
	if writableOnly {
		pred = WritableFilter()
	}
	infos, err := m.cache.Filter(ctx, pred).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return model.ExtractIdentities(infos), nil
}

func (m *manager) AccountsAsync(ctx context.Context) *cache.PendingLoad[[]model.AccountInfo] {
	return m.cache.GetAll(ctx)
}

func (m *manager) FilterAsync(ctx context.Context, pred model.Predicate) *cache.PendingLoad[[]model.AccountInfo] {
	return m.cache.Filter(ctx, pred)
}

func (m *manager) AccountInfoFor(ctx context.Context, id model.AccountIdentity) *model.AccountInfo {
	cat := m.cache.CurrentCatalog()
	if cat == nil {
		// Nothing applied yet. Start the bootstrap so the catalog is
		// there for the next caller; this call stays non-blocking.
		m.cache.GetAll(ctx)
		return nil
	}
	info := model.WrapAccount(id, cat.Resolve(id))
	return &info
}

func (m *manager) Catalog() *catalog.Catalog {
	return m.cache.CurrentCatalog()
}

func (m *manager) AccountType(accountType, dataSet string) *model.TypeDescriptor {
	cat := m.cache.CurrentCatalog()
	if cat == nil {
		return nil
	}
	return cat.Type(accountType, dataSet)
}

func (m *manager) AccountTypeFor(id *model.AccountIdentity) *model.TypeDescriptor {
	if id == nil {
		return m.AccountType("", "")
	}
	return m.AccountType(id.Type, id.DataSet)
}

func (m *manager) KindForMimeType(desc *model.TypeDescriptor, mime string) *model.FieldSchema {
	cat := m.cache.CurrentCatalog()
	if cat == nil {
		if desc != nil {
			return desc.KindForMime(mime)
		}
		return nil
	}
	return cat.KindForMime(desc, mime)
}

func (m *manager) DefaultAccount(ctx context.Context) (*model.AccountIdentity, error) {
	v, err, _ := m.sf.Do("default_account", func() (any, error) {
		return m.lookupDefaultAccount(ctx)
	})
	if err != nil {
		return nil, err
	}
	id, _ := v.(*model.AccountIdentity)
	return id, nil
}

// lookupDefaultAccount implements the preference-then-first rule.
func (m *manager) lookupDefaultAccount(ctx context.Context) (*model.AccountIdentity, error) {
	candidates, err := m.primary.EnumerateOfType(ctx, m.primaryType)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if m.prefs != nil {
		if raw, ok := m.prefs.Get(source.DefaultAccountKey); ok {
			stored, err := model.ParseIdentity(raw)
			if err != nil {
				// A malformed stored preference reads as absent.
				m.logger.Debug("ignoring malformed default account preference", "error", err)
			} else {
				for _, id := range candidates {
					if id.Name == stored.Name && id.Type == stored.Type {
						return &id, nil
					}
				}
			}
		}
	}

	first := candidates[0]
	return &first, nil
}

func (m *manager) GroupWritableAccounts(ctx context.Context) ([]model.AccountIdentity, error) {
	infos, err := m.cache.Filter(ctx, GroupWritableFilter()).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return model.ExtractIdentities(infos), nil
}

func (m *manager) WritablePrimaryAccounts(ctx context.Context) ([]model.AccountInfo, error) {
	v, err, _ := m.sf.Do("writable_primary", func() (any, error) {
		ids, err := m.primary.EnumerateOfType(ctx, m.primaryType)
		if err != nil {
			return nil, err
		}
		cat := m.cache.CurrentCatalog()
		if cat == nil {
			cat = catalog.FallbackOnly()
		}
		infos := make([]model.AccountInfo, 0, len(ids))
		for _, id := range ids {
			if id.DataSet != "" {
				continue
			}
			infos = append(infos, model.WrapAccount(id, cat.Resolve(id)))
		}
		model.SortAccounts(infos)
		return infos, nil
	})
	if err != nil {
		return nil, err
	}
	infos, _ := v.([]model.AccountInfo)
	return infos, nil
}

func (m *manager) HasNonLocalAccount(ctx context.Context) (bool, error) {
	ids, err := m.primary.Enumerate(ctx)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (m *manager) HasPrimaryAccount(ctx context.Context) bool {
	id, err := m.DefaultAccount(ctx)
	return err == nil && id != nil
}

func (m *manager) Contains(ctx context.Context, id model.AccountIdentity, writableOnly bool) (bool, error) {
	ids, err := m.Accounts(ctx, writableOnly)
	if err != nil {
		return false, err
	}
	for _, candidate := range ids {
		if candidate == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *manager) Close() {
	m.closeOnce.Do(func() {
		if m.ctl != nil {
			m.ctl.Close()
		}
		m.cache.Close()
	})
}
