// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package accounts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/cache"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/catalog"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/source"
)

// ServiceConfig configures the accounts service.
type ServiceConfig struct {
	// CatalogDir is the directory scanned for type descriptor files.
	// Default: "./descriptors"
	CatalogDir string

	// AccountsFile is an optional YAML file listing the registered and
	// device-local accounts. When empty the service serves only the
	// device-local placeholder account.
	AccountsFile string

	// PrefsFile is an optional YAML file holding stored preferences such
	// as the default account key.
	PrefsFile string

	// PrimaryProviderType is the account type treated as the primary
	// provider for default-account selection and placeholder dedup.
	// Default: "com.google"
	PrimaryProviderType string

	// ExecutorLimit caps concurrently running source loads.
	// Default: 4 (values below 2 are raised to 2)
	ExecutorLimit int64

	// WatchDebounce is the quiet period before a burst of file changes
	// collapses into one invalidation signal.
	// Default: 500ms
	WatchDebounce time.Duration

	// DisableWatch turns filesystem invalidation off. Refreshes then
	// happen only through POST /v1/accounts/reload.
	DisableWatch bool

	// WarmStart kicks the first aggregation during construction instead
	// of waiting for the first query.
	// Default: true
	WarmStart bool

	// Permissions gates source access. Nil grants everything; a denial
	// yields the valid empty account view instead of an error.
	Permissions source.PermissionProbe

	// Logger receives service logs. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CatalogDir:          "./descriptors",
		PrimaryProviderType: "com.google",
		ExecutorLimit:       4,
		WatchDebounce:       500 * time.Millisecond,
		WarmStart:           true,
	}
}

// Service wires the aggregation cache, its sources, the change bus and the
// filesystem watcher into one unit the HTTP layer serves.
//
// Thread Safety:
//
//	Service is safe for concurrent use once NewService returns. Close may
//	be called once; requests racing a Close resolve with a shutdown error.
type Service struct {
	cfg    ServiceConfig
	logger *slog.Logger

	// Bus carries change signals between the watcher, the reload endpoint
	// and the cache's invalidation controller.
	Bus *signal.Bus

	// Manager is the query facade over the aggregation cache.
	Manager Manager

	watcher   *signal.DirWatcher
	closeOnce sync.Once
}

// NewService creates the accounts service.
//
// Description:
//
//	Builds the descriptor loader, account sources and preference store
//	from the configuration, wires them into a Manager, and starts the
//	filesystem watcher that feeds invalidation signals onto the bus.
//	A missing preference file degrades to "no stored preferences"; a
//	missing watch path is a configuration error and fails construction.
//
// Inputs:
//
//	cfg - Service configuration
//
// Outputs:
//
//	*Service - The wired service
//	error - Non-nil if a dependency is misconfigured
func NewService(cfg ServiceConfig) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CatalogDir == "" {
		cfg.CatalogDir = DefaultServiceConfig().CatalogDir
	}
	if cfg.PrimaryProviderType == "" {
		cfg.PrimaryProviderType = DefaultServiceConfig().PrimaryProviderType
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = DefaultServiceConfig().WatchDebounce
	}

	bus := signal.NewBus(logger)
	loader := catalog.NewYAMLLoader(cfg.CatalogDir, logger)

	var (
		primary source.PrimaryAccountSource
		locator source.LocalAccountLocator
	)
	if cfg.AccountsFile != "" {
		fs := source.NewFileSource(cfg.AccountsFile, logger)
		primary, locator = fs, fs
	} else {
		ss := source.NewStaticSource(nil, []model.AccountIdentity{model.NullAccount})
		primary, locator = ss, ss
	}

	var prefs source.PreferenceStore
	if cfg.PrefsFile != "" {
		p, err := source.NewFilePrefs(cfg.PrefsFile)
		if err != nil {
			logger.Warn("preference store unavailable, continuing without stored preferences",
				"path", cfg.PrefsFile, "error", err)
		} else {
			prefs = p
		}
	}

	mgr, err := New(Deps{
		Loader:      loader,
		Primary:     primary,
		Locator:     locator,
		Prefs:       prefs,
		Permissions: cfg.Permissions,
		Bus:         bus,
	},
		cache.WithLogger(logger),
		cache.WithExecutorLimit(cfg.ExecutorLimit),
		cache.WithPrimaryProviderType(cfg.PrimaryProviderType),
	)
	if err != nil {
		bus.Close()
		return nil, err
	}

	svc := &Service{
		cfg:     cfg,
		logger:  logger,
		Bus:     bus,
		Manager: mgr,
	}

	if !cfg.DisableWatch {
		rules := []signal.WatchRule{
			{Path: cfg.CatalogDir, Kind: signal.KindPackageChanged},
		}
		if cfg.AccountsFile != "" {
			// One file backs both sides: registration changes refresh
			// the catalog side, content changes refresh the local side.
			rules = append(rules,
				signal.WatchRule{Path: cfg.AccountsFile, Kind: signal.KindSyncSettingsChanged},
				signal.WatchRule{Path: cfg.AccountsFile, Kind: signal.KindLocalDataChanged},
			)
		}
		wopts := signal.DefaultWatcherOptions()
		wopts.Debounce = cfg.WatchDebounce
		wopts.Logger = logger
		watcher, err := signal.NewDirWatcher(bus, rules, wopts)
		if err != nil {
			mgr.Close()
			bus.Close()
			return nil, err
		}
		if err := watcher.Start(); err != nil {
			mgr.Close()
			bus.Close()
			return nil, err
		}
		svc.watcher = watcher
	}

	if cfg.WarmStart {
		// Kick the lazy bootstrap so readiness does not wait for the
		// first query. The handle is discarded; apply happens async.
		mgr.AccountsAsync(context.Background())
	}

	logger.Info("accounts service started",
		"catalog_dir", cfg.CatalogDir,
		"accounts_file", cfg.AccountsFile,
		"watch", !cfg.DisableWatch)
	return svc, nil
}

// Close stops the watcher, shuts the manager down and closes the bus.
// Idempotent.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			s.watcher.Stop()
		}
		s.Manager.Close()
		s.Bus.Close()
		s.logger.Info("accounts service stopped")
	})
}
