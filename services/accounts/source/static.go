// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"sync"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
)

// StaticSource serves fixed identity lists from memory. It implements both
// PrimaryAccountSource and LocalAccountLocator and is the default wiring
// for config-seeded deployments and tests. The lists are replaceable at
// runtime via SetAccounts/SetLocal.
//
// Thread Safety: all methods are safe for concurrent use.
type StaticSource struct {
	mu       sync.RWMutex
	accounts []model.AccountIdentity
	local    []model.AccountIdentity
}

// NewStaticSource creates a source over copies of the given lists. Either
// list may be nil.
func NewStaticSource(accounts, local []model.AccountIdentity) *StaticSource {
	s := &StaticSource{}
	s.SetAccounts(accounts)
	s.SetLocal(local)
	return s
}

// SetAccounts replaces the primary account list.
func (s *StaticSource) SetAccounts(accounts []model.AccountIdentity) {
	cp := make([]model.AccountIdentity, len(accounts))
	copy(cp, accounts)
	s.mu.Lock()
	s.accounts = cp
	s.mu.Unlock()
}

// SetLocal replaces the local account list.
func (s *StaticSource) SetLocal(local []model.AccountIdentity) {
	cp := make([]model.AccountIdentity, len(local))
	copy(cp, local)
	s.mu.Lock()
	s.local = cp
	s.mu.Unlock()
}

// Enumerate implements PrimaryAccountSource.
func (s *StaticSource) Enumerate(ctx context.Context) ([]model.AccountIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AccountIdentity, len(s.accounts))
	copy(out, s.accounts)
	return out, nil
}

// EnumerateOfType implements PrimaryAccountSource.
func (s *StaticSource) EnumerateOfType(ctx context.Context, accountType string) ([]model.AccountIdentity, error) {
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

// Locate implements LocalAccountLocator.
func (s *StaticSource) Locate(ctx context.Context) ([]model.AccountIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AccountIdentity, len(s.local))
	copy(out, s.local)
	return out, nil
}

// StaticProbe is an in-memory DataPresenceProbe keyed by identity.
//
// Thread Safety: all methods are safe for concurrent use.
type StaticProbe struct {
	mu      sync.RWMutex
	present map[string]bool
}

// NewStaticProbe marks the given identities as having data.
func NewStaticProbe(ids ...model.AccountIdentity) *StaticProbe {
	p := &StaticProbe{present: make(map[string]bool, len(ids))}
	for _, id := range ids {
		p.present[id.Key()] = true
	}
	return p
}

// SetHasData marks or unmarks one identity.
func (p *StaticProbe) SetHasData(id model.AccountIdentity, has bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if has {
		p.present[id.Key()] = true
	} else {
		delete(p.present, id.Key())
	}
}

// HasData implements DataPresenceProbe.
func (p *StaticProbe) HasData(id model.AccountIdentity) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.present[id.Key()]
}

// AllowAllPermissions grants every permission. The normal wiring for a
// standalone deployment.
type AllowAllPermissions struct{}

func (AllowAllPermissions) CanEnumerateAccounts() bool { return true }
func (AllowAllPermissions) CanReadLocalData() bool     { return true }

// DenyAllPermissions refuses every permission. Used to exercise the
// degraded empty-view path.
type DenyAllPermissions struct{}

func (DenyAllPermissions) CanEnumerateAccounts() bool { return false }
func (DenyAllPermissions) CanReadLocalData() bool     { return false }
