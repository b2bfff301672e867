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

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/cache"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/catalog"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
)

// emptyManager is the permission-degraded Manager: a valid, loaded, empty
// view. Every collection is empty, every lookup misses, and nothing ever
// errors, so callers need no permission-awareness of their own.
type emptyManager struct{}

// Empty returns the degraded Manager.
func Empty() Manager { return emptyManager{} }

func (emptyManager) Accounts(context.Context, bool) ([]model.AccountIdentity, error) {
	return []model.AccountIdentity{}, nil
}

func (emptyManager) AccountsAsync(context.Context) *cache.PendingLoad[[]model.AccountInfo] {
	return cache.Completed([]model.AccountInfo{}, nil)
}

func (emptyManager) FilterAsync(context.Context, model.Predicate) *cache.PendingLoad[[]model.AccountInfo] {
	return cache.Completed([]model.AccountInfo{}, nil)
}

func (emptyManager) AccountInfoFor(context.Context, model.AccountIdentity) *model.AccountInfo {
	return nil
}

// Catalog reports the fallback-only catalog. The degraded view is loaded
// and queryable from the start; it simply registers zero types.
func (emptyManager) Catalog() *catalog.Catalog { return catalog.FallbackOnly() }

func (emptyManager) AccountType(string, string) *model.TypeDescriptor { return nil }

func (emptyManager) AccountTypeFor(*model.AccountIdentity) *model.TypeDescriptor { return nil }

func (emptyManager) KindForMimeType(desc *model.TypeDescriptor, mime string) *model.FieldSchema {
	if desc != nil {
		return desc.KindForMime(mime)
	}
	return nil
}

func (emptyManager) DefaultAccount(context.Context) (*model.AccountIdentity, error) {
	return nil, nil
}

func (emptyManager) GroupWritableAccounts(context.Context) ([]model.AccountIdentity, error) {
	return []model.AccountIdentity{}, nil
}

func (emptyManager) WritablePrimaryAccounts(context.Context) ([]model.AccountInfo, error) {
	return []model.AccountInfo{}, nil
}

func (emptyManager) HasNonLocalAccount(context.Context) (bool, error) { return false, nil }

func (emptyManager) HasPrimaryAccount(context.Context) bool { return false }

func (emptyManager) Contains(context.Context, model.AccountIdentity, bool) (bool, error) {
	return false, nil
}

func (emptyManager) Close() {}
