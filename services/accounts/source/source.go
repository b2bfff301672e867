// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source defines the collaborator boundaries the aggregation cache
// loads from: primary account enumeration, local account discovery,
// preference lookup, and permission checks. The cache depends only on
// these interfaces; this package also ships file-backed and in-memory
// adapters used by the service binary and by tests.
package source

import (
	"context"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
)

// PrimaryAccountSource enumerates externally registered accounts.
//
// Description:
//
//	The provider of record for sign-in style accounts (the counterpart of
//	a platform account registry). Enumeration may be slow or fail
//	outright; callers treat a failure as an empty contribution rather
//	than poisoning whatever else loaded.
type PrimaryAccountSource interface {
	// Enumerate returns every known account identity. The returned slice
	// is owned by the caller.
	Enumerate(ctx context.Context) ([]model.AccountIdentity, error)

	// EnumerateOfType returns only identities whose Type matches.
	EnumerateOfType(ctx context.Context, accountType string) ([]model.AccountIdentity, error)
}

// LocalAccountLocator discovers device-local account identities, including
// the null placeholder when no concrete local account exists.
type LocalAccountLocator interface {
	Locate(ctx context.Context) ([]model.AccountIdentity, error)
}

// PreferenceStore is a key/value lookup for user preferences such as the
// default account choice. Get reports ok=false when the key is absent.
// Stored values may be stale or malformed; callers validate what they
// read.
type PreferenceStore interface {
	Get(key string) (value string, ok bool)
}

// DataPresenceProbe answers whether an account currently has any synced
// data rows. Used by filters that hide empty extension accounts.
type DataPresenceProbe interface {
	HasData(id model.AccountIdentity) bool
}

// PermissionProbe gates access to the underlying account stores. When
// enumeration permission is missing the whole aggregation degrades to a
// permanent empty view instead of erroring on every call.
type PermissionProbe interface {
	CanEnumerateAccounts() bool
	CanReadLocalData() bool
}
