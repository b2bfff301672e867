// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package join implements the pure merge step of the account aggregation
// pipeline: resolving raw identities against a type catalog, deduplicating
// the device-local placeholder, and producing the deterministic sorted list
// served to queries.
//
// Everything here is stateless. The aggregation cache owns scheduling and
// staleness; join owns only the combination rule.
package join

import (
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/catalog"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
)

// Merge combines the primary-source and local-source identity lists into
// the resolved, deduplicated, sorted account list.
//
// Description:
//
//	Every identity resolves against the catalog, falling back to the
//	catalog's fallback descriptor when no exact (type, dataSet) entry
//	exists, so the output never contains a nil type. When the primary side
//	contains at least one writable account of the primary provider type
//	with no dataset, the null-account placeholder is dropped from the local
//	side: the placeholder only means "no account configured", which stops
//	being true once a real account exists. Accounts of the primary type
//	that carry a dataset do not trigger the suppression.
//
// Inputs:
//
//	cat - Catalog for type resolution. Callers pass catalog.FallbackOnly()
//	      when the catalog source failed; a nil catalog behaves the same.
//	primaryType - The distinguished primary provider account type.
//	primary - Identities enumerated from the primary account source.
//	local - Identities located by the device-local source.
//
// Outputs:
//
//	[]model.AccountInfo - Resolved records sorted by display name then
//	identity key. Deterministic for any fixed pair of inputs.
func Merge(cat *catalog.Catalog, primaryType string, primary, local []model.AccountIdentity) []model.AccountInfo {
	primaryInfos := resolveAll(cat, primary)
	localInfos := resolveAll(cat, local)

	merged := make([]model.AccountInfo, 0, len(primaryInfos)+len(localInfos))
	merged = append(merged, primaryInfos...)

	dropPlaceholder := HasWritablePrimaryAccount(primaryInfos, primaryType)
	for _, info := range localInfos {
		if dropPlaceholder && info.Identity.IsNull() {
			continue
		}
		merged = append(merged, info)
	}

	model.SortAccounts(merged)
	return merged
}

// HasWritablePrimaryAccount reports whether the resolved set contains a
// writable, non-null account of the primary provider type with no dataset.
// This is the placeholder-suppression trigger used by Merge.
func HasWritablePrimaryAccount(infos []model.AccountInfo, primaryType string) bool {
	if primaryType == "" {
		return false
	}
	for _, info := range infos {
		id := info.Identity
		if id.IsNull() || id.Type != primaryType || id.DataSet != "" {
			continue
		}
		if info.Type != nil && info.Type.ContactsWritable {
			return true
		}
	}
	return false
}

// resolveAll wraps each identity with its resolved descriptor, preserving
// input order.
func resolveAll(cat *catalog.Catalog, ids []model.AccountIdentity) []model.AccountInfo {
	out := make([]model.AccountInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.WrapAccount(id, cat.Resolve(id)))
	}
	return out
}
