// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"sort"
	"strings"
)

// AccountInfo pairs an account identity with its resolved type descriptor.
// It is the unit returned by every aggregate query.
//
// Description:
//
//	Type is never nil in query output: identities whose (type, dataSet) has
//	no catalog entry are resolved against the fallback descriptor instead.
//	DisplayName is the identity name, or the descriptor label when the
//	identity is the null account (which has no name of its own).
//
// Thread Safety: Immutable value, safe to copy and share.
type AccountInfo struct {
	// Identity is the (name, type, dataset) triple.
	Identity AccountIdentity `json:"identity"`

	// Type is the resolved descriptor. Never nil in query output.
	Type *TypeDescriptor `json:"type"`

	// DisplayName is the name shown to users and used as the primary sort key.
	DisplayName string `json:"displayName"`
}

// Predicate filters resolved accounts. The named factories in the accounts
// package cover the common cases.
type Predicate func(AccountInfo) bool

// WrapAccount resolves a display name for the identity against the given
// descriptor and returns the combined record.
func WrapAccount(id AccountIdentity, desc *TypeDescriptor) AccountInfo {
	display := id.Name
	if display == "" && desc != nil {
		display = desc.Label
	}
	return AccountInfo{Identity: id, Type: desc, DisplayName: display}
}

// SortAccounts orders the list by display name (case insensitive), breaking
// ties by identity key. The order is deterministic for any fixed input set,
// independent of input order.
func SortAccounts(infos []AccountInfo) {
	sort.Slice(infos, func(i, j int) bool {
		a := strings.ToLower(infos[i].DisplayName)
		b := strings.ToLower(infos[j].DisplayName)
		if a != b {
			return a < b
		}
		return infos[i].Identity.Key() < infos[j].Identity.Key()
	})
}

// ExtractIdentities projects the identity out of each record, preserving
// order.
func ExtractIdentities(infos []AccountInfo) []AccountIdentity {
	out := make([]AccountIdentity, len(infos))
	for i, info := range infos {
		out[i] = info.Identity
	}
	return out
}

// FilterAccounts returns the records matching the predicate, preserving
// order. A nil predicate matches everything.
func FilterAccounts(infos []AccountInfo, pred Predicate) []AccountInfo {
	if pred == nil {
		out := make([]AccountInfo, len(infos))
		copy(out, infos)
		return out
	}
	out := make([]AccountInfo, 0, len(infos))
	for _, info := range infos {
		if pred(info) {
			out = append(out, info)
		}
	}
	return out
}
