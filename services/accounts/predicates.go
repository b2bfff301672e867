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
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/source"
)

// NonNullAccountFilter keeps every account except the null placeholder.
func NonNullAccountFilter() model.Predicate {
	return func(info model.AccountInfo) bool {
		return !info.Identity.IsNull()
	}
}

// WritableFilter keeps accounts whose type accepts contact writes.
func WritableFilter() model.Predicate {
	return func(info model.AccountInfo) bool {
		return info.Type != nil && info.Type.ContactsWritable
	}
}

// GroupWritableFilter keeps accounts whose type allows editing group
// membership.
func GroupWritableFilter() model.Predicate {
	return func(info model.AccountInfo) bool {
		return info.Type != nil && info.Type.GroupMembershipEditable
	}
}

// NonEmptyExtensionFilter keeps regular accounts unconditionally and
// extension-type accounts only when the probe reports they hold data.
// A nil probe hides all extension accounts.
func NonEmptyExtensionFilter(probe source.DataPresenceProbe) model.Predicate {
	return func(info model.AccountInfo) bool {
		if info.Type == nil || !info.Type.Extension {
			return true
		}
		if probe == nil {
			return false
		}
		return probe.HasData(info.Identity)
	}
}
