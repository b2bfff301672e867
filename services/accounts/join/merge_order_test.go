// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package join

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
)

// Test that permuting the inputs never changes the output
func TestMerge_OrderIndependentOfInputOrder(t *testing.T) {
	primary := []model.AccountIdentity{
		{Name: "carol", Type: primaryType},
		{Name: "alice", Type: primaryType},
		{Name: "erin", Type: primaryType, DataSet: "plus"},
	}
	local := []model.AccountIdentity{
		{Name: "dave", Type: "com.example.device"},
		{Name: "bob", Type: "com.example.device"},
	}

	forward := Merge(testCatalog(), primaryType, primary, local)

	reversedPrimary := []model.AccountIdentity{primary[2], primary[1], primary[0]}
	reversedLocal := []model.AccountIdentity{local[1], local[0]}
	backward := Merge(testCatalog(), primaryType, reversedPrimary, reversedLocal)

	require.Equal(t, names(forward), names(backward))
	assert.Equal(t, []string{"alice", "bob", "carol", "dave", "erin"}, names(forward))
}

// Test case-insensitive primary ordering
func TestMerge_CaseInsensitiveOrder(t *testing.T) {
	primary := []model.AccountIdentity{
		{Name: "Zoe", Type: primaryType},
		{Name: "alice", Type: primaryType},
	}
	local := []model.AccountIdentity{
		{Name: "Bob", Type: "com.example.device"},
	}

	merged := Merge(testCatalog(), primaryType, primary, local)

	assert.Equal(t, []string{"alice", "Bob", "Zoe"}, names(merged))
}

// Test that display-name ties fall back to the identity key
func TestMerge_TieBreakByIdentityKey(t *testing.T) {
	// Same name under two providers: the identity key orders the device
	// account ("com.example.device") before the google one ("com.google").
	primary := []model.AccountIdentity{{Name: "alice", Type: primaryType}}
	local := []model.AccountIdentity{{Name: "alice", Type: "com.example.device"}}

	merged := Merge(testCatalog(), primaryType, primary, local)
	require.Len(t, merged, 2)

	assert.Equal(t, "com.example.device", merged[0].Identity.Type)
	assert.Equal(t, "com.google", merged[1].Identity.Type)
}

// Test that a larger shuffled merge keeps every real account exactly once
func TestMerge_PreservesEveryAccount(t *testing.T) {
	var primary, local []model.AccountIdentity
	for i := 0; i < 10; i++ {
		// Descending names so nothing arrives pre-sorted.
		primary = append(primary, model.AccountIdentity{
			Name: fmt.Sprintf("user%02d", 9-i),
			Type: primaryType,
		})
		local = append(local, model.AccountIdentity{
			Name: fmt.Sprintf("device%02d", 9-i),
			Type: "com.example.device",
		})
	}
	local = append(local, model.NullAccount)

	merged := Merge(testCatalog(), primaryType, primary, local)

	// The placeholder is suppressed by the writable primary accounts.
	require.Len(t, merged, 20)

	seen := make(map[string]int)
	for _, info := range merged {
		require.NotNil(t, info.Type, "resolved account %s has nil type", info.Identity)
		seen[info.Identity.Key()]++
	}
	for _, id := range append(primary, local[:10]...) {
		assert.Equal(t, 1, seen[id.Key()], "account %s", id)
	}

	for i := 1; i < len(merged); i++ {
		prev := strings.ToLower(merged[i-1].DisplayName)
		cur := strings.ToLower(merged[i].DisplayName)
		assert.LessOrEqual(t, prev, cur, "output not sorted at index %d", i)
	}
}
