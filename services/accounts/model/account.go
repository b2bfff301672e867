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
	"fmt"
	"strings"
)

// keySeparator joins the identity triple in Key. It is a control character
// so it cannot collide with account names, which are user visible strings.
const keySeparator = "\x01"

// AccountIdentity identifies a configured account by the (name, type,
// dataset) triple. The zero value is the distinguished null account: the
// device-local placeholder that stands for "no real account configured".
//
// Description:
//
//	AccountIdentity is a comparable value type. Equality and hashing are by
//	value over all three fields, so identities can key maps and be compared
//	with ==. An empty DataSet means the account has no dataset partition.
//
// Thread Safety: Immutable value type, safe to copy and share.
type AccountIdentity struct {
	// Name is the account name, typically an address like "alice@example.com".
	Name string `json:"name" yaml:"name"`

	// Type is the account type identifier, e.g. "com.google".
	Type string `json:"type" yaml:"type"`

	// DataSet is the optional sub-partition of the account type. Empty means
	// no dataset.
	DataSet string `json:"dataSet,omitempty" yaml:"dataSet,omitempty"`
}

// NullAccount is the device-local placeholder identity.
var NullAccount = AccountIdentity{}

// IsNull reports whether the identity is the null-account sentinel.
func (a AccountIdentity) IsNull() bool {
	return a.Name == "" && a.Type == "" && a.DataSet == ""
}

// Key returns the stable identity key used for ordering and for preference
// storage. The encoding round-trips through ParseIdentity.
func (a AccountIdentity) Key() string {
	return a.Name + keySeparator + a.Type + keySeparator + a.DataSet
}

// String returns a human readable form for logs and diagnostics.
func (a AccountIdentity) String() string {
	if a.IsNull() {
		return "<null account>"
	}
	if a.DataSet == "" {
		return fmt.Sprintf("%s/%s", a.Name, a.Type)
	}
	return fmt.Sprintf("%s/%s/%s", a.Name, a.Type, a.DataSet)
}

// ParseIdentity decodes the Key encoding back into an identity.
//
// Description:
//
//	Inverts AccountIdentity.Key. Used to read identities that were stored as
//	strings, such as the default-account preference. A value that does not
//	contain exactly three fields fails with ErrMalformedIdentity; callers
//	treat that as "nothing stored" rather than an error condition.
//
// Inputs:
//
//	s - The encoded identity.
//
// Outputs:
//
//	AccountIdentity - The decoded identity (zero value on error).
//	error - ErrMalformedIdentity when the encoding is invalid.
func ParseIdentity(s string) (AccountIdentity, error) {
	parts := strings.Split(s, keySeparator)
	if len(parts) != 3 {
		return AccountIdentity{}, fmt.Errorf("%w: %q", ErrMalformedIdentity, s)
	}
	return AccountIdentity{Name: parts[0], Type: parts[1], DataSet: parts[2]}, nil
}
