// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the account data model shared by every layer of the
// accounts service: account identities, type descriptors, field schemas, and
// the resolved AccountInfo records returned by queries.
//
// All types in this package are immutable once constructed. AccountIdentity
// is a comparable value type usable as a map key; TypeDescriptor and
// FieldSchema are built by catalog loaders and never mutated afterwards.
package model

import "errors"

// ErrMalformedIdentity is returned by ParseIdentity when the input does not
// round-trip through the Key encoding. Callers that read identities from
// stored preferences treat this as "no identity stored".
var ErrMalformedIdentity = errors.New("malformed account identity")
