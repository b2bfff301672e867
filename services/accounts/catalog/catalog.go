// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the immutable mapping from (accountType, dataSet)
// to resolved type descriptors, plus the always-present fallback descriptor
// substituted when no exact match exists.
//
// A Catalog is built once per load cycle by a Loader and never mutated
// afterwards; the aggregation cache swaps whole snapshots atomically.
package catalog

import (
	"context"
	"log/slog"
	"sort"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
)

// FallbackLabel is the display label of the built-in fallback descriptor.
const FallbackLabel = "Unknown"

// Loader produces a fresh catalog from its backing source.
//
// Description:
//
//	Load is invoked once per reload cycle on a background goroutine. It may
//	fail; the aggregation cache tolerates a failed catalog load by treating
//	the primary-source contribution as empty for that cycle.
//
//	Implementations bound their own work: the cache imposes no timeout.
type Loader interface {
	Load(ctx context.Context) (*Catalog, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (*Catalog, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (*Catalog, error) { return f(ctx) }

// typeKey is the catalog map key.
type typeKey struct {
	accountType string
	dataSet     string
}

// Catalog maps (accountType, dataSet) pairs to type descriptors.
//
// Thread Safety: Immutable once built, safe for concurrent readers.
type Catalog struct {
	types    map[typeKey]*model.TypeDescriptor
	fallback *model.TypeDescriptor
}

// DefaultFallback builds the built-in fallback descriptor: read-only, no
// group editing, a minimal schema surface.
func DefaultFallback() *model.TypeDescriptor {
	return model.NewTypeDescriptor("", "", FallbackLabel)
}

// New builds a catalog from the given descriptors. A nil fallback is
// replaced with DefaultFallback. Duplicate (type, dataSet) keys keep the
// last descriptor; nil descriptors are skipped.
func New(descriptors []*model.TypeDescriptor, fallback *model.TypeDescriptor) *Catalog {
	if fallback == nil {
		fallback = DefaultFallback()
	}
	c := &Catalog{
		types:    make(map[typeKey]*model.TypeDescriptor, len(descriptors)),
		fallback: fallback,
	}
	for _, d := range descriptors {
		if d == nil {
			continue
		}
		c.types[typeKey{d.AccountType, d.DataSet}] = d
	}
	return c
}

// FallbackOnly builds a catalog that resolves everything to the fallback
// descriptor. Used when the catalog source failed but local accounts still
// need a resolved type.
func FallbackOnly() *Catalog {
	return New(nil, nil)
}

// Type returns the descriptor for the exact (accountType, dataSet) pair, or
// nil when the catalog has no entry. No fallback substitution happens here.
func (c *Catalog) Type(accountType, dataSet string) *model.TypeDescriptor {
	if c == nil {
		return nil
	}
	return c.types[typeKey{accountType, dataSet}]
}

// TypeForIdentity is Type keyed by an identity's type and dataset.
func (c *Catalog) TypeForIdentity(id model.AccountIdentity) *model.TypeDescriptor {
	return c.Type(id.Type, id.DataSet)
}

// Resolve returns the exact descriptor for the identity, or the fallback.
// Never nil. A fallback hit is logged at debug level; it is not an error.
func (c *Catalog) Resolve(id model.AccountIdentity) *model.TypeDescriptor {
	if d := c.TypeForIdentity(id); d != nil {
		return d
	}
	if !id.IsNull() {
		slog.Debug("no descriptor for account, using fallback",
			"account_type", id.Type, "data_set", id.DataSet)
	}
	return c.Fallback()
}

// Fallback returns the fallback descriptor. Never nil on a built catalog.
func (c *Catalog) Fallback() *model.TypeDescriptor {
	if c == nil {
		return DefaultFallback()
	}
	return c.fallback
}

// KindForMime finds the field schema for the mime type on the given
// descriptor, then on the fallback descriptor. Returns nil, with a debug
// diagnostic, when neither resolves.
func (c *Catalog) KindForMime(desc *model.TypeDescriptor, mime string) *model.FieldSchema {
	if kind := desc.KindForMime(mime); kind != nil {
		return kind
	}
	if kind := c.Fallback().KindForMime(mime); kind != nil {
		return kind
	}
	slog.Debug("no field schema for mime type", "mime", mime)
	return nil
}

// Types returns all descriptors ordered by (accountType, dataSet). The
// fallback descriptor is not included.
func (c *Catalog) Types() []*model.TypeDescriptor {
	if c == nil || len(c.types) == 0 {
		return nil
	}
	out := make([]*model.TypeDescriptor, 0, len(c.types))
	for _, d := range c.types {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountType != out[j].AccountType {
			return out[i].AccountType < out[j].AccountType
		}
		return out[i].DataSet < out[j].DataSet
	})
	return out
}

// Len returns the number of registered descriptors, excluding the fallback.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.types)
}
