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

// FieldDef describes one editable field within a field schema.
type FieldDef struct {
	// Key is the machine name of the field, e.g. "data1".
	Key string `json:"key" yaml:"key"`

	// Label is the human readable field label.
	Label string `json:"label" yaml:"label"`

	// Optional marks fields that may be left empty.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// FieldSchema describes how data rows of one mime type are structured and
// edited for a given account type. It is the unit returned by kind lookups.
//
// Thread Safety: Immutable once built, safe to share.
type FieldSchema struct {
	// Mime is the mime type this schema applies to, e.g.
	// "vnd.android.cursor.item/email_v2".
	Mime string `json:"mime" yaml:"mime"`

	// Title is the human readable schema title.
	Title string `json:"title" yaml:"title"`

	// Fields lists the editable fields in display order.
	Fields []FieldDef `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// TypeDescriptor describes the capabilities and field schemas of one
// (accountType, dataSet) pair.
//
// Description:
//
//	A descriptor is produced by a catalog load and treated as immutable
//	afterwards. Kind lookup is by exact mime string. The catalog guarantees
//	every identity resolves to some descriptor by substituting a fallback
//	descriptor when no exact match exists.
//
// Thread Safety: Immutable once built, safe to share across goroutines.
type TypeDescriptor struct {
	// AccountType is the account type identifier this descriptor covers.
	AccountType string `json:"accountType" yaml:"accountType"`

	// DataSet is the dataset partition, empty for the base type.
	DataSet string `json:"dataSet,omitempty" yaml:"dataSet,omitempty"`

	// Label is the human readable name of the account type.
	Label string `json:"label" yaml:"label"`

	// ContactsWritable reports whether contacts under this type can be
	// created and edited.
	ContactsWritable bool `json:"contactsWritable" yaml:"contactsWritable"`

	// GroupMembershipEditable reports whether group membership can be edited.
	GroupMembershipEditable bool `json:"groupMembershipEditable" yaml:"groupMembershipEditable"`

	// Extension marks descriptors contributed by extension packages.
	// Extension accounts are hidden from pickers unless they report data.
	Extension bool `json:"extension,omitempty" yaml:"extension,omitempty"`

	kinds map[string]*FieldSchema
}

// NewTypeDescriptor builds a descriptor with the given kind schemas.
// Duplicate mimes keep the last schema.
func NewTypeDescriptor(accountType, dataSet, label string, schemas ...*FieldSchema) *TypeDescriptor {
	d := &TypeDescriptor{
		AccountType: accountType,
		DataSet:     dataSet,
		Label:       label,
		kinds:       make(map[string]*FieldSchema, len(schemas)),
	}
	for _, s := range schemas {
		if s != nil {
			d.kinds[s.Mime] = s
		}
	}
	return d
}

// WithCapabilities returns the descriptor with the capability flags set.
// Intended for construction chains; not safe after the descriptor has been
// published to a catalog.
func (d *TypeDescriptor) WithCapabilities(contactsWritable, groupWritable, extension bool) *TypeDescriptor {
	d.ContactsWritable = contactsWritable
	d.GroupMembershipEditable = groupWritable
	d.Extension = extension
	return d
}

// AddKind registers a field schema. Construction-time only.
func (d *TypeDescriptor) AddKind(s *FieldSchema) {
	if s == nil {
		return
	}
	if d.kinds == nil {
		d.kinds = make(map[string]*FieldSchema)
	}
	d.kinds[s.Mime] = s
}

// KindForMime returns the field schema for the mime type, or nil when the
// descriptor has none. Fallback substitution happens one level up, in the
// catalog lookup.
func (d *TypeDescriptor) KindForMime(mime string) *FieldSchema {
	if d == nil {
		return nil
	}
	return d.kinds[mime]
}

// Kinds returns all registered field schemas. The slice is a copy; the
// schemas are shared.
func (d *TypeDescriptor) Kinds() []*FieldSchema {
	if d == nil || len(d.kinds) == 0 {
		return nil
	}
	out := make([]*FieldSchema, 0, len(d.kinds))
	for _, s := range d.kinds {
		out = append(out, s)
	}
	return out
}

// Matches reports whether the descriptor covers the given type and dataset.
func (d *TypeDescriptor) Matches(accountType, dataSet string) bool {
	return d != nil && d.AccountType == accountType && d.DataSet == dataSet
}
