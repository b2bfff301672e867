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
	"sort"
	"time"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
)

// IdentityResponse is the wire form of an account identity.
type IdentityResponse struct {
	// Name is the account name, e.g. "alice@example.com".
	Name string `json:"name"`

	// Type is the account type identifier, e.g. "com.google".
	Type string `json:"type"`

	// DataSet is the optional sub-partition of the account type.
	DataSet string `json:"data_set,omitempty"`

	// Null marks the device-local placeholder identity.
	Null bool `json:"null,omitempty"`
}

// AccountInfoResponse is the wire form of one resolved account.
type AccountInfoResponse struct {
	IdentityResponse

	// DisplayName is the name shown to users.
	DisplayName string `json:"display_name"`

	// TypeLabel is the human readable name of the account type.
	TypeLabel string `json:"type_label"`

	// Writable reports whether contacts under this account can be edited.
	Writable bool `json:"writable"`

	// GroupWritable reports whether group membership can be edited.
	GroupWritable bool `json:"group_writable"`

	// Extension marks accounts backed by extension-package descriptors.
	Extension bool `json:"extension,omitempty"`
}

// ListAccountsResponse is the response for GET /v1/accounts.
type ListAccountsResponse struct {
	// Accounts holds the merged identities in display order.
	Accounts []IdentityResponse `json:"accounts"`

	// Count is len(Accounts).
	Count int `json:"count"`
}

// ListAccountInfoResponse is the response for GET /v1/accounts/info.
type ListAccountInfoResponse struct {
	// Accounts holds the resolved accounts in display order.
	Accounts []AccountInfoResponse `json:"accounts"`

	// Count is len(Accounts).
	Count int `json:"count"`
}

// DefaultAccountResponse is the response for GET /v1/accounts/default.
type DefaultAccountResponse struct {
	// Account is the default account for new contacts.
	Account IdentityResponse `json:"account"`
}

// FieldResponse is the wire form of one editable field.
type FieldResponse struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Optional bool   `json:"optional,omitempty"`
}

// KindResponse is the wire form of one field schema.
type KindResponse struct {
	// Mime is the mime type the schema applies to.
	Mime string `json:"mime"`

	// Title is the human readable schema title.
	Title string `json:"title"`

	// Fields lists the editable fields in display order.
	Fields []FieldResponse `json:"fields,omitempty"`
}

// DescriptorResponse is the wire form of a type descriptor.
type DescriptorResponse struct {
	// AccountType is the account type identifier this descriptor covers.
	AccountType string `json:"account_type"`

	// DataSet is the dataset partition, empty for the base type.
	DataSet string `json:"data_set,omitempty"`

	// Label is the human readable name of the account type.
	Label string `json:"label"`

	// ContactsWritable reports whether contacts under this type can be
	// created and edited.
	ContactsWritable bool `json:"contacts_writable"`

	// GroupMembershipEditable reports whether group membership can be edited.
	GroupMembershipEditable bool `json:"group_membership_editable"`

	// Extension marks descriptors contributed by extension packages.
	Extension bool `json:"extension,omitempty"`

	// Kinds lists the field schemas, ordered by mime type.
	Kinds []KindResponse `json:"kinds,omitempty"`
}

// ListTypesResponse is the response for GET /v1/accounts/types.
type ListTypesResponse struct {
	// Types holds the registered descriptors ordered by (type, dataset).
	Types []DescriptorResponse `json:"types"`

	// Count is len(Types).
	Count int `json:"count"`
}

// TypeLookupRequest binds the query parameters of GET /v1/accounts/types/lookup.
type TypeLookupRequest struct {
	// Type is the account type to look up (required).
	Type string `form:"type" binding:"required"`

	// DataSet narrows the lookup to one dataset partition.
	DataSet string `form:"data_set"`
}

// KindLookupRequest binds the query parameters of GET /v1/accounts/kinds.
type KindLookupRequest struct {
	// Type selects the descriptor to search. Unknown types fall back to
	// the shared fallback descriptor.
	Type string `form:"type"`

	// DataSet narrows the descriptor to one dataset partition.
	DataSet string `form:"data_set"`

	// Mime is the mime type to look up (required).
	Mime string `form:"mime" binding:"required"`
}

// ReloadRequest is the request body for POST /v1/accounts/reload.
type ReloadRequest struct {
	// Source selects which side to refresh: "catalog", "local" or "all".
	Source string `json:"source" binding:"required,oneof=catalog local all"`
}

// ReloadResponse is the response for POST /v1/accounts/reload.
type ReloadResponse struct {
	// Triggered lists the signal kinds that were emitted.
	Triggered []string `json:"triggered"`
}

// WatchEventResponse is one change notification pushed over the watch socket.
type WatchEventResponse struct {
	// ID uniquely identifies the event instance.
	ID string `json:"id"`

	// Kind is the change classification, e.g. "accounts_changed".
	Kind string `json:"kind"`

	// Time is when the event was created.
	Time time.Time `json:"time"`

	// Detail carries an optional human readable cause.
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the response for GET /v1/accounts/health.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/accounts/ready.
type ReadyResponse struct {
	// Ready is true once a catalog snapshot has been applied.
	Ready bool `json:"ready"`

	// CatalogTypes is the number of registered type descriptors.
	CatalogTypes int `json:"catalog_types"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details contains additional error context.
	Details string `json:"details,omitempty"`
}

// toIdentityResponse converts a model identity to its wire form.
func toIdentityResponse(id model.AccountIdentity) IdentityResponse {
	return IdentityResponse{
		Name:    id.Name,
		Type:    id.Type,
		DataSet: id.DataSet,
		Null:    id.IsNull(),
	}
}

// toAccountInfoResponse converts a resolved account to its wire form.
func toAccountInfoResponse(info model.AccountInfo) AccountInfoResponse {
	out := AccountInfoResponse{
		IdentityResponse: toIdentityResponse(info.Identity),
		DisplayName:      info.DisplayName,
	}
	if info.Type != nil {
		out.TypeLabel = info.Type.Label
		out.Writable = info.Type.ContactsWritable
		out.GroupWritable = info.Type.GroupMembershipEditable
		out.Extension = info.Type.Extension
	}
	return out
}

// toKindResponse converts a field schema to its wire form.
func toKindResponse(s *model.FieldSchema) KindResponse {
	out := KindResponse{Mime: s.Mime, Title: s.Title}
	for _, f := range s.Fields {
		out.Fields = append(out.Fields, FieldResponse{
			Key:      f.Key,
			Label:    f.Label,
			Optional: f.Optional,
		})
	}
	return out
}

// toDescriptorResponse converts a descriptor to its wire form. Kinds are
// ordered by mime type so the output is deterministic.
func toDescriptorResponse(d *model.TypeDescriptor) DescriptorResponse {
	out := DescriptorResponse{
		AccountType:             d.AccountType,
		DataSet:                 d.DataSet,
		Label:                   d.Label,
		ContactsWritable:        d.ContactsWritable,
		GroupMembershipEditable: d.GroupMembershipEditable,
		Extension:               d.Extension,
	}
	kinds := d.Kinds()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Mime < kinds[j].Mime })
	for _, s := range kinds {
		out.Kinds = append(out.Kinds, toKindResponse(s))
	}
	return out
}

// toWatchEventResponse converts a bus event to its wire form.
func toWatchEventResponse(e signal.Event) WatchEventResponse {
	return WatchEventResponse{
		ID:     e.ID,
		Kind:   e.Kind.String(),
		Time:   e.Time,
		Detail: e.Detail,
	}
}
