// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/GZOSP/packages-apps-Contacts/pkg/ux"
	"github.com/spf13/cobra"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// schemaField mirrors one editable field of a field schema.
type schemaField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Optional bool   `json:"optional"`
}

// fieldSchema mirrors the kind objects returned by the accounts API.
type fieldSchema struct {
	Mime   string        `json:"mime"`
	Title  string        `json:"title"`
	Fields []schemaField `json:"fields"`
}

// typeDescriptor mirrors the descriptor objects of GET /v1/accounts/types.
type typeDescriptor struct {
	AccountType             string        `json:"account_type"`
	DataSet                 string        `json:"data_set"`
	Label                   string        `json:"label"`
	ContactsWritable        bool          `json:"contacts_writable"`
	GroupMembershipEditable bool          `json:"group_membership_editable"`
	Extension               bool          `json:"extension"`
	Kinds                   []fieldSchema `json:"kinds"`
}

// key returns the type/dataset pair in display form.
func (d typeDescriptor) key() string {
	if d.DataSet != "" {
		return d.AccountType + "/" + d.DataSet
	}
	return d.AccountType
}

type listTypesResponse struct {
	Types []typeDescriptor `json:"types"`
	Count int              `json:"count"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runListTypes lists the registered type descriptors.
//
// # Description
//
// Fetches GET /v1/accounts/types and prints one line per descriptor with a
// writability icon and the human readable label.
//
// # Outputs
//
// Prints the descriptor list to stdout, or raw JSON with --json.
func runListTypes(cmd *cobra.Command, args []string) {
	var resp listTypesResponse
	if err := apiGet("/v1/accounts/types", &resp); err != nil {
		fail(err)
	}

	if jsonOutput {
		outputJSON(resp)
		return
	}

	ux.Title("Registered Account Types")
	for _, desc := range resp.Types {
		icon := ux.IconReadOnly
		if desc.ContactsWritable {
			icon = ux.IconWritable
		}
		detail := desc.Label
		if desc.Extension {
			detail += ", extension"
		}
		ux.AccountLine(desc.key(), icon, detail)
	}
	ux.Muted(fmt.Sprintf("%d type(s)", resp.Count))
}

// runLookupType shows one descriptor with its field schemas.
//
// # Description
//
// Fetches GET /v1/accounts/types/lookup for the account type given as the
// positional argument, optionally narrowed by --data-set.
//
// # Inputs
//
//   - args[0]: the account type identifier, e.g. "com.google"
//
// # Outputs
//
// Prints the descriptor detail to stdout, or raw JSON with --json.
func runLookupType(cmd *cobra.Command, args []string) {
	query := url.Values{}
	query.Set("type", args[0])
	if lookupDataSet != "" {
		query.Set("data_set", lookupDataSet)
	}

	var desc typeDescriptor
	if err := apiGet("/v1/accounts/types/lookup?"+query.Encode(), &desc); err != nil {
		fail(err)
	}

	if jsonOutput {
		outputJSON(desc)
		return
	}

	ux.Title(desc.Label)
	ux.KeyValue("type", desc.AccountType)
	if desc.DataSet != "" {
		ux.KeyValue("data set", desc.DataSet)
	}
	ux.KeyValue("writable", strconv.FormatBool(desc.ContactsWritable))
	ux.KeyValue("group edit", strconv.FormatBool(desc.GroupMembershipEditable))
	if desc.Extension {
		ux.KeyValue("extension", "true")
	}

	if len(desc.Kinds) > 0 {
		ux.Muted("field schemas:")
		for _, kind := range desc.Kinds {
			ux.AccountLine(kind.Mime, ux.IconBullet, kind.Title)
		}
	}
}

// runKindLookup looks up the field schema for a mime type.
//
// # Description
//
// Fetches GET /v1/accounts/kinds for the mime type given as the positional
// argument. --type selects the descriptor to search; unknown or omitted
// types fall back to the shared fallback descriptor.
//
// # Inputs
//
//   - args[0]: the mime type, e.g. "vnd.android.cursor.item/email_v2"
//
// # Outputs
//
// Prints the field schema to stdout, or raw JSON with --json.
func runKindLookup(cmd *cobra.Command, args []string) {
	query := url.Values{}
	query.Set("mime", args[0])
	if kindType != "" {
		query.Set("type", kindType)
	}
	if lookupDataSet != "" {
		query.Set("data_set", lookupDataSet)
	}

	var kind fieldSchema
	if err := apiGet("/v1/accounts/kinds?"+query.Encode(), &kind); err != nil {
		fail(err)
	}

	if jsonOutput {
		outputJSON(kind)
		return
	}

	ux.Title(kind.Title)
	ux.KeyValue("mime", kind.Mime)
	for _, field := range kind.Fields {
		detail := field.Label
		if field.Optional {
			detail += ", optional"
		}
		ux.AccountLine(field.Key, ux.IconBullet, detail)
	}
}
