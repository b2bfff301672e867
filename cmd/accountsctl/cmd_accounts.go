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
	"errors"
	"fmt"

	"github.com/GZOSP/packages-apps-Contacts/pkg/ux"
	"github.com/spf13/cobra"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// accountIdentity mirrors the identity objects returned by the accounts API.
type accountIdentity struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	DataSet string `json:"data_set"`
	Null    bool   `json:"null"`
}

// displayName returns the name to show for an identity. The null identity
// has no name of its own; it stands for contacts stored only on the device.
func (a accountIdentity) displayName() string {
	if a.Null {
		return "(device)"
	}
	return a.Name
}

// provider returns the type/dataset pair in display form.
func (a accountIdentity) provider() string {
	if a.Type == "" {
		return ""
	}
	if a.DataSet != "" {
		return a.Type + "/" + a.DataSet
	}
	return a.Type
}

type listAccountsResponse struct {
	Accounts []accountIdentity `json:"accounts"`
	Count    int               `json:"count"`
}

// accountInfo mirrors the resolved account objects of GET /v1/accounts/info.
type accountInfo struct {
	accountIdentity
	DisplayName   string `json:"display_name"`
	TypeLabel     string `json:"type_label"`
	Writable      bool   `json:"writable"`
	GroupWritable bool   `json:"group_writable"`
	Extension     bool   `json:"extension"`
}

type listAccountInfoResponse struct {
	Accounts []accountInfo `json:"accounts"`
	Count    int           `json:"count"`
}

type defaultAccountResponse struct {
	Account accountIdentity `json:"account"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runListAccounts lists the merged account identities.
//
// # Description
//
// Fetches GET /v1/accounts and prints one line per identity in the server's
// display order. With --writable only contact-writable accounts are listed.
//
// # Outputs
//
// Prints the account list to stdout, or raw JSON with --json.
func runListAccounts(cmd *cobra.Command, args []string) {
	path := "/v1/accounts"
	if writableOnly {
		path += "?writable=true"
	}

	var resp listAccountsResponse
	if err := apiGet(path, &resp); err != nil {
		fail(err)
	}

	if jsonOutput {
		outputJSON(resp)
		return
	}

	ux.Title("Accounts")
	for _, acct := range resp.Accounts {
		icon := ux.IconAccount
		if acct.Null {
			icon = ux.IconPending
		}
		ux.AccountLine(acct.displayName(), icon, acct.provider())
	}
	ux.Muted(fmt.Sprintf("%d account(s)", resp.Count))
}

// runAccountInfo lists accounts with their resolved type capabilities.
//
// # Description
//
// Fetches GET /v1/accounts/info, prints one line per account with a
// writability icon, and closes with a writable/read-only summary.
//
// # Outputs
//
// Prints the resolved account list to stdout, or raw JSON with --json.
func runAccountInfo(cmd *cobra.Command, args []string) {
	var resp listAccountInfoResponse
	if err := apiGet("/v1/accounts/info", &resp); err != nil {
		fail(err)
	}

	if jsonOutput {
		outputJSON(resp)
		return
	}

	ux.Title("Accounts")
	writable := 0
	for _, acct := range resp.Accounts {
		icon := ux.IconReadOnly
		if acct.Writable {
			icon = ux.IconWritable
			writable++
		}
		detail := acct.TypeLabel
		if acct.Extension {
			detail += ", extension"
		}
		ux.AccountLine(acct.DisplayName, icon, detail)
	}
	ux.Summary(writable, resp.Count-writable, resp.Count)
}

// runDefaultAccount shows the default account for new contacts.
//
// # Description
//
// Fetches GET /v1/accounts/default. A 404 means no default is configured,
// which is a normal state and not an error.
//
// # Outputs
//
// Prints the default account to stdout, or raw JSON with --json.
func runDefaultAccount(cmd *cobra.Command, args []string) {
	var resp defaultAccountResponse
	if err := apiGet("/v1/accounts/default", &resp); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == 404 {
			ux.Info("no default account configured")
			return
		}
		fail(err)
	}

	if jsonOutput {
		outputJSON(resp)
		return
	}

	acct := resp.Account
	ux.AccountLine(acct.displayName(), ux.IconDefault, acct.provider())
}
