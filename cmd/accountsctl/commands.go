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
	"github.com/GZOSP/packages-apps-Contacts/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL        string // CLI override for the accountsd base URL
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	jsonOutput       bool   // Output raw JSON for scripting

	writableOnly  bool   // accounts list: restrict to contact-writable accounts
	lookupDataSet string // types lookup / kinds: dataset partition
	kindType      string // kinds: account type selecting the descriptor

	rootCmd = &cobra.Command{
		Use:   "accountsctl",
		Short: "A cli to query and manage a running accountsd server",
		Long: `Accountsctl talks to the accountsd aggregation server: it lists
				the merged accounts, inspects the registered account types and
				their field schemas, triggers reloads, and follows the change
				feed.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadConfig()

			// Initialize UX personality from flag, config, or environment
			switch {
			case jsonOutput:
				ux.SetPersonalityLevel(ux.PersonalityMachine)
			case personalityLevel != "":
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			case config.Personality != "":
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(config.Personality))
			default:
				ux.InitPersonality()
			}
		},
	}

	// --- Accounts ---
	accountsCmd = &cobra.Command{
		Use:   "accounts",
		Short: "Query the merged account list",
	}
	accountsListCmd = &cobra.Command{
		Use:     "list",
		Short:   "List merged account identities in display order",
		Aliases: []string{"ls"},
		Run:     runListAccounts, // Defined in cmd_accounts.go
	}
	accountsInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "List accounts with resolved type labels and write capabilities",
		Run:   runAccountInfo, // Defined in cmd_accounts.go
	}
	accountsDefaultCmd = &cobra.Command{
		Use:   "default",
		Short: "Show the default account for new contacts",
		Run:   runDefaultAccount, // Defined in cmd_accounts.go
	}

	// --- Type Catalog ---
	typesCmd = &cobra.Command{
		Use:   "types",
		Short: "Inspect the registered account type catalog",
	}
	typesListCmd = &cobra.Command{
		Use:     "list",
		Short:   "List registered type descriptors",
		Aliases: []string{"ls"},
		Run:     runListTypes, // Defined in cmd_types.go
	}
	typesLookupCmd = &cobra.Command{
		Use:   "lookup [account-type]",
		Short: "Show one descriptor with its field schemas",
		Args:  cobra.ExactArgs(1),
		Run:   runLookupType, // Defined in cmd_types.go
	}
	kindsCmd = &cobra.Command{
		Use:   "kinds [mime-type]",
		Short: "Look up the field schema for a mime type",
		Args:  cobra.ExactArgs(1),
		Run:   runKindLookup, // Defined in cmd_types.go
	}

	// --- Invalidation ---
	reloadCmd = &cobra.Command{
		Use:   "reload [catalog|local|all]",
		Short: "Trigger a source refresh on the server",
		Args:  cobra.MaximumNArgs(1),
		Run:   runReload, // Defined in cmd_reload.go
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow account change events until interrupted",
		Run:   runWatch, // Defined in cmd_watch.go
	}

	// --- Operations ---
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show server health and readiness",
		Run:   runStatus, // Defined in cmd_status.go
	}
)

// init runs when the Go program starts
func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Base URL of the accountsd server (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich), standard, minimal, or machine (scripting)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output raw JSON for scripting (implies machine personality)")

	// Accounts commands
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsInfoCmd)
	accountsCmd.AddCommand(accountsDefaultCmd)
	accountsListCmd.Flags().BoolVar(&writableOnly, "writable", false,
		"Only list accounts whose contacts are editable")

	// Type catalog commands
	rootCmd.AddCommand(typesCmd)
	typesCmd.AddCommand(typesListCmd)
	typesCmd.AddCommand(typesLookupCmd)
	typesLookupCmd.Flags().StringVar(&lookupDataSet, "data-set", "",
		"Restrict the lookup to one dataset partition")

	rootCmd.AddCommand(kindsCmd)
	kindsCmd.Flags().StringVar(&kindType, "type", "",
		"Account type selecting the descriptor (unknown types use the fallback)")
	kindsCmd.Flags().StringVar(&lookupDataSet, "data-set", "",
		"Dataset partition of the descriptor")

	// Invalidation commands
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(watchCmd)

	// Operations
	rootCmd.AddCommand(statusCmd)
}
