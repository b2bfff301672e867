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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all accounts routes with the router.
//
// Description:
//
//	Registers all /v1/accounts/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET  /v1/accounts - List merged account identities
//	GET  /v1/accounts/info - List accounts with resolved type capabilities
//	GET  /v1/accounts/default - Default account for new contacts
//	GET  /v1/accounts/types - List registered type descriptors
//	GET  /v1/accounts/types/lookup - Look up one descriptor by type/dataset
//	GET  /v1/accounts/kinds - Look up a field schema by mime type
//	POST /v1/accounts/reload - Manually trigger a source refresh
//	GET  /v1/accounts/watch - WebSocket push of account change events
//	GET  /v1/accounts/health - Health check
//	GET  /v1/accounts/ready - Readiness check
//
// Example:
//
//	service, _ := accounts.NewService(accounts.DefaultServiceConfig())
//	handlers := accounts.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	accounts.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	acct := rg.Group("/accounts")
	{
		// Account queries
		acct.GET("", handlers.HandleListAccounts)
		acct.GET("/info", handlers.HandleListAccountInfo)
		acct.GET("/default", handlers.HandleDefaultAccount)

		// Type catalog queries
		acct.GET("/types", handlers.HandleListTypes)
		acct.GET("/types/lookup", handlers.HandleLookupType)
		acct.GET("/kinds", handlers.HandleKindLookup)

		// Invalidation
		acct.POST("/reload", handlers.HandleReload)
		acct.GET("/watch", handlers.HandleWatch)

		// Health checks
		acct.GET("/health", handlers.HandleHealth)
		acct.GET("/ready", handlers.HandleReady)
	}
}
