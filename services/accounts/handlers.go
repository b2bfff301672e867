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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/cache"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/source"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/telemetry"
)

// ServiceVersion is the current version of the accounts service.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the accounts service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers backed by the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID extracts the request ID from headers or creates one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// requestLogger builds the per-request logger: request_id plus handler
// name, and trace correlation when the tracing middleware is mounted.
func requestLogger(c *gin.Context, requestID, handler string) *slog.Logger {
	return telemetry.LoggerWithRequest(c.Request.Context(), slog.Default(), requestID).
		With("handler", handler)
}

// writeLoadError maps aggregation and source failures onto HTTP statuses.
// Join failures and shutdown map to 503 so load balancers retry elsewhere;
// context expiry maps to 504.
func writeLoadError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, cache.ErrCacheClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "account cache is shut down",
			Code:  "CACHE_CLOSED",
		})
	case errors.Is(err, cache.ErrJoinFailed):
		logger.Error("Account join failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "all account sources failed",
			Code:    "JOIN_FAILED",
			Details: err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error: "account load did not finish in time",
			Code:  "LOAD_TIMEOUT",
		})
	case errors.Is(err, source.ErrSourceUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "account source unavailable",
			Code:    "SOURCE_UNAVAILABLE",
			Details: err.Error(),
		})
	default:
		logger.Error("Account query failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "QUERY_FAILED",
		})
	}
}

// HandleListAccounts handles GET /v1/accounts.
//
// Description:
//
//	Returns the merged account identities in display order. The first call
//	after startup or an invalidation blocks until the aggregation finishes;
//	later calls answer from the memoized snapshot.
//
// Query Parameters:
//
//	writable: "true" restricts the list to contact-writable accounts (optional)
//
// Response:
//
//	200 OK: ListAccountsResponse (may be an empty array)
//	400 Bad Request: writable is not a boolean
//	503 Service Unavailable: every account source failed, or shutting down
//	504 Gateway Timeout: the request context expired before the load finished
func (h *Handlers) HandleListAccounts(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleListAccounts")

	writable := false
	if raw := c.Query("writable"); raw != "" {
		var err error
		writable, err = strconv.ParseBool(raw)
		if err != nil {
			logger.Warn("Invalid query parameters", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid query parameters: writable must be a boolean",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	ids, err := h.svc.Manager.Accounts(c.Request.Context(), writable)
	if err != nil {
		writeLoadError(c, logger, err)
		return
	}

	resp := ListAccountsResponse{Accounts: make([]IdentityResponse, 0, len(ids))}
	for _, id := range ids {
		resp.Accounts = append(resp.Accounts, toIdentityResponse(id))
	}
	resp.Count = len(resp.Accounts)

	logger.Info("Listed accounts", "count", resp.Count, "writable_only", writable)
	c.JSON(http.StatusOK, resp)
}

// HandleListAccountInfo handles GET /v1/accounts/info.
//
// Description:
//
//	Returns the merged accounts with their resolved type capabilities and
//	display names, in display order.
//
// Response:
//
//	200 OK: ListAccountInfoResponse (may be an empty array)
//	503 Service Unavailable: every account source failed, or shutting down
//	504 Gateway Timeout: the request context expired before the load finished
func (h *Handlers) HandleListAccountInfo(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleListAccountInfo")

	ctx := c.Request.Context()
	infos, err := h.svc.Manager.AccountsAsync(ctx).Wait(ctx)
	if err != nil {
		writeLoadError(c, logger, err)
		return
	}

	resp := ListAccountInfoResponse{Accounts: make([]AccountInfoResponse, 0, len(infos))}
	for _, info := range infos {
		resp.Accounts = append(resp.Accounts, toAccountInfoResponse(info))
	}
	resp.Count = len(resp.Accounts)

	logger.Info("Listed account info", "count", resp.Count)
	c.JSON(http.StatusOK, resp)
}

// HandleDefaultAccount handles GET /v1/accounts/default.
//
// Description:
//
//	Returns the default account for new contacts: the stored preference
//	when it matches a live primary-provider account, otherwise the first
//	primary-provider account.
//
// Response:
//
//	200 OK: DefaultAccountResponse
//	404 Not Found: no primary-provider account is registered
//	503 Service Unavailable: the account source failed
func (h *Handlers) HandleDefaultAccount(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleDefaultAccount")

	id, err := h.svc.Manager.DefaultAccount(c.Request.Context())
	if err != nil {
		writeLoadError(c, logger, err)
		return
	}
	if id == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no default account available",
			Code:  "NO_DEFAULT_ACCOUNT",
		})
		return
	}

	logger.Info("Resolved default account", "account", id.String())
	c.JSON(http.StatusOK, DefaultAccountResponse{Account: toIdentityResponse(*id)})
}

// HandleListTypes handles GET /v1/accounts/types.
//
// Description:
//
//	Returns every registered type descriptor from the current catalog
//	snapshot, ordered by (account_type, data_set). An empty list means no
//	catalog has been applied yet or no descriptor packages are installed.
//
// Response:
//
//	200 OK: ListTypesResponse (may be an empty array)
func (h *Handlers) HandleListTypes(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleListTypes")

	cat := h.svc.Manager.Catalog()
	descs := cat.Types()

	resp := ListTypesResponse{Types: make([]DescriptorResponse, 0, len(descs))}
	for _, d := range descs {
		resp.Types = append(resp.Types, toDescriptorResponse(d))
	}
	resp.Count = len(resp.Types)

	logger.Info("Listed account types", "count", resp.Count)
	c.JSON(http.StatusOK, resp)
}

// HandleLookupType handles GET /v1/accounts/types/lookup.
//
// Description:
//
//	Returns the descriptor registered for the exact (type, data_set) pair.
//	No fallback substitution happens here; unknown pairs are a 404.
//
// Query Parameters:
//
//	type: account type identifier (required)
//	data_set: dataset partition (optional)
//
// Response:
//
//	200 OK: DescriptorResponse
//	400 Bad Request: type parameter missing
//	404 Not Found: no descriptor registered for the pair
func (h *Handlers) HandleLookupType(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleLookupType")

	var req TypeLookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Warn("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid query parameters: type is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	desc := h.svc.Manager.AccountType(req.Type, req.DataSet)
	if desc == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no descriptor registered for the requested type",
			Code:  "TYPE_NOT_FOUND",
		})
		return
	}

	logger.Info("Resolved account type", "account_type", req.Type, "data_set", req.DataSet)
	c.JSON(http.StatusOK, toDescriptorResponse(desc))
}

// HandleKindLookup handles GET /v1/accounts/kinds.
//
// Description:
//
//	Returns the field schema for a mime type on the selected descriptor.
//	When the descriptor has no schema for the mime, the shared fallback
//	descriptor is consulted before reporting a miss.
//
// Query Parameters:
//
//	type: account type identifier (optional; unknown types use the fallback)
//	data_set: dataset partition (optional)
//	mime: mime type to look up (required)
//
// Response:
//
//	200 OK: KindResponse
//	400 Bad Request: mime parameter missing
//	404 Not Found: neither the descriptor nor the fallback knows the mime
func (h *Handlers) HandleKindLookup(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleKindLookup")

	var req KindLookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Warn("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid query parameters: mime is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	desc := h.svc.Manager.AccountType(req.Type, req.DataSet)
	kind := h.svc.Manager.KindForMimeType(desc, req.Mime)
	if kind == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no field schema registered for the requested mime type",
			Code:  "KIND_NOT_FOUND",
		})
		return
	}

	logger.Info("Resolved field schema", "mime", req.Mime, "account_type", req.Type)
	c.JSON(http.StatusOK, toKindResponse(kind))
}

// HandleReload handles POST /v1/accounts/reload.
//
// Description:
//
//	Manually triggers a refresh of one or both aggregation sides. The
//	request is translated into the same change signals the file watcher
//	emits, so manual and automatic invalidation share one code path.
//	Reloads are asynchronous; the response only confirms the trigger.
//
// Request Body:
//
//	{"source": "catalog" | "local" | "all"}
//
// Response:
//
//	202 Accepted: ReloadResponse listing the emitted signal kinds
//	400 Bad Request: body missing or source not one of catalog/local/all
func (h *Handlers) HandleReload(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleReload")

	var req ReloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: source must be catalog, local or all",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var kinds []signal.Kind
	switch req.Source {
	case "catalog":
		kinds = []signal.Kind{signal.KindPackageChanged}
	case "local":
		kinds = []signal.Kind{signal.KindLocalDataChanged}
	case "all":
		kinds = []signal.Kind{signal.KindPackageChanged, signal.KindLocalDataChanged}
	}

	resp := ReloadResponse{Triggered: make([]string, 0, len(kinds))}
	for _, k := range kinds {
		h.svc.Bus.Emit(signal.NewEvent(k, "manual reload via "+requestID))
		resp.Triggered = append(resp.Triggered, k.String())
	}

	logger.Info("Triggered reload", "source", req.Source, "kinds", resp.Triggered)
	c.JSON(http.StatusAccepted, resp)
}

// HandleHealth handles GET /v1/accounts/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/accounts/ready.
//
// Description:
//
//	Reports whether a catalog snapshot has been applied. Until then the
//	service answers queries from the fallback descriptor only, so load
//	balancers should hold traffic back.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false), bootstrap pending
func (h *Handlers) HandleReady(c *gin.Context) {
	cat := h.svc.Manager.Catalog()

	resp := ReadyResponse{
		Ready:        cat != nil,
		CatalogTypes: cat.Len(),
	}

	if !resp.Ready {
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}
