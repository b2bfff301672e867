// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheClosed is returned by loads resolved during shutdown and by
	// operations invoked after Close.
	ErrCacheClosed = errors.New("aggregation cache closed")

	// ErrJoinFailed is the sentinel matched by errors.Is when both source
	// loads failed and no merged view could be produced.
	ErrJoinFailed = errors.New("account join failed")

	// Constructor validation errors.
	ErrNilLoader        = errors.New("nil catalog loader")
	ErrNilPrimarySource = errors.New("nil primary account source")
	ErrNilLocalLocator  = errors.New("nil local account locator")
	ErrNilCache         = errors.New("nil aggregation cache")
	ErrNilBus           = errors.New("nil signal bus")
)

// JoinError reports that both the catalog side and the local side failed,
// carrying both causes. It matches ErrJoinFailed under errors.Is.
type JoinError struct {
	CatalogErr error
	LocalErr   error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("account join failed: catalog: %v; local: %v", e.CatalogErr, e.LocalErr)
}

// Is lets errors.Is(err, ErrJoinFailed) match without callers knowing the
// concrete type.
func (e *JoinError) Is(target error) bool { return target == ErrJoinFailed }

// Unwrap exposes both causes to errors.Is/errors.As chains.
func (e *JoinError) Unwrap() []error { return []error{e.CatalogErr, e.LocalErr} }
