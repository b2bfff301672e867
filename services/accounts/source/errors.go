// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import "errors"

var (
	// ErrSourceUnavailable indicates the backing store could not be read.
	ErrSourceUnavailable = errors.New("account source unavailable")

	// ErrMalformedSource indicates the backing store was read but its
	// contents did not parse or validate.
	ErrMalformedSource = errors.New("malformed account source")
)
