// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for externally supplied
// identifiers.
//
// This package contains validators for values that arrive from descriptor
// files, the local account source, or API query parameters before they are
// used as catalog keys. Using these validators keeps malformed identifiers
// out of the cache and its log output.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// accountTypePattern matches account type identifiers in reverse-DNS form,
// e.g. "com.google" or "com.example.device". Max length 127 matches the
// platform limit for sync adapter authority names.
var accountTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z0-9_]+){1,10}$`)

// mimeTypePattern matches vendor mime types like
// "vnd.android.cursor.item/email_v2".
var mimeTypePattern = regexp.MustCompile(`^[a-z0-9.\-]+/[a-z0-9._\-]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// instance returns the shared validator. Struct metadata is cached per
// type, so a singleton avoids re-reflecting on every call.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Tag registration cannot fail for non-empty tag names; ignore the
		// error returns to keep init simple.
		_ = validate.RegisterValidation("accounttype", func(fl validator.FieldLevel) bool {
			return accountTypePattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("mimetype", func(fl validator.FieldLevel) bool {
			return mimeTypePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates a struct against its `validate` tags, including the
// custom "accounttype" and "mimetype" tags.
//
// Outputs:
//
//	error - nil on success, otherwise a single error listing every failed
//	field as "Field (tag)".
//
// Example:
//
//	type descriptorFile struct {
//	    AccountType string `validate:"required,accounttype"`
//	}
//	if err := validation.Struct(df); err != nil {
//	    return fmt.Errorf("invalid descriptor: %w", err)
//	}
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, ", "))
}

// ValidateAccountType validates an account type identifier.
//
// Valid identifiers are lowercase reverse-DNS names: "com.google",
// "com.example.device". The empty string is rejected; use an explicit
// fallback descriptor for the untyped case.
func ValidateAccountType(accountType string) error {
	if accountType == "" {
		return fmt.Errorf("account type cannot be empty")
	}
	if !accountTypePattern.MatchString(accountType) {
		return fmt.Errorf("invalid account type: %q (must be reverse-DNS, e.g. com.example.app)", accountType)
	}
	return nil
}

// ValidateMimeType validates a field schema mime type.
func ValidateMimeType(mime string) error {
	if mime == "" {
		return fmt.Errorf("mime type cannot be empty")
	}
	if !mimeTypePattern.MatchString(mime) {
		return fmt.Errorf("invalid mime type: %q", mime)
	}
	return nil
}

// SanitizeAccountType normalizes and validates an account type identifier.
// Returns the lowercase identifier if valid.
func SanitizeAccountType(accountType string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(accountType))
	if err := ValidateAccountType(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
