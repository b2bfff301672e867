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

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GZOSP/packages-apps-Contacts/pkg/validation"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
)

// identityEntry is the YAML form of one account identity. An entry with
// every field empty is the null placeholder.
type identityEntry struct {
	Name    string `yaml:"name" validate:"max=256"`
	Type    string `yaml:"type" validate:"omitempty,accounttype"`
	DataSet string `yaml:"dataset" validate:"max=256"`
}

// fileDoc is the on-disk document: primary accounts plus local accounts.
type fileDoc struct {
	Accounts []identityEntry `yaml:"accounts" validate:"omitempty,dive"`
	Local    []identityEntry `yaml:"local" validate:"omitempty,dive"`
}

// FileSource reads account identities from a YAML file. The file is
// re-read on every call, so edits take effect on the next reload without
// restarting anything; the watcher turns those edits into reload triggers.
//
// Description:
//
//	Implements PrimaryAccountSource and LocalAccountLocator over a single
//	document with an `accounts:` list and a `local:` list. Unreadable
//	files surface as ErrSourceUnavailable, unparseable or invalid content
//	as ErrMalformedSource.
//
// Thread Safety: safe for concurrent use; the source holds no mutable
// state.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates a FileSource over path. A nil logger falls back to
// slog.Default().
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{path: path, logger: logger}
}

// load reads and validates the whole document.
func (f *FileSource) load() (*fileDoc, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, f.path, err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSource, f.path, err)
	}
	if err := validation.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSource, f.path, err)
	}
	return &doc, nil
}

func toIdentities(entries []identityEntry) []model.AccountIdentity {
	out := make([]model.AccountIdentity, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.AccountIdentity{Name: e.Name, Type: e.Type, DataSet: e.DataSet})
	}
	return out
}

// Enumerate implements PrimaryAccountSource.
func (f *FileSource) Enumerate(ctx context.Context) ([]model.AccountIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	return toIdentities(doc.Accounts), nil
}

// EnumerateOfType implements PrimaryAccountSource.
func (f *FileSource) EnumerateOfType(ctx context.Context, accountType string) ([]model.AccountIdentity, error) {
	all, err := f.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, id := range all {
		if id.Type == accountType {
			out = append(out, id)
		}
	}
	return out, nil
}

// Locate implements LocalAccountLocator.
func (f *FileSource) Locate(ctx context.Context) ([]model.AccountIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	return toIdentities(doc.Local), nil
}
