// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GZOSP/packages-apps-Contacts/pkg/validation"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/model"
)

// descriptorFile is the on-disk YAML form of one type descriptor.
type descriptorFile struct {
	AccountType             string `yaml:"accountType" validate:"required_unless=Fallback true,omitempty,accounttype"`
	DataSet                 string `yaml:"dataSet"`
	Label                   string `yaml:"label" validate:"required"`
	ContactsWritable        bool   `yaml:"contactsWritable"`
	GroupMembershipEditable bool   `yaml:"groupMembershipEditable"`
	Extension               bool   `yaml:"extension"`
	Fallback                bool   `yaml:"fallback"`
	Kinds                   []struct {
		Mime   string           `yaml:"mime" validate:"required,mimetype"`
		Title  string           `yaml:"title" validate:"required"`
		Fields []model.FieldDef `yaml:"fields"`
	} `yaml:"kinds" validate:"dive"`
}

// YAMLLoader builds catalogs from a directory of YAML descriptor files.
//
// Description:
//
//	Every *.yaml and *.yml file in the directory describes one type
//	descriptor. A file with "fallback: true" supplies the fallback
//	descriptor; without one the built-in default is used. Files that fail
//	to parse or validate are skipped with a warning so one bad descriptor
//	cannot take every account type down. An unreadable directory fails the
//	load.
//
//	This is a reference adapter: the aggregation core depends only on the
//	Loader interface.
//
// Thread Safety: Safe for concurrent use; each Load reads fresh state.
type YAMLLoader struct {
	dir    string
	logger *slog.Logger
}

// NewYAMLLoader creates a loader over the given descriptor directory.
// A nil logger falls back to slog.Default().
func NewYAMLLoader(dir string, logger *slog.Logger) *YAMLLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &YAMLLoader{dir: dir, logger: logger}
}

// Load implements Loader.
func (l *YAMLLoader) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoDescriptorDir, l.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		descriptors []*model.TypeDescriptor
		fallback    *model.TypeDescriptor
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(l.dir, name)
		desc, isFallback, err := l.loadFile(path)
		if err != nil {
			l.logger.Warn("skipping descriptor file", "path", path, "error", err)
			continue
		}
		if isFallback {
			if fallback != nil {
				l.logger.Warn("multiple fallback descriptors, keeping the first",
					"path", path)
				continue
			}
			fallback = desc
			continue
		}
		descriptors = append(descriptors, desc)
	}

	cat := New(descriptors, fallback)
	l.logger.Debug("catalog loaded", "dir", l.dir, "types", cat.Len(),
		"fallback", cat.Fallback().Label)
	return cat, nil
}

// loadFile parses and validates a single descriptor file.
func (l *YAMLLoader) loadFile(path string) (*model.TypeDescriptor, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}

	var df descriptorFile
	if err := yaml.Unmarshal(raw, &df); err != nil {
		return nil, false, fmt.Errorf("parse: %w", err)
	}
	if err := validation.Struct(df); err != nil {
		return nil, false, err
	}

	desc := model.NewTypeDescriptor(df.AccountType, df.DataSet, df.Label).
		WithCapabilities(df.ContactsWritable, df.GroupMembershipEditable, df.Extension)
	for _, k := range df.Kinds {
		desc.AddKind(&model.FieldSchema{Mime: k.Mime, Title: k.Title, Fields: k.Fields})
	}
	return desc, df.Fallback, nil
}
