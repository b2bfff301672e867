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
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultAccountKey is the preference key the manager consults for the
// user's default account choice.
const DefaultAccountKey = "default_account"

// FilePrefs is a read-only PreferenceStore backed by a flat YAML map.
// The file is read once at construction; preferences change rarely enough
// that restarting the consumer on change is acceptable.
type FilePrefs struct {
	values map[string]string
}

// NewFilePrefs loads the preference map from path.
func NewFilePrefs(path string) (*FilePrefs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSource, path, err)
	}
	return &FilePrefs{values: values}, nil
}

// Get implements PreferenceStore.
func (p *FilePrefs) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// MemPrefs is an in-memory PreferenceStore with write access, for tests
// and for deployments that manage preferences through the API.
//
// Thread Safety: all methods are safe for concurrent use.
type MemPrefs struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemPrefs creates an empty store.
func NewMemPrefs() *MemPrefs {
	return &MemPrefs{values: make(map[string]string)}
}

// Set stores a value.
func (p *MemPrefs) Set(key, value string) {
	p.mu.Lock()
	p.values[key] = value
	p.mu.Unlock()
}

// Delete removes a key.
func (p *MemPrefs) Delete(key string) {
	p.mu.Lock()
	delete(p.values, key)
	p.mu.Unlock()
}

// Get implements PreferenceStore.
func (p *MemPrefs) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}
