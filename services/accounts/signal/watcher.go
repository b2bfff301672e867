// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchRule maps a filesystem path (file or directory) to the event kind
// emitted when something under it changes.
type WatchRule struct {
	Path string
	Kind Kind
}

// WatcherOptions configures a DirWatcher.
type WatcherOptions struct {
	// Debounce is how long the watcher waits after the last filesystem
	// event before emitting. Bursts inside the window collapse into one
	// event per kind.
	Debounce time.Duration

	// IgnoreGlobs are filepath.Match patterns applied to base names of
	// changed files. Matches are dropped before debouncing.
	IgnoreGlobs []string

	// Logger receives watcher diagnostics. Nil falls back to slog.Default().
	Logger *slog.Logger
}

// DefaultWatcherOptions returns the defaults: 500ms debounce and the usual
// editor droppings ignored.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce:    500 * time.Millisecond,
		IgnoreGlobs: []string{"*.tmp", "*.swp", "*~", ".#*"},
	}
}

// hit is one relevant filesystem event mapped to its kind.
type hit struct {
	kind Kind
	path string
}

// DirWatcher adapts filesystem activity onto the signal bus.
//
// Description:
//
//	Watches the paths named by its rules and emits one debounced Event per
//	affected kind: descriptor directory changes surface as
//	KindPackageChanged, local data file changes as KindLocalDataChanged,
//	and so on. This plays the role platform broadcasts play on device
//	builds; the aggregation core only ever sees bus events.
//
// Thread Safety: Start and Stop are safe to call from any goroutine; Stop
// is idempotent.
type DirWatcher struct {
	sink  Sink
	rules []WatchRule
	opts  WatcherOptions

	fsw      *fsnotify.Watcher
	hits     chan hit
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDirWatcher creates a watcher that emits onto sink per the rules.
func NewDirWatcher(sink Sink, rules []WatchRule, opts WatcherOptions) (*DirWatcher, error) {
	if sink == nil {
		return nil, fmt.Errorf("dir watcher: nil sink")
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("dir watcher: no watch rules")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultWatcherOptions().Debounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &DirWatcher{
		sink:  sink,
		rules: rules,
		opts:  opts,
		hits:  make(chan hit, 64),
		done:  make(chan struct{}),
	}, nil
}

// Start begins watching. It registers every rule path (a file rule watches
// the file's directory, since most writers replace files) and spawns the
// event and debounce goroutines.
func (w *DirWatcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dir watcher: %w", err)
	}
	w.fsw = fsw

	for _, rule := range w.rules {
		watchPath := rule.Path
		if info, err := os.Stat(rule.Path); err == nil && !info.IsDir() {
			watchPath = filepath.Dir(rule.Path)
		}
		if err := fsw.Add(watchPath); err != nil {
			fsw.Close()
			return fmt.Errorf("dir watcher: watching %s: %w", watchPath, err)
		}
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.debounceLoop()

	w.opts.Logger.Debug("dir watcher started",
		"rules", len(w.rules), "debounce", w.opts.Debounce)
	return nil
}

// Stop shuts the watcher down and waits for its goroutines. Idempotent.
func (w *DirWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.fsw != nil {
			w.fsw.Close()
		}
	})
	w.wg.Wait()
}

// processEvents filters raw fsnotify events and maps them onto kinds.
func (w *DirWatcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevantOp(ev.Op) || w.shouldIgnore(ev.Name) {
				continue
			}
			for _, kind := range w.kindsFor(ev.Name) {
				select {
				case w.hits <- hit{kind: kind, path: ev.Name}:
				case <-w.done:
					return
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("dir watcher error", "error", err)
		}
	}
}

// debounceLoop batches hits and emits one event per kind once the stream
// goes quiet for the debounce window.
func (w *DirWatcher) debounceLoop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[Kind]string)
	for {
		select {
		case <-w.done:
			return
		case h := <-w.hits:
			pending[h.kind] = h.path
			timer.Reset(w.opts.Debounce)
		case <-timer.C:
			w.flush(pending)
			pending = make(map[Kind]string)
		}
	}
}

// flush emits the pending kinds in a stable order.
func (w *DirWatcher) flush(pending map[Kind]string) {
	if len(pending) == 0 {
		return
	}
	kinds := make([]Kind, 0, len(pending))
	for k := range pending {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, k := range kinds {
		w.opts.Logger.Debug("change detected", "kind", k.String(), "path", pending[k])
		w.sink.Emit(NewEvent(k, pending[k]))
	}
}

// kindsFor returns the kinds of every rule covering the path. A path may
// match several rules when one file backs more than one source.
func (w *DirWatcher) kindsFor(path string) []Kind {
	var kinds []Kind
	for _, rule := range w.rules {
		if path == rule.Path || strings.HasPrefix(path, rule.Path+string(filepath.Separator)) {
			kinds = append(kinds, rule.Kind)
			continue
		}
		// File rules watch the parent directory; match the file itself.
		if filepath.Dir(rule.Path) == filepath.Dir(path) && filepath.Base(rule.Path) == filepath.Base(path) {
			kinds = append(kinds, rule.Kind)
		}
	}
	return kinds
}

// relevantOp keeps the ops that change visible content.
func relevantOp(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) ||
		op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}

// shouldIgnore applies the ignore globs to the base name.
func (w *DirWatcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, glob := range w.opts.IgnoreGlobs {
		if ok, err := filepath.Match(glob, base); err == nil && ok {
			return true
		}
	}
	return false
}
