// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG FILE WATCHER
// =============================================================================

// debounceInterval coalesces the burst of write events most editors
// produce when saving a file.
const debounceInterval = 200 * time.Millisecond

// Watcher watches the config file for changes and reloads the global
// configuration when it is modified.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Config)

	mu      sync.Mutex
	pending *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Watch starts watching the default config file. onChange is called with
// the freshly loaded config after each successful reload; it may be nil.
// The watcher runs until Stop is called.
func Watch(onChange func(*Config)) (*Watcher, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		// No TOML file; fall back to watching the JSON config if present.
		jsonPath, jsonErr := ConfigPathJSON()
		if jsonErr == nil {
			if _, statErr := os.Stat(jsonPath); statErr == nil {
				path = jsonPath
			}
		}
	}
	return WatchPath(path, onChange)
}

// WatchPath starts watching a specific config file path.
func WatchPath(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the parent directory, not the file itself: editors that
	// save via rename would otherwise detach the watch.
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:  fw,
		path:     path,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go w.processEvents()

	return w, nil
}

// Path returns the file being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	return err
}

// processEvents handles fsnotify events until the watcher is stopped.
func (w *Watcher) processEvents() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Warning: config watcher error: %v\n", err)
		}
	}
}

// relevant reports whether an event concerns the watched config file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// scheduleReload debounces reloads so a save producing several write
// events triggers a single reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Reset(debounceInterval)
		return
	}

	w.pending = time.AfterFunc(debounceInterval, func() {
		w.mu.Lock()
		w.pending = nil
		w.mu.Unlock()
		w.reload()
	})
}

// reload reloads the global config and notifies the callback.
func (w *Watcher) reload() {
	select {
	case <-w.ctx.Done():
		return
	default:
	}

	cfg, err := LoadFromPath(w.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config reload failed: %v\n", err)
		return
	}
	SetGlobal(cfg)

	if w.onChange != nil {
		w.onChange(cfg)
	}
}
