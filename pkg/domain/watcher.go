// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store holds the current catalog. Readers always see a complete catalog.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore returns a store holding c, or the bundled catalog when c is nil.
func NewStore(c *Catalog) *Store {
	if c == nil {
		c = Default()
	}
	s := &Store{}
	s.current.Store(c)
	return s
}

// Get returns the current catalog.
func (s *Store) Get() *Catalog {
	return s.current.Load()
}

// Set replaces the current catalog.
func (s *Store) Set(c *Catalog) {
	if c != nil {
		s.current.Store(c)
	}
}

// WatchConfig configures a Watcher.
type WatchConfig struct {
	DebounceMs int // Debounce delay in milliseconds (default: 300ms)
	Logger     *zap.Logger

	// OnReload is called after every reload attempt, with the load error
	// if the file was rejected (optional).
	OnReload func(err error)
}

// Watcher reloads a catalog file into a Store when it changes on disk.
// An invalid file is logged and the previous catalog stays active.
type Watcher struct {
	store   *Store
	path    string
	watcher *fsnotify.Watcher
	config  WatchConfig
	logger  *zap.Logger

	timerMu sync.Mutex
	timer   *time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWatcher creates a watcher for path. It does not load the file; call
// Load and Store.Set first.
func NewWatcher(store *Store, path string, config WatchConfig) (*Watcher, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.DebounceMs <= 0 {
		config.DebounceMs = 300
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		store:   store,
		path:    abs,
		watcher: fw,
		config:  config,
		logger:  config.Logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start watches the catalog's directory. Editors often replace a file
// instead of writing it in place, so the file itself is not watched.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}
	w.logger.Info("watching domain catalog", zap.String("path", w.path))
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.debounce()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("catalog watcher error", zap.Error(err))
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) debounce() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(time.Duration(w.config.DebounceMs)*time.Millisecond, w.reload)
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		w.logger.Error("domain catalog reload rejected, keeping previous catalog",
			zap.String("path", w.path), zap.Error(err))
	} else {
		w.store.Set(c)
		w.logger.Info("domain catalog reloaded",
			zap.String("path", w.path), zap.Int("tables", len(c.Tables)))
	}
	if w.config.OnReload != nil {
		w.config.OnReload(err)
	}
}

// Stop ends the watch loop and releases the watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
