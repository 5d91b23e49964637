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
package fabric

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// BackendFactory opens a backend from connection settings.
type BackendFactory func(ctx context.Context, cfg ConnectionConfig, logger *zap.Logger) (ExecutionBackend, error)

// Registry manages backend factories keyed by driver name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]BackendFactory),
	}
}

// Register registers a backend factory with the given name.
// If a factory with the same name already exists, it will be replaced.
func (r *Registry) Register(name string, factory BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get retrieves a backend factory by name.
func (r *Registry) Get(name string) (BackendFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	return factory, ok
}

// Open validates cfg and opens a backend with the factory registered for
// cfg.Driver.
func (r *Registry) Open(ctx context.Context, cfg ConnectionConfig, logger *zap.Logger) (ExecutionBackend, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, ok := r.Get(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("backend not registered: %s (available: %v)", cfg.Driver, r.List())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return factory(ctx, cfg, logger)
}

// List returns all registered backend names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global registry functions for convenience

// Register registers a backend factory in the global registry. Backend
// packages call it from init.
func Register(name string, factory BackendFactory) {
	globalRegistry.Register(name, factory)
}

// Open opens a backend through the global registry.
func Open(ctx context.Context, cfg ConnectionConfig, logger *zap.Logger) (ExecutionBackend, error) {
	return globalRegistry.Open(ctx, cfg, logger)
}

// List returns all registered backend names from the global registry.
func List() []string {
	return globalRegistry.List()
}
