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

// Package schema caches the database catalog for prompt grounding.
//
// One Cache is built at process start and shared by every agent and tool.
// The snapshot is swapped in as a single value, so table names, the
// rendered schema text and the per-table map always describe the same
// catalog scan.
package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
)

// DefaultExcludedTables are migration bookkeeping tables hidden from the
// model.
var DefaultExcludedTables = []string{"_prisma_migrations", "schema_migrations"}

// DefaultSampleRows is the number of sample rows fetched per table.
const DefaultSampleRows = 3

// refreshTimeout bounds a catalog scan.
const refreshTimeout = 2 * time.Minute

const initializeKey = "initialize"

// Snapshot is one consistent catalog scan. It is never modified after
// being stored.
type Snapshot struct {
	TableNames  []string
	FullSchema  string
	Tables      map[string]*fabric.TableSchema
	LastUpdated time.Time
}

// Table returns the named table, case-insensitively.
func (s *Snapshot) Table(name string) (*fabric.TableSchema, bool) {
	if s == nil {
		return nil, false
	}
	if t, ok := s.Tables[name]; ok {
		return t, true
	}
	for n, t := range s.Tables {
		if strings.EqualFold(n, name) {
			return t, true
		}
	}
	return nil, false
}

// Status summarizes the cache for health endpoints.
type Status struct {
	TableCount  int       `json:"table_count"`
	TableNames  []string  `json:"table_names"`
	SchemaBytes int       `json:"schema_bytes"`
	LastUpdated time.Time `json:"last_updated"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer observability.Tracer) Option {
	return func(c *Cache) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithExcludedTables replaces the excluded bookkeeping tables.
func WithExcludedTables(tables ...string) Option {
	return func(c *Cache) {
		c.excluded = make(map[string]bool, len(tables))
		for _, t := range tables {
			c.excluded[strings.ToLower(strings.TrimSpace(t))] = true
		}
	}
}

// WithSampleRows sets how many sample rows are fetched per table. Zero
// disables sampling.
func WithSampleRows(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.sampleRows = n
		}
	}
}

// Cache is the schema cache service. Safe for concurrent use.
type Cache struct {
	backend    fabric.ExecutionBackend
	logger     *zap.Logger
	tracer     observability.Tracer
	excluded   map[string]bool
	sampleRows int
	now        func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
	// generation advances on every clear; a scan stores its snapshot only
	// if no clear happened since it started.
	generation uint64

	group singleflight.Group

	cronMu sync.Mutex
	cron   *cron.Cron
}

// New creates an empty cache over backend. Nothing is loaded until the
// first Initialize or Schema call.
func New(backend fabric.ExecutionBackend, opts ...Option) *Cache {
	c := &Cache{
		backend:    backend,
		logger:     zap.NewNop(),
		tracer:     observability.NewNoOpTracer(),
		sampleRows: DefaultSampleRows,
		now:        time.Now,
	}
	WithExcludedTables(DefaultExcludedTables...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the backend the cache introspects.
func (c *Cache) Backend() fabric.ExecutionBackend {
	return c.backend
}

// Snapshot returns the current snapshot, or nil when the cache is absent.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Initialize scans the catalog and stores a fresh snapshot. Concurrent
// calls share one scan. The scan is detached from the caller's
// cancellation and bounded by refreshTimeout, so a caller that gives up
// returns ctx.Err() without failing the others.
// On failure the cache is left as it was and the error is returned; callers
// are expected to degrade rather than fail.
func (c *Cache) Initialize(ctx context.Context) error {
	ch := c.group.DoChan(initializeKey, func() (interface{}, error) {
		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, c.load(scanCtx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("joined in-flight schema initialization")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context) error {
	c.mu.RLock()
	generation := c.generation
	c.mu.RUnlock()

	ctx, span := c.tracer.StartSpan(ctx, observability.SpanSchemaInitialize,
		observability.WithAttribute(observability.AttrBackendType, c.backend.Name()))
	defer c.tracer.EndSpan(span)

	start := time.Now()
	names, err := c.listTables(ctx)
	if err != nil {
		return c.loadFailed(span, err)
	}

	tables := make(map[string]*fabric.TableSchema, len(names))
	ordered := make([]*fabric.TableSchema, 0, len(names))
	for _, name := range names {
		ts, err := c.describe(ctx, name)
		if err != nil {
			return c.loadFailed(span, err)
		}
		tables[name] = ts
		ordered = append(ordered, ts)
	}

	snap := &Snapshot{
		TableNames:  names,
		FullSchema:  Format(ordered),
		Tables:      tables,
		LastUpdated: c.now(),
	}
	c.mu.Lock()
	stale := c.generation != generation
	if !stale {
		c.snapshot = snap
	}
	c.mu.Unlock()
	if stale {
		span.SetAttribute("schema.discarded", true)
		c.logger.Debug("discarded schema scan started before a refresh")
		return nil
	}

	span.SetOK()
	span.SetAttribute("schema.table_count", len(names))
	span.SetAttribute("schema.bytes", len(snap.FullSchema))
	c.tracer.RecordMetric(observability.MetricSchemaRefreshes, 1, map[string]string{
		observability.AttrSchemaOutcome: "success",
	})
	c.tracer.RecordMetric(observability.MetricSchemaTables, float64(len(names)), nil)

	c.logger.Info("schema cache initialized",
		zap.Int("tables", len(names)),
		zap.Int("schema_bytes", len(snap.FullSchema)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (c *Cache) loadFailed(span *observability.Span, err error) error {
	span.RecordError(err)
	c.tracer.RecordMetric(observability.MetricSchemaRefreshes, 1, map[string]string{
		observability.AttrSchemaOutcome: "failure",
	})
	c.logger.Warn("schema cache initialization failed", zap.Error(err))
	return fmt.Errorf("schema cache initialization failed: %w", err)
}

// listTables queries the catalog and drops excluded tables.
func (c *Cache) listTables(ctx context.Context) ([]string, error) {
	all, err := c.backend.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, n := range all {
		if !c.excluded[strings.ToLower(n)] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// describe fetches one table with its sample rows. A failed sample is
// logged and the table is kept without rows.
func (c *Cache) describe(ctx context.Context, table string) (*fabric.TableSchema, error) {
	ts, err := c.backend.GetTableSchema(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	if c.sampleRows > 0 {
		rows, err := c.backend.SampleRows(ctx, table, c.sampleRows)
		if err != nil {
			c.logger.Warn("failed to sample table", zap.String("table", table), zap.Error(err))
		} else {
			ts.SampleRows = rows
		}
	}
	return ts, nil
}

// TableNames returns the cached table names. When the cache is absent it
// queries the catalog directly and does not store the result.
func (c *Cache) TableNames(ctx context.Context) ([]string, error) {
	if snap := c.Snapshot(); snap != nil {
		return append([]string(nil), snap.TableNames...), nil
	}
	names, err := c.listTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// Schema returns the rendered schema for the requested tables, or for every
// table when none are given or none of the names are known. An absent cache
// is initialized first. If that fails the schema is introspected directly
// without caching; only a failure of the direct read is returned.
func (c *Cache) Schema(ctx context.Context, tables ...string) (string, error) {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanSchemaFetch)
	defer c.tracer.EndSpan(span)
	span.SetAttribute("schema.requested_tables", len(tables))

	snap := c.Snapshot()
	if snap == nil {
		if err := c.Initialize(ctx); err == nil {
			snap = c.Snapshot()
		}
	}
	if snap == nil {
		span.SetAttribute("schema.source", "direct")
		text, err := c.directSchema(ctx, tables)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		span.SetOK()
		return text, nil
	}

	span.SetAttribute("schema.source", "cache")
	span.SetOK()
	selected := selectTables(snap, tables)
	if selected == nil {
		return snap.FullSchema, nil
	}
	return Format(selected), nil
}

// selectTables returns the known requested tables in snapshot order, or nil
// when the filter is empty or matches nothing.
func selectTables(snap *Snapshot, requested []string) []*fabric.TableSchema {
	want := normalizeNames(requested)
	if len(want) == 0 {
		return nil
	}
	var out []*fabric.TableSchema
	for _, name := range snap.TableNames {
		if want[strings.ToLower(name)] {
			out = append(out, snap.Tables[name])
		}
	}
	return out
}

func normalizeNames(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out[n] = true
		}
	}
	return out
}

// directSchema reads the schema without touching the cache.
func (c *Cache) directSchema(ctx context.Context, requested []string) (string, error) {
	all, err := c.listTables(ctx)
	if err != nil {
		return "", fmt.Errorf("schema unavailable: %w", err)
	}

	names := all
	if want := normalizeNames(requested); len(want) > 0 {
		var matched []string
		for _, n := range all {
			if want[strings.ToLower(n)] {
				matched = append(matched, n)
			}
		}
		if len(matched) > 0 {
			names = matched
		}
	}

	var tables []*fabric.TableSchema
	var errs []error
	for _, name := range names {
		ts, err := c.describe(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tables = append(tables, ts)
	}
	if len(tables) == 0 && len(errs) > 0 {
		return "", fmt.Errorf("schema unavailable: %w", errors.Join(errs...))
	}
	return Format(tables), nil
}

// Tables returns every table's structure in name order. An absent cache is
// initialized first; if that fails the tables are read directly without
// caching and tables that cannot be described are skipped.
func (c *Cache) Tables(ctx context.Context) ([]*fabric.TableSchema, error) {
	snap := c.Snapshot()
	if snap == nil {
		if err := c.Initialize(ctx); err == nil {
			snap = c.Snapshot()
		}
	}
	if snap != nil {
		tables := make([]*fabric.TableSchema, 0, len(snap.TableNames))
		for _, name := range snap.TableNames {
			tables = append(tables, snap.Tables[name])
		}
		return tables, nil
	}

	c.logger.Debug("schema cache unavailable, describing tables directly")
	names, err := c.listTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	tables := make([]*fabric.TableSchema, 0, len(names))
	var errs []error
	for _, name := range names {
		ts, err := c.describe(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tables = append(tables, ts)
	}
	if len(tables) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return tables, nil
}

// TableSchema returns one table's structure, from the snapshot when
// possible and directly from the backend otherwise.
func (c *Cache) TableSchema(ctx context.Context, table string) (*fabric.TableSchema, error) {
	snap := c.Snapshot()
	if snap == nil {
		if err := c.Initialize(ctx); err == nil {
			snap = c.Snapshot()
		}
	}
	if ts, ok := snap.Table(table); ok {
		return ts, nil
	}
	return c.backend.GetTableSchema(ctx, table)
}

// Refresh drops the snapshot and scans the catalog again. A scan already
// in flight is not joined and its result is discarded.
func (c *Cache) Refresh(ctx context.Context) error {
	c.clear()
	c.group.Forget(initializeKey)
	return c.Initialize(ctx)
}

// Status reports the cached snapshot, or nil when the cache is absent.
func (c *Cache) Status() *Status {
	snap := c.Snapshot()
	if snap == nil {
		return nil
	}
	return &Status{
		TableCount:  len(snap.TableNames),
		TableNames:  append([]string(nil), snap.TableNames...),
		SchemaBytes: len(snap.FullSchema),
		LastUpdated: snap.LastUpdated,
	}
}

// Close stops scheduled refreshes, drops the snapshot and closes the
// backend.
func (c *Cache) Close() error {
	c.Stop()
	c.clear()
	return c.backend.Close()
}

func (c *Cache) clear() {
	c.mu.Lock()
	c.snapshot = nil
	c.generation++
	c.mu.Unlock()
}

// StartAutoRefresh refreshes the cache on a standard five-field cron
// schedule. An empty spec does nothing. Calling it again replaces the
// previous schedule.
func (c *Cache) StartAutoRefresh(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schema refresh schedule %q: %w", spec, err)
	}

	engine := cron.New()
	if _, err := engine.AddFunc(spec, c.scheduledRefresh); err != nil {
		return fmt.Errorf("failed to schedule schema refresh: %w", err)
	}

	c.Stop()
	c.cronMu.Lock()
	c.cron = engine
	c.cronMu.Unlock()
	engine.Start()

	c.logger.Info("schema auto refresh scheduled", zap.String("schedule", spec))
	return nil
}

func (c *Cache) scheduledRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	// Unlike Refresh, the previous snapshot stays readable until the new
	// one is stored.
	if err := c.Initialize(ctx); err != nil {
		c.logger.Warn("scheduled schema refresh failed", zap.Error(err))
	}
}

// Stop cancels scheduled refreshes and waits for a running one to finish.
func (c *Cache) Stop() {
	c.cronMu.Lock()
	engine := c.cron
	c.cron = nil
	c.cronMu.Unlock()
	if engine != nil {
		<-engine.Stop().Done()
	}
}
