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
)

// MockBackend is an in-memory ExecutionBackend for tests. Thread-safe.
type MockBackend struct {
	mu sync.Mutex

	// Tables maps table name to its schema.
	Tables map[string]*TableSchema

	// QueryFunc answers ExecuteQuery; nil returns EmptyResult.
	QueryFunc func(ctx context.Context, query string) (*QueryResult, error)

	// ListErr, SchemaErr and PingErr force failures.
	ListErr   error
	SchemaErr error
	PingErr   error

	// OnList runs before every ListTables, outside the lock.
	OnList func()

	listCalls   int
	schemaCalls int
	queries     []string
	closed      bool
}

// NewMockBackend creates a mock serving the given tables.
func NewMockBackend(tables ...*TableSchema) *MockBackend {
	m := &MockBackend{Tables: make(map[string]*TableSchema)}
	for _, t := range tables {
		m.Tables[t.Name] = t
	}
	return m
}

// Name returns "mock".
func (m *MockBackend) Name() string { return "mock" }

// ExecuteQuery records the query and delegates to QueryFunc.
func (m *MockBackend) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	fn := m.QueryFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, query)
	}
	return EmptyResult(), nil
}

// ListTables returns the table names sorted.
func (m *MockBackend) ListTables(ctx context.Context) ([]string, error) {
	if m.OnList != nil {
		m.OnList()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	names := make([]string, 0, len(m.Tables))
	for name := range m.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetTableSchema returns a copy of the table schema without sample rows.
func (m *MockBackend) GetTableSchema(ctx context.Context, table string) (*TableSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaCalls++
	if m.SchemaErr != nil {
		return nil, m.SchemaErr
	}
	t, ok := m.Tables[table]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	cp := *t
	cp.SampleRows = nil
	return &cp, nil
}

// SampleRows returns up to limit of the table's SampleRows.
func (m *MockBackend) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Tables[table]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	rows := t.SampleRows
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]map[string]any(nil), rows...), nil
}

// SetListErr changes ListErr while the mock is in use.
func (m *MockBackend) SetListErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListErr = err
}

// Ping returns PingErr.
func (m *MockBackend) Ping(ctx context.Context) error {
	return m.PingErr
}

// Close marks the backend closed.
func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ListCalls returns how many times ListTables ran.
func (m *MockBackend) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// SchemaCalls returns how many times GetTableSchema ran.
func (m *MockBackend) SchemaCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schemaCalls
}

// Queries returns every query passed to ExecuteQuery.
func (m *MockBackend) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Closed reports whether Close was called.
func (m *MockBackend) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ ExecutionBackend = (*MockBackend)(nil)
