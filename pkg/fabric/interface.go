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

// Package fabric defines the contract between the agents and the analytical
// database: the ExecutionBackend interface, query results and table
// descriptions, plus the lexical guardrails every generated query passes
// through before it reaches a backend.
package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ExecutionBackend is a read-only SQL database the agents can introspect and
// query. Implementations must be safe for concurrent use.
type ExecutionBackend interface {
	// Name returns the backend identifier (e.g., "postgres", "sqlite")
	Name() string

	// ExecuteQuery runs a single SELECT statement. Implementations run it in
	// a read-only transaction and cap the number of returned rows.
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)

	// ListTables lists base tables in the public namespace, sorted by name.
	ListTables(ctx context.Context) ([]string, error)

	// GetTableSchema returns ordered columns and foreign keys for a table.
	GetTableSchema(ctx context.Context, table string) (*TableSchema, error)

	// SampleRows returns up to limit rows of the table.
	SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error)

	// Ping checks backend connectivity and health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// QueryResult represents the rows returned by a query. It is not modified
// after the backend returns it.
type QueryResult struct {
	// Columns in select-list order
	Columns []string `json:"columns"`

	// Rows in result order, each aligned with Columns
	Rows [][]any `json:"rows"`

	// Truncated is set when the backend stopped reading at its row cap
	Truncated bool `json:"truncated,omitempty"`

	// ExecutionStats tracks execution metrics
	ExecutionStats ExecutionStats `json:"stats"`
}

// ExecutionStats tracks execution metrics.
type ExecutionStats struct {
	// Duration in milliseconds
	DurationMs int64 `json:"duration_ms"`
}

// EmptyResult returns a result with no columns and no rows. Both slices are
// non-nil so the value serializes as {"columns":[],"rows":[]}.
func EmptyResult() *QueryResult {
	return &QueryResult{Columns: []string{}, Rows: [][]any{}}
}

// RowCount returns the number of rows.
func (r *QueryResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Records returns the rows as column-keyed maps, preserving row order.
// limit <= 0 returns every row.
func (r *QueryResult) Records(limit int) []map[string]any {
	if r == nil {
		return []map[string]any{}
	}
	n := len(r.Rows)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			if j < len(r.Rows[i]) {
				rec[col] = r.Rows[i][j]
			}
		}
		out[i] = rec
	}
	return out
}

// RenderText formats the result the way the model sees it after
// execute_query: row count, column list and a JSON array of row objects.
func (r *QueryResult) RenderText() string {
	records := r.Records(0)
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", records))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Query executed successfully. Returned %d row(s).\n", r.RowCount())
	if r != nil {
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(r.Columns, ", "))
		if r.Truncated {
			b.WriteString("Note: result was truncated at the backend row limit.\n")
		}
	}
	b.WriteString("Results:\n")
	b.Write(payload)
	return b.String()
}

// TableSchema describes one table.
type TableSchema struct {
	Name        string           `json:"name"`
	Columns     []Column         `json:"columns"`
	ForeignKeys []ForeignKey     `json:"foreign_keys,omitempty"`
	SampleRows  []map[string]any `json:"sample_rows,omitempty"`
}

// Column describes one table column, in ordinal order.
type Column struct {
	Name     string  `json:"name"`
	DataType string  `json:"data_type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default,omitempty"`
}

// ForeignKey represents a foreign key relationship.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Column returns the named column, case-insensitively.
func (t *TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}
