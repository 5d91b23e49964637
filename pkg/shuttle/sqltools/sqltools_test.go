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
package sqltools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/quarry/pkg/backends/sqlite"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/schema"
	"github.com/teradata-labs/quarry/pkg/shuttle"
)

func demoTools(t *testing.T) (*shuttle.Executor, *observability.MockTracer) {
	t.Helper()
	backend, err := sqlite.OpenDemo(context.Background(), zaptest.NewLogger(t))
	require.NoError(t, err)
	cache := schema.New(backend)
	t.Cleanup(func() { _ = cache.Close() })

	tracer := observability.NewMockTracer()
	registry := NewRegistry(Config{Cache: cache, Tracer: tracer, Logger: zaptest.NewLogger(t)})
	return shuttle.NewExecutor(registry, tracer), tracer
}

func TestNew_Order(t *testing.T) {
	tools := New(Config{Cache: schema.New(fabric.NewMockBackend())})
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name()
		assert.NotEmpty(t, tool.Description())
		assert.NotNil(t, tool.InputSchema())
	}
	assert.Equal(t, []string{ToolListTables, ToolGetSchema, ToolQueryChecker, ToolExecuteQuery}, names)
}

func TestListTables(t *testing.T) {
	exec, _ := demoTools(t)

	result := exec.Execute(context.Background(), ToolListTables, nil)
	require.True(t, result.Success)

	list, ok := result.Data.(*TableList)
	require.True(t, ok)
	assert.Equal(t, []string{"beer_styles", "distributors", "production_batches", "shipments"}, list.Names())

	text := shuttle.Render(result)
	assert.Contains(t, text, "Available tables:")
	assert.Contains(t, text, "- shipments: Shipments of a batch")
	assert.NotContains(t, text, "schema_migrations")
}

func TestListTables_BackendDown(t *testing.T) {
	backend := fabric.NewMockBackend()
	backend.ListErr = errors.New("dial tcp: connection refused")
	tool := &ListTablesTool{cfg: Config{Cache: schema.New(backend)}.withDefaults()}

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeSchemaUnavailable, result.Error.Code)
	assert.True(t, result.Error.Retryable)
}

func TestGetSchema(t *testing.T) {
	exec, _ := demoTools(t)
	ctx := context.Background()

	result := exec.Execute(ctx, ToolGetSchema, map[string]interface{}{"tables": "beer_styles, production_batches, hop_contracts"})
	require.True(t, result.Success)

	payload, ok := result.Data.(*SchemaText)
	require.True(t, ok)
	assert.Equal(t, []string{"hop_contracts"}, payload.Unknown)

	text := shuttle.Render(result)
	assert.True(t, strings.HasPrefix(text, "Unknown tables ignored: hop_contracts"))
	assert.Contains(t, text, "Table: beer_styles")
	assert.Contains(t, text, "Table: production_batches")
	assert.NotContains(t, text, "Table: shipments")
}

func TestGetSchema_EmptyList(t *testing.T) {
	exec, _ := demoTools(t)

	for _, tables := range []string{"", " , ,"} {
		result := exec.Execute(context.Background(), ToolGetSchema, map[string]interface{}{"tables": tables})
		require.False(t, result.Success)
		assert.Equal(t, ErrCodeInvalidParams, result.Error.Code)
		assert.Contains(t, shuttle.Render(result), "No tables specified")
	}
}

func TestGetSchema_MissingParam(t *testing.T) {
	exec, _ := demoTools(t)

	result := exec.Execute(context.Background(), ToolGetSchema, map[string]interface{}{})
	require.False(t, result.Success)
	assert.Equal(t, shuttle.ErrCodeInvalidInput, result.Error.Code)
}

func TestSplitTables(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitTables(` a ,"b", A`))
	assert.Nil(t, SplitTables(""))
}

func TestQueryChecker(t *testing.T) {
	exec, tracer := demoTools(t)

	tests := []struct {
		name     string
		query    string
		valid    bool
		contains string
	}{
		{"valid gets limit", "SELECT name FROM beer_styles", true, "SELECT name FROM beer_styles LIMIT 100"},
		{"warning only", "SELECT * FROM beer_styles GROUP BY category", true, "[warning] SELECT * combined with GROUP BY"},
		{"dml rejected", "DELETE FROM shipments", false, "only SELECT queries are allowed"},
		{"smuggled dml", "SELECT 1; DROP TABLE shipments", false, "multiple SQL statements"},
		{"no from", "SELECT name LIMIT 5", false, "query has no FROM clause"},
		{"constant select", "SELECT 1", false, "query has no FROM clause"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := exec.Execute(context.Background(), ToolQueryChecker, map[string]interface{}{"query": tt.query})
			assert.Equal(t, tt.valid, result.Success)
			assert.Contains(t, shuttle.Render(result), tt.contains)
			if !tt.valid {
				assert.Equal(t, ErrCodeValidation, result.Error.Code)
			}
		})
	}

	assert.Equal(t, float64(len(tests)), tracer.MetricTotal(observability.MetricGuardrailChecks))
	assert.Equal(t, 4.0, tracer.MetricTotal(observability.MetricGuardrailBlocks))
}

func TestExecuteQuery(t *testing.T) {
	exec, _ := demoTools(t)

	result := exec.Execute(context.Background(), ToolExecuteQuery, map[string]interface{}{
		"query": "```sql\nSELECT name FROM beer_styles ORDER BY id\n```",
	})
	require.True(t, result.Success)

	qr, ok := result.Data.(*fabric.QueryResult)
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, qr.Columns)
	assert.Equal(t, 5, qr.RowCount())
	assert.Equal(t, "SELECT name FROM beer_styles ORDER BY id LIMIT 100", result.Metadata["query"])

	text := shuttle.Render(result)
	assert.True(t, strings.HasPrefix(text, "Query executed successfully. Returned 5 row(s)."))
	assert.Contains(t, text, "Results:\n[")
	assert.Contains(t, text, `"name": "West Coast IPA"`)
}

func TestExecuteQuery_ValidationError(t *testing.T) {
	exec, _ := demoTools(t)

	result := exec.Execute(context.Background(), ToolExecuteQuery, map[string]interface{}{"query": "UPDATE shipments SET revenue_usd = 0"})
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeValidation, result.Error.Code)
	assert.True(t, strings.HasPrefix(result.Error.Message, "SQL Error: invalid query: only SELECT"))
}

func TestExecuteQuery_ExecutionError(t *testing.T) {
	exec, _ := demoTools(t)
	ctx := ContextWithRunID(context.Background(), "run-1")

	params := map[string]interface{}{"query": "SELECT style_name FROM beer_styles"}
	result := exec.Execute(ctx, ToolExecuteQuery, params)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeExecution, result.Error.Code)
	assert.True(t, strings.HasPrefix(result.Error.Message, "SQL Error: "))
	assert.Equal(t, fabric.ErrorTypeColumnNotFound, result.Error.Details["error_type"])
	assert.Contains(t, result.Error.Suggestion, "get_schema")
	assert.True(t, result.Error.Retryable)

	// The same failing query again is called out.
	result = exec.Execute(ctx, ToolExecuteQuery, params)
	assert.Contains(t, result.Error.Suggestion, "This exact query already failed")
}

func TestExecuteQuery_TruncatesError(t *testing.T) {
	backend := fabric.NewMockBackend()
	backend.QueryFunc = func(ctx context.Context, query string) (*fabric.QueryResult, error) {
		return nil, errors.New(strings.Repeat("x", 2000))
	}
	tool := &ExecuteQueryTool{cfg: Config{Cache: schema.New(backend)}.withDefaults()}

	result, err := tool.Execute(context.Background(), map[string]interface{}{"query": "SELECT 1"})
	require.NoError(t, err)
	assert.Len(t, result.Error.Message, len("SQL Error: ")+maxErrorLength+len("..."))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	// "é" is two bytes, so an odd cut lands inside a rune.
	s := strings.Repeat("é", 300)
	got := truncate(s, maxErrorLength+1)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", maxErrorLength/2)+"...", got)

	assert.Equal(t, "short", truncate("short", maxErrorLength))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}

func TestExecuteQuery_EmptyResult(t *testing.T) {
	exec, _ := demoTools(t)

	result := exec.Execute(context.Background(), ToolExecuteQuery, map[string]interface{}{"query": "SELECT id FROM beer_styles WHERE abv > 50"})
	require.True(t, result.Success)
	assert.Contains(t, shuttle.Render(result), "Returned 0 row(s).")
}

func TestRunIDFromContext(t *testing.T) {
	assert.Empty(t, RunIDFromContext(context.Background()))
	assert.Equal(t, "abc", RunIDFromContext(ContextWithRunID(context.Background(), "abc")))
}
