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
package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/quarry/pkg/backends/sqlite"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/llm/llmtest"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/schema"
)

const volumeByStyle = "```sql\n" +
	"SELECT s.name, SUM(b.actual_volume_hl) AS total_volume_hl\n" +
	"FROM beer_styles s JOIN production_batches b ON b.beer_style_id = s.id\n" +
	"GROUP BY s.name ORDER BY total_volume_hl DESC\n" +
	"```"

func demoCache(t *testing.T) *schema.Cache {
	t.Helper()
	backend, err := sqlite.OpenDemo(context.Background(), zaptest.NewLogger(t))
	require.NoError(t, err)
	cache := schema.New(backend, schema.WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestFastAgent_VolumeByStyle(t *testing.T) {
	provider := llmtest.New(llmtest.Text(volumeByStyle))
	tracer := observability.NewMockTracer()
	agent := NewFastAgent(provider, demoCache(t), WithTracer(tracer), WithLogger(zaptest.NewLogger(t)))

	result := agent.Run(context.Background(), "What is our production volume by beer style?")
	require.NotNil(t, result)
	require.Empty(t, result.Error)

	assert.True(t, strings.HasPrefix(result.SQL, "SELECT s.name"))
	assert.Contains(t, result.SQL, "JOIN production_batches")
	assert.True(t, strings.HasSuffix(result.SQL, "LIMIT 100"))

	require.NotNil(t, result.Results)
	assert.Equal(t, []string{"name", "total_volume_hl"}, result.Results.Columns)
	assert.Equal(t, "Czech Pilsner", result.Results.Rows[0][0])
	assert.InDelta(t, 152.5, result.Results.Rows[0][1], 0.001)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))

	prompt := provider.LastPrompt()
	assert.Contains(t, prompt, "Table: beer_styles")
	assert.Contains(t, prompt, "Table: shipments")
	assert.Contains(t, prompt, "Join patterns:")
	assert.Contains(t, prompt, "Naming hints:")
	assert.Contains(t, prompt, "What is our production volume by beer style?")
	assert.Empty(t, provider.Calls()[0].Tools)

	assert.Equal(t, 1.0, tracer.MetricTotal(observability.MetricAgentRuns))
	span := tracer.GetSpanByName(observability.SpanAgentRun)
	require.NotNil(t, span)
	outcome, _ := span.Attribute(observability.AttrAgentOutcome)
	assert.Equal(t, "success", outcome)
}

func TestFastAgent_EmptyResult(t *testing.T) {
	provider := llmtest.New(llmtest.Text("SQL: SELECT name FROM beer_styles WHERE abv > 50;"))
	agent := NewFastAgent(provider, demoCache(t))

	result := agent.Run(context.Background(), "Which styles are stronger than 50%?")
	assert.Empty(t, result.Error)
	assert.Equal(t, "SELECT name FROM beer_styles WHERE abv > 50 LIMIT 100", result.SQL)
	require.NotNil(t, result.Results)
	assert.Equal(t, fabric.EmptyResult(), result.Results)
}

func TestFastAgent_Failures(t *testing.T) {
	tests := []struct {
		name      string
		step      llmtest.Step
		wantError string
	}{
		{
			name:      "rejected by sanitizer",
			step:      llmtest.Text("DELETE FROM shipments"),
			wantError: "invalid query: only SELECT queries are allowed",
		},
		{
			name:      "multiple statements",
			step:      llmtest.Text("SELECT 1; SELECT 2"),
			wantError: "invalid query: multiple SQL statements are not allowed",
		},
		{
			name:      "unknown table",
			step:      llmtest.Text("SELECT * FROM hop_contracts"),
			wantError: "SQL Error: ",
		},
		{
			name:      "model unavailable",
			step:      llmtest.Fail(errors.New("503 service unavailable")),
			wantError: "LLM request failed: 503 service unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := NewFastAgent(llmtest.New(tt.step), demoCache(t))

			var result *FastResult
			require.NotPanics(t, func() {
				result = agent.Run(context.Background(), "question")
			})
			assert.True(t, strings.HasPrefix(result.Error, tt.wantError), result.Error)
			assert.Nil(t, result.Results)
		})
	}
}

func TestFastAgent_SchemaUnavailable(t *testing.T) {
	backend := fabric.NewMockBackend()
	backend.ListErr = errors.New("connection refused")
	provider := llmtest.New(llmtest.Text("SELECT 1"))
	agent := NewFastAgent(provider, schema.New(backend))

	result := agent.Run(context.Background(), "anything")
	assert.True(t, strings.HasPrefix(result.Error, "Unable to load database schema"))
	assert.Zero(t, provider.CallCount())
}

func TestFastSystemPrompt(t *testing.T) {
	prompt := FastSystemPrompt("", "")
	assert.Contains(t, prompt, "(schema unavailable)")
	assert.Contains(t, prompt, "Return ONLY the SQL statement.")
	assert.False(t, strings.HasSuffix(prompt, "\n"))
}

func cacheOver(backend fabric.ExecutionBackend) *schema.Cache {
	return schema.New(backend)
}
