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
package insights

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

func volumeResult(n int) *fabric.QueryResult {
	r := &fabric.QueryResult{Columns: []string{"name", "total_volume_hl"}}
	for i := 0; i < n; i++ {
		r.Rows = append(r.Rows, []any{"Style", float64(i) * 10})
	}
	return r
}

func TestGenerateInsights_EmptyResultSkipsModel(t *testing.T) {
	provider := llmtest.New(llmtest.Text("should not be used"))
	g := NewGenerator(provider, nil)

	for _, result := range []*fabric.QueryResult{nil, fabric.EmptyResult()} {
		out := g.GenerateInsights(context.Background(), "q", "SELECT 1", result, ModeQuick)
		assert.Equal(t, NoDataMessage, out)
	}
	assert.Zero(t, provider.CallCount())
}

func TestGenerateInsights_Quick(t *testing.T) {
	provider := llmtest.New(llmtest.Text("  Czech Pilsner leads with **152.5 hl**.  "))
	tracer := observability.NewMockTracer()
	g := NewGenerator(provider, nil, WithTracer(tracer), WithLogger(zaptest.NewLogger(t)))

	out := g.GenerateInsights(context.Background(), "volume by style?", "SELECT ...", volumeResult(3), ModeQuick)
	assert.Equal(t, "Czech Pilsner leads with **152.5 hl**.", out)

	prompt := provider.LastPrompt()
	assert.Contains(t, prompt, "Question: volume by style?")
	assert.Contains(t, prompt, "Rows returned: 3 (showing 3)")
	assert.Contains(t, prompt, "3 to 5 sentences")

	span := tracer.GetSpanByName(observability.SpanInsightsGenerate)
	require.NotNil(t, span)
	mode, _ := span.Attribute(observability.AttrInsightsMode)
	assert.Equal(t, "quick", mode)
}

func TestBuildPrompt_ModeBranching(t *testing.T) {
	result := volumeResult(60)

	quick := BuildPrompt("q", "SELECT 1", result, ModeQuick)
	pro := BuildPrompt("q", "SELECT 1", result, ModePro)

	assert.Contains(t, quick, "Rows returned: 60 (showing 10)")
	assert.Contains(t, pro, "Rows returned: 60 (showing 50)")
	assert.Equal(t, 10, strings.Count(quick, `"name": "Style"`))
	assert.Equal(t, 50, strings.Count(pro, `"name": "Style"`))

	for _, section := range []string{"## Key Findings", "## Financial Impact", "## Risk Areas & Opportunities", "## Actionable Recommendations"} {
		assert.Contains(t, pro, section)
		assert.NotContains(t, quick, section)
	}
	assert.Greater(t, len(pro), len(quick))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModePro, ParseMode("PRO"))
	assert.Equal(t, ModeQuick, ParseMode("quick"))
	assert.Equal(t, ModeQuick, ParseMode("detailed"))
	assert.Equal(t, ModeQuick, ParseMode(""))
}

func TestGenerateInsights_UnknownModeIsQuick(t *testing.T) {
	provider := llmtest.New(llmtest.Text("ok"))
	g := NewGenerator(provider, nil)

	g.GenerateInsights(context.Background(), "q", "", volumeResult(2), Mode("verbose"))
	assert.Contains(t, provider.LastPrompt(), "3 to 5 sentences")
}

func TestGenerateInsights_Fallback(t *testing.T) {
	tests := []struct {
		name string
		step llmtest.Step
	}{
		{"model error", llmtest.Fail(errors.New("timeout"))},
		{"empty reply", llmtest.Text("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(llmtest.New(tt.step), nil)
			out := g.GenerateInsights(context.Background(), "q", "", volumeResult(7), ModePro)
			assert.Equal(t, FallbackInsights(7), out)
			assert.Contains(t, out, "**7 rows**")
		})
	}
	assert.Contains(t, FallbackInsights(1), "**1 row**")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  string
		want ErrorCategory
	}{
		{`ERROR: relation "hop_contracts" does not exist (SQLSTATE 42P01)`, CategoryNotFound},
		{"SQL Error: no such column: style_name", CategoryNotFound},
		{"Error 1054: Unknown column 'x' in 'field list'", CategoryNotFound},
		{"ERROR: permission denied for table shipments", CategoryReadOnly},
		{"cannot execute INSERT in a read-only transaction", CategoryReadOnly},
		{"invalid query: only SELECT queries are allowed", CategoryReadOnly},
		{`ERROR: syntax error at or near "FORM"`, CategorySyntax},
		{"DATABASE_URL is not set", CategoryConfiguration},
		{"dial tcp 127.0.0.1:5432: connect: connection refused", CategoryConfiguration},
		{"database not configured", CategoryConfiguration},
		{"something odd happened", CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestGenerateErrorInsights(t *testing.T) {
	notFound := GenerateErrorInsights("revenue by hop?", "SELECT ...", `relation "hops" does not exist`)
	assert.True(t, strings.HasPrefix(notFound, "**A table or column in the query was not found.**"))
	assert.Contains(t, notFound, `Your question: "revenue by hop?"`)
	assert.Contains(t, notFound, "- What is our production volume by beer style?")

	readOnly := GenerateErrorInsights("delete old rows", "", "permission denied")
	assert.True(t, strings.HasPrefix(readOnly, "**This database is read-only.**"))

	generic := GenerateErrorInsights("", "", "boom")
	assert.True(t, strings.HasPrefix(generic, "**Something went wrong"))
	assert.NotContains(t, generic, "Your question")

	g := NewGenerator(llmtest.New(), nil)
	assert.Equal(t, readOnly, g.GenerateErrorInsights("delete old rows", "", "permission denied"))
}

func TestParseQuestions(t *testing.T) {
	text := "Here are some ideas:\n" +
		"1. **Which distributor bought the most Czech Pilsner?**\n" +
		"2) How did revenue change between January and February?\n" +
		"- `What is the average ABV by category?`\n" +
		"* Which distributor bought the most Czech Pilsner?\n" +
		"### Not a question\n" +
		"\"How many batches are still fermenting?\"\n"

	assert.Equal(t, []string{
		"Which distributor bought the most Czech Pilsner?",
		"How did revenue change between January and February?",
		"What is the average ABV by category?",
		"How many batches are still fermenting?",
	}, ParseQuestions(text))
	assert.Empty(t, ParseQuestions(""))
}

func demoGenerator(t *testing.T, steps ...llmtest.Step) (*Generator, *llmtest.Provider) {
	t.Helper()
	backend, err := sqlite.OpenDemo(context.Background(), zaptest.NewLogger(t))
	require.NoError(t, err)
	cache := schema.New(backend)
	t.Cleanup(func() { _ = cache.Close() })
	provider := llmtest.New(steps...)
	return NewGenerator(provider, cache), provider
}

func TestGenerateFollowUpQuestions_ExactlyThree(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"five trimmed", "1. A one?\n2. B two two?\n3. C three?\n4. D fourfour?\n5. E fivefive?", 3},
		{"one padded", "Which distributor bought the most?", 3},
		{"garbage padded", "no questions here", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := demoGenerator(t, llmtest.Text(tt.reply))
			qs := g.GenerateFollowUpQuestions(context.Background(), "volume by style?", "SELECT 1", volumeResult(2), "")
			assert.Len(t, qs, tt.want)
		})
	}
}

func TestGenerateFollowUpQuestions_Grounding(t *testing.T) {
	g, provider := demoGenerator(t, llmtest.Text(
		"Which distributor received the most Czech Pilsner?\nHow much revenue did each region generate?\nWhat is the average ABV per category?"))

	qs := g.GenerateFollowUpQuestions(context.Background(), "volume by style?", "SELECT ...", volumeResult(2), "Pilsner leads.")
	assert.Equal(t, "Which distributor received the most Czech Pilsner?", qs[0])

	prompt := provider.LastPrompt()
	assert.Contains(t, prompt, "- beer_styles(id, name, category, abv, ibu)")
	assert.Contains(t, prompt, "Sample result rows (2 of 2)")
	assert.Contains(t, prompt, "Insights already given:\nPilsner leads.")
	assert.NotContains(t, prompt, "schema_migrations")
}

func TestGenerateFollowUpQuestions_SchemaReadDirectlyWhenCacheFails(t *testing.T) {
	backend := fabric.NewMockBackend(
		&fabric.TableSchema{Name: "distributors", Columns: []fabric.Column{
			{Name: "id", DataType: "integer"},
			{Name: "region", DataType: "text"},
		}},
	)
	// The cache's catalog scan fails; the direct read right after succeeds.
	backend.ListErr = errors.New("connection reset by peer")
	backend.OnList = func() {
		if backend.ListCalls() >= 1 {
			backend.SetListErr(nil)
		}
	}
	cache := schema.New(backend)
	provider := llmtest.New(llmtest.Text("Which region has the most distributors?"))
	g := NewGenerator(provider, cache)

	qs := g.GenerateFollowUpQuestions(context.Background(), "distributors?", "", volumeResult(1), "")
	require.Len(t, qs, 3)
	assert.Equal(t, "Which region has the most distributors?", qs[0])

	prompt := provider.LastPrompt()
	assert.Contains(t, prompt, "- distributors(id, region)")
	assert.NotContains(t, prompt, "(schema unavailable)")
	assert.Nil(t, cache.Status())
}

func TestGenerateFollowUpQuestions_EmptyResultFlagged(t *testing.T) {
	g, provider := demoGenerator(t, llmtest.Text(""))

	qs := g.GenerateFollowUpQuestions(context.Background(), "hop contracts?", "", fabric.EmptyResult(), "")
	assert.Len(t, qs, 3)
	assert.Contains(t, provider.LastPrompt(), "The query returned NO rows.")
	assert.Equal(t, "How many beer styles are there in total?", qs[0])
}

func TestGenerateFollowUpQuestions_ModelFailure(t *testing.T) {
	g, _ := demoGenerator(t, llmtest.Fail(errors.New("rate limited")))

	qs := g.GenerateFollowUpQuestions(context.Background(), "q", "", nil, "")
	require.Len(t, qs, 3)
	assert.Equal(t, "How many beer styles are there in total?", qs[0])
}

func TestDefaultFollowUps_NoSchema(t *testing.T) {
	qs := DefaultFollowUps(nil)
	assert.Equal(t, []string{
		"What data is available in the database?",
		"Which tables hold the most records?",
		"What changed most over the last month?",
	}, qs)

	g := NewGenerator(llmtest.New(llmtest.Fail(errors.New("down"))), nil)
	assert.Equal(t, qs, g.GenerateFollowUpQuestions(context.Background(), "q", "", nil, ""))
}

func TestDefaultFollowUps_NumericColumn(t *testing.T) {
	tables := []*fabric.TableSchema{
		{Name: "beer_styles", Columns: []fabric.Column{{Name: "id", DataType: "INTEGER"}}},
		{Name: "shipments", Columns: []fabric.Column{
			{Name: "id", DataType: "INTEGER"},
			{Name: "batch_id", DataType: "INTEGER"},
			{Name: "revenue_usd", DataType: "REAL"},
		}},
	}
	qs := DefaultFollowUps(tables)
	assert.Equal(t, "What is the total revenue usd across all shipments?", qs[1])
	assert.Len(t, qs, 3)
}
