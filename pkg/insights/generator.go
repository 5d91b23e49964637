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

// Package insights narrates query results for business users. It writes
// the insight text and the follow-up questions that accompany an answer,
// and turns query failures into friendly remediation messages.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/schema"
	"github.com/teradata-labs/quarry/pkg/types"
)

// Mode selects the depth of the generated insights.
type Mode string

const (
	ModeQuick Mode = "quick"
	ModePro   Mode = "pro"
)

// Row limits embedded in the prompt per mode.
const (
	quickRowLimit = 10
	proRowLimit   = 50
)

// ParseMode maps s to a Mode. Anything other than "pro" is quick.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModePro)) {
		return ModePro
	}
	return ModeQuick
}

func (m Mode) rowLimit() int {
	if m == ModePro {
		return proRowLimit
	}
	return quickRowLimit
}

// NoDataMessage is returned for empty results without calling the model.
var NoDataMessage = heredoc.Doc(`
	**No data found.** The query ran successfully but returned no rows.

	This usually means the filters were too narrow or the data has not been recorded yet. You could try:
	- widening the date range
	- removing a filter such as a region, status or style
	- asking what values exist first, for example "Which beer styles do we produce?"`)

const systemPrompt = "You are a senior business analyst for a craft brewery. " +
	"You explain query results to managers in clear, concise language grounded only in the data provided."

var quickInstructions = heredoc.Doc(`
	Write ONE paragraph of 3 to 5 sentences that answers the question directly.
	Bold exactly one key metric using **double asterisks**.
	Do not use headings or bullet lists.`)

var proInstructions = heredoc.Doc(`
	Write a structured markdown report with exactly these four sections:

	## Key Findings
	## Financial Impact
	## Risk Areas & Opportunities
	## Actionable Recommendations

	Requirements:
	- At least 300 words in total.
	- Cite at least 5 concrete numbers taken from the data.
	- Give at least 3 numbered recommendations, each tied to a finding.
	- Do not invent figures that are not in the data.`)

var errEmptyResponse = errors.New("empty model response")

// Generator writes insights and follow-up questions.
type Generator struct {
	provider types.LLMProvider
	cache    *schema.Cache
	tracer   observability.Tracer
	logger   *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(g *Generator) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a generator. cache grounds follow-up questions in
// the real schema and may be nil.
func NewGenerator(provider types.LLMProvider, cache *schema.Cache, opts ...Option) *Generator {
	g := &Generator{
		provider: provider,
		cache:    cache,
		tracer:   observability.NewNoOpTracer(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateInsights narrates result as an answer to question. Empty results
// get NoDataMessage; a failed model call gets a templated summary.
func (g *Generator) GenerateInsights(ctx context.Context, question, sql string, result *fabric.QueryResult, mode Mode) string {
	if result.RowCount() == 0 {
		return NoDataMessage
	}
	mode = ParseMode(string(mode))

	ctx, span := g.tracer.StartSpan(ctx, observability.SpanInsightsGenerate,
		observability.WithAttribute(observability.AttrInsightsMode, string(mode)))
	defer g.tracer.EndSpan(span)

	resp, err := g.provider.Chat(ctx, []types.Message{
		types.SystemMessage(systemPrompt),
		types.UserMessage(BuildPrompt(question, sql, result, mode)),
	}, nil)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err == nil {
			err = errEmptyResponse
		}
		span.RecordError(err)
		g.logger.Warn("insights generation failed, using fallback", zap.String("mode", string(mode)), zap.Error(err))
		return FallbackInsights(result.RowCount())
	}
	span.SetOK()
	return strings.TrimSpace(resp.Content)
}

// BuildPrompt renders the user prompt for GenerateInsights.
func BuildPrompt(question, sql string, result *fabric.QueryResult, mode Mode) string {
	limit := mode.rowLimit()
	rows, err := json.MarshalIndent(result.Records(limit), "", "  ")
	if err != nil {
		rows = []byte(fmt.Sprintf("%v", result.Records(limit)))
	}

	instructions := quickInstructions
	if mode == ModePro {
		instructions = proInstructions
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	if sql != "" {
		fmt.Fprintf(&b, "SQL query:\n%s\n\n", sql)
	}
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(result.Columns, ", "))
	shown := result.RowCount()
	if shown > limit {
		shown = limit
	}
	fmt.Fprintf(&b, "Rows returned: %d (showing %d)\n\n", result.RowCount(), shown)
	fmt.Fprintf(&b, "Data:\n%s\n\n", rows)
	b.WriteString(instructions)
	return b.String()
}

// FallbackInsights is used when the model cannot be reached.
func FallbackInsights(rowCount int) string {
	noun := "rows"
	if rowCount == 1 {
		noun = "row"
	}
	return fmt.Sprintf("The query returned **%d %s**. Automated insights are unavailable right now; "+
		"review the table below for the details.", rowCount, noun)
}
