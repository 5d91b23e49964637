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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/types"
)

// FollowUpCount is the number of follow-up questions always returned.
const FollowUpCount = 3

const sampleRowLimit = 5

var followUpInstructions = heredoc.Doc(`
	Suggest exactly 3 follow-up questions the user could ask next.

	Rules:
	- Only reference tables, columns and values that appear in the schema or data above.
	- Each question must be answerable with a single SQL query against this database.
	- Plain text only: one question per line, no numbering, no bullets, no markdown.`)

var (
	listMarker = regexp.MustCompile(`^\s*(?:\d+\s*[.):-]|[-*•+]|#+|Q\d*[.:)])\s*`)
	markup     = strings.NewReplacer("**", "", "__", "", "`", "")
)

// GenerateFollowUpQuestions proposes exactly FollowUpCount questions
// grounded in the schema. Missing or unusable model output is padded with
// schema-derived defaults.
func (g *Generator) GenerateFollowUpQuestions(ctx context.Context, question, sql string, result *fabric.QueryResult, insight string) []string {
	ctx, span := g.tracer.StartSpan(ctx, observability.SpanInsightsFollowUp)
	defer g.tracer.EndSpan(span)

	tables := g.schemaTables(ctx)
	defaults := DefaultFollowUps(tables)

	prompt := BuildFollowUpPrompt(question, sql, result, insight, tables)
	resp, err := g.provider.Chat(ctx, []types.Message{
		types.SystemMessage(systemPrompt),
		types.UserMessage(prompt),
	}, nil)
	if err != nil {
		span.RecordError(err)
		g.logger.Warn("follow-up generation failed, using defaults", zap.Error(err))
		return defaults
	}

	questions := ParseQuestions(resp.Content)
	span.SetAttribute("followup.parsed", len(questions))
	span.SetOK()
	return fill(questions, defaults)
}

// schemaTables returns the table descriptions, read directly when the
// cache cannot be initialized, or nil without a cache.
func (g *Generator) schemaTables(ctx context.Context) []*fabric.TableSchema {
	if g.cache == nil {
		return nil
	}
	tables, err := g.cache.Tables(ctx)
	if err != nil {
		g.logger.Debug("schema unavailable for follow-ups", zap.Error(err))
		return nil
	}
	return tables
}

// BuildFollowUpPrompt renders the follow-up prompt.
func BuildFollowUpPrompt(question, sql string, result *fabric.QueryResult, insight string, tables []*fabric.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\n", question)
	if sql != "" {
		fmt.Fprintf(&b, "SQL query: %s\n", sql)
	}

	b.WriteString("\nDatabase tables:\n")
	if len(tables) == 0 {
		b.WriteString("(schema unavailable)\n")
	}
	for _, t := range tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
		}
		fmt.Fprintf(&b, "- %s(%s)\n", t.Name, strings.Join(cols, ", "))
	}

	if result.RowCount() == 0 {
		b.WriteString("\nThe query returned NO rows. Suggest questions about related data that does exist in the tables above.\n")
	} else {
		rows, err := json.Marshal(result.Records(sampleRowLimit))
		if err != nil {
			rows = []byte(fmt.Sprintf("%v", result.Records(sampleRowLimit)))
		}
		fmt.Fprintf(&b, "\nSample result rows (%d of %d):\n%s\n", min(result.RowCount(), sampleRowLimit), result.RowCount(), rows)
	}
	if insight != "" {
		fmt.Fprintf(&b, "\nInsights already given:\n%s\n", insight)
	}
	b.WriteString("\n")
	b.WriteString(followUpInstructions)
	return b.String()
}

// ParseQuestions extracts questions from model output, dropping numbering,
// bullets, markdown and duplicates.
func ParseQuestions(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		q := strings.TrimSpace(markup.Replace(line))
		q = strings.TrimSpace(listMarker.ReplaceAllString(q, ""))
		q = strings.Trim(q, `"'`)
		if len(q) < 10 || !strings.Contains(q, "?") {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// DefaultFollowUps derives FollowUpCount questions from the schema.
func DefaultFollowUps(tables []*fabric.TableSchema) []string {
	var out []string
	for _, t := range tables {
		if len(out) == FollowUpCount {
			break
		}
		name := strings.ReplaceAll(t.Name, "_", " ")
		switch len(out) {
		case 0:
			out = append(out, fmt.Sprintf("How many %s are there in total?", name))
		case 1:
			if col, ok := firstNumeric(t); ok {
				out = append(out, fmt.Sprintf("What is the total %s across all %s?", strings.ReplaceAll(col, "_", " "), name))
			} else {
				out = append(out, fmt.Sprintf("What are the most recent %s?", name))
			}
		default:
			out = append(out, fmt.Sprintf("Which %s appear most often?", name))
		}
	}
	return fill(out, []string{
		"What data is available in the database?",
		"Which tables hold the most records?",
		"What changed most over the last month?",
	})
}

func firstNumeric(t *fabric.TableSchema) (string, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, "id") || strings.HasSuffix(strings.ToLower(c.Name), "_id") {
			continue
		}
		dt := strings.ToLower(c.DataType)
		for _, kind := range []string{"int", "real", "numeric", "decimal", "double", "float"} {
			if strings.Contains(dt, kind) {
				return c.Name, true
			}
		}
	}
	return "", false
}

// fill trims qs to FollowUpCount or pads it from defaults, skipping
// duplicates.
func fill(qs, defaults []string) []string {
	out := make([]string, 0, FollowUpCount)
	seen := make(map[string]bool)
	for _, list := range [][]string{qs, defaults} {
		for _, q := range list {
			if len(out) == FollowUpCount {
				return out
			}
			if seen[strings.ToLower(q)] {
				continue
			}
			seen[strings.ToLower(q)] = true
			out = append(out, q)
		}
	}
	for len(out) < FollowUpCount {
		out = append(out, fmt.Sprintf("What else would you like to know? (%d)", len(out)+1))
	}
	return out
}
