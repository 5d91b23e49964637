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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/schema"
	"github.com/teradata-labs/quarry/pkg/types"
)

// KindFast labels fast agent metrics.
const KindFast = "fast"

// FastAgent answers with one model call: the full schema goes into the
// system prompt and the reply is taken as the SQL statement. There is no
// SQL retry. Transport retries belong to the provider (see llm.RetryProvider).
type FastAgent struct {
	provider types.LLMProvider
	cache    *schema.Cache
	opts     options
}

// NewFastAgent creates a fast agent.
func NewFastAgent(provider types.LLMProvider, cache *schema.Cache, opts ...Option) *FastAgent {
	return &FastAgent{provider: provider, cache: cache, opts: applyOptions(opts)}
}

// Run generates and executes SQL for question. It never returns an error;
// failures are reported in FastResult.Error.
func (a *FastAgent) Run(ctx context.Context, question string) (result *FastResult) {
	start := time.Now()
	result = &FastResult{}

	ctx, span := a.opts.tracer.StartSpan(ctx, observability.SpanAgentRun,
		observability.WithAttribute(observability.AttrAgentKind, KindFast))
	defer func() {
		if r := recover(); r != nil {
			a.opts.logger.Error("fast agent panicked", zap.Any("panic", r))
			result.Results = nil
			result.Error = fmt.Sprintf("internal error: %v", r)
		}
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		a.finish(span, result)
	}()

	schemaText, err := a.cache.Schema(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("Unable to load database schema: %v", err)
		return result
	}

	messages := []types.Message{
		types.SystemMessage(FastSystemPrompt(schemaText, a.opts.catalog.Get().PromptSection())),
		types.UserMessage(question),
	}
	resp, err := a.provider.Chat(ctx, messages, nil)
	if err != nil {
		a.opts.logger.Warn("fast agent model call failed", zap.Error(err))
		result.Error = fmt.Sprintf("LLM request failed: %v", err)
		return result
	}

	result.SQL = fabric.StripFormatting(resp.Content)
	sanitized, err := fabric.Sanitize(result.SQL)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.SQL = sanitized

	qr, err := a.cache.Backend().ExecuteQuery(ctx, sanitized)
	if err != nil {
		a.opts.logger.Debug("fast agent query failed", zap.String("sql", sanitized), zap.Error(err))
		result.Error = "SQL Error: " + err.Error()
		return result
	}
	if qr.RowCount() == 0 {
		qr = fabric.EmptyResult()
	}
	result.Results = qr
	return result
}

func (a *FastAgent) finish(span *observability.Span, result *FastResult) {
	outcome := "success"
	if result.Error != "" {
		outcome = "error"
		span.SetAttribute(observability.AttrErrorMessage, result.Error)
	} else {
		span.SetOK()
	}
	span.SetAttribute(observability.AttrAgentOutcome, outcome)
	span.SetAttribute("result.row_count", result.Results.RowCount())
	a.opts.tracer.EndSpan(span)

	a.opts.tracer.RecordMetric(observability.MetricAgentRuns, 1, map[string]string{
		observability.AttrAgentKind:    KindFast,
		observability.AttrAgentOutcome: outcome,
	})
	a.opts.tracer.RecordMetric(observability.MetricAgentLatency, float64(result.ExecutionTimeMs), map[string]string{
		observability.AttrAgentKind: KindFast,
	})
}
