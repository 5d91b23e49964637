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
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/schema"
	"github.com/teradata-labs/quarry/pkg/shuttle"
	"github.com/teradata-labs/quarry/pkg/shuttle/sqltools"
	"github.com/teradata-labs/quarry/pkg/types"
)

// KindReAct labels ReAct agent metrics.
const KindReAct = "react"

// Error texts reported by ReAct runs.
const (
	errNoResults     = "Query execution did not return results"
	codeIllegalState = "illegal_transition"
)

// ReActAgent answers through the SQL tools. The model chooses each tool
// call; a Machine decides whether the call may run and caps retries,
// invalid calls and turns.
type ReActAgent struct {
	provider types.LLMProvider
	executor *shuttle.Executor
	tools    []shuttle.Tool
	opts     options
}

// NewReActAgent creates a ReAct agent over cache.
func NewReActAgent(provider types.LLMProvider, cache *schema.Cache, opts ...Option) *ReActAgent {
	o := applyOptions(opts)
	registry := sqltools.NewRegistry(sqltools.Config{
		Cache:      cache,
		Catalog:    o.catalog,
		Guardrails: o.guardrails,
		Tracer:     o.tracer,
		Logger:     o.logger,
	})
	return &ReActAgent{
		provider: provider,
		executor: shuttle.NewExecutor(registry, o.tracer),
		tools:    registry.ListTools(),
		opts:     o,
	}
}

// Limits returns the run limits.
func (a *ReActAgent) Limits() Limits { return a.opts.limits }

// run holds the state of one Run call.
type run struct {
	result   *ReActResult
	machine  *Machine
	messages []types.Message
	sawSQL   bool
}

func (r *run) step(kind, tool string, input map[string]interface{}, output string) {
	r.result.Trace = append(r.result.Trace, TraceStep{
		Kind:   kind,
		Tool:   tool,
		Input:  input,
		Output: output,
		State:  r.machine.State(),
	})
}

// Run answers question. It never returns an error; failures are reported in
// ReActResult.Error. Error is cleared when a later execution succeeds.
func (a *ReActAgent) Run(ctx context.Context, question string) (result *ReActResult) {
	start := time.Now()
	runID := uuid.NewString()
	limits := a.opts.limits
	r := &run{
		result:  &ReActResult{RunID: runID, Trace: []TraceStep{}},
		machine: NewMachine(limits),
		messages: []types.Message{
			types.SystemMessage(ReActSystemPrompt(limits.MaxRetries, a.opts.catalog.Get().PromptSection())),
			types.UserMessage(question),
		},
	}
	result = r.result
	logger := a.opts.logger.With(zap.String("run_id", runID))

	ctx = sqltools.ContextWithRunID(ctx, runID)
	ctx, span := a.opts.tracer.StartSpan(ctx, observability.SpanAgentRun,
		observability.WithAttribute(observability.AttrAgentKind, KindReAct),
		observability.WithAttribute(observability.AttrRunID, runID))
	defer func() {
		if p := recover(); p != nil {
			logger.Error("react agent panicked", zap.Any("panic", p))
			r.machine.Abort("internal error")
			result.SQL = ""
			result.Results = nil
			result.Error = fmt.Sprintf("internal error: %v", p)
		}
		a.opts.guardrails.ClearErrorRecord(runID)
		result.FinalState = r.machine.State()
		result.Retries = r.machine.Attempt()
		result.Violations = r.machine.Violations()
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		a.finish(span, result)
	}()

	for !r.machine.Terminal() {
		if result.Turns >= limits.MaxTurns {
			if result.Results != nil {
				r.machine.Finish()
			} else {
				r.machine.Abort(fmt.Sprintf("no answer after %d turns", limits.MaxTurns))
			}
			break
		}
		result.Turns++

		resp, err := a.provider.Chat(ctx, r.messages, a.tools)
		if err != nil {
			logger.Warn("react agent model call failed", zap.Int("turn", result.Turns), zap.Error(err))
			r.machine.Abort("model call failed")
			result.SQL = ""
			result.Results = nil
			result.Error = fmt.Sprintf("Agent execution failed: %v", err)
			return result
		}

		r.messages = append(r.messages, types.Message{
			Role:      types.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if resp.Content != "" {
			r.step(StepAssistant, "", nil, resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			result.Answer = resp.Content
			r.machine.Finish()
			break
		}

		for _, call := range resp.ToolCalls {
			a.handleCall(ctx, r, call, logger)
			if r.machine.Terminal() {
				break
			}
		}
	}

	r.settle()
	return result
}

// settle fills in Error for runs that ended without one.
func (r *run) settle() {
	if r.machine.Phase() == PhaseFailed && r.result.Error == "" && r.result.Results == nil {
		r.result.Error = r.machine.Reason()
	}
	if r.sawSQL && r.result.Results == nil && r.result.Error == "" {
		r.result.Error = errNoResults
	}
}

// handleCall runs one tool call, or rejects it when the machine does not
// allow it, and appends the tool reply to the conversation.
func (a *ReActAgent) handleCall(ctx context.Context, r *run, call types.ToolCall, logger *zap.Logger) {
	r.step(StepToolCall, call.Name, call.Input, "")

	if !r.machine.Allowed(call.Name) {
		reply := shuttle.Failure(codeIllegalState, r.machine.correction(call.Name), "")
		exceeded := r.machine.Reject(call.Name)
		logger.Debug("rejected tool call",
			zap.String("tool", call.Name),
			zap.String("state", r.machine.State()),
			zap.Int("violations", r.machine.Violations()))
		a.reply(r, call, reply)
		if exceeded && r.result.Results == nil {
			r.result.Error = r.machine.Reason()
		}
		return
	}

	if call.Name == sqltools.ToolExecuteQuery {
		if q, ok := call.Input["query"].(string); ok {
			r.result.SQL = q
			r.sawSQL = true
		}
	}

	res := a.executor.Execute(ctx, call.Name, call.Input)
	if call.Name == sqltools.ToolExecuteQuery {
		a.recordExecution(r, res)
	}
	r.machine.Complete(call.Name, res.Success)
	a.reply(r, call, res)
}

// recordExecution updates SQL, Results and Error from a structured
// execute_query result.
func (a *ReActAgent) recordExecution(r *run, res *shuttle.Result) {
	if q, ok := res.Metadata["query"].(string); ok && q != "" {
		r.result.SQL = q
	}
	if !res.Success {
		msg := "SQL Error: unknown failure"
		if res.Error != nil {
			msg = res.Error.Message
		}
		r.result.Error = msg
		a.opts.tracer.RecordMetric(observability.MetricAgentRetries, 1, map[string]string{
			observability.AttrAgentKind: KindReAct,
		})
		return
	}

	qr, ok := res.Data.(*fabric.QueryResult)
	if !ok || qr == nil {
		r.result.Results = nil
		r.result.Error = fmt.Sprintf("%s: unexpected payload %T", ErrParseResults, res.Data)
		return
	}
	if qr.RowCount() == 0 {
		qr = fabric.EmptyResult()
	}
	r.result.Results = qr
	r.result.Error = ""
}

func (a *ReActAgent) reply(r *run, call types.ToolCall, res *shuttle.Result) {
	text := shuttle.Render(res)
	r.messages = append(r.messages, types.Message{
		Role:       types.RoleTool,
		Content:    text,
		ToolUseID:  call.ID,
		ToolResult: res,
	})
	r.step(StepToolResult, call.Name, nil, text)
}

func (a *ReActAgent) finish(span *observability.Span, result *ReActResult) {
	outcome := "success"
	switch {
	case result.Error != "":
		outcome = "error"
		span.SetAttribute(observability.AttrErrorMessage, result.Error)
	case result.FinalState != PhaseDone.String():
		outcome = "incomplete"
	default:
		span.SetOK()
	}
	span.SetAttribute(observability.AttrAgentOutcome, outcome)
	span.SetAttribute(observability.AttrAgentState, result.FinalState)
	span.SetAttribute("agent.turns", result.Turns)
	span.SetAttribute("agent.retries", result.Retries)
	span.SetAttribute("agent.violations", result.Violations)
	a.opts.tracer.EndSpan(span)

	a.opts.tracer.RecordMetric(observability.MetricAgentRuns, 1, map[string]string{
		observability.AttrAgentKind:    KindReAct,
		observability.AttrAgentOutcome: outcome,
	})
	a.opts.tracer.RecordMetric(observability.MetricAgentLatency, float64(result.ExecutionTimeMs), map[string]string{
		observability.AttrAgentKind: KindReAct,
	})
}

// IsParseError reports whether msg came from a malformed result payload.
func IsParseError(msg string) bool {
	return strings.HasPrefix(msg, ErrParseResults.Error())
}
