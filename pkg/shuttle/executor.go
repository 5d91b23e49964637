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
package shuttle

import (
	"context"
	"fmt"
	"time"

	"github.com/teradata-labs/quarry/pkg/observability"
)

// Error codes set by the executor itself.
const (
	ErrCodeUnknownTool     = "unknown_tool"
	ErrCodeInvalidInput    = "invalid_input"
	ErrCodeExecutionFailed = "execution_failed"
)

// Executor executes tools with input validation, timing and tracing.
// It never returns a nil Result.
type Executor struct {
	registry *Registry
	tracer   observability.Tracer
}

// NewExecutor creates a new tool executor.
func NewExecutor(registry *Registry, tracer observability.Tracer) *Executor {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Executor{
		registry: registry,
		tracer:   tracer,
	}
}

// Registry returns the registry the executor resolves tools from.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute executes a tool by name with the given parameters.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]interface{}) *Result {
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanToolExecute,
		observability.WithSpanKind("tool"),
		observability.WithAttribute(observability.AttrToolName, toolName))
	defer e.tracer.EndSpan(span)

	tool, ok := e.registry.Get(toolName)
	if !ok {
		e.record(toolName, "unknown", 0)
		return Failure(ErrCodeUnknownTool,
			fmt.Sprintf("Unknown tool %q.", toolName),
			fmt.Sprintf("Available tools: %v", e.registry.List()))
	}

	if err := ValidateInput(tool.InputSchema(), params); err != nil {
		span.RecordError(err)
		e.record(toolName, "invalid_input", 0)
		return Failure(ErrCodeInvalidInput,
			fmt.Sprintf("Invalid input for %s: %v", toolName, err),
			"Check the tool's input schema and call it again.")
	}

	start := time.Now()
	result, err := tool.Execute(ctx, params)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		result = Failure(ErrCodeExecutionFailed, err.Error(), "")
	}
	if result == nil {
		result = &Result{Success: true}
	}
	// Executor timing is authoritative.
	result.ExecutionTimeMs = duration.Milliseconds()

	status := "success"
	if !result.Success {
		status = "failure"
		if result.Error != nil {
			span.SetAttribute(observability.AttrErrorType, result.Error.Code)
		}
	} else {
		span.SetOK()
	}
	e.record(toolName, status, duration)

	return result
}

func (e *Executor) record(toolName, status string, duration time.Duration) {
	e.tracer.RecordMetric(observability.MetricToolExecutions, 1, map[string]string{
		observability.AttrToolName:   toolName,
		observability.AttrToolStatus: status,
	})
	if duration > 0 {
		e.tracer.RecordMetric(observability.MetricToolDuration, float64(duration.Milliseconds()), map[string]string{
			observability.AttrToolName: toolName,
		})
	}
}
