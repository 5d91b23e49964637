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

	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/shuttle"
)

// ExecuteQueryTool sanitizes and runs a query against the backend.
// On success Result.Data is the *fabric.QueryResult; Result.Metadata
// "query" always holds the statement that was (or would have been) run.
type ExecuteQueryTool struct {
	cfg Config
}

func (t *ExecuteQueryTool) Name() string { return ToolExecuteQuery }

func (t *ExecuteQueryTool) Description() string {
	return "Executes a read-only SELECT query and returns the rows as JSON. " +
		"Queries without a LIMIT get LIMIT 100. On error, read the message, fix the query and try again."
}

func (t *ExecuteQueryTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema(
		"Query to execute",
		map[string]*shuttle.JSONSchema{
			"query": shuttle.NewStringSchema("A single SELECT statement"),
		},
		[]string{"query"},
	)
}

func (t *ExecuteQueryTool) Backend() string { return "" }

func (t *ExecuteQueryTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	raw := stringParam(params, "query")

	sanitized, err := fabric.Sanitize(raw)
	if err != nil {
		report := &CheckReport{Query: raw, Reason: err.Error()}
		var verr *fabric.ValidationError
		if errors.As(err, &verr) {
			report.Reason = verr.Reason
		}
		recordCheck(t.cfg.Tracer, report)

		r := shuttle.Failure(ErrCodeValidation,
			"SQL Error: "+truncate(err.Error(), maxErrorLength),
			"Only single SELECT statements can run. Rewrite the query and try again.")
		r.Error.Retryable = true
		r.Metadata = map[string]interface{}{"query": raw}
		return r, nil
	}
	recordCheck(t.cfg.Tracer, &CheckReport{Query: sanitized, Valid: true})

	result, err := t.cfg.Cache.Backend().ExecuteQuery(ctx, sanitized)
	if err != nil {
		runID := RunIDFromContext(ctx)
		correction := t.cfg.Guardrails.HandleError(runID, sanitized, err.Error())
		t.cfg.Logger.Debug("query failed",
			zap.String("run_id", runID),
			zap.String("error_type", correction.ErrorType),
			zap.Int("attempt", correction.AttemptCount),
			zap.Error(err))

		r := shuttle.Failure(ErrCodeExecution,
			"SQL Error: "+truncate(err.Error(), maxErrorLength),
			correction.Explanation)
		r.Error.Retryable = correction.ErrorType != fabric.ErrorTypeConnection
		r.Error.Details = map[string]interface{}{
			"error_type": correction.ErrorType,
			"attempt":    correction.AttemptCount,
		}
		r.Metadata = map[string]interface{}{"query": sanitized}
		return r, nil
	}
	if result == nil {
		result = fabric.EmptyResult()
	}

	return &shuttle.Result{
		Success: true,
		Data:    result,
		Metadata: map[string]interface{}{
			"query":     sanitized,
			"row_count": result.RowCount(),
		},
	}, nil
}

var _ shuttle.Tool = (*ExecuteQueryTool)(nil)
