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
	"fmt"
	"strings"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/shuttle"
)

// CheckReport is the payload of a query_checker call.
type CheckReport struct {
	Query  string         `json:"query"`
	Valid  bool           `json:"valid"`
	Reason string         `json:"reason,omitempty"`
	Issues []fabric.Issue `json:"issues,omitempty"`
}

// RenderText reports pass or fail with the sanitized query and any issues.
func (r *CheckReport) RenderText() string {
	var b strings.Builder
	if r.Valid {
		b.WriteString("Query is valid.\nSanitized query:\n")
		b.WriteString(r.Query)
	} else {
		b.WriteString("Query is invalid")
		if r.Reason != "" {
			b.WriteString(": ")
			b.WriteString(r.Reason)
		}
		b.WriteString(".")
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(&b, "\n- [%s] %s", issue.Severity, issue.Message)
		if issue.Suggestion != "" {
			b.WriteString(" ")
			b.WriteString(issue.Suggestion)
		}
	}
	return b.String()
}

// Check sanitizes and lints query without running it.
func Check(query string) *CheckReport {
	sanitized, err := fabric.Sanitize(query)
	if err != nil {
		report := &CheckReport{Query: query, Reason: err.Error()}
		var verr *fabric.ValidationError
		if errors.As(err, &verr) {
			report.Reason = verr.Reason
		}
		return report
	}
	issues := fabric.Lint(sanitized)
	report := &CheckReport{Query: sanitized, Valid: !fabric.HasErrors(issues)}
	if len(issues) > 0 {
		report.Issues = issues
	}
	if !report.Valid {
		report.Reason = "lint errors"
	}
	return report
}

// QueryCheckerTool validates a query against the read-only rules without
// executing it.
type QueryCheckerTool struct {
	cfg Config
}

func (t *QueryCheckerTool) Name() string { return ToolQueryChecker }

func (t *QueryCheckerTool) Description() string {
	return "Checks a SQL query before execution: it must be a single read-only SELECT. " +
		"Reports problems and returns the sanitized query. Does not run the query."
}

func (t *QueryCheckerTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema(
		"Query to check",
		map[string]*shuttle.JSONSchema{
			"query": shuttle.NewStringSchema("The SQL query to validate"),
		},
		[]string{"query"},
	)
}

func (t *QueryCheckerTool) Backend() string { return "" }

func (t *QueryCheckerTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	_, span := t.cfg.Tracer.StartSpan(ctx, observability.SpanGuardrailCheck,
		observability.WithAttribute(observability.AttrToolName, ToolQueryChecker))
	defer t.cfg.Tracer.EndSpan(span)

	report := Check(stringParam(params, "query"))
	recordCheck(t.cfg.Tracer, report)

	if !report.Valid {
		span.SetAttribute(observability.AttrGuardrailRule, report.Reason)
		r := shuttle.Failure(ErrCodeValidation, report.RenderText(),
			"Rewrite the query as a single SELECT over the tables from list_tables.")
		r.Data = report
		r.Error.Retryable = true
		return r, nil
	}
	span.SetOK()
	return &shuttle.Result{Success: true, Data: report}, nil
}

func recordCheck(tracer observability.Tracer, report *CheckReport) {
	tracer.RecordMetric(observability.MetricGuardrailChecks, 1, nil)
	if !report.Valid {
		tracer.RecordMetric(observability.MetricGuardrailBlocks, 1, map[string]string{
			observability.AttrGuardrailRule: ruleName(report.Reason),
		})
	}
}

// ruleName maps a rejection reason to a low-cardinality metric label.
func ruleName(reason string) string {
	switch {
	case strings.HasPrefix(reason, "empty"):
		return "empty"
	case strings.HasPrefix(reason, "multiple"):
		return "multiple_statements"
	case strings.HasPrefix(reason, "only SELECT"):
		return "not_select"
	case strings.HasPrefix(reason, "query contains forbidden"):
		return "forbidden_keyword"
	case reason == "lint errors":
		return "lint"
	default:
		return "other"
	}
}

var _ shuttle.Tool = (*QueryCheckerTool)(nil)
