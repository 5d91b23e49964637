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
package fabric

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Error types returned by InferErrorType.
const (
	ErrorTypeSyntax           = "syntax_error"
	ErrorTypePermission       = "permission_denied"
	ErrorTypeColumnNotFound   = "column_not_found"
	ErrorTypeTableNotFound    = "table_not_found"
	ErrorTypeTimeout          = "timeout"
	ErrorTypeConnection       = "connection"
	ErrorTypeUnknown          = "unknown"
	ErrorTypeValidationFailed = "validation_error"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue represents a validation issue found during pre-flight check.
type Issue struct {
	Severity   string // "error", "warning"
	Message    string
	Suggestion string
}

var (
	selectStar  = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
	groupBy     = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	joinClause  = regexp.MustCompile(`(?i)\bJOIN\b`)
	joinOn      = regexp.MustCompile(`(?i)\b(ON|USING)\b`)
	crossJoin   = regexp.MustCompile(`(?i)\b(CROSS|NATURAL)\s+JOIN\b`)
	fromClause  = regexp.MustCompile(`(?i)\bFROM\b`)
)

// Lint returns heuristic issues for a sanitized query. An empty slice means
// nothing suspicious was found; any SeverityError issue means the query
// will not run as written.
func Lint(query string) []Issue {
	issues := make([]Issue, 0)

	if selectStar.MatchString(query) && groupBy.MatchString(query) {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Message:    "SELECT * combined with GROUP BY",
			Suggestion: "List grouped columns and aggregates explicitly.",
		})
	}

	if joinClause.MatchString(query) && !joinOn.MatchString(query) && !crossJoin.MatchString(query) {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Message:    "JOIN without ON or USING",
			Suggestion: "Add a join condition, otherwise the join produces a cartesian product.",
		})
	}

	if !fromClause.MatchString(query) {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Message:    "query has no FROM clause",
			Suggestion: "Select from one of the tables returned by list_tables.",
		})
	}

	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// InferErrorType classifies a backend error message.
func InferErrorType(errorMessage string) string {
	messageLower := strings.ToLower(errorMessage)

	if strings.Contains(messageLower, "syntax") {
		return ErrorTypeSyntax
	}
	if strings.Contains(messageLower, "permission") || strings.Contains(messageLower, "access denied") ||
		strings.Contains(messageLower, "read-only") || strings.Contains(messageLower, "readonly") {
		return ErrorTypePermission
	}
	// Column before table: messages like "column x of table y does not exist".
	if strings.Contains(messageLower, "column") && (strings.Contains(messageLower, "not found") ||
		strings.Contains(messageLower, "does not exist") || strings.Contains(messageLower, "no such column") ||
		strings.Contains(messageLower, "unknown column")) {
		return ErrorTypeColumnNotFound
	}
	if (strings.Contains(messageLower, "table") || strings.Contains(messageLower, "relation")) &&
		(strings.Contains(messageLower, "not found") || strings.Contains(messageLower, "does not exist") ||
			strings.Contains(messageLower, "no such table") || strings.Contains(messageLower, "doesn't exist")) {
		return ErrorTypeTableNotFound
	}
	if strings.Contains(messageLower, "timeout") || strings.Contains(messageLower, "deadline exceeded") ||
		strings.Contains(messageLower, "canceling statement") {
		return ErrorTypeTimeout
	}
	if strings.Contains(messageLower, "connection refused") || strings.Contains(messageLower, "failed to connect") ||
		strings.Contains(messageLower, "no such host") || strings.Contains(messageLower, "circuit breaker") {
		return ErrorTypeConnection
	}

	return ErrorTypeUnknown
}

// Correction is guidance for fixing a failed query.
type Correction struct {
	OriginalSQL     string
	Explanation     string
	ErrorType       string
	AttemptCount    int
	ConfidenceLevel string // "high", "medium", "low"
}

// ErrorRecord stores recent error information for self-correction.
type ErrorRecord struct {
	SQL              string
	ErrorType        string
	ErrorMessage     string
	AttemptCount     int
	PreviousAttempts []string
}

// GuardrailEngine tracks failed queries per run and turns execution errors
// into correction guidance fed back to the model.
type GuardrailEngine struct {
	mu         sync.RWMutex
	errorCache map[string]*ErrorRecord // keyed by run ID
}

// NewGuardrailEngine creates a new guardrail engine.
func NewGuardrailEngine() *GuardrailEngine {
	return &GuardrailEngine{
		errorCache: make(map[string]*ErrorRecord),
	}
}

// HandleError records a failed query for runID and suggests a correction.
func (g *GuardrailEngine) HandleError(runID, sql, errorMessage string) *Correction {
	errorType := InferErrorType(errorMessage)

	g.mu.Lock()
	record, exists := g.errorCache[runID]
	if !exists {
		record = &ErrorRecord{}
		g.errorCache[runID] = record
	}
	record.SQL = sql
	record.ErrorType = errorType
	record.ErrorMessage = errorMessage
	record.AttemptCount++
	record.PreviousAttempts = append(record.PreviousAttempts, sql)
	attempts := record.AttemptCount
	repeated := countOf(record.PreviousAttempts, sql) > 1
	g.mu.Unlock()

	correction := suggestCorrection(errorType, errorMessage, sql, attempts)
	if repeated {
		correction.Explanation += "\n\nThis exact query already failed. Change the query before retrying."
	}
	return correction
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if strings.TrimSpace(v) == strings.TrimSpace(s) {
			n++
		}
	}
	return n
}

func suggestCorrection(errorType, message, sql string, attemptCount int) *Correction {
	correction := &Correction{
		OriginalSQL:  sql,
		ErrorType:    errorType,
		AttemptCount: attemptCount,
	}

	switch errorType {
	case ErrorTypeSyntax:
		correction.Explanation = "SQL syntax error detected. Check for:\n" +
			"- Missing or extra parentheses\n" +
			"- Reserved keyword usage (quote with double quotes)\n" +
			"- Comma placement in SELECT/WHERE clauses"
		correction.ConfidenceLevel = "medium"

	case ErrorTypeTableNotFound:
		correction.Explanation = "Table does not exist. Call list_tables and use one of the returned names exactly."
		correction.ConfidenceLevel = "high"

	case ErrorTypeColumnNotFound:
		correction.Explanation = "Column not found. Call get_schema for the tables involved to discover actual column names."
		correction.ConfidenceLevel = "high"

	case ErrorTypePermission:
		correction.Explanation = "The connection is read-only. Only SELECT statements can run."
		correction.ConfidenceLevel = "high"

	case ErrorTypeTimeout:
		correction.Explanation = "Query timeout. Consider:\n" +
			"- Adding WHERE clause to limit data\n" +
			"- Aggregating before joining\n" +
			"- Lowering the LIMIT"
		correction.ConfidenceLevel = "medium"

	case ErrorTypeConnection:
		correction.Explanation = "The database is unreachable. Retrying the same query will not help."
		correction.ConfidenceLevel = "high"

	default:
		correction.Explanation = fmt.Sprintf("Error encountered (attempt %d): %s", attemptCount, message)
		correction.ConfidenceLevel = "low"
	}

	return correction
}

// GetErrorRecord retrieves the error history for a run.
func (g *GuardrailEngine) GetErrorRecord(runID string) *ErrorRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	record, ok := g.errorCache[runID]
	if !ok {
		return nil
	}
	cp := *record
	cp.PreviousAttempts = append([]string(nil), record.PreviousAttempts...)
	return &cp
}

// ClearErrorRecord removes error history for a run.
func (g *GuardrailEngine) ClearErrorRecord(runID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.errorCache, runID)
}
