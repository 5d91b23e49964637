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
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrorCategory classifies a failed query for the user.
type ErrorCategory string

const (
	CategorySyntax        ErrorCategory = "syntax"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryReadOnly      ErrorCategory = "read_only"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryGeneric       ErrorCategory = "generic"
)

// Checked in order; the first category with a matching pattern wins.
var errorPatterns = []struct {
	category ErrorCategory
	patterns []string
}{
	{CategoryConfiguration, []string{"database_url", "connection refused", "not configured", "no such host", "failed to connect", "circuit breaker open"}},
	{CategoryReadOnly, []string{"permission denied", "read-only", "readonly", "access denied", "validation", "invalid query", "only select"}},
	{CategoryNotFound, []string{"does not exist", "doesn't exist", "no such table", "no such column", "unknown column", "unknown table", "not found"}},
	{CategorySyntax, []string{"syntax error", "syntax", "parse error"}},
}

var exampleQuestions = []string{
	"What is our production volume by beer style?",
	"Which distributors generated the most revenue last quarter?",
	"How many batches are currently fermenting?",
}

// ClassifyError maps raw error text to a category.
func ClassifyError(errText string) ErrorCategory {
	lower := strings.ToLower(errText)
	for _, group := range errorPatterns {
		for _, p := range group.patterns {
			if strings.Contains(lower, p) {
				return group.category
			}
		}
	}
	return CategoryGeneric
}

// GenerateErrorInsights explains a failed query in user terms. It uses
// pattern matching only and never calls the model.
func GenerateErrorInsights(question, sql, errText string) string {
	var b strings.Builder
	switch ClassifyError(errText) {
	case CategorySyntax:
		b.WriteString("**The generated query had a syntax error.** ")
		b.WriteString("This usually happens when the question is ambiguous. Try rephrasing it with the specific metric and grouping you need.")
	case CategoryNotFound:
		b.WriteString("**A table or column in the query was not found.** ")
		b.WriteString("The question may refer to data the database does not hold, or use a different name for it. ")
		b.WriteString("Try naming the measure the way it is recorded, such as production volume, shipments or revenue.")
	case CategoryReadOnly:
		b.WriteString("**This database is read-only.** ")
		b.WriteString("Only questions that read data can be answered; requests to add, change or delete records are not possible.")
	case CategoryConfiguration:
		b.WriteString("**The database is not reachable.** ")
		b.WriteString("The connection is missing or misconfigured (check DATABASE_URL or the database settings), or the server is down. Please try again later or contact your administrator.")
	default:
		b.WriteString("**Something went wrong while answering your question.** ")
		b.WriteString("Try rephrasing it or asking for a smaller slice of the data.")
	}

	if question != "" {
		fmt.Fprintf(&b, "\n\nYour question: \"%s\"", question)
	}
	b.WriteString("\n\nQuestions that work well:\n")
	for _, q := range exampleQuestions {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	return strings.TrimRight(b.String(), "\n")
}

// GenerateErrorInsights is the Generator form of the package function.
func (g *Generator) GenerateErrorInsights(question, sql, errText string) string {
	g.logger.Debug("explaining failed query", zap.String("category", string(ClassifyError(errText))))
	return GenerateErrorInsights(question, sql, errText)
}
