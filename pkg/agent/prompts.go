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
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
)

var fastPromptTemplate = heredoc.Doc(`
	You are a SQL expert for a brewery analytics database. Translate the user's
	question into one SQL query.

	Rules:
	- Return ONLY the SQL statement. No explanation, no markdown.
	- Use only SELECT (or WITH ... SELECT). Never modify data.
	- Use only the tables and columns listed in the schema below.
	- Always include a LIMIT clause (at most 100 rows).
	- Give aggregates descriptive aliases, for example total_volume_hl.

	Database schema:
	%s
	%s`)

var reactPromptTemplate = heredoc.Doc(`
	You are an agent that answers questions by querying a SQL database with tools.

	Work in this order:
	1. Call list_tables to see which tables exist.
	2. Call get_schema with the tables relevant to the question.
	3. Write a SELECT query. You may call query_checker to validate it first.
	4. Call execute_query with the query.
	5. When the query succeeds, answer the question in plain text without calling more tools.

	If execute_query returns an error, read it, fix the query and call
	execute_query again. You have %d retries; after that the run stops.
	Tool calls made out of order are rejected.

	Never run INSERT, UPDATE, DELETE, DROP or any other statement that changes data.
	Always limit results to at most 100 rows.
	%s`)

// FastSystemPrompt builds the single-call prompt from the full schema and
// the catalog's join patterns and naming hints.
func FastSystemPrompt(schemaText, domainSection string) string {
	if strings.TrimSpace(schemaText) == "" {
		schemaText = "(schema unavailable)"
	}
	return strings.TrimSpace(fmt.Sprintf(fastPromptTemplate, schemaText, sectionBlock(domainSection)))
}

// ReActSystemPrompt builds the tool-calling prompt.
func ReActSystemPrompt(maxRetries int, domainSection string) string {
	return strings.TrimSpace(fmt.Sprintf(reactPromptTemplate, maxRetries, sectionBlock(domainSection)))
}

func sectionBlock(section string) string {
	if section == "" {
		return ""
	}
	return "\n" + section
}
