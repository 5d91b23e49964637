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
)

// DefaultLimit is appended to queries that carry no LIMIT clause.
const DefaultLimit = 100

var (
	fenceTag        = regexp.MustCompile(`^[a-zA-Z]+`)
	labelPattern    = regexp.MustCompile(`(?i)^sql\s*:\s*`)
	leadingKeyword  = regexp.MustCompile(`(?i)^(SELECT|WITH)\b`)
	forbiddenTokens = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|ALTER|DROP|CREATE|REPLACE|TRUNCATE|GRANT|REVOKE)\b`)
	limitPattern    = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
)

// ValidationError reports a query rejected before execution.
type ValidationError struct {
	Reason string
	Query  string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + e.Reason
}

// StripFormatting removes surrounding whitespace, a markdown code fence and
// a leading "SQL:" label from model output.
func StripFormatting(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if tag := fenceTag.FindString(s); tag != "" && !leadingKeyword.MatchString(tag) {
			s = s[len(tag):]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	s = labelPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Sanitize turns model output into a single bounded read-only SELECT or
// returns a *ValidationError. The checks are lexical; backends also run
// queries in read-only transactions.
func Sanitize(raw string) (string, error) {
	query := strings.TrimSpace(stripComments(StripFormatting(raw)))
	if query == "" {
		return "", &ValidationError{Reason: "empty query", Query: raw}
	}

	statements := 0
	for _, part := range strings.Split(query, ";") {
		if strings.TrimSpace(part) != "" {
			statements++
		}
	}
	if statements > 1 {
		return "", &ValidationError{Reason: "multiple SQL statements are not allowed", Query: query}
	}

	query = strings.TrimSpace(query)
	for strings.HasSuffix(query, ";") {
		query = strings.TrimSpace(strings.TrimSuffix(query, ";"))
	}

	if !leadingKeyword.MatchString(query) {
		return "", &ValidationError{Reason: "only SELECT queries are allowed", Query: query}
	}

	if m := forbiddenTokens.FindString(query); m != "" {
		return "", &ValidationError{
			Reason: fmt.Sprintf("query contains forbidden keyword %s", strings.ToUpper(m)),
			Query:  query,
		}
	}

	if !limitPattern.MatchString(query) {
		query = fmt.Sprintf("%s LIMIT %d", query, DefaultLimit)
	}

	return query, nil
}

// stripComments removes -- line comments and /* */ block comments that sit
// outside quoted strings and identifiers. A line comment keeps its newline.
func stripComments(q string) string {
	var b strings.Builder
	b.Grow(len(q))
	var quote byte
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '-' && i+1 < len(q) && q[i+1] == '-':
			end := strings.IndexByte(q[i:], '\n')
			if end < 0 {
				return b.String()
			}
			i += end - 1
		case c == '/' && i+1 < len(q) && q[i+1] == '*':
			end := strings.Index(q[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			b.WriteByte(' ')
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
