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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr string
	}{
		{name: "appends limit", raw: "SELECT * FROM beer_styles", want: "SELECT * FROM beer_styles LIMIT 100"},
		{name: "keeps limit", raw: "SELECT COUNT(*) FROM beer_styles LIMIT 5", want: "SELECT COUNT(*) FROM beer_styles LIMIT 5"},
		{name: "lowercase limit", raw: "select id from t limit 3", want: "select id from t limit 3"},
		{name: "fence and label", raw: "```sql\nSQL: SELECT id FROM t\n```", want: "SELECT id FROM t LIMIT 100"},
		{name: "bare fence", raw: "```\nSELECT id FROM t LIMIT 2\n```", want: "SELECT id FROM t LIMIT 2"},
		{name: "label only", raw: "SQL: SELECT 1", want: "SELECT 1 LIMIT 100"},
		{name: "trailing semicolon", raw: "SELECT id FROM t;", want: "SELECT id FROM t LIMIT 100"},
		{name: "cte", raw: "WITH x AS (SELECT 1 AS a) SELECT a FROM x", want: "WITH x AS (SELECT 1 AS a) SELECT a FROM x LIMIT 100"},
		{name: "whitespace", raw: "  \n SELECT 1 \n ", want: "SELECT 1 LIMIT 100"},
		{name: "multiple statements", raw: "SELECT 1; DROP TABLE users", wantErr: "multiple SQL statements"},
		{name: "not a select", raw: "UPDATE t SET a = 1", wantErr: "only SELECT"},
		{name: "show", raw: "SHOW TABLES", wantErr: "only SELECT"},
		{name: "forbidden keyword", raw: "SELECT * FROM t WHERE x IN (DELETE FROM y)", wantErr: "DELETE"},
		{name: "forbidden mixed case", raw: "WITH d AS (dRoP table t) SELECT 1", wantErr: "DROP"},
		{name: "identifier containing keyword", raw: "SELECT created_at, updated_by FROM t", want: "SELECT created_at, updated_by FROM t LIMIT 100"},
		{name: "empty", raw: "   ", wantErr: "empty query"},
		{name: "trailing line comment", raw: "SELECT id FROM t -- top styles", want: "SELECT id FROM t LIMIT 100"},
		{name: "comment after semicolon", raw: "SELECT id FROM t; -- done", want: "SELECT id FROM t LIMIT 100"},
		{name: "limit only in comment", raw: "SELECT id FROM t /* LIMIT 5 */", want: "SELECT id FROM t LIMIT 100"},
		{name: "commented line", raw: "SELECT id\n-- , secret\nFROM t", want: "SELECT id\n\nFROM t LIMIT 100"},
		{name: "dashes in string", raw: "SELECT id FROM t WHERE note = 'a -- b'", want: "SELECT id FROM t WHERE note = 'a -- b' LIMIT 100"},
		{name: "only a comment", raw: "-- nothing", wantErr: "empty query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				var vErr *ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Contains(t, vErr.Reason, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"SELECT * FROM beer_styles",
		"```sql\nSELECT a FROM b WHERE c > 2\n```",
		"WITH x AS (SELECT 1) SELECT * FROM x LIMIT 7;",
	}
	for _, in := range inputs {
		once, err := Sanitize(in)
		require.NoError(t, err)
		twice, err := Sanitize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestStripFormatting(t *testing.T) {
	assert.Equal(t, "SELECT 1", StripFormatting("```SELECT 1```"))
	assert.Equal(t, "SELECT 1", StripFormatting("```postgresql SELECT 1```"))
	assert.Equal(t, "SELECT 1", StripFormatting("sql: SELECT 1"))
}
