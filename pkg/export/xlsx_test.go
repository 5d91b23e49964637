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
package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/teradata-labs/quarry/pkg/fabric"
)

func TestWriteXLSX(t *testing.T) {
	report := Report{
		Question: "What is our production volume by beer style?",
		SQL:      "SELECT name, total FROM v LIMIT 100",
		Insights: "Czech Pilsner leads.",
		Results: &fabric.QueryResult{
			Columns: []string{"name", "total_volume_hl", "last_brewed"},
			Rows: [][]any{
				{"Czech Pilsner", 152.5, "2026-02-02"},
				{"Barrel-Aged Sour", nil, []byte("2026-02-14")},
			},
		},
		Created: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, report))

	got, err := ReadResults(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, report.Results.Columns, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []any{"Czech Pilsner", "152.5", "2026-02-02"}, got.Rows[0])
	assert.Equal(t, []any{"Barrel-Aged Sour", "", "2026-02-14"}, got.Rows[1])

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetResults, SheetQuery}, f.GetSheetList())

	sql, err := f.GetCellValue(SheetQuery, "B2")
	require.NoError(t, err)
	assert.Equal(t, report.SQL, sql)
	exported, err := f.GetCellValue(SheetQuery, "B5")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00Z", exported)
}

func TestWriteXLSX_NoResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Report{Question: "q"}))

	got, err := ReadResults(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.Columns)
	assert.Empty(t, got.Rows)
}

func TestCellValue(t *testing.T) {
	assert.Equal(t, "", cellValue(nil))
	assert.Equal(t, "raw", cellValue([]byte("raw")))
	assert.Equal(t, int64(3), cellValue(int64(3)))
	assert.Equal(t, "map[a:1]", cellValue(map[string]int{"a": 1}))
}
