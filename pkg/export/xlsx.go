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

// Package export writes answers to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/teradata-labs/quarry/pkg/fabric"
)

// Sheet names in exported workbooks.
const (
	SheetResults = "Results"
	SheetQuery   = "Query"
)

// ContentType is the MIME type of exported workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Report is the content of an exported workbook.
type Report struct {
	Question string
	SQL      string
	Insights string
	Results  *fabric.QueryResult
	Created  time.Time
}

// WriteXLSX writes report as an .xlsx workbook with a Results sheet (header
// row plus one row per result row) and a Query sheet holding the question,
// SQL and insights.
func WriteXLSX(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetResults); err != nil {
		return fmt.Errorf("failed to name results sheet: %w", err)
	}
	if err := writeResults(f, report.Results); err != nil {
		return err
	}
	if err := writeQuery(f, report); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeResults(f *excelize.File, result *fabric.QueryResult) error {
	if result == nil {
		result = fabric.EmptyResult()
	}
	header := make([]interface{}, len(result.Columns))
	for i, c := range result.Columns {
		header[i] = c
	}
	if len(header) > 0 {
		if err := f.SetSheetRow(SheetResults, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		if err := f.SetCellStyle(SheetResults, "A1", last, bold); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, row := range result.Rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = cellValue(v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetResults, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeQuery(f *excelize.File, report Report) error {
	if _, err := f.NewSheet(SheetQuery); err != nil {
		return fmt.Errorf("failed to create query sheet: %w", err)
	}
	created := report.Created
	if created.IsZero() {
		created = time.Now()
	}
	rows := [][]interface{}{
		{"Question", report.Question},
		{"SQL", report.SQL},
		{"Insights", report.Insights},
		{"Rows", report.Results.RowCount()},
		{"Exported", created.UTC().Format(time.RFC3339)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetQuery, cell, &row); err != nil {
			return fmt.Errorf("failed to write query sheet: %w", err)
		}
	}
	if err := f.SetColWidth(SheetQuery, "B", "B", 100); err != nil {
		return fmt.Errorf("failed to size query sheet: %w", err)
	}
	return nil
}

// cellValue maps a result value to something excelize stores natively.
func cellValue(v any) interface{} {
	switch x := v.(type) {
	case nil:
		return ""
	case string, bool, int, int32, int64, float32, float64, time.Time:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// ReadResults reads the Results sheet of a workbook written by WriteXLSX.
// Every cell comes back as a string.
func ReadResults(r io.Reader) (*fabric.QueryResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("error opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetResults)
	if err != nil {
		return nil, fmt.Errorf("error reading %s sheet: %w", SheetResults, err)
	}
	result := fabric.EmptyResult()
	if len(rows) == 0 {
		return result, nil
	}
	result.Columns = rows[0]
	for _, row := range rows[1:] {
		values := make([]any, len(result.Columns))
		for i := range values {
			if i < len(row) {
				values[i] = row[i]
			} else {
				values[i] = ""
			}
		}
		result.Rows = append(result.Rows, values)
	}
	return result, nil
}
