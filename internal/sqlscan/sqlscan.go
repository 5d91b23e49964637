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

// Package sqlscan reads database/sql result sets into fabric values. The
// SQLite and MySQL backends share it.
package sqlscan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/teradata-labs/quarry/pkg/fabric"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ReadOnlyTx runs fn in a READ ONLY transaction bounded by timeout and
// always rolls back.
func ReadOnlyTx(ctx context.Context, db *sql.DB, timeout time.Duration, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only, always rolled back

	return fn(ctx, tx)
}

// Result reads rows into a QueryResult, stopping after maxRows rows and
// marking the result truncated. maxRows <= 0 reads everything.
func Result(rows *sql.Rows, maxRows int) (*fabric.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &fabric.QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values, err := scanRow(rows, len(cols))
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// Maps reads every row into a column-keyed map.
func Maps(rows *sql.Rows) ([]map[string]any, error) {
	result, err := Result(rows, 0)
	if err != nil {
		return nil, err
	}
	return result.Records(0), nil
}

// Strings reads a single string column.
func Strings(rows *sql.Rows) ([]string, error) {
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to read row values: %w", err)
	}
	for i, v := range values {
		values[i] = Normalize(v)
	}
	return values, nil
}

// Normalize converts driver values into JSON-friendly ones. Text columns
// often arrive as []byte.
func Normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case sql.RawBytes:
		return string(t)
	default:
		return v
	}
}
