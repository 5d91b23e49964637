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

// Package postgres implements fabric.ExecutionBackend on a pgx connection
// pool. Every statement runs inside a READ ONLY transaction on a session
// that also defaults to read-only.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/internal/pgxdriver"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
)

// DriverName is the name the backend registers under.
const DriverName = "postgres"

func init() {
	fabric.Register(DriverName, func(ctx context.Context, cfg fabric.ConnectionConfig, logger *zap.Logger) (fabric.ExecutionBackend, error) {
		return NewBackend(ctx, cfg, logger, nil)
	})
}

const (
	listTablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	columnsQuery = `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position`

	foreignKeysQuery = `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`
)

// Compile-time interface check
var _ fabric.ExecutionBackend = (*Backend)(nil)

// Backend implements fabric.ExecutionBackend for PostgreSQL.
type Backend struct {
	pool         *pgxpool.Pool
	schema       string
	queryTimeout time.Duration
	maxRows      int
	logger       *zap.Logger
}

// NewBackend opens a pool and verifies connectivity.
func NewBackend(ctx context.Context, cfg fabric.ConnectionConfig, logger *zap.Logger, tracer observability.Tracer) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.WithDefaults()

	pool, err := pgxdriver.NewPool(ctx, cfg, tracer)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		pool:         pool,
		schema:       schemaOrDefault(cfg.Schema),
		queryTimeout: cfg.QueryTimeout(),
		maxRows:      cfg.MaxRows,
		logger:       logger,
	}

	logger.Info("postgres backend connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("schema", b.schema),
		zap.Int("max_conns", cfg.MaxConns),
	)
	return b, nil
}

func schemaOrDefault(schema string) string {
	if schema == "" {
		return "public"
	}
	return schema
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return DriverName
}

// ExecuteQuery runs query in a read-only transaction and reads at most
// maxRows rows.
func (b *Backend) ExecuteQuery(ctx context.Context, query string) (*fabric.QueryResult, error) {
	start := time.Now()
	query = strings.TrimSpace(query)

	var result *fabric.QueryResult
	err := pgxdriver.ReadOnlyTx(ctx, b.pool, b.queryTimeout, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		result, err = b.readRows(rows, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	result.ExecutionStats.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

func (b *Backend) readRows(rows pgx.Rows, query string) (*fabric.QueryResult, error) {
	fieldDescs := rows.FieldDescriptions()
	cols := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		cols[i] = fd.Name
	}

	result := &fabric.QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(result.Rows) >= b.maxRows {
			b.logger.Warn("query result truncated at row limit",
				zap.Int("limit", b.maxRows),
				zap.String("query_prefix", truncateQuery(query, 100)),
			)
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// normalizeValue maps pgx decoded values that do not serialize cleanly
// into plain Go values.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case []byte:
		return string(t)
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

// ListTables lists base tables in the configured schema.
func (b *Backend) ListTables(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, listTablesQuery, b.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tables, nil
}

// GetTableSchema retrieves columns and foreign keys for a table.
func (b *Backend) GetTableSchema(ctx context.Context, table string) (*fabric.TableSchema, error) {
	rows, err := b.pool.Query(ctx, columnsQuery, b.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	defer rows.Close()

	ts := &fabric.TableSchema{Name: table}
	for rows.Next() {
		var name, dataType, isNullable string
		var columnDefault sql.NullString
		if err := rows.Scan(&name, &dataType, &isNullable, &columnDefault); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := fabric.Column{
			Name:     name,
			DataType: dataType,
			Nullable: strings.EqualFold(isNullable, "YES"),
		}
		if columnDefault.Valid {
			def := columnDefault.String
			col.Default = &def
		}
		ts.Columns = append(ts.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(ts.Columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	fks, err := b.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	ts.ForeignKeys = fks
	return ts, nil
}

func (b *Backend) foreignKeys(ctx context.Context, table string) ([]fabric.ForeignKey, error) {
	rows, err := b.pool.Query(ctx, foreignKeysQuery, b.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []fabric.ForeignKey
	for rows.Next() {
		var fk fabric.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return fks, nil
}

// SampleRows returns up to limit rows from table.
func (b *Backend) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		return []map[string]any{}, nil
	}
	query := sampleQuery(b.schema, table)

	var result *fabric.QueryResult
	err := pgxdriver.ReadOnlyTx(ctx, b.pool, b.queryTimeout, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		result, err = b.readRows(rows, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", table, err)
	}
	return result.Records(0), nil
}

func sampleQuery(schema, table string) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT $1", pgx.Identifier{schema, table}.Sanitize())
}

// Ping checks connectivity to the database.
func (b *Backend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	b.pool.Close()
	b.logger.Info("postgres backend closed", zap.String("schema", b.schema))
	return nil
}

// Pool returns the underlying pgxpool.Pool for advanced usage.
func (b *Backend) Pool() *pgxpool.Pool {
	return b.pool
}

// truncateQuery returns at most maxLen characters of the query for logging.
func truncateQuery(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
