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

// Package sqlite implements fabric.ExecutionBackend on the pure-Go SQLite
// driver. Files are opened with mode=ro and query_only, and statements run
// in read-only transactions.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/internal/sqlitedriver"
	"github.com/teradata-labs/quarry/internal/sqlscan"
	"github.com/teradata-labs/quarry/pkg/fabric"
)

// DriverName is the name the backend registers under.
const DriverName = "sqlite"

func init() {
	fabric.Register(DriverName, func(ctx context.Context, cfg fabric.ConnectionConfig, logger *zap.Logger) (fabric.ExecutionBackend, error) {
		return Open(ctx, cfg, logger)
	})
}

//go:embed brewery.sql
var brewerySQL string

const (
	listTablesQuery = `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	columnsQuery = `
		SELECT name, type, "notnull", dflt_value
		FROM pragma_table_info(?)
		ORDER BY cid`

	foreignKeysQuery = `
		SELECT "from", "table", "to"
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`

	primaryKeyQuery = `SELECT name FROM pragma_table_info(?) WHERE pk = 1`
)

// Compile-time interface check
var _ fabric.ExecutionBackend = (*Backend)(nil)

// Backend implements fabric.ExecutionBackend for SQLite.
type Backend struct {
	db           *sql.DB
	queryTimeout time.Duration
	maxRows      int
	logger       *zap.Logger
}

// Open opens the database file named by cfg.DSN (or cfg.Database) read-only.
func Open(ctx context.Context, cfg fabric.ConnectionConfig, logger *zap.Logger) (*Backend, error) {
	cfg = cfg.WithDefaults()
	path := cfg.DSN
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite configuration requires a dsn or database path")
	}

	db, err := sql.Open(sqlitedriver.DriverName, sqlitedriver.ReadOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetConnMaxIdleTime(cfg.IdleTimeout())

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	if err := db.PingContext(connectCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}

	b := newBackend(db, cfg, logger)
	b.logger.Info("sqlite backend opened", zap.String("path", path))
	return b, nil
}

// NewFromDB wraps an already open database. The caller keeps ownership of
// how it was opened; Close closes it.
func NewFromDB(db *sql.DB, logger *zap.Logger) *Backend {
	return newBackend(db, fabric.ConnectionConfig{}.WithDefaults(), logger)
}

// OpenDemo returns a backend over an in-memory copy of the bundled brewery
// dataset: beer styles, production batches, distributors and shipments.
func OpenDemo(ctx context.Context, logger *zap.Logger) (*Backend, error) {
	db, err := sql.Open(sqlitedriver.DriverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open demo database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.ExecContext(ctx, brewerySQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to seed demo database: %w", err)
	}
	return NewFromDB(db, logger), nil
}

func newBackend(db *sql.DB, cfg fabric.ConnectionConfig, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		db:           db,
		queryTimeout: cfg.QueryTimeout(),
		maxRows:      cfg.MaxRows,
		logger:       logger,
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return DriverName
}

// DB returns the underlying database handle.
func (b *Backend) DB() *sql.DB {
	return b.db
}

// ExecuteQuery runs query in a read-only transaction.
func (b *Backend) ExecuteQuery(ctx context.Context, query string) (*fabric.QueryResult, error) {
	start := time.Now()

	var result *fabric.QueryResult
	err := sqlscan.ReadOnlyTx(ctx, b.db, b.queryTimeout, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, strings.TrimSpace(query))
		if err != nil {
			return err
		}
		defer rows.Close()

		result, err = sqlscan.Result(rows, b.maxRows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if result.Truncated {
		b.logger.Warn("query result truncated at row limit", zap.Int("limit", b.maxRows))
	}

	result.ExecutionStats.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// ListTables lists user tables.
func (b *Backend) ListTables(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, listTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()
	return sqlscan.Strings(rows)
}

// GetTableSchema retrieves columns and foreign keys for a table.
func (b *Backend) GetTableSchema(ctx context.Context, table string) (*fabric.TableSchema, error) {
	rows, err := b.db.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	defer rows.Close()

	ts := &fabric.TableSchema{Name: table}
	for rows.Next() {
		var name, dataType string
		var notNull int
		var dflt sql.NullString
		if err := rows.Scan(&name, &dataType, &notNull, &dflt); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := fabric.Column{Name: name, DataType: dataType, Nullable: notNull == 0}
		if dflt.Valid {
			def := dflt.String
			col.Default = &def
		}
		ts.Columns = append(ts.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()
	if len(ts.Columns) == 0 {
		return nil, fmt.Errorf("no such table: %s", table)
	}

	fks, err := b.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	ts.ForeignKeys = fks
	return ts, nil
}

func (b *Backend) foreignKeys(ctx context.Context, table string) ([]fabric.ForeignKey, error) {
	rows, err := b.db.QueryContext(ctx, foreignKeysQuery, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}

	var fks []fabric.ForeignKey
	var implicit []int
	for rows.Next() {
		var from, ref string
		var to sql.NullString
		if err := rows.Scan(&from, &ref, &to); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if !to.Valid {
			implicit = append(implicit, len(fks))
		}
		fks = append(fks, fabric.ForeignKey{Column: from, ReferencedTable: ref, ReferencedColumn: to.String})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	// REFERENCES t without a column list points at t's primary key.
	for _, i := range implicit {
		var pk string
		if err := b.db.QueryRowContext(ctx, primaryKeyQuery, fks[i].ReferencedTable).Scan(&pk); err == nil {
			fks[i].ReferencedColumn = pk
		}
	}
	return fks, nil
}

// SampleRows returns up to limit rows from table.
func (b *Backend) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		return []map[string]any{}, nil
	}

	var records []map[string]any
	err := sqlscan.ReadOnlyTx(ctx, b.db, b.queryTimeout, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT ?", quoteIdent(table)), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		records, err = sqlscan.Maps(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", table, err)
	}
	return records, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Ping checks that the database is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}
