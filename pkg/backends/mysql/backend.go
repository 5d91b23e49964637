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

// Package mysql implements fabric.ExecutionBackend for MySQL and MariaDB
// using go-sql-driver/mysql. Statements run in READ ONLY transactions.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/internal/sqlscan"
	"github.com/teradata-labs/quarry/pkg/fabric"
)

// DriverName is the name the backend registers under.
const DriverName = "mysql"

func init() {
	fabric.Register(DriverName, func(ctx context.Context, cfg fabric.ConnectionConfig, logger *zap.Logger) (fabric.ExecutionBackend, error) {
		return NewBackend(ctx, cfg, logger)
	})
}

const (
	listTablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	columnsQuery = `
		SELECT column_name, column_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		ORDER BY ordinal_position`

	foreignKeysQuery = `
		SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		  AND referenced_table_name IS NOT NULL
		ORDER BY ordinal_position`
)

// Compile-time interface check
var _ fabric.ExecutionBackend = (*Backend)(nil)

// Backend implements fabric.ExecutionBackend for MySQL.
type Backend struct {
	db           *sql.DB
	queryTimeout time.Duration
	maxRows      int
	logger       *zap.Logger
}

// NewBackend opens a connection pool and verifies connectivity.
func NewBackend(ctx context.Context, cfg fabric.ConnectionConfig, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.WithDefaults()

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxIdleTime(cfg.IdleTimeout())
	db.SetConnMaxLifetime(time.Hour)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	if err := db.PingContext(connectCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	logger.Info("mysql backend connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int("max_conns", cfg.MaxConns),
	)
	return &Backend{
		db:           db,
		queryTimeout: cfg.QueryTimeout(),
		maxRows:      cfg.MaxRows,
		logger:       logger,
	}, nil
}

// buildDSN returns cfg.DSN as-is or assembles one from the discrete
// fields. parseTime is always on so DATETIME columns scan as time.Time.
func buildDSN(cfg fabric.ConnectionConfig) (string, error) {
	if cfg.DSN != "" {
		parsed, err := gomysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("failed to parse mysql DSN: %w", err)
		}
		parsed.ParseTime = true
		return parsed.FormatDSN(), nil
	}
	if cfg.Host == "" || cfg.Database == "" {
		return "", fmt.Errorf("mysql configuration requires either dsn or host+database")
	}

	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := gomysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout()
	if cfg.SSLMode != "" && cfg.SSLMode != "disable" {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN(), nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return DriverName
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

// ListTables lists base tables in the connected database.
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
		var name, dataType, isNullable string
		var dflt sql.NullString
		if err := rows.Scan(&name, &dataType, &isNullable, &dflt); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := fabric.Column{Name: name, DataType: dataType, Nullable: strings.EqualFold(isNullable, "YES")}
		if dflt.Valid {
			def := dflt.String
			col.Default = &def
		}
		ts.Columns = append(ts.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(ts.Columns) == 0 {
		return nil, fmt.Errorf("table %s doesn't exist", table)
	}

	fkRows, err := b.db.QueryContext(ctx, foreignKeysQuery, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var fk fabric.ForeignKey
		if err := fkRows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		ts.ForeignKeys = append(ts.ForeignKeys, fk)
	}
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ts, nil
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
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Ping checks connectivity to the database.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	b.logger.Info("mysql backend closed")
	return b.db.Close()
}
