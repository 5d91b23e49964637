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
package pgxdriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
)

// NewPool creates a pgxpool.Pool from connection settings.
// If cfg.DSN is set, it takes precedence over individual connection fields.
func NewPool(ctx context.Context, cfg fabric.ConnectionConfig, tracer observability.Tracer) (*pgxpool.Pool, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	ctx, span := tracer.StartSpan(ctx, observability.SpanBackendConnect,
		observability.WithAttribute(observability.AttrBackendType, "postgres"))
	defer tracer.EndSpan(span)

	cfg = cfg.WithDefaults()
	dsn := buildDSN(cfg)
	if dsn == "" {
		return nil, fmt.Errorf("postgres configuration requires either dsn or host+database")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	applyPoolConfig(poolCfg, cfg)

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	span.SetOK()
	span.SetAttribute("pool.max_conns", poolCfg.MaxConns)
	span.SetAttribute("pool.schema", schema)

	return pool, nil
}

// buildDSN constructs a PostgreSQL connection string from the discrete
// fields. Values are single-quoted per libpq keyword/value format. See:
// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
func buildDSN(cfg fabric.ConnectionConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	if cfg.Host == "" || cfg.Database == "" {
		return ""
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnQuoteValue(cfg.Host), port, dsnQuoteValue(cfg.Database), dsnQuoteValue(sslMode))

	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", dsnQuoteValue(cfg.User))
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", dsnQuoteValue(cfg.Password))
	}

	return dsn
}

// dsnQuoteValue quotes a value for use in a libpq keyword/value connection
// string, escaping backslashes and single quotes.
func dsnQuoteValue(val string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(val)
	return "'" + escaped + "'"
}

// applyPoolConfig maps connection settings to pgxpool.Config and forces
// read-only sessions.
func applyPoolConfig(poolCfg *pgxpool.Config, cfg fabric.ConnectionConfig) {
	poolCfg.MaxConns = int32(cfg.MaxConns)
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = fabric.DefaultMaxConns
	}
	poolCfg.MinConns = 0
	poolCfg.MaxConnIdleTime = cfg.IdleTimeout()
	if poolCfg.MaxConnIdleTime <= 0 {
		poolCfg.MaxConnIdleTime = fabric.DefaultIdleTimeout
	}
	poolCfg.MaxConnLifetime = 1 * time.Hour
	poolCfg.HealthCheckPeriod = 30 * time.Second

	if poolCfg.ConnConfig != nil {
		if poolCfg.ConnConfig.ConnectTimeout == 0 {
			poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout()
		}
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
		poolCfg.ConnConfig.RuntimeParams["application_name"] = "quarry"
	}
}
