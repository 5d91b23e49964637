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
package mysql

import (
	"context"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/quarry/pkg/fabric"
)

// TestBackendImplementsInterface verifies compile-time interface compliance.
func TestBackendImplementsInterface(t *testing.T) {
	var _ fabric.ExecutionBackend = (*Backend)(nil)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, fabric.List(), DriverName)
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name        string
		cfg         fabric.ConnectionConfig
		check       func(t *testing.T, c *gomysql.Config)
		errContains string
	}{
		{
			name: "discrete fields",
			cfg:  fabric.ConnectionConfig{Host: "db.internal", Database: "brewery", User: "analyst", Password: "p@ss:word"},
			check: func(t *testing.T, c *gomysql.Config) {
				assert.Equal(t, "tcp", c.Net)
				assert.Equal(t, "db.internal:3306", c.Addr)
				assert.Equal(t, "brewery", c.DBName)
				assert.Equal(t, "analyst", c.User)
				assert.Equal(t, "p@ss:word", c.Passwd)
				assert.True(t, c.ParseTime)
			},
		},
		{
			name: "custom port",
			cfg:  fabric.ConnectionConfig{Host: "localhost", Port: 3307, Database: "brewery"},
			check: func(t *testing.T, c *gomysql.Config) {
				assert.Equal(t, "localhost:3307", c.Addr)
			},
		},
		{
			name: "dsn gets parseTime",
			cfg:  fabric.ConnectionConfig{DSN: "analyst:secret@tcp(127.0.0.1:3306)/brewery"},
			check: func(t *testing.T, c *gomysql.Config) {
				assert.True(t, c.ParseTime)
				assert.Equal(t, "brewery", c.DBName)
			},
		},
		{
			name:        "missing location",
			cfg:         fabric.ConnectionConfig{User: "analyst"},
			errContains: "requires either dsn or host+database",
		},
		{
			name:        "bad dsn",
			cfg:         fabric.ConnectionConfig{DSN: "not a dsn"},
			errContains: "failed to parse mysql DSN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := buildDSN(tt.cfg.WithDefaults())
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			parsed, err := gomysql.ParseDSN(dsn)
			require.NoError(t, err)
			tt.check(t, parsed)
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`shipments`", quoteIdent("shipments"))
	assert.Equal(t, "`a``b`", quoteIdent("a`b"))
}

func TestNewBackend_ConnectionFailure(t *testing.T) {
	cfg := fabric.ConnectionConfig{
		Driver:                DriverName,
		Host:                  "127.0.0.1",
		Port:                  1,
		Database:              "brewery",
		ConnectTimeoutSeconds: 1,
	}
	_, err := NewBackend(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to mysql")
}
