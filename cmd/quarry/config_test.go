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
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadIsolated loads config with no file in the search path.
func loadIsolated(t *testing.T, cfgFile string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("QUARRY_DATA_DIR", t.TempDir())
	t.Chdir(t.TempDir())
	return LoadConfig(cfgFile)
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := loadIsolated(t, "")
	require.NoError(t, err)

	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, 10, config.Database.MaxConns)
	assert.Equal(t, []string{"_prisma_migrations", "schema_migrations"}, config.Database.ExcludedTables)
	assert.False(t, config.Database.Demo)

	assert.Equal(t, "anthropic", config.LLM.Provider)
	assert.Equal(t, 4096, config.LLM.MaxTokens)
	assert.True(t, config.LLM.Retry.Enabled)
	assert.Equal(t, 3, config.LLM.Retry.MaxRetries)

	assert.Equal(t, "auto", config.Agent.Default)
	assert.Equal(t, 12, config.Agent.MaxTurns)
	assert.Equal(t, 2, config.Agent.MaxRetries)
	assert.Equal(t, 3, config.Agent.MaxViolations)
	assert.True(t, config.Agent.FastFallback)

	assert.Equal(t, "quick", config.Insights.Mode)
	assert.Empty(t, config.Schema.RefreshCron)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, "info", config.Logging.Level)
	assert.True(t, config.Observability.Metrics)
	assert.NotEmpty(t, config.DataDir)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: /var/lib/quarry/brewery.db
  excluded_tables: [audit_log]
llm:
  provider: openai
  model: gpt-4o-mini
  retry:
    max_retries: 1
agent:
  default: react
  max_retries: 1
  fast_fallback: false
insights:
  mode: pro
schema:
  refresh_cron: "*/15 * * * *"
domain:
  catalog_path: ./brewery.yaml
`), 0o600))

	config, err := loadIsolated(t, path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, "/var/lib/quarry/brewery.db", config.Database.DSN)
	assert.Equal(t, []string{"audit_log"}, config.Database.ExcludedTables)
	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
	assert.Equal(t, 1, config.LLM.Retry.MaxRetries)
	assert.Equal(t, 5000, config.LLM.Retry.MaxDelayMs)
	assert.Equal(t, "react", config.Agent.Default)
	assert.Equal(t, 1, config.Agent.MaxRetries)
	assert.False(t, config.Agent.FastFallback)
	assert.Equal(t, "pro", config.Insights.Mode)
	assert.Equal(t, "*/15 * * * *", config.Schema.RefreshCron)
	assert.Equal(t, "./brewery.yaml", config.Domain.CatalogPath)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mysql\n"), 0o600))
	t.Setenv("QUARRY_DATABASE_DRIVER", "sqlite")
	t.Setenv("QUARRY_AGENT_MAX_TURNS", "20")

	config, err := loadIsolated(t, path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, 20, config.Agent.MaxTurns)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "driver", yaml: "database:\n  driver: oracle\n", wantErr: "unsupported database driver"},
		{name: "agent", yaml: "agent:\n  default: turbo\n", wantErr: "unsupported default agent"},
		{name: "mode", yaml: "insights:\n  mode: deep\n", wantErr: "unsupported insights mode"},
		{name: "retries", yaml: "agent:\n  max_retries: -1\n", wantErr: "must not be negative"},
		{name: "malformed", yaml: "database: [", wantErr: "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "quarry.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			_, err := loadIsolated(t, path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConnectionConfig(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5433, Name: "brewery", User: "ro", MaxConns: 4}
	cc := d.ConnectionConfig()
	assert.Equal(t, "postgres", cc.Driver)
	assert.Equal(t, "db", cc.Host)
	assert.Equal(t, 5433, cc.Port)
	assert.Equal(t, "brewery", cc.Database)
	assert.Equal(t, "ro", cc.User)
	assert.Equal(t, 4, cc.MaxConns)
}
