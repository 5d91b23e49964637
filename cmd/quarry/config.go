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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/llm"
	"github.com/teradata-labs/quarry/pkg/schema"
)

// DefaultConfigFileName is the config file looked up in the search paths.
const DefaultConfigFileName = "quarry.yaml"

// Config is the full quarry configuration.
type Config struct {
	// DataDir is computed from QUARRY_DATA_DIR and is not read from file.
	DataDir string `mapstructure:"-"`

	Database      DatabaseConfig      `mapstructure:"database"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Insights      InsightsConfig      `mapstructure:"insights"`
	Schema        SchemaConfig        `mapstructure:"schema"`
	Domain        DomainConfig        `mapstructure:"domain"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// DatabaseConfig selects and configures the analytical database.
type DatabaseConfig struct {
	Driver                string   `mapstructure:"driver"`
	DSN                   string   `mapstructure:"dsn"`
	Host                  string   `mapstructure:"host"`
	Port                  int      `mapstructure:"port"`
	Name                  string   `mapstructure:"name"`
	User                  string   `mapstructure:"user"`
	Password              string   `mapstructure:"password"`
	SSLMode               string   `mapstructure:"ssl_mode"`
	Schema                string   `mapstructure:"schema"`
	MaxConns              int      `mapstructure:"max_conns"`
	ConnectTimeoutSeconds int      `mapstructure:"connect_timeout_seconds"`
	IdleTimeoutSeconds    int      `mapstructure:"idle_timeout_seconds"`
	QueryTimeoutSeconds   int      `mapstructure:"query_timeout_seconds"`
	MaxRows               int      `mapstructure:"max_rows"`
	ExcludedTables        []string `mapstructure:"excluded_tables"`

	// Demo opens the bundled in-memory brewery database instead.
	Demo bool `mapstructure:"demo"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider          string      `mapstructure:"provider"`
	Model             string      `mapstructure:"model"`
	AnthropicAPIKey   string      `mapstructure:"anthropic_api_key"`
	AnthropicEndpoint string      `mapstructure:"anthropic_endpoint"`
	OpenAIAPIKey      string      `mapstructure:"openai_api_key"`
	OpenAIEndpoint    string      `mapstructure:"openai_endpoint"`
	MaxTokens         int         `mapstructure:"max_tokens"`
	Temperature       float64     `mapstructure:"temperature"`
	TimeoutSeconds    int         `mapstructure:"timeout_seconds"`
	Retry             RetryConfig `mapstructure:"retry"`
}

// RetryConfig configures provider retries on transport failures.
type RetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MaxRetries     int     `mapstructure:"max_retries"`
	InitialDelayMs int     `mapstructure:"initial_delay_ms"`
	MaxDelayMs     int     `mapstructure:"max_delay_ms"`
	Multiplier     float64 `mapstructure:"multiplier"`
}

// AgentConfig configures agent selection and the ReAct limits.
type AgentConfig struct {
	Default       string `mapstructure:"default"`
	MaxTurns      int    `mapstructure:"max_turns"`
	MaxRetries    int    `mapstructure:"max_retries"`
	MaxViolations int    `mapstructure:"max_violations"`
	FastFallback  bool   `mapstructure:"fast_fallback"`
}

// InsightsConfig configures the insight generator.
type InsightsConfig struct {
	Mode string `mapstructure:"mode"`
}

// SchemaConfig configures the schema cache.
type SchemaConfig struct {
	RefreshCron string `mapstructure:"refresh_cron"`
	SampleRows  int    `mapstructure:"sample_rows"`
}

// DomainConfig points at the table description catalog.
type DomainConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
	Watch       bool   `mapstructure:"watch"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr                   string `mapstructure:"addr"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// ObservabilityConfig toggles Prometheus metrics.
type ObservabilityConfig struct {
	Metrics bool `mapstructure:"metrics"`
}

// GetDataDir returns QUARRY_DATA_DIR, or ~/.quarry when unset.
func GetDataDir() string {
	if dir := os.Getenv("QUARRY_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quarry"
	}
	return home + string(os.PathSeparator) + ".quarry"
}

// LoadConfig loads configuration from file, environment variables and
// flags, in increasing order of priority.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(GetDataDir())
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/quarry/")
		viper.SetConfigName(strings.TrimSuffix(DefaultConfigFileName, ".yaml"))
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	// QUARRY_DATABASE_DSN overrides database.dsn.
	viper.SetEnvPrefix("QUARRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.DataDir = GetDataDir()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Database defaults
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "prefer")
	viper.SetDefault("database.schema", "public")
	viper.SetDefault("database.max_conns", fabric.DefaultMaxConns)
	viper.SetDefault("database.connect_timeout_seconds", int(fabric.DefaultConnectTimeout/time.Second))
	viper.SetDefault("database.idle_timeout_seconds", int(fabric.DefaultIdleTimeout/time.Second))
	viper.SetDefault("database.query_timeout_seconds", int(fabric.DefaultQueryTimeout/time.Second))
	viper.SetDefault("database.max_rows", fabric.DefaultMaxRows)
	viper.SetDefault("database.excluded_tables", schema.DefaultExcludedTables)
	viper.SetDefault("database.demo", false)

	// LLM defaults
	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.timeout_seconds", 60)
	viper.SetDefault("llm.retry.enabled", true)
	viper.SetDefault("llm.retry.max_retries", 3)
	viper.SetDefault("llm.retry.initial_delay_ms", 100)
	viper.SetDefault("llm.retry.max_delay_ms", 5000)
	viper.SetDefault("llm.retry.multiplier", 2.0)

	// Agent defaults
	viper.SetDefault("agent.default", "auto")
	viper.SetDefault("agent.max_turns", 12)
	viper.SetDefault("agent.max_retries", 2)
	viper.SetDefault("agent.max_violations", 3)
	viper.SetDefault("agent.fast_fallback", true)

	viper.SetDefault("insights.mode", "quick")

	// Schema cache defaults
	viper.SetDefault("schema.refresh_cron", "")
	viper.SetDefault("schema.sample_rows", schema.DefaultSampleRows)

	viper.SetDefault("domain.catalog_path", "")
	viper.SetDefault("domain.watch", true)

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.shutdown_timeout_seconds", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("observability.metrics", true)
}

// Validate rejects settings the components cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q (supported: postgres, sqlite, mysql)", c.Database.Driver)
	}
	switch strings.ToLower(c.Agent.Default) {
	case "auto", "fast", "react":
	default:
		return fmt.Errorf("unsupported default agent %q (supported: auto, fast, react)", c.Agent.Default)
	}
	switch strings.ToLower(c.Insights.Mode) {
	case "quick", "pro":
	default:
		return fmt.Errorf("unsupported insights mode %q (supported: quick, pro)", c.Insights.Mode)
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent.max_retries must not be negative")
	}
	return nil
}

// ConnectionConfig converts the database section for fabric.Open.
func (d DatabaseConfig) ConnectionConfig() fabric.ConnectionConfig {
	return fabric.ConnectionConfig{
		Driver:                d.Driver,
		DSN:                   d.DSN,
		Host:                  d.Host,
		Port:                  d.Port,
		Database:              d.Name,
		User:                  d.User,
		Password:              d.Password,
		SSLMode:               d.SSLMode,
		Schema:                d.Schema,
		MaxConns:              d.MaxConns,
		ConnectTimeoutSeconds: d.ConnectTimeoutSeconds,
		IdleTimeoutSeconds:    d.IdleTimeoutSeconds,
		QueryTimeoutSeconds:   d.QueryTimeoutSeconds,
		MaxRows:               d.MaxRows,
	}
}

// Backoff converts the retry section for the provider factory.
func (r RetryConfig) Backoff() llm.RetryConfig {
	return llm.RetryConfig{
		Enabled:      r.Enabled,
		MaxRetries:   r.MaxRetries,
		InitialDelay: time.Duration(r.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(r.MaxDelayMs) * time.Millisecond,
		Multiplier:   r.Multiplier,
	}
}
