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
package fabric

import (
	"fmt"
	"os"
	"regexp"
	"time"
)

// ConnectionConfig carries everything a backend factory needs to open a
// database. DSN, when set, takes precedence over the discrete fields.
type ConnectionConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"name" yaml:"name"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	Schema   string `mapstructure:"schema" yaml:"schema"`

	MaxConns              int `mapstructure:"max_conns" yaml:"max_conns"`
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds" yaml:"connect_timeout_seconds"`
	IdleTimeoutSeconds    int `mapstructure:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	QueryTimeoutSeconds   int `mapstructure:"query_timeout_seconds" yaml:"query_timeout_seconds"`

	// MaxRows caps rows read per query (default 10000)
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`
}

// Connection defaults.
const (
	DefaultMaxConns       = 10
	DefaultConnectTimeout = 10 * time.Second
	DefaultIdleTimeout    = 5 * time.Minute
	DefaultQueryTimeout   = 30 * time.Second
	DefaultMaxRows        = 10000
)

// WithDefaults returns a copy with zero values replaced by defaults and
// ${VAR} references expanded from the environment.
func (c ConnectionConfig) WithDefaults() ConnectionConfig {
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.ConnectTimeoutSeconds <= 0 {
		c.ConnectTimeoutSeconds = int(DefaultConnectTimeout / time.Second)
	}
	if c.IdleTimeoutSeconds <= 0 {
		c.IdleTimeoutSeconds = int(DefaultIdleTimeout / time.Second)
	}
	if c.QueryTimeoutSeconds <= 0 {
		c.QueryTimeoutSeconds = int(DefaultQueryTimeout / time.Second)
	}
	if c.MaxRows <= 0 {
		c.MaxRows = DefaultMaxRows
	}
	c.DSN = expandEnvVars(c.DSN)
	c.Password = expandEnvVars(c.Password)
	return c
}

// Validate checks that a database can be located.
func (c ConnectionConfig) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.DSN == "" && c.Host == "" && c.Database == "" {
		return fmt.Errorf("database is not configured: set database.dsn (or DATABASE_URL) or host and name")
	}
	return nil
}

// ConnectTimeout returns the connect timeout as a duration.
func (c ConnectionConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// IdleTimeout returns the idle timeout as a duration.
func (c ConnectionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// QueryTimeout returns the per-query timeout as a duration.
func (c ConnectionConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} with the environment value.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(m)[1])
	})
}
