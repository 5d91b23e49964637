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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/internal/log"
	"github.com/teradata-labs/quarry/internal/version"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "quarry - natural-language analytics over SQL databases",
	Long: `quarry turns questions into read-only SQL, runs them against the configured
database and explains the results.

Configuration is read from quarry.yaml ($QUARRY_DATA_DIR, ., /etc/quarry/),
QUARRY_* environment variables and flags, in increasing order of priority.`,
	Version:       version.Get(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $QUARRY_DATA_DIR/quarry.yaml)")

	// Database flags
	rootCmd.PersistentFlags().String("db-driver", "postgres", "Database driver (postgres, sqlite, mysql)")
	rootCmd.PersistentFlags().String("dsn", "", "Database connection string")
	rootCmd.PersistentFlags().Bool("demo", false, "Use the bundled in-memory brewery database")

	// LLM flags
	rootCmd.PersistentFlags().String("llm-provider", "anthropic", "LLM provider (anthropic, openai)")
	rootCmd.PersistentFlags().String("model", "", "Model name (default depends on provider)")
	rootCmd.PersistentFlags().Float64("temperature", 0.0, "LLM temperature")
	rootCmd.PersistentFlags().Int("max-tokens", 4096, "Maximum tokens per request")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	_ = viper.BindPFlag("database.demo", rootCmd.PersistentFlags().Lookup("demo"))

	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("llm.temperature", rootCmd.PersistentFlags().Lookup("temperature"))
	_ = viper.BindPFlag("llm.max_tokens", rootCmd.PersistentFlags().Lookup("max-tokens"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := log.Configure(config.Logging.Level, config.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	log.Logger().Debug("configuration loaded",
		zap.String("file", viper.ConfigFileUsed()),
		zap.String("driver", config.Database.Driver),
		zap.String("llm_provider", config.LLM.Provider))
}
