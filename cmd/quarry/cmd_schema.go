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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/quarry/internal/log"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect the schema cache",
}

var schemaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Scan the database and print cache status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			return schemaStatus(cmd.Context(), app, cmd.OutOrStdout())
		})
	},
}

var schemaDumpCmd = &cobra.Command{
	Use:   "dump [table...]",
	Short: "Print the schema text the agents see",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			text, err := app.Cache.Schema(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

var schemaRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Drop the cache and scan the database again",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			if err := app.Cache.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("schema refresh failed: %w", err)
			}
			return schemaStatus(cmd.Context(), app, cmd.OutOrStdout())
		})
	},
}

func init() {
	schemaCmd.AddCommand(schemaStatusCmd, schemaDumpCmd, schemaRefreshCmd)
	rootCmd.AddCommand(schemaCmd)
}

// withApp builds the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(app *App) error) error {
	app, err := newApp(cmd.Context(), config, log.Logger())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(app)
}

func schemaStatus(ctx context.Context, app *App, out io.Writer) error {
	if app.Cache.Snapshot() == nil {
		if err := app.Cache.Initialize(ctx); err != nil {
			return fmt.Errorf("schema unavailable: %w", err)
		}
	}
	status := app.Cache.Status()
	if status == nil {
		return fmt.Errorf("schema unavailable")
	}
	fmt.Fprintf(out, "Backend:      %s\n", app.Cache.Backend().Name())
	fmt.Fprintf(out, "Tables:       %d\n", status.TableCount)
	fmt.Fprintf(out, "Schema bytes: %d\n", status.SchemaBytes)
	fmt.Fprintf(out, "Last updated: %s\n", status.LastUpdated.Format("2006-01-02 15:04:05"))
	if len(status.TableNames) > 0 {
		fmt.Fprintf(out, "  %s\n", strings.Join(status.TableNames, "\n  "))
	}
	return nil
}

// printJSON is shared by commands with a --json flag.
func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
