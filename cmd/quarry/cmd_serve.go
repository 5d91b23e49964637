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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/internal/log"
	"github.com/teradata-labs/quarry/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quarry HTTP server",
	Long: `Start the HTTP/JSON server.

Endpoints:
  POST /v1/ask              {"question": "...", "agent": "auto|fast|react", "mode": "quick|pro"}
  GET  /v1/schema           cache status and schema text (?tables=a,b)
  POST /v1/schema/refresh   rescan the database
  GET  /healthz             database connectivity
  GET  /metrics             Prometheus metrics (observability.metrics)

Press Ctrl+C to gracefully shutdown.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.Logger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	if err := app.Start(ctx); err != nil {
		return err
	}

	srv := newServer(app)
	logger.Info("quarry ready",
		zap.String("addr", config.Server.Addr),
		zap.String("backend", app.Cache.Backend().Name()),
		zap.Bool("metrics", app.MetricsHandler() != nil))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(config.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

func newServer(app *App) *server.HTTPServer {
	opts := []server.Option{server.WithLogger(app.Logger)}
	if h := app.MetricsHandler(); h != nil {
		opts = append(opts, server.WithMetrics(h))
	}
	return server.NewHTTPServer(app.Service, app.Config.Server.Addr, opts...)
}
