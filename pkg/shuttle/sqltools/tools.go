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

// Package sqltools provides the four tools the ReAct agent works with:
// list_tables, get_schema, query_checker and execute_query.
//
// Each tool returns a tagged shuttle.Result. The payload in Result.Data is
// a typed value the harness reads directly; shuttle.Render turns it into
// the text the model sees.
package sqltools

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/domain"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/schema"
	"github.com/teradata-labs/quarry/pkg/shuttle"
)

// Tool names.
const (
	ToolListTables   = "list_tables"
	ToolGetSchema    = "get_schema"
	ToolQueryChecker = "query_checker"
	ToolExecuteQuery = "execute_query"
)

// Error codes carried in shuttle.Error.Code.
const (
	ErrCodeValidation        = "validation_error"
	ErrCodeExecution         = "execution_error"
	ErrCodeSchemaUnavailable = "schema_unavailable"
	ErrCodeInvalidParams     = "invalid_params"
)

// maxErrorLength caps database error text returned to the model.
const maxErrorLength = 500

// Config wires the tools to the shared services.
type Config struct {
	Cache *schema.Cache

	// Catalog supplies table descriptions (optional, defaults to the
	// bundled catalog).
	Catalog *domain.Store

	// Guardrails turns execution errors into correction hints (optional).
	Guardrails *fabric.GuardrailEngine

	Tracer observability.Tracer
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Catalog == nil {
		c.Catalog = domain.NewStore(nil)
	}
	if c.Guardrails == nil {
		c.Guardrails = fabric.NewGuardrailEngine()
	}
	if c.Tracer == nil {
		c.Tracer = observability.NewNoOpTracer()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// New returns the four SQL tools in their expected call order.
func New(cfg Config) []shuttle.Tool {
	cfg = cfg.withDefaults()
	return []shuttle.Tool{
		&ListTablesTool{cfg: cfg},
		&GetSchemaTool{cfg: cfg},
		&QueryCheckerTool{cfg: cfg},
		&ExecuteQueryTool{cfg: cfg},
	}
}

// NewRegistry returns a registry holding the four SQL tools.
func NewRegistry(cfg Config) *shuttle.Registry {
	return shuttle.NewRegistry(New(cfg)...)
}

type runIDKey struct{}

// ContextWithRunID tags ctx with the agent run the tool calls belong to.
// execute_query keys its error history on it.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID set by ContextWithRunID.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
