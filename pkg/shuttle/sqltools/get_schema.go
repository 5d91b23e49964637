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
package sqltools

import (
	"context"
	"fmt"
	"strings"

	"github.com/teradata-labs/quarry/pkg/shuttle"
)

// SchemaText is the payload of a successful get_schema call.
type SchemaText struct {
	Requested []string `json:"requested"`
	Unknown   []string `json:"unknown,omitempty"`
	Text      string   `json:"text"`
}

// RenderText returns the schema, noting requested tables that do not exist.
func (s *SchemaText) RenderText() string {
	if len(s.Unknown) == 0 {
		return s.Text
	}
	return fmt.Sprintf("Unknown tables ignored: %s\n\n%s", strings.Join(s.Unknown, ", "), s.Text)
}

// GetSchemaTool returns column, foreign key and sample row detail for a set
// of tables.
type GetSchemaTool struct {
	cfg Config
}

func (t *GetSchemaTool) Name() string { return ToolGetSchema }

func (t *GetSchemaTool) Description() string {
	return "Returns columns, types, foreign keys and sample rows for the given tables. " +
		"Call it for every table you plan to query before writing SQL."
}

func (t *GetSchemaTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema(
		"Tables to describe",
		map[string]*shuttle.JSONSchema{
			"tables": shuttle.NewStringSchema("Comma-separated table names, e.g. \"beer_styles, production_batches\""),
		},
		[]string{"tables"},
	)
}

func (t *GetSchemaTool) Backend() string { return "" }

func (t *GetSchemaTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	tables := SplitTables(stringParam(params, "tables"))
	if len(tables) == 0 {
		return shuttle.Failure(ErrCodeInvalidParams,
			"No tables specified. Provide a comma-separated list of table names.",
			"Call list_tables to see which tables exist."), nil
	}

	text, err := t.cfg.Cache.Schema(ctx, tables...)
	if err != nil {
		r := shuttle.Failure(ErrCodeSchemaUnavailable,
			fmt.Sprintf("Unable to load schema: %s", truncate(err.Error(), maxErrorLength)),
			"The database may be unavailable. Try again later.")
		r.Error.Retryable = true
		return r, nil
	}

	payload := &SchemaText{Requested: tables, Text: text}
	if snap := t.cfg.Cache.Snapshot(); snap != nil {
		for _, name := range tables {
			if _, ok := snap.Table(name); !ok {
				payload.Unknown = append(payload.Unknown, name)
			}
		}
	}
	return &shuttle.Result{Success: true, Data: payload}, nil
}

// SplitTables parses a comma-separated table list, dropping blanks,
// surrounding quotes and duplicates.
func SplitTables(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		name := strings.Trim(strings.TrimSpace(part), "\"'`")
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

var _ shuttle.Tool = (*GetSchemaTool)(nil)
