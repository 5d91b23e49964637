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

// TableEntry is one table with its catalog description.
type TableEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TableList is the payload of a successful list_tables call.
type TableList struct {
	Tables []TableEntry `json:"tables"`
}

// Names returns the table names in order.
func (l *TableList) Names() []string {
	names := make([]string, len(l.Tables))
	for i, t := range l.Tables {
		names[i] = t.Name
	}
	return names
}

// RenderText lists one table per line, with its description when known.
func (l *TableList) RenderText() string {
	if len(l.Tables) == 0 {
		return "No tables found in the database."
	}
	var b strings.Builder
	b.WriteString("Available tables:")
	for _, t := range l.Tables {
		b.WriteString("\n- ")
		b.WriteString(t.Name)
		if t.Description != "" {
			b.WriteString(": ")
			b.WriteString(t.Description)
		}
	}
	return b.String()
}

// ListTablesTool lists the tables the agent may query.
type ListTablesTool struct {
	cfg Config
}

func (t *ListTablesTool) Name() string { return ToolListTables }

func (t *ListTablesTool) Description() string {
	return "Lists the tables in the database with a short description of each. Call this first to discover what data exists."
}

func (t *ListTablesTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("No parameters", map[string]*shuttle.JSONSchema{}, nil)
}

func (t *ListTablesTool) Backend() string { return "" }

func (t *ListTablesTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	names, err := t.cfg.Cache.TableNames(ctx)
	if err != nil {
		r := shuttle.Failure(ErrCodeSchemaUnavailable,
			fmt.Sprintf("Unable to list tables: %s", truncate(err.Error(), maxErrorLength)),
			"The database may be unavailable. Try again later.")
		r.Error.Retryable = true
		return r, nil
	}

	catalog := t.cfg.Catalog.Get()
	list := &TableList{Tables: make([]TableEntry, len(names))}
	for i, n := range names {
		list.Tables[i] = TableEntry{Name: n, Description: catalog.Description(n)}
	}
	return &shuttle.Result{
		Success:  true,
		Data:     list,
		Metadata: map[string]interface{}{"table_count": len(names)},
	}, nil
}

var _ shuttle.Tool = (*ListTablesTool)(nil)
