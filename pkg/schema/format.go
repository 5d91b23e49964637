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
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/quarry/pkg/fabric"
)

// Format renders tables into the text blob given to the model:
//
//	Table: production_batches
//	Columns:
//	  - id INTEGER NOT NULL
//	  - beer_style_id INTEGER NOT NULL
//	Foreign keys:
//	  - beer_style_id -> beer_styles.id
//	Sample rows:
//	  {"beer_style_id":1,"id":101}
//
// Tables are separated by a blank line.
func Format(tables []*fabric.TableSchema) string {
	blocks := make([]string, 0, len(tables))
	for _, t := range tables {
		if t != nil {
			blocks = append(blocks, formatTable(t))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func formatTable(t *fabric.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", t.Name)
	b.WriteString("Columns:")
	for _, c := range t.Columns {
		b.WriteString("\n  - ")
		b.WriteString(formatColumn(c))
	}
	if len(t.ForeignKeys) > 0 {
		b.WriteString("\nForeign keys:")
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(&b, "\n  - %s -> %s.%s", fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
		}
	}
	if len(t.SampleRows) > 0 {
		b.WriteString("\nSample rows:")
		for _, row := range t.SampleRows {
			b.WriteString("\n  ")
			b.WriteString(formatRow(row))
		}
	}
	return b.String()
}

func formatColumn(c fabric.Column) string {
	s := c.Name
	if c.DataType != "" {
		s += " " + c.DataType
	}
	if !c.Nullable {
		s += " NOT NULL"
	}
	if c.Default != nil {
		s += " DEFAULT " + *c.Default
	}
	return s
}

// formatRow renders a row as compact JSON with sorted keys.
func formatRow(row map[string]any) string {
	out, err := json.Marshal(row)
	if err != nil {
		return fmt.Sprintf("%v", row)
	}
	return string(out)
}
