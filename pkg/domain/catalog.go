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

// Package domain holds business knowledge about the analytical database
// that the catalog cannot express: what each table is for, how tables join
// and which columns carry the common metrics.
package domain

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the domain knowledge fed into agent prompts and tools.
type Catalog struct {
	Name             string      `yaml:"name"`
	Tables           []TableInfo `yaml:"tables"`
	JoinPatterns     []string    `yaml:"join_patterns"`
	NamingHints      []string    `yaml:"naming_hints"`
	ExampleQuestions []string    `yaml:"example_questions"`
}

// TableInfo is a one-line description of a table's purpose.
type TableInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Default returns the bundled brewery catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("bundled domain catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read domain catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse domain catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("domain catalog table %d has no name", i)
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			return nil, fmt.Errorf("domain catalog lists table %s twice", t.Name)
		}
		seen[key] = true
	}
	return &c, nil
}

// Description returns the description of table, or "" when the catalog
// does not know it.
func (c *Catalog) Description(table string) string {
	if c == nil {
		return ""
	}
	for _, t := range c.Tables {
		if strings.EqualFold(t.Name, table) {
			return t.Description
		}
	}
	return ""
}

// PromptSection renders join patterns and naming hints for a system prompt.
// It returns "" when the catalog has neither.
func (c *Catalog) PromptSection() string {
	if c == nil || (len(c.JoinPatterns) == 0 && len(c.NamingHints) == 0) {
		return ""
	}
	var b strings.Builder
	if len(c.JoinPatterns) > 0 {
		b.WriteString("Join patterns:\n")
		for _, p := range c.JoinPatterns {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
	if len(c.NamingHints) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Naming hints:\n")
		for _, h := range c.NamingHints {
			b.WriteString("- ")
			b.WriteString(h)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
