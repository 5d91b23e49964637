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

// Package shuttle defines the tool surface the ReAct agent calls.
//
// Tools "shuttle" data between the model and the database. A tool returns a
// structured Result to the harness; Render turns that result into the text
// the model reads, as a separate last step.
package shuttle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Tool defines the interface for executable tools in the agent framework.
type Tool interface {
	// Name returns the tool's unique identifier
	Name() string

	// Description returns a human-readable description for LLM context
	Description() string

	// InputSchema returns the JSON Schema for tool parameters
	InputSchema() *JSONSchema

	// Execute runs the tool with given parameters. Domain failures are
	// reported through Result.Error; a returned error means the tool itself
	// could not run.
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)

	// Backend returns the backend type this tool requires (e.g., "postgres").
	// Empty string means the tool is backend-agnostic.
	Backend() string
}

// Result represents the outcome of tool execution.
type Result struct {
	// Success indicates if the tool executed successfully
	Success bool

	// Data contains the structured result (format varies by tool)
	Data interface{}

	// Error contains error information if execution failed
	Error *Error

	// Metadata contains tool-specific metadata
	Metadata map[string]interface{}

	// ExecutionTimeMs is the wall-clock execution time
	ExecutionTimeMs int64
}

// Error represents a tool execution error with structured information.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Details provides additional error context
	Details map[string]interface{}

	// Retryable indicates if the operation can be retried
	Retryable bool

	// Suggestion provides a suggestion for fixing the error
	Suggestion string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// TextRenderer is implemented by result payloads that know how to present
// themselves to the model.
type TextRenderer interface {
	RenderText() string
}

// Render serializes a result into the text fed back into the model context.
func Render(r *Result) string {
	if r == nil {
		return "Tool returned no result."
	}
	if !r.Success {
		if r.Error == nil {
			return "Tool failed without an error message."
		}
		var b strings.Builder
		b.WriteString(r.Error.Message)
		if r.Error.Suggestion != "" {
			b.WriteString("\n\nSuggestion: ")
			b.WriteString(r.Error.Suggestion)
		}
		return b.String()
	}

	switch data := r.Data.(type) {
	case nil:
		return "OK"
	case TextRenderer:
		return data.RenderText()
	case string:
		return data
	case fmt.Stringer:
		return data.String()
	default:
		out, err := json.Marshal(data)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(out)
	}
}

// Failure builds a failed Result.
func Failure(code, message, suggestion string) *Result {
	return &Result{
		Success: false,
		Error: &Error{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
		},
	}
}

// JSONSchema represents a JSON Schema for tool parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []interface{}          `json:"enum,omitempty"`
	Default     interface{}            `json:"default,omitempty"`
	Pattern     string                 `json:"pattern,omitempty"`
	MinLength   *int                   `json:"minLength,omitempty"`
	MaxLength   *int                   `json:"maxLength,omitempty"`
}

// ToJSON converts the schema to JSON bytes.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// NewObjectSchema creates a new object schema with the given properties.
func NewObjectSchema(description string, properties map[string]*JSONSchema, required []string) *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// NewStringSchema creates a new string schema.
func NewStringSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "string",
		Description: description,
	}
}

// WithEnum adds enum values to the schema.
func (s *JSONSchema) WithEnum(values ...interface{}) *JSONSchema {
	s.Enum = values
	return s
}

// WithLength adds length constraints to the schema.
func (s *JSONSchema) WithLength(minLen, maxLen *int) *JSONSchema {
	s.MinLength = minLen
	s.MaxLength = maxLen
	return s
}
