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

// Package types contains the LLM conversation types shared by pkg/agent,
// pkg/insights and the pkg/llm providers. Keeping them here breaks the
// import cycle between agents and providers.
package types

import (
	"context"

	"github.com/teradata-labs/quarry/pkg/shuttle"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a tool invocation by the LLM.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string

	// Name is the tool name
	Name string

	// Input contains the tool parameters as JSON
	Input map[string]interface{}
}

// Message represents a single message in the conversation.
type Message struct {
	// Role is the message sender (system, user, assistant, tool)
	Role string

	// Content is the message text
	Content string

	// ToolCalls contains tool invocations (if role is assistant)
	ToolCalls []ToolCall

	// ToolUseID is the ID of the tool call this result answers (if role is tool)
	ToolUseID string

	// ToolResult is the structured result behind Content (if role is tool).
	// Providers only ever send Content.
	ToolResult *shuttle.Result
}

// Usage tracks LLM token usage and costs.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// LLMResponse represents a response from the LLM.
type LLMResponse struct {
	// Content is the text response
	Content string

	// ToolCalls contains requested tool executions
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped (end_turn, tool_use, max_tokens)
	StopReason string

	// Usage tracks token usage
	Usage Usage

	// Metadata contains provider-specific metadata
	Metadata map[string]interface{}
}

// LLMProvider defines the interface for LLM providers.
type LLMProvider interface {
	// Chat sends a conversation to the LLM and returns the response.
	// tools may be nil for plain completions.
	Chat(ctx context.Context, messages []Message, tools []shuttle.Tool) (*LLMResponse, error)

	// Name returns the provider name
	Name() string

	// Model returns the model identifier
	Model() string
}

// SystemMessage is a convenience constructor.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage is a convenience constructor.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
