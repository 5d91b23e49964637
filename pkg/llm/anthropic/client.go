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

// Package anthropic implements types.LLMProvider on the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/teradata-labs/quarry/pkg/shuttle"
	llmtypes "github.com/teradata-labs/quarry/pkg/types"
)

const (
	// DefaultAnthropicModel is the default Claude model
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	// DefaultAnthropicEndpoint is the default Anthropic API endpoint
	DefaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultMaxTokens is the default maximum tokens per request
	DefaultMaxTokens = 4096
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 60 * time.Second

	apiVersion = "2023-06-01"
)

// Client implements the LLMProvider interface for Anthropic's Claude API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	httpClient  *http.Client
	maxTokens   int
	temperature float64
}

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string
	Model       string // Default: claude-sonnet-4-5-20250929
	Endpoint    string // Default: https://api.anthropic.com/v1/messages
	Timeout     time.Duration
	MaxTokens   int // Default: 4096
	Temperature float64
	HTTPClient  *http.Client
}

// NewClient creates a new Anthropic client.
func NewClient(config Config) *Client {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if config.Model == "" {
		if envModel := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultAnthropicModel
		}
	}
	if config.Endpoint == "" {
		if envEndpoint := os.Getenv("ANTHROPIC_API_ENDPOINT"); envEndpoint != "" {
			config.Endpoint = envEndpoint
		} else {
			config.Endpoint = DefaultAnthropicEndpoint
		}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		apiKey:      config.APIKey,
		model:       config.Model,
		endpoint:    config.Endpoint,
		httpClient:  httpClient,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anthropic"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Claude and returns the response.
func (c *Client) Chat(ctx context.Context, messages []llmtypes.Message, tools []shuttle.Tool) (*llmtypes.LLMResponse, error) {
	system, apiMessages := convertMessages(messages)

	apiTools, err := convertTools(tools)
	if err != nil {
		return nil, err
	}

	req := &MessagesRequest{
		Model:       c.model,
		Messages:    apiMessages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		System:      system,
		Tools:       apiTools,
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}

	return convertResponse(resp), nil
}

// convertMessages converts agent messages to Anthropic format. System
// messages are joined into the separate "system" field. Consecutive tool
// results are merged into one user turn, as the API requires every
// tool_result for an assistant turn to arrive together.
func convertMessages(messages []llmtypes.Message) (string, []Message) {
	var systemPrompts []string
	var apiMessages []Message

	for _, msg := range messages {
		switch msg.Role {
		case llmtypes.RoleSystem:
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}

		case llmtypes.RoleUser:
			apiMessages = append(apiMessages, Message{
				Role:    "user",
				Content: []ContentBlock{{Type: "text", Text: msg.Content}},
			})

		case llmtypes.RoleAssistant:
			var content []ContentBlock
			if msg.Content != "" {
				content = append(content, ContentBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				content = append(content, ContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Input,
				})
			}
			if len(content) > 0 {
				apiMessages = append(apiMessages, Message{Role: "assistant", Content: content})
			}

		case llmtypes.RoleTool:
			block := ContentBlock{
				Type:      "tool_result",
				ToolUseID: msg.ToolUseID,
				Content:   msg.Content,
				IsError:   msg.ToolResult != nil && !msg.ToolResult.Success,
			}
			if n := len(apiMessages); n > 0 && apiMessages[n-1].Role == "user" && isToolResultTurn(apiMessages[n-1]) {
				apiMessages[n-1].Content = append(apiMessages[n-1].Content, block)
				continue
			}
			apiMessages = append(apiMessages, Message{Role: "user", Content: []ContentBlock{block}})
		}
	}

	return strings.Join(systemPrompts, "\n\n"), apiMessages
}

func isToolResultTurn(m Message) bool {
	for _, b := range m.Content {
		if b.Type != "tool_result" {
			return false
		}
	}
	return len(m.Content) > 0
}

// convertTools converts shuttle tools to Anthropic format.
func convertTools(tools []shuttle.Tool) ([]Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	apiTools := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		schema := shuttle.NormalizeSchema(tool.InputSchema())
		if schema == nil {
			schema = shuttle.NewObjectSchema("", map[string]*shuttle.JSONSchema{}, nil)
		}
		raw, err := schema.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema for tool %s: %w", tool.Name(), err)
		}
		apiTools = append(apiTools, Tool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: raw,
		})
	}
	return apiTools, nil
}

// convertResponse converts Anthropic response to agent format.
func convertResponse(resp *MessagesResponse) *llmtypes.LLMResponse {
	llmResp := &llmtypes.LLMResponse{
		StopReason: resp.StopReason,
		Usage: llmtypes.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
			CostUSD:      calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		},
		Metadata: map[string]interface{}{
			"model":       resp.Model,
			"stop_reason": resp.StopReason,
			"id":          resp.ID,
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			llmResp.Content += block.Text
		case "tool_use":
			input := block.Input
			if input == nil {
				input = map[string]interface{}{}
			}
			llmResp.ToolCalls = append(llmResp.ToolCalls, llmtypes.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return llmResp
}

// calculateCost estimates the cost in USD at Sonnet list pricing
// ($3 input, $15 output per million tokens).
func calculateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*3.0/1_000_000 + float64(outputTokens)*15.0/1_000_000
}

func (c *Client) callAPI(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (status %d, %s): %s", httpResp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// Ensure Client implements LLMProvider interface.
var _ llmtypes.LLMProvider = (*Client)(nil)
