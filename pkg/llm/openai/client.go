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

// Package openai implements types.LLMProvider on the OpenAI chat completions
// API. Any endpoint speaking the same protocol works through Config.Endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/teradata-labs/quarry/pkg/shuttle"
	llmtypes "github.com/teradata-labs/quarry/pkg/types"
)

// Default OpenAI configuration values.
// Can be overridden via OPENAI_DEFAULT_MODEL and OPENAI_API_ENDPOINT.
const (
	DefaultOpenAIModel     = "gpt-4.1"
	DefaultOpenAIEndpoint  = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAITimeout   = 60 * time.Second
	DefaultOpenAIMaxTokens = 4096
)

// Client implements the LLMProvider interface for OpenAI's API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	httpClient  *http.Client
	maxTokens   int
	temperature float64
}

// Config holds configuration for the OpenAI client.
type Config struct {
	APIKey      string
	Model       string        // Default: gpt-4.1
	Endpoint    string        // Default: https://api.openai.com/v1/chat/completions
	Timeout     time.Duration // Default: 60s
	MaxTokens   int           // Default: 4096
	Temperature float64
	HTTPClient  *http.Client
}

// NewClient creates a new OpenAI client.
func NewClient(config Config) *Client {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.Model == "" {
		if envModel := os.Getenv("OPENAI_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultOpenAIModel
		}
	}
	if config.Endpoint == "" {
		if envEndpoint := os.Getenv("OPENAI_API_ENDPOINT"); envEndpoint != "" {
			config.Endpoint = envEndpoint
		} else {
			config.Endpoint = DefaultOpenAIEndpoint
		}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultOpenAITimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultOpenAIMaxTokens
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
	return "openai"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to OpenAI and returns the response.
func (c *Client) Chat(ctx context.Context, messages []llmtypes.Message, tools []shuttle.Tool) (*llmtypes.LLMResponse, error) {
	apiTools, err := convertTools(tools)
	if err != nil {
		return nil, err
	}

	req := &ChatCompletionRequest{
		Model:       c.model,
		Messages:    convertMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Tools:       apiTools,
	}
	if len(apiTools) > 0 {
		req.ToolChoice = "auto"
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}

	return c.convertResponse(resp), nil
}

func strPtr(s string) *string { return &s }

// convertMessages converts agent messages to OpenAI format.
func convertMessages(messages []llmtypes.Message) []ChatMessage {
	apiMessages := make([]ChatMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llmtypes.RoleSystem, llmtypes.RoleUser:
			apiMessages = append(apiMessages, ChatMessage{
				Role:    msg.Role,
				Content: strPtr(msg.Content),
			})

		case llmtypes.RoleAssistant:
			apiMsg := ChatMessage{Role: "assistant"}
			if msg.Content != "" {
				apiMsg.Content = strPtr(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				argsJSON, err := json.Marshal(tc.Input)
				if err != nil || tc.Input == nil {
					argsJSON = []byte("{}")
				}
				apiMsg.ToolCalls = append(apiMsg.ToolCalls, ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				})
			}
			if apiMsg.Content == nil && len(apiMsg.ToolCalls) == 0 {
				apiMsg.Content = strPtr("")
			}
			apiMessages = append(apiMessages, apiMsg)

		case llmtypes.RoleTool:
			apiMessages = append(apiMessages, ChatMessage{
				Role:       "tool",
				Content:    strPtr(msg.Content),
				ToolCallID: msg.ToolUseID,
			})
		}
	}

	return apiMessages
}

// convertTools converts shuttle tools to OpenAI format.
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
			Type: "function",
			Function: FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  raw,
			},
		})
	}
	return apiTools, nil
}

func (c *Client) convertResponse(resp *ChatCompletionResponse) *llmtypes.LLMResponse {
	llmResp := &llmtypes.LLMResponse{
		Usage: llmtypes.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
			CostUSD:      c.calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		},
		Metadata: map[string]interface{}{
			"model": resp.Model,
			"id":    resp.ID,
		},
	}

	if len(resp.Choices) == 0 {
		llmResp.StopReason = "end_turn"
		return llmResp
	}

	choice := resp.Choices[0]
	llmResp.Metadata["finish_reason"] = choice.FinishReason

	switch choice.FinishReason {
	case "stop":
		llmResp.StopReason = "end_turn"
	case "length":
		llmResp.StopReason = "max_tokens"
	case "tool_calls", "function_call":
		llmResp.StopReason = "tool_use"
	default:
		llmResp.StopReason = choice.FinishReason
	}

	if choice.Message.Content != nil {
		llmResp.Content = *choice.Message.Content
	}

	for _, tc := range choice.Message.ToolCalls {
		var input map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				input = map[string]interface{}{"_raw": tc.Function.Arguments}
			}
		}
		if input == nil {
			input = map[string]interface{}{}
		}
		llmResp.ToolCalls = append(llmResp.ToolCalls, llmtypes.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	return llmResp
}

// calculateCost estimates the cost in USD based on token usage.
func (c *Client) calculateCost(inputTokens, outputTokens int) float64 {
	var inputCostPerM, outputCostPerM float64

	switch c.model {
	case "gpt-4o-mini":
		inputCostPerM, outputCostPerM = 0.15, 0.60
	case "gpt-4.1-mini":
		inputCostPerM, outputCostPerM = 0.40, 1.60
	case "gpt-4.1":
		inputCostPerM, outputCostPerM = 2.00, 8.00
	default:
		inputCostPerM, outputCostPerM = 2.50, 10.00
	}

	return float64(inputTokens)*inputCostPerM/1_000_000 + float64(outputTokens)*outputCostPerM/1_000_000
}

func (c *Client) callAPI(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error (status %d): %s (type: %s)", httpResp.StatusCode, resp.Error.Message, resp.Error.Type)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	return &resp, nil
}

// Ensure Client implements LLMProvider interface.
var _ llmtypes.LLMProvider = (*Client)(nil)
