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
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/quarry/pkg/shuttle"
	"github.com/teradata-labs/quarry/pkg/types"
)

func TestNewClient(t *testing.T) {
	t.Setenv("ANTHROPIC_DEFAULT_MODEL", "")
	t.Setenv("ANTHROPIC_API_ENDPOINT", "")

	client := NewClient(Config{APIKey: "test-key"})
	require.NotNil(t, client)
	assert.Equal(t, "anthropic", client.Name())
	assert.Equal(t, DefaultAnthropicModel, client.Model())
	assert.Equal(t, DefaultAnthropicEndpoint, client.endpoint)
	assert.Equal(t, DefaultMaxTokens, client.maxTokens)
}

func TestClient_Chat_SimpleText(t *testing.T) {
	var captured MessagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := MessagesResponse{
			ID:         "msg_123",
			Type:       "message",
			Role:       "assistant",
			Model:      DefaultAnthropicModel,
			StopReason: "end_turn",
			Content:    []ContentBlock{{Type: "text", Text: "SELECT 1"}},
			Usage:      Usage{InputTokens: 10, OutputTokens: 20},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", Endpoint: server.URL})

	resp, err := client.Chat(context.Background(), []types.Message{
		types.SystemMessage("You write SQL."),
		types.UserMessage("How many styles?"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
	assert.Greater(t, resp.Usage.CostUSD, 0.0)

	assert.Equal(t, "You write SQL.", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Empty(t, captured.Tools)
}

func TestClient_Chat_WithToolCalls(t *testing.T) {
	var raw map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		resp := MessagesResponse{
			StopReason: "tool_use",
			Content: []ContentBlock{
				{Type: "text", Text: "Let me look."},
				{Type: "tool_use", ID: "toolu_1", Name: "list_tables"},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	tool := &shuttle.MockTool{
		MockName:        "list_tables",
		MockDescription: "List tables",
		MockSchema:      shuttle.NewObjectSchema("", nil, nil),
	}
	client := NewClient(Config{APIKey: "k", Endpoint: server.URL})

	resp, err := client.Chat(context.Background(), []types.Message{types.UserMessage("q")}, []shuttle.Tool{tool})
	require.NoError(t, err)

	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "list_tables", resp.ToolCalls[0].Name)
	assert.NotNil(t, resp.ToolCalls[0].Input)

	tools, ok := raw["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, tools, 1)
	schema := tools[0].(map[string]interface{})["input_schema"].(map[string]interface{})
	assert.Equal(t, "object", schema["type"])
}

func TestClient_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", Endpoint: server.URL})
	_, err := client.Chat(context.Background(), []types.Message{types.UserMessage("q")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "slow down")
}

func TestConvertMessages(t *testing.T) {
	failed := shuttle.Failure("execution_error", "SQL Error: no such table", "")
	messages := []types.Message{
		types.SystemMessage("one"),
		types.SystemMessage("two"),
		types.UserMessage("question"),
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{
			{ID: "a", Name: "get_schema"},
			{ID: "b", Name: "execute_query", Input: map[string]interface{}{"query": "SELECT 1"}},
		}},
		{Role: types.RoleTool, ToolUseID: "a", Content: "schema"},
		{Role: types.RoleTool, ToolUseID: "b", Content: "SQL Error: no such table", ToolResult: failed},
	}

	system, apiMessages := convertMessages(messages)
	assert.Equal(t, "one\n\ntwo", system)
	require.Len(t, apiMessages, 3)

	assistant := apiMessages[1]
	assert.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.Content, 2)

	encoded, err := json.Marshal(assistant.Content[0])
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"input":{}`)

	results := apiMessages[2]
	assert.Equal(t, "user", results.Role)
	require.Len(t, results.Content, 2)
	assert.False(t, results.Content[0].IsError)
	assert.True(t, results.Content[1].IsError)
}
