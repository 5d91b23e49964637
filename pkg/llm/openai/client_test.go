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
package openai

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

func TestNewClient_Defaults(t *testing.T) {
	t.Setenv("OPENAI_DEFAULT_MODEL", "")
	t.Setenv("OPENAI_API_ENDPOINT", "")

	client := NewClient(Config{APIKey: "sk-test"})
	assert.Equal(t, "openai", client.Name())
	assert.Equal(t, DefaultOpenAIModel, client.Model())
	assert.Equal(t, DefaultOpenAIEndpoint, client.endpoint)
}

func TestClient_Chat(t *testing.T) {
	tests := []struct {
		name         string
		finishReason string
		wantStop     string
	}{
		{name: "stop", finishReason: "stop", wantStop: "end_turn"},
		{name: "length", finishReason: "length", wantStop: "max_tokens"},
		{name: "tool calls", finishReason: "tool_calls", wantStop: "tool_use"},
		{name: "passthrough", finishReason: "content_filter", wantStop: "content_filter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
				content := "SELECT 1"
				_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
					Model: "gpt-4.1",
					Choices: []ChatCompletionChoice{{
						Message:      ChatMessage{Role: "assistant", Content: &content},
						FinishReason: tt.finishReason,
					}},
					Usage: ChatCompletionUsage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
				})
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "sk-test", Endpoint: server.URL})
			resp, err := client.Chat(context.Background(), []types.Message{types.UserMessage("hi")}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStop, resp.StopReason)
			assert.Equal(t, "SELECT 1", resp.Content)
			assert.Equal(t, 12, resp.Usage.TotalTokens)
		})
	}
}

func TestClient_Chat_ToolCalls(t *testing.T) {
	var captured ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []ChatCompletionChoice{{
				Message: ChatMessage{Role: "assistant", ToolCalls: []ToolCall{
					{ID: "call_1", Type: "function", Function: FunctionCall{Name: "execute_query", Arguments: `{"query":"SELECT 1"}`}},
					{ID: "call_2", Type: "function", Function: FunctionCall{Name: "list_tables", Arguments: ""}},
				}},
				FinishReason: "tool_calls",
			}},
		})
	}))
	defer server.Close()

	tool := &shuttle.MockTool{
		MockName: "execute_query",
		MockSchema: shuttle.NewObjectSchema("run", map[string]*shuttle.JSONSchema{
			"query": shuttle.NewStringSchema("sql"),
		}, []string{"query"}),
	}
	client := NewClient(Config{APIKey: "sk-test", Endpoint: server.URL})
	resp, err := client.Chat(context.Background(), []types.Message{types.UserMessage("hi")}, []shuttle.Tool{tool})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "SELECT 1", resp.ToolCalls[0].Input["query"])
	assert.Empty(t, resp.ToolCalls[1].Input)

	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "auto", captured.ToolChoice)
	assert.JSONEq(t,
		`{"type":"object","description":"run","properties":{"query":{"type":"string","description":"sql"}},"required":["query"]}`,
		string(captured.Tools[0].Function.Parameters))
}

func TestClient_Chat_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", Endpoint: server.URL})
	_, err := client.Chat(context.Background(), []types.Message{types.UserMessage("hi")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.Contains(t, err.Error(), "401")
}

func TestConvertMessages(t *testing.T) {
	msgs := convertMessages([]types.Message{
		types.SystemMessage("sys"),
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{{ID: "c1", Name: "list_tables"}}},
		{Role: types.RoleTool, ToolUseID: "c1", Content: "beer_styles"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, "sys", *msgs[0].Content)
	assert.Nil(t, msgs[1].Content)
	assert.Equal(t, "{}", msgs[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
}
