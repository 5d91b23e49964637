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
package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/quarry/pkg/llm"
	"github.com/teradata-labs/quarry/pkg/llm/llmtest"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/types"
)

func fastRetry(n int) llm.RetryConfig {
	return llm.RetryConfig{
		Enabled:      true,
		MaxRetries:   n,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetryProvider(t *testing.T) {
	transient := errors.New("connection reset")

	tests := []struct {
		name      string
		steps     []llmtest.Step
		retries   int
		wantErr   bool
		wantCalls int
	}{
		{name: "first try", steps: []llmtest.Step{llmtest.Text("ok")}, retries: 3, wantCalls: 1},
		{name: "recovers", steps: []llmtest.Step{llmtest.Fail(transient), llmtest.Fail(transient), llmtest.Text("ok")}, retries: 3, wantCalls: 3},
		{name: "exhausted", steps: []llmtest.Step{llmtest.Fail(transient), llmtest.Fail(transient)}, retries: 1, wantErr: true, wantCalls: 2},
		{name: "disabled", steps: []llmtest.Step{llmtest.Fail(transient), llmtest.Text("ok")}, retries: 0, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := llmtest.New(tt.steps...)
			p := llm.NewRetryProvider(fake, fastRetry(tt.retries), zaptest.NewLogger(t))

			resp, err := p.Chat(context.Background(), []types.Message{types.UserMessage("q")}, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, transient)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ok", resp.Content)
			}
			assert.Equal(t, tt.wantCalls, fake.CallCount())
		})
	}
}

func TestRetryProvider_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := llmtest.New(llmtest.Text("never"))
	p := llm.NewRetryProvider(fake, fastRetry(3), zaptest.NewLogger(t))
	_, err := p.Chat(ctx, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fake.CallCount())
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := llm.DefaultRetryConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestInstrumentedProvider(t *testing.T) {
	tracer := observability.NewMockTracer()
	fake := llmtest.New(
		llmtest.Step{Response: &types.LLMResponse{Content: "SELECT 1", Usage: types.Usage{InputTokens: 11, OutputTokens: 4}}},
		llmtest.Fail(errors.New("boom")),
	)
	p := llm.NewInstrumentedProvider(fake, tracer)
	assert.Equal(t, "llmtest", p.Name())
	assert.Equal(t, "scripted", p.Model())

	_, err := p.Chat(context.Background(), []types.Message{types.UserMessage("q")}, nil)
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), []types.Message{types.UserMessage("q")}, nil)
	require.Error(t, err)

	spans := tracer.GetSpansByName(observability.SpanLLMCompletion)
	require.Len(t, spans, 2)
	assert.Equal(t, observability.StatusOK, spans[0].Status.Code)
	assert.Equal(t, observability.StatusError, spans[1].Status.Code)

	assert.Equal(t, 1.0, tracer.MetricTotal(observability.MetricLLMCalls))
	assert.Equal(t, 1.0, tracer.MetricTotal(observability.MetricLLMErrors))
	assert.Equal(t, 11.0, tracer.MetricTotal(observability.MetricLLMTokensInput))
}
