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

// Package llmtest provides a scripted LLM provider for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/teradata-labs/quarry/pkg/shuttle"
	"github.com/teradata-labs/quarry/pkg/types"
)

// ErrScriptExhausted is returned once every scripted step has been consumed.
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Step is one scripted reply. Exactly one of Response or Err is used.
type Step struct {
	Response *types.LLMResponse
	Err      error
}

// Call records one Chat invocation.
type Call struct {
	Messages []types.Message
	Tools    []string
}

// Provider replays Steps in order. Safe for concurrent use.
type Provider struct {
	mu    sync.Mutex
	steps []Step
	calls []Call

	// Fallback, when set, answers once the script is exhausted.
	Fallback func(messages []types.Message) (*types.LLMResponse, error)
}

// New returns a provider that replays steps.
func New(steps ...Step) *Provider {
	return &Provider{steps: steps}
}

// Text builds a final-answer step.
func Text(content string) Step {
	return Step{Response: &types.LLMResponse{Content: content, StopReason: "end_turn"}}
}

// ToolUse builds a step that calls one tool.
func ToolUse(name string, input map[string]interface{}) Step {
	return ToolUses(types.ToolCall{Name: name, Input: input})
}

// ToolUses builds a step calling several tools in one turn. Missing IDs
// are filled in.
func ToolUses(calls ...types.ToolCall) Step {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call_%s_%d", calls[i].Name, i)
		}
		if calls[i].Input == nil {
			calls[i].Input = map[string]interface{}{}
		}
	}
	return Step{Response: &types.LLMResponse{ToolCalls: calls, StopReason: "tool_use"}}
}

// Fail builds a step that returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Name returns the provider name.
func (p *Provider) Name() string { return "llmtest" }

// Model returns the model identifier.
func (p *Provider) Model() string { return "scripted" }

// Chat returns the next scripted step.
func (p *Provider) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	snapshot := append([]types.Message(nil), messages...)
	p.calls = append(p.calls, Call{Messages: snapshot, Tools: names})

	if len(p.steps) == 0 {
		fallback := p.Fallback
		p.mu.Unlock()
		if fallback != nil {
			return fallback(snapshot)
		}
		return nil, ErrScriptExhausted
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	p.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	return &resp, nil
}

// Calls returns every recorded invocation.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallCount returns how many times Chat was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// LastPrompt returns the concatenated content of the last call's messages.
func (p *Provider) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return ""
	}
	var out string
	for _, m := range p.calls[len(p.calls)-1].Messages {
		out += m.Content + "\n"
	}
	return out
}

var _ types.LLMProvider = (*Provider)(nil)
