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
package factory

import (
	"sort"

	"github.com/teradata-labs/quarry/pkg/llm/anthropic"
	"github.com/teradata-labs/quarry/pkg/llm/openai"
)

// ModelInfo describes a model a provider offers.
type ModelInfo struct {
	ID                 string
	Name               string
	Provider           string
	ContextWindow      int
	CostPer1MInputUSD  float64
	CostPer1MOutputUSD float64
	Default            bool
}

// ModelRegistry holds information about supported models per provider.
type ModelRegistry struct {
	models map[string][]ModelInfo
}

// NewModelRegistry creates a new model registry with all supported models.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: map[string][]ModelInfo{
			ProviderAnthropic: {
				{ID: anthropic.DefaultAnthropicModel, Name: "Claude Sonnet 4.5", ContextWindow: 200000, CostPer1MInputUSD: 3.0, CostPer1MOutputUSD: 15.0, Default: true},
				{ID: "claude-haiku-4-5-20251001", Name: "Claude Haiku 4.5", ContextWindow: 200000, CostPer1MInputUSD: 1.0, CostPer1MOutputUSD: 5.0},
				{ID: "claude-opus-4-5-20251101", Name: "Claude Opus 4.5", ContextWindow: 200000, CostPer1MInputUSD: 5.0, CostPer1MOutputUSD: 25.0},
			},
			ProviderOpenAI: {
				{ID: openai.DefaultOpenAIModel, Name: "GPT-4.1", ContextWindow: 1047576, CostPer1MInputUSD: 2.0, CostPer1MOutputUSD: 8.0, Default: true},
				{ID: "gpt-4.1-mini", Name: "GPT-4.1 mini", ContextWindow: 1047576, CostPer1MInputUSD: 0.4, CostPer1MOutputUSD: 1.6},
				{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextWindow: 128000, CostPer1MInputUSD: 0.15, CostPer1MOutputUSD: 0.6},
			},
		},
	}
}

// GetModelsForProvider returns the models registered for provider.
func (r *ModelRegistry) GetModelsForProvider(provider string) []ModelInfo {
	models := r.models[provider]
	out := make([]ModelInfo, len(models))
	for i, m := range models {
		m.Provider = provider
		out[i] = m
	}
	return out
}

// Providers lists provider names in sorted order.
func (r *ModelRegistry) Providers() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultModel returns the provider's default model, or "" for an unknown
// provider.
func (r *ModelRegistry) DefaultModel(provider string) string {
	for _, m := range r.models[provider] {
		if m.Default {
			return m.ID
		}
	}
	return ""
}

// Lookup finds a model by ID across providers.
func (r *ModelRegistry) Lookup(id string) (ModelInfo, bool) {
	for provider, models := range r.models {
		for _, m := range models {
			if m.ID == id {
				m.Provider = provider
				return m, true
			}
		}
	}
	return ModelInfo{}, false
}
