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

// Package factory builds configured LLM providers, wrapped with retry and
// instrumentation, from flat configuration.
package factory

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/llm"
	"github.com/teradata-labs/quarry/pkg/llm/anthropic"
	"github.com/teradata-labs/quarry/pkg/llm/openai"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/types"
)

// Provider names accepted by CreateProvider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ProviderFactory creates LLM providers dynamically based on configuration.
type ProviderFactory struct {
	config FactoryConfig
	models *ModelRegistry
}

// FactoryConfig holds configuration for creating LLM providers.
type FactoryConfig struct {
	// Default provider to use
	DefaultProvider string
	DefaultModel    string

	// Anthropic configuration
	AnthropicAPIKey   string
	AnthropicEndpoint string

	// OpenAI (or any compatible endpoint) configuration
	OpenAIAPIKey   string
	OpenAIEndpoint string

	// Common settings
	MaxTokens   int
	Temperature float64
	Timeout     int // seconds

	Retry  llm.RetryConfig
	Tracer observability.Tracer
	Logger *zap.Logger
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.DefaultProvider == "" {
		config.DefaultProvider = ProviderAnthropic
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Timeout == 0 {
		config.Timeout = 60
	}
	if config.Tracer == nil {
		config.Tracer = observability.NewNoOpTracer()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &ProviderFactory{
		config: config,
		models: NewModelRegistry(),
	}
}

// Models exposes the known model catalog.
func (f *ProviderFactory) Models() *ModelRegistry {
	return f.models
}

// CreateProvider creates an LLM provider for the specified provider type and
// model. Empty arguments fall back to the configured defaults. The returned
// provider retries transport failures and records llm.* spans and metrics.
func (f *ProviderFactory) CreateProvider(provider, model string) (types.LLMProvider, error) {
	if provider == "" {
		provider = f.config.DefaultProvider
	}
	if model == "" {
		model = f.config.DefaultModel
	}
	if model == "" {
		model = f.models.DefaultModel(provider)
	}

	var base types.LLMProvider
	switch provider {
	case ProviderAnthropic:
		base = anthropic.NewClient(anthropic.Config{
			APIKey:      f.config.AnthropicAPIKey,
			Model:       model,
			Endpoint:    f.config.AnthropicEndpoint,
			Timeout:     time.Duration(f.config.Timeout) * time.Second,
			MaxTokens:   f.config.MaxTokens,
			Temperature: f.config.Temperature,
		})
	case ProviderOpenAI:
		base = openai.NewClient(openai.Config{
			APIKey:      f.config.OpenAIAPIKey,
			Model:       model,
			Endpoint:    f.config.OpenAIEndpoint,
			Timeout:     time.Duration(f.config.Timeout) * time.Second,
			MaxTokens:   f.config.MaxTokens,
			Temperature: f.config.Temperature,
		})
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: %s, %s)", provider, ProviderAnthropic, ProviderOpenAI)
	}

	f.config.Logger.Debug("created llm provider",
		zap.String("provider", provider),
		zap.String("model", base.Model()))

	return f.Wrap(base), nil
}

// Wrap applies retry and instrumentation to an already constructed provider.
func (f *ProviderFactory) Wrap(base types.LLMProvider) types.LLMProvider {
	retrying := llm.NewRetryProvider(base, f.config.Retry, f.config.Logger)
	return llm.NewInstrumentedProvider(retrying, f.config.Tracer)
}
