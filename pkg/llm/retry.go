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
package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/shuttle"
	llmtypes "github.com/teradata-labs/quarry/pkg/types"
)

// RetryConfig configures exponential backoff retry logic for LLM calls.
// This retries transport failures only; it is unrelated to SQL self-correction.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries)
	MaxRetries int

	// InitialDelay is the initial delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier (e.g., 2.0 for doubling)
	Multiplier float64

	// Enabled enables retry logic
	Enabled bool
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:      true,
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryProvider retries failed Chat calls with exponential backoff.
type RetryProvider struct {
	provider llmtypes.LLMProvider
	config   RetryConfig
	logger   *zap.Logger
}

// NewRetryProvider wraps provider. A nil logger falls back to zap.L().
func NewRetryProvider(provider llmtypes.LLMProvider, config RetryConfig, logger *zap.Logger) *RetryProvider {
	if logger == nil {
		logger = zap.L()
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &RetryProvider{provider: provider, config: config, logger: logger}
}

// Name returns the underlying provider name.
func (p *RetryProvider) Name() string {
	return p.provider.Name()
}

// Model returns the underlying model identifier.
func (p *RetryProvider) Model() string {
	return p.provider.Model()
}

// Chat calls the wrapped provider, retrying on error until MaxRetries is
// exhausted or ctx is done.
func (p *RetryProvider) Chat(ctx context.Context, messages []llmtypes.Message, tools []shuttle.Tool) (*llmtypes.LLMResponse, error) {
	if !p.config.Enabled || p.config.MaxRetries == 0 {
		return p.provider.Chat(ctx, messages, tools)
	}

	var lastErr error
	delay := p.config.InitialDelay

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		response, err := p.provider.Chat(ctx, messages, tools)
		if err == nil {
			if attempt > 0 {
				p.logger.Info("llm retry succeeded",
					zap.String("provider", p.provider.Name()),
					zap.Int("attempt", attempt+1),
				)
			}
			return response, nil
		}

		lastErr = err

		// Don't retry on context cancellation or deadline exceeded
		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm call failed (attempt %d/%d): %w (context cancelled)",
				attempt+1, p.config.MaxRetries+1, err)
		}

		if attempt >= p.config.MaxRetries {
			break
		}

		p.logger.Warn("llm call failed, retrying",
			zap.String("provider", p.provider.Name()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", p.config.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("llm call failed (attempt %d/%d): %w (context cancelled during retry)",
				attempt+1, p.config.MaxRetries+1, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.config.Multiplier)
		if p.config.MaxDelay > 0 && delay > p.config.MaxDelay {
			delay = p.config.MaxDelay
		}
	}

	p.logger.Error("llm retries exhausted",
		zap.String("provider", p.provider.Name()),
		zap.Int("max_retries", p.config.MaxRetries),
		zap.Error(lastErr),
	)

	return nil, fmt.Errorf("llm call failed after %d attempts: %w",
		p.config.MaxRetries+1, lastErr)
}

var _ llmtypes.LLMProvider = (*RetryProvider)(nil)
