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
package agent

import (
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/domain"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/observability"
)

type options struct {
	tracer     observability.Tracer
	logger     *zap.Logger
	catalog    *domain.Store
	guardrails *fabric.GuardrailEngine
	limits     Limits
}

func defaultOptions() options {
	return options{
		tracer:  observability.NewNoOpTracer(),
		logger:  zap.NewNop(),
		catalog: domain.NewStore(nil),
		limits:  DefaultLimits(),
	}
}

// Option configures an agent.
type Option func(*options)

// WithTracer sets the tracer used for spans and metrics.
func WithTracer(tracer observability.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCatalog sets the domain catalog supplying table descriptions, join
// patterns and naming hints.
func WithCatalog(store *domain.Store) Option {
	return func(o *options) {
		if store != nil {
			o.catalog = store
		}
	}
}

// WithGuardrails shares a guardrail engine across agents. ReAct only.
func WithGuardrails(g *fabric.GuardrailEngine) Option {
	return func(o *options) {
		o.guardrails = g
	}
}

// WithLimits overrides the ReAct run limits. Zero MaxViolations or MaxTurns
// keep their defaults; zero MaxRetries disables retries.
func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l.withDefaults()
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.guardrails == nil {
		o.guardrails = fabric.NewGuardrailEngine()
	}
	return o
}
