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
package observability

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricNamespace prefixes every exported Prometheus metric.
const metricNamespace = "quarry"

type metricKind int

const (
	kindCounter metricKind = iota
	kindHistogram
	kindGauge
)

type metricDef struct {
	name    string
	kind    metricKind
	help    string
	labels  []string
	buckets []float64
}

// latencyBuckets are in milliseconds.
var latencyBuckets = []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

var metricDefs = []metricDef{
	{name: MetricAgentRuns, kind: kindCounter, help: "Agent runs by agent kind and outcome", labels: []string{AttrAgentKind, AttrAgentOutcome}},
	{name: MetricAgentRetries, kind: kindCounter, help: "Failed query executions that moved a ReAct run into retry", labels: []string{AttrAgentKind}},
	{name: MetricAgentLatency, kind: kindHistogram, help: "Agent run latency in milliseconds", labels: []string{AttrAgentKind}, buckets: latencyBuckets},
	{name: MetricLLMCalls, kind: kindCounter, help: "LLM calls", labels: []string{AttrLLMProvider, AttrLLMModel}},
	{name: MetricLLMErrors, kind: kindCounter, help: "Failed LLM calls", labels: []string{AttrLLMProvider, AttrLLMModel}},
	{name: MetricLLMLatency, kind: kindHistogram, help: "LLM call latency in milliseconds", labels: []string{AttrLLMProvider, AttrLLMModel}, buckets: latencyBuckets},
	{name: MetricLLMTokensInput, kind: kindCounter, help: "LLM input tokens", labels: []string{AttrLLMProvider, AttrLLMModel}},
	{name: MetricLLMTokensOutput, kind: kindCounter, help: "LLM output tokens", labels: []string{AttrLLMProvider, AttrLLMModel}},
	{name: MetricToolExecutions, kind: kindCounter, help: "Tool executions by tool and status", labels: []string{AttrToolName, AttrToolStatus}},
	{name: MetricToolDuration, kind: kindHistogram, help: "Tool execution latency in milliseconds", labels: []string{AttrToolName}, buckets: latencyBuckets},
	{name: MetricBackendQueries, kind: kindCounter, help: "Backend queries", labels: []string{AttrBackendType}},
	{name: MetricBackendLatency, kind: kindHistogram, help: "Backend query latency in milliseconds", labels: []string{AttrBackendType}, buckets: latencyBuckets},
	{name: MetricGuardrailChecks, kind: kindCounter, help: "SQL sanitizer checks", labels: nil},
	{name: MetricGuardrailBlocks, kind: kindCounter, help: "SQL rejected by the sanitizer", labels: []string{AttrGuardrailRule}},
	{name: MetricSchemaRefreshes, kind: kindCounter, help: "Schema cache initializations by outcome", labels: []string{AttrSchemaOutcome}},
	{name: MetricSchemaTables, kind: kindGauge, help: "Tables held in the schema cache", labels: nil},
}

// PrometheusTracer forwards spans to a delegate Tracer and exports metrics
// recorded through RecordMetric as Prometheus collectors.
// Metrics with unknown names are dropped.
type PrometheusTracer struct {
	delegate   Tracer
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	labels     map[string][]string
}

// NewPrometheusTracer registers the quarry collectors on registry.
// A nil delegate means spans are handled by a NoOpTracer; a nil registry
// creates a private one.
func NewPrometheusTracer(delegate Tracer, registry *prometheus.Registry) *PrometheusTracer {
	if delegate == nil {
		delegate = NewNoOpTracer()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	t := &PrometheusTracer{
		delegate:   delegate,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		labels:     make(map[string][]string),
	}

	for _, def := range metricDefs {
		promLabels := make([]string, len(def.labels))
		for i, l := range def.labels {
			promLabels[i] = promName(l)
		}
		t.labels[def.name] = def.labels

		switch def.kind {
		case kindCounter:
			vec := prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      counterName(def.name),
				Help:      def.help,
			}, promLabels)
			registry.MustRegister(vec)
			t.counters[def.name] = vec
		case kindHistogram:
			vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      promName(def.name) + "_ms",
				Help:      def.help,
				Buckets:   def.buckets,
			}, promLabels)
			registry.MustRegister(vec)
			t.histograms[def.name] = vec
		case kindGauge:
			vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      promName(def.name),
				Help:      def.help,
			}, promLabels)
			registry.MustRegister(vec)
			t.gauges[def.name] = vec
		}
	}

	return t
}

// StartSpan delegates to the wrapped tracer.
func (t *PrometheusTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	return t.delegate.StartSpan(ctx, name, opts...)
}

// EndSpan delegates to the wrapped tracer.
func (t *PrometheusTracer) EndSpan(span *Span) {
	t.delegate.EndSpan(span)
}

// RecordMetric updates the matching Prometheus collector and forwards the
// value to the delegate.
func (t *PrometheusTracer) RecordMetric(name string, value float64, labels map[string]string) {
	t.delegate.RecordMetric(name, value, labels)

	keys, ok := t.labels[name]
	if !ok {
		return
	}
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = labels[k]
	}

	if c, ok := t.counters[name]; ok {
		if value < 0 {
			return
		}
		c.WithLabelValues(values...).Add(value)
		return
	}
	if h, ok := t.histograms[name]; ok {
		h.WithLabelValues(values...).Observe(value)
		return
	}
	if g, ok := t.gauges[name]; ok {
		g.WithLabelValues(values...).Set(value)
	}
}

// RecordEvent delegates to the wrapped tracer.
func (t *PrometheusTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	t.delegate.RecordEvent(ctx, name, attributes)
}

// Flush delegates to the wrapped tracer.
func (t *PrometheusTracer) Flush(ctx context.Context) error {
	return t.delegate.Flush(ctx)
}

// Registry returns the registry the collectors are registered on.
func (t *PrometheusTracer) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (t *PrometheusTracer) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// promName turns "llm.tokens.input" into "llm_tokens_input".
func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// counterName turns "llm.calls.total" into "llm_calls_total" and makes sure
// every counter carries the _total suffix.
func counterName(name string) string {
	n := promName(name)
	if !strings.HasSuffix(n, "_total") {
		n += "_total"
	}
	return n
}

var _ Tracer = (*PrometheusTracer)(nil)
