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
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// RecordedMetric is a metric captured by MockTracer.
type RecordedMetric struct {
	Name   string
	Value  float64
	Labels map[string]string
}

// MockTracer is a test implementation of Tracer that captures spans and
// metrics for inspection.
// Thread-safe: All methods can be called concurrently.
type MockTracer struct {
	mu      sync.RWMutex
	spans   []*Span
	metrics []RecordedMetric
	seq     atomic.Int64
}

// NewMockTracer creates a new mock tracer for testing.
func NewMockTracer() *MockTracer {
	return &MockTracer{
		spans: make([]*Span, 0),
	}
}

// StartSpan creates a new span; it is stored once EndSpan is called.
func (m *MockTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	id := m.seq.Add(1)
	span := newSpan(ctx, name, fmt.Sprintf("trace-%d", id), fmt.Sprintf("span-%d", id))
	for _, opt := range opts {
		opt(span)
	}
	return ContextWithSpan(ctx, span), span
}

// EndSpan completes a span and stores it.
func (m *MockTracer) EndSpan(span *Span) {
	if span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, span)
}

// RecordMetric captures the metric.
func (m *MockTracer) RecordMetric(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, RecordedMetric{Name: name, Value: value, Labels: labels})
}

// RecordEvent is not captured.
func (m *MockTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

// Flush is a no-op for mock tracer.
func (m *MockTracer) Flush(ctx context.Context) error {
	return nil
}

// GetSpans returns all captured spans.
func (m *MockTracer) GetSpans() []*Span {
	m.mu.RLock()
	defer m.mu.RUnlock()

	spans := make([]*Span, len(m.spans))
	copy(spans, m.spans)
	return spans
}

// GetSpanByName finds the first span with the given name.
func (m *MockTracer) GetSpanByName(name string) *Span {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, span := range m.spans {
		if span.Name == name {
			return span
		}
	}
	return nil
}

// GetSpansByName finds all spans with the given name.
func (m *MockTracer) GetSpansByName(name string) []*Span {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Span, 0)
	for _, span := range m.spans {
		if span.Name == name {
			result = append(result, span)
		}
	}
	return result
}

// MetricTotal sums the values recorded for a metric name.
func (m *MockTracer) MetricTotal(name string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total float64
	for _, metric := range m.metrics {
		if metric.Name == name {
			total += metric.Value
		}
	}
	return total
}

// Reset clears all captured spans and metrics.
func (m *MockTracer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = make([]*Span, 0)
	m.metrics = nil
}

// Ensure MockTracer implements Tracer interface
var _ Tracer = (*MockTracer)(nil)
