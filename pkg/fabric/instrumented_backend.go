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
package fabric

import (
	"context"
	"time"

	"github.com/teradata-labs/quarry/pkg/observability"
)

// InstrumentedBackend wraps any ExecutionBackend with a span per operation
// and backend query metrics.
type InstrumentedBackend struct {
	backend ExecutionBackend
	tracer  observability.Tracer
}

// NewInstrumentedBackend creates a new instrumented execution backend.
func NewInstrumentedBackend(backend ExecutionBackend, tracer observability.Tracer) *InstrumentedBackend {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &InstrumentedBackend{
		backend: backend,
		tracer:  tracer,
	}
}

// Name returns the underlying backend name.
func (ib *InstrumentedBackend) Name() string {
	return ib.backend.Name()
}

// Unwrap returns the wrapped backend.
func (ib *InstrumentedBackend) Unwrap() ExecutionBackend {
	return ib.backend
}

// ExecuteQuery executes a query with observability instrumentation.
func (ib *InstrumentedBackend) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	ctx, span := ib.tracer.StartSpan(ctx, observability.SpanBackendQuery,
		observability.WithAttribute(observability.AttrBackendType, ib.backend.Name()))
	defer ib.tracer.EndSpan(span)

	span.SetAttribute("query.length", len(query))
	queryPreview := query
	if len(query) > 500 {
		queryPreview = query[:500] + "..."
	}
	span.SetAttribute("query.preview", queryPreview)

	start := time.Now()
	result, err := ib.backend.ExecuteQuery(ctx, query)
	duration := time.Since(start)

	labels := map[string]string{observability.AttrBackendType: ib.backend.Name()}
	ib.tracer.RecordMetric(observability.MetricBackendLatency, float64(duration.Milliseconds()), labels)

	if err != nil {
		span.RecordError(err)
		span.SetAttribute(observability.AttrErrorType, InferErrorType(err.Error()))
		ib.tracer.RecordMetric(observability.MetricBackendQueries, 1, map[string]string{
			observability.AttrBackendType: ib.backend.Name(),
			observability.AttrToolStatus:  "error",
		})
		return nil, err
	}

	span.SetOK()
	span.SetAttribute("result.row_count", result.RowCount())
	span.SetAttribute("result.column_count", len(result.Columns))
	span.SetAttribute("result.truncated", result.Truncated)
	ib.tracer.RecordMetric(observability.MetricBackendQueries, 1, map[string]string{
		observability.AttrBackendType: ib.backend.Name(),
		observability.AttrToolStatus:  "success",
	})

	return result, nil
}

// ListTables lists tables with observability instrumentation.
func (ib *InstrumentedBackend) ListTables(ctx context.Context) ([]string, error) {
	ctx, span := ib.tracer.StartSpan(ctx, "backend.list_tables",
		observability.WithAttribute(observability.AttrBackendType, ib.backend.Name()))
	defer ib.tracer.EndSpan(span)

	tables, err := ib.backend.ListTables(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetOK()
	span.SetAttribute("tables.count", len(tables))
	return tables, nil
}

// GetTableSchema retrieves a table schema with observability instrumentation.
func (ib *InstrumentedBackend) GetTableSchema(ctx context.Context, table string) (*TableSchema, error) {
	ctx, span := ib.tracer.StartSpan(ctx, "backend.get_table_schema",
		observability.WithAttribute(observability.AttrBackendType, ib.backend.Name()),
		observability.WithAttribute("table.name", table))
	defer ib.tracer.EndSpan(span)

	schema, err := ib.backend.GetTableSchema(ctx, table)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetOK()
	span.SetAttribute("schema.column_count", len(schema.Columns))
	return schema, nil
}

// SampleRows fetches sample rows with observability instrumentation.
func (ib *InstrumentedBackend) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	ctx, span := ib.tracer.StartSpan(ctx, "backend.sample_rows",
		observability.WithAttribute(observability.AttrBackendType, ib.backend.Name()),
		observability.WithAttribute("table.name", table))
	defer ib.tracer.EndSpan(span)

	rows, err := ib.backend.SampleRows(ctx, table, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetOK()
	return rows, nil
}

// Ping checks health with observability instrumentation.
func (ib *InstrumentedBackend) Ping(ctx context.Context) error {
	ctx, span := ib.tracer.StartSpan(ctx, observability.SpanBackendConnect,
		observability.WithAttribute(observability.AttrBackendType, ib.backend.Name()))
	defer ib.tracer.EndSpan(span)

	if err := ib.backend.Ping(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	span.SetOK()
	return nil
}

// Close closes the underlying backend.
func (ib *InstrumentedBackend) Close() error {
	return ib.backend.Close()
}

var _ ExecutionBackend = (*InstrumentedBackend)(nil)
