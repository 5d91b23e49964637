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

// Standard span names. Use these constants instead of hardcoding strings.
const (
	SpanPipelineAsk = "pipeline.ask"
	SpanAgentRun    = "agent.run"

	SpanLLMCompletion = "llm.completion"

	SpanToolExecute  = "tool.execute"
	SpanToolValidate = "tool.validate"

	SpanBackendQuery   = "backend.query"
	SpanBackendConnect = "backend.connect"

	SpanGuardrailCheck = "guardrail.check"

	SpanSchemaInitialize = "schema.initialize"
	SpanSchemaFetch      = "schema.fetch"

	SpanInsightsGenerate = "insights.generate"
	SpanInsightsFollowUp = "insights.follow_up"
)

// Standard metric names.
const (
	MetricAgentRuns    = "agent.runs.total"
	MetricAgentRetries = "agent.retries.total"
	MetricAgentLatency = "agent.latency"

	MetricLLMCalls        = "llm.calls.total"
	MetricLLMLatency      = "llm.latency"
	MetricLLMTokensInput  = "llm.tokens.input"  // #nosec G101 -- not a credential, just metric name
	MetricLLMTokensOutput = "llm.tokens.output" // #nosec G101 -- not a credential, just metric name
	MetricLLMErrors       = "llm.errors.total"

	MetricToolExecutions = "tool.executions.total"
	MetricToolDuration   = "tool.duration"

	MetricBackendQueries = "backend.queries.total"
	MetricBackendLatency = "backend.latency"

	MetricGuardrailChecks = "guardrail.checks.total"
	MetricGuardrailBlocks = "guardrail.blocks.total"

	MetricSchemaRefreshes = "schema.refreshes.total"
	MetricSchemaTables    = "schema.tables"
)

// Standard attribute (and metric label) keys.
const (
	AttrRunID = "run.id"

	AttrAgentKind    = "agent.kind"
	AttrAgentOutcome = "agent.outcome"
	AttrAgentState   = "agent.state"

	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"

	AttrToolName   = "tool.name"
	AttrToolStatus = "tool.status"

	AttrBackendType = "backend.type"

	AttrSchemaOutcome = "schema.outcome"

	AttrGuardrailRule = "guardrail.rule"

	AttrInsightsMode = "insights.mode"

	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)
