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

// Package agent turns a natural-language question into an executed SQL
// query. FastAgent makes a single model call with the whole schema in its
// prompt. ReActAgent drives the SQL tools through an enforced state machine
// and can correct its own failed queries.
package agent

import (
	"errors"

	"github.com/teradata-labs/quarry/pkg/fabric"
)

// ErrParseResults is reported when a successful execute_query result does
// not carry a query result payload.
var ErrParseResults = errors.New("failed to parse query results")

// Trace step kinds.
const (
	StepAssistant  = "assistant"
	StepToolCall   = "tool_call"
	StepToolResult = "tool_result"
)

// FastResult is the outcome of a FastAgent run. Error is empty on success;
// Results is nil whenever Error is set.
type FastResult struct {
	SQL             string              `json:"sql,omitempty"`
	Results         *fabric.QueryResult `json:"results,omitempty"`
	Error           string              `json:"error,omitempty"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
}

// TraceStep is one entry of a ReAct run trace.
type TraceStep struct {
	Kind   string                 `json:"kind"`
	Tool   string                 `json:"tool,omitempty"`
	Input  map[string]interface{} `json:"input,omitempty"`
	Output string                 `json:"output,omitempty"`
	State  string                 `json:"state"`
}

// ReActResult is the outcome of a ReActAgent run.
type ReActResult struct {
	RunID           string              `json:"run_id"`
	SQL             string              `json:"sql,omitempty"`
	Results         *fabric.QueryResult `json:"results,omitempty"`
	Error           string              `json:"error,omitempty"`
	Answer          string              `json:"answer,omitempty"`
	Trace           []TraceStep         `json:"trace"`
	FinalState      string              `json:"final_state"`
	Retries         int                 `json:"retries"`
	Violations      int                 `json:"violations"`
	Turns           int                 `json:"turns"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
}
