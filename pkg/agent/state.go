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
	"fmt"
	"strings"

	"github.com/teradata-labs/quarry/pkg/shuttle/sqltools"
)

// Phase is a ReAct run phase. The Retry phase carries an attempt number
// held by the Machine.
type Phase int

const (
	PhaseListing Phase = iota
	PhaseSchemaFetch
	PhaseGenerate
	PhaseValidate
	PhaseExecute
	PhaseRetry
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseListing:
		return "listing"
	case PhaseSchemaFetch:
		return "schema_fetch"
	case PhaseGenerate:
		return "generate"
	case PhaseValidate:
		return "validate"
	case PhaseExecute:
		return "execute"
	case PhaseRetry:
		return "retry"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// allowedFrom lists the phases each tool may be called from.
var allowedFrom = map[string][]Phase{
	sqltools.ToolListTables:   {PhaseListing, PhaseSchemaFetch},
	sqltools.ToolGetSchema:    {PhaseListing, PhaseSchemaFetch, PhaseGenerate, PhaseRetry},
	sqltools.ToolQueryChecker: {PhaseSchemaFetch, PhaseGenerate, PhaseValidate, PhaseRetry},
	sqltools.ToolExecuteQuery: {PhaseSchemaFetch, PhaseGenerate, PhaseValidate, PhaseRetry},
}

// Limits bounds a ReAct run.
type Limits struct {
	MaxRetries    int
	MaxViolations int
	MaxTurns      int
}

// DefaultLimits returns the default run limits.
func DefaultLimits() Limits {
	return Limits{MaxRetries: 2, MaxViolations: 3, MaxTurns: 12}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxRetries < 0 {
		l.MaxRetries = 0
	}
	if l.MaxViolations <= 0 {
		l.MaxViolations = d.MaxViolations
	}
	if l.MaxTurns <= 0 {
		l.MaxTurns = d.MaxTurns
	}
	return l
}

// Machine enforces the order of tool calls in a ReAct run. The model picks
// the next tool; the machine decides whether that call may run and where a
// completed call leads. Not safe for concurrent use.
type Machine struct {
	limits     Limits
	phase      Phase
	attempt    int
	violations int
	reason     string
}

// NewMachine returns a machine in the Listing phase.
func NewMachine(limits Limits) *Machine {
	return &Machine{limits: limits, phase: PhaseListing}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Attempt returns the number of failed executions so far.
func (m *Machine) Attempt() int { return m.attempt }

// Violations returns the number of rejected tool calls.
func (m *Machine) Violations() int { return m.violations }

// Reason explains why the machine reached Failed.
func (m *Machine) Reason() string { return m.reason }

// Terminal reports whether the run is over.
func (m *Machine) Terminal() bool {
	return m.phase == PhaseDone || m.phase == PhaseFailed
}

// State renders the current phase, with the attempt for Retry.
func (m *Machine) State() string {
	if m.phase == PhaseRetry {
		return fmt.Sprintf("retry(%d)", m.attempt)
	}
	return m.phase.String()
}

// Allowed reports whether tool may be called in the current phase.
func (m *Machine) Allowed(tool string) bool {
	for _, p := range allowedFrom[tool] {
		if p == m.phase {
			return true
		}
	}
	return false
}

// AllowedTools lists the tools callable in the current phase, in call order.
func (m *Machine) AllowedTools() []string {
	var out []string
	for _, name := range []string{sqltools.ToolListTables, sqltools.ToolGetSchema, sqltools.ToolQueryChecker, sqltools.ToolExecuteQuery} {
		if m.Allowed(name) {
			out = append(out, name)
		}
	}
	return out
}

// Reject counts an illegal call. It returns true once the violation limit
// is exceeded, at which point the run is over: Done if a query already
// succeeded, Failed otherwise.
func (m *Machine) Reject(tool string) bool {
	m.violations++
	if m.violations <= m.limits.MaxViolations {
		return false
	}
	if m.phase == PhaseExecute {
		m.phase = PhaseDone
		return true
	}
	m.fail(fmt.Sprintf("too many invalid tool calls (%d), last was %s in state %s",
		m.violations, tool, m.State()))
	return true
}

// Complete records the outcome of an allowed tool call.
func (m *Machine) Complete(tool string, success bool) {
	switch tool {
	case sqltools.ToolListTables:
		if success {
			m.phase = PhaseSchemaFetch
		}
	case sqltools.ToolGetSchema:
		if success && m.phase != PhaseRetry {
			m.phase = PhaseGenerate
		}
	case sqltools.ToolQueryChecker:
		if success && m.phase != PhaseRetry {
			m.phase = PhaseValidate
		} else if !success && m.phase == PhaseValidate {
			m.phase = PhaseGenerate
		}
	case sqltools.ToolExecuteQuery:
		if success {
			m.phase = PhaseExecute
			return
		}
		m.attempt++
		if m.attempt > m.limits.MaxRetries {
			m.fail(fmt.Sprintf("query failed %d times, retry limit is %d", m.attempt, m.limits.MaxRetries))
			return
		}
		m.phase = PhaseRetry
	}
}

// Finish ends the run on a final answer. A run that never executed a query
// successfully ends Failed.
func (m *Machine) Finish() {
	if m.Terminal() {
		return
	}
	if m.phase == PhaseExecute {
		m.phase = PhaseDone
		return
	}
	m.fail("agent finished without a successful query")
}

// Abort moves the machine to Failed with reason.
func (m *Machine) Abort(reason string) {
	if m.Terminal() {
		return
	}
	m.fail(reason)
}

func (m *Machine) fail(reason string) {
	m.phase = PhaseFailed
	m.reason = reason
}

// correction is the in-band reply to an illegal tool call.
func (m *Machine) correction(tool string) string {
	allowed := m.AllowedTools()
	hint := "Answer the question in plain text now."
	if len(allowed) > 0 {
		hint = "Call one of: " + strings.Join(allowed, ", ") + "."
	}
	if _, known := allowedFrom[tool]; !known {
		return fmt.Sprintf("Unknown tool %q. %s", tool, hint)
	}
	return fmt.Sprintf("Tool %s cannot be called in state %s. %s", tool, m.State(), hint)
}
