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
package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		question   string
		intent     Intent
		complexity Complexity
		agent      string
	}{
		{"What is our production volume by beer style?", IntentAnalytics, ComplexitySimple, AgentFast},
		{"Total revenue per distributor", IntentAnalytics, ComplexitySimple, AgentFast},
		{"Compare revenue for Czech Pilsner versus West Coast IPA", IntentAnalytics, ComplexityComplex, AgentReAct},
		{"How did shipped volume trend over time?", IntentAnalytics, ComplexityComplex, AgentReAct},
		{"Which distributors are in Colorado?", IntentLookup, ComplexitySimple, AgentFast},
		{"What tables do we have?", IntentSchemaDiscovery, ComplexitySimple, AgentReAct},
		{"Tell me something interesting", IntentUnknown, ComplexitySimple, AgentReAct},
	}
	r := New()
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			route := r.Classify(tt.question)
			assert.Equal(t, tt.intent, route.Intent)
			assert.Equal(t, tt.complexity, route.Complexity)
			assert.Equal(t, tt.agent, route.Agent)
			assert.Equal(t, tt.intent == IntentAnalytics, route.Analytics)
			assert.Greater(t, route.Confidence, 0.0)
		})
	}
}

func TestClassify_LongQuestionIsComplex(t *testing.T) {
	q := "Show me the total volume " + strings.Repeat("of beer ", 15)
	assert.Equal(t, ComplexityComplex, New().Classify(q).Complexity)
}

func TestSetClassifier(t *testing.T) {
	r := New()
	r.SetClassifier(func(string) (Intent, float64) { return IntentAnalytics, 1 })
	assert.Equal(t, AgentFast, r.Classify("anything").Agent)

	r.SetClassifier(nil)
	assert.Equal(t, IntentAnalytics, r.Classify("anything").Intent)
}
