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

// Package router decides which agent answers a question. Classification is
// keyword based and runs before any model call.
package router

import (
	"strings"
)

// Intent is the classified purpose of a question.
type Intent string

const (
	IntentAnalytics       Intent = "analytics"
	IntentSchemaDiscovery Intent = "schema_discovery"
	IntentLookup          Intent = "lookup"
	IntentUnknown         Intent = "unknown"
)

// Complexity of a question.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// Agent kinds a question can be routed to.
const (
	AgentFast  = "fast"
	AgentReAct = "react"
)

// Route is the routing decision for one question.
type Route struct {
	Intent     Intent     `json:"intent"`
	Analytics  bool       `json:"analytics"`
	Complexity Complexity `json:"complexity"`
	Agent      string     `json:"agent"`
	Confidence float64    `json:"confidence"`
}

// ClassifierFunc classifies a question into an intent with a confidence.
type ClassifierFunc func(question string) (Intent, float64)

// Router classifies questions.
type Router struct {
	classify ClassifierFunc

	// LongQuestionWords marks questions with more words as complex.
	LongQuestionWords int
}

// New returns a router using the keyword classifier.
func New() *Router {
	return &Router{classify: KeywordClassifier, LongQuestionWords: 25}
}

// SetClassifier replaces the intent classifier.
func (r *Router) SetClassifier(fn ClassifierFunc) {
	if fn != nil {
		r.classify = fn
	}
}

var (
	schemaKeywords = []string{"what tables", "list tables", "show tables", "what columns", "schema", "table structure", "describe the"}

	analyticsKeywords = []string{
		"total", "sum", "count", "how many", "average", "avg", "mean", "median",
		"revenue", "volume", "sales", "profit", "margin", "growth", "rate",
		"top", "most", "least", "highest", "lowest", "rank", "by ", "per ",
		"trend", "breakdown", "distribution", "share", "percentage", "ratio",
	}

	lookupKeywords = []string{"show", "list", "find", "which", "what is", "who", "when", "where", "get"}

	complexKeywords = []string{
		"compare", "comparison", "versus", " vs ", "trend", "over time", "month over month",
		"year over year", "growth", "correlat", "relative to", "compared", "change between",
		"each", "for every", "breakdown", "excluding", "except", "rank", "percentile",
		" and ", "as well as", "along with",
	}
)

// KeywordClassifier assigns an intent from keyword matches.
func KeywordClassifier(question string) (Intent, float64) {
	q := strings.ToLower(question)
	switch {
	case containsAny(q, schemaKeywords):
		return IntentSchemaDiscovery, 0.9
	case containsAny(q, analyticsKeywords):
		return IntentAnalytics, 0.8
	case containsAny(q, lookupKeywords):
		return IntentLookup, 0.6
	default:
		return IntentUnknown, 0.3
	}
}

// Classify routes question. Complex questions and questions the keyword
// classifier does not recognize go to the ReAct agent; the rest take the
// fast path.
func (r *Router) Classify(question string) Route {
	intent, confidence := r.classify(question)
	route := Route{
		Intent:     intent,
		Analytics:  intent == IntentAnalytics,
		Complexity: r.complexity(question),
		Confidence: confidence,
	}
	if route.Complexity == ComplexityComplex || intent == IntentUnknown || intent == IntentSchemaDiscovery {
		route.Agent = AgentReAct
	} else {
		route.Agent = AgentFast
	}
	return route
}

func (r *Router) complexity(question string) Complexity {
	q := " " + strings.ToLower(strings.TrimSpace(question)) + " "
	if r.LongQuestionWords > 0 && len(strings.Fields(q)) > r.LongQuestionWords {
		return ComplexityComplex
	}
	if containsAny(q, complexKeywords) {
		return ComplexityComplex
	}
	return ComplexitySimple
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
