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

// Package pipeline answers a question end to end: route it, run the chosen
// agent, then narrate the result and propose follow-up questions.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/agent"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/insights"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/router"
	"github.com/teradata-labs/quarry/pkg/schema"
)

// AgentAuto lets the router pick the agent.
const AgentAuto = "auto"

// ErrEmptyQuestion is reported for blank questions.
var ErrEmptyQuestion = errors.New("question is required")

// Request is one question.
type Request struct {
	Question string `json:"question"`
	Agent    string `json:"agent,omitempty"` // auto, fast or react
	Mode     string `json:"mode,omitempty"`  // quick or pro
}

// Answer is the pipeline output for one Request.
type Answer struct {
	Question   string              `json:"question"`
	Route      router.Route        `json:"route"`
	Agent      string              `json:"agent"`
	FellBack   bool                `json:"fell_back,omitempty"`
	SQL        string              `json:"sql,omitempty"`
	Results    *fabric.QueryResult `json:"results,omitempty"`
	Error      string              `json:"error,omitempty"`
	Insights   string              `json:"insights"`
	FollowUps  []string            `json:"follow_ups"`
	FinalState string              `json:"final_state,omitempty"`
	Trace      []agent.TraceStep   `json:"trace,omitempty"`
	DurationMs int64               `json:"duration_ms"`
}

// Config wires a Service.
type Config struct {
	Cache    *schema.Cache
	Fast     *agent.FastAgent
	ReAct    *agent.ReActAgent
	Insights *insights.Generator
	Router   *router.Router

	// DefaultAgent is used when a request does not name one (auto, fast, react).
	DefaultAgent string
	// DefaultMode is used when a request does not name one.
	DefaultMode insights.Mode
	// FallbackToReAct re-runs failed fast-path questions through ReAct.
	FallbackToReAct bool

	Tracer observability.Tracer
	Logger *zap.Logger
}

// Service runs the pipeline. Safe for concurrent use.
type Service struct {
	cfg Config
}

// NewService creates a service. Fast, ReAct and Insights are required.
func NewService(cfg Config) *Service {
	if cfg.Router == nil {
		cfg.Router = router.New()
	}
	if cfg.DefaultAgent == "" {
		cfg.DefaultAgent = AgentAuto
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = insights.ModeQuick
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{cfg: cfg}
}

// Cache returns the schema cache the service was built with.
func (s *Service) Cache() *schema.Cache {
	return s.cfg.Cache
}

// Ask answers req. Failures are reported in Answer.Error.
func (s *Service) Ask(ctx context.Context, req Request) *Answer {
	start := time.Now()
	question := strings.TrimSpace(req.Question)
	answer := &Answer{Question: question, FollowUps: []string{}}

	ctx, span := s.cfg.Tracer.StartSpan(ctx, observability.SpanPipelineAsk)
	defer func() {
		answer.DurationMs = time.Since(start).Milliseconds()
		span.SetAttribute("pipeline.agent", answer.Agent)
		span.SetAttribute("pipeline.fell_back", answer.FellBack)
		if answer.Error != "" {
			span.SetAttribute(observability.AttrErrorMessage, answer.Error)
		} else {
			span.SetOK()
		}
		s.cfg.Tracer.EndSpan(span)
	}()

	if question == "" {
		answer.Error = ErrEmptyQuestion.Error()
		return answer
	}

	mode := s.cfg.DefaultMode
	if req.Mode != "" {
		mode = insights.ParseMode(req.Mode)
	}

	answer.Route = s.cfg.Router.Classify(question)
	answer.Agent = s.chooseAgent(req.Agent, answer.Route)

	if answer.Agent == router.AgentFast {
		s.runFast(ctx, question, answer)
		if answer.Error != "" && s.cfg.FallbackToReAct {
			s.cfg.Logger.Info("fast path failed, retrying with react agent",
				zap.String("error", answer.Error))
			answer.FellBack = true
			answer.Agent = router.AgentReAct
			s.runReAct(ctx, question, answer)
		}
	} else {
		s.runReAct(ctx, question, answer)
	}

	if answer.Error != "" {
		answer.Insights = s.cfg.Insights.GenerateErrorInsights(question, answer.SQL, answer.Error)
	} else {
		answer.Insights = s.cfg.Insights.GenerateInsights(ctx, question, answer.SQL, answer.Results, mode)
	}
	answer.FollowUps = s.cfg.Insights.GenerateFollowUpQuestions(ctx, question, answer.SQL, answer.Results, answer.Insights)
	return answer
}

func (s *Service) chooseAgent(requested string, route router.Route) string {
	choice := strings.ToLower(strings.TrimSpace(requested))
	if choice == "" {
		choice = s.cfg.DefaultAgent
	}
	switch choice {
	case router.AgentFast, router.AgentReAct:
		return choice
	default:
		return route.Agent
	}
}

func (s *Service) runFast(ctx context.Context, question string, answer *Answer) {
	res := s.cfg.Fast.Run(ctx, question)
	answer.SQL = res.SQL
	answer.Results = res.Results
	answer.Error = res.Error
	answer.FinalState = ""
	answer.Trace = nil
}

func (s *Service) runReAct(ctx context.Context, question string, answer *Answer) {
	res := s.cfg.ReAct.Run(ctx, question)
	answer.SQL = res.SQL
	answer.Results = res.Results
	answer.Error = res.Error
	answer.FinalState = res.FinalState
	answer.Trace = res.Trace
}
