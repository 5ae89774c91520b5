// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

// Package advisor builds optimization prompts from a SQL query and its
// execution plan, submits them to an LLM backend, and validates the reply
// against the suggestion-list shape.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/querytune/querytune/config"
	"github.com/querytune/querytune/db"
	"github.com/querytune/querytune/llm"
	"github.com/querytune/querytune/shared/logger"
	"github.com/querytune/querytune/shared/metrics"
)

// ErrInvalidReply is returned when the model's reply does not match the
// suggestion-list shape. The reply is never silently coerced.
var ErrInvalidReply = errors.New("llm reply does not match the suggestion schema")

// systemPrompt fixes the analysis task and the reply contract. The JSON
// shape in the instruction must stay in sync with Result.
const systemPrompt = `Analyze the provided PostgreSQL query and its EXPLAIN ANALYZE output.
Your goal is to suggest optimizations to improve performance.
Focus on actionable advice like:
- Index recommendations (CREATE INDEX ...)
- Query rewrites (alternative SQL formulations)
- Relevant PostgreSQL configuration changes

Reply with a single JSON object of the form
{"suggestions": [{"suggestion_type": "...", "description": "..."}]}
where suggestion_type is one of "index", "rewrite" or "config".
Reply with JSON only, no surrounding prose.
If no suggestions are applicable, return an empty suggestions list.`

// Suggestion is a single typed optimization recommendation.
type Suggestion struct {
	// Type of suggestion: "index", "rewrite" or "config".
	Type string `json:"suggestion_type"`

	// Description is the detailed, actionable recommendation.
	Description string `json:"description"`
}

// Result is the validated reply of an optimization request. Suggestions is
// always non-nil; an empty list means no suggestions were applicable.
type Result struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Input carries the query under analysis and its explain output, free text
// or a serialized plan.
type Input struct {
	SQL           string
	ExplainOutput string
}

// Analyzer submits optimization requests to a single LLM provider.
type Analyzer struct {
	provider llm.Provider
	log      *logger.Logger
}

// New builds an Analyzer for the model configured in settings
// (Settings.AIModel, "provider:model"), bounded by Settings.LLMTimeout.
func New(settings *config.Settings) (*Analyzer, error) {
	provider, err := llm.NewProviderForModel(settings.AIModel, settings.LLMTimeout)
	if err != nil {
		return nil, err
	}
	return NewWithProvider(provider), nil
}

// NewWithProvider builds an Analyzer around an existing provider.
func NewWithProvider(provider llm.Provider) *Analyzer {
	return &Analyzer{
		provider: provider,
		log:      logger.New("advisor"),
	}
}

// Analyze submits the query and plan to the LLM backend and returns the
// validated suggestion list. Backend failures and shape violations both
// propagate; an empty suggestion list is a legitimate result.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*Result, error) {
	requestID := uuid.NewString()
	start := time.Now()

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:       buildPrompt(in),
		SystemPrompt: systemPrompt,
		Temperature:  0,
	})
	metrics.ObserveLLMCall(string(a.provider.Type()), err, time.Since(start))
	if err != nil {
		a.log.ErrorWithCause(requestID, "llm call failed", err, map[string]interface{}{
			"provider": a.provider.Name(),
		})
		return nil, err
	}

	result, err := parseResult(resp.Content)
	if err != nil {
		a.log.ErrorWithCause(requestID, "llm reply failed validation", err, map[string]interface{}{
			"provider": a.provider.Name(),
			"model":    resp.Model,
		})
		return nil, err
	}

	a.log.InfoWithDuration(requestID, "analysis completed",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"provider":    a.provider.Name(),
			"model":       resp.Model,
			"suggestions": len(result.Suggestions),
			"tokens":      resp.Usage.TotalTokens,
		})
	return result, nil
}

// AnalyzeWithPlan runs the structured explain for the statement in a fresh
// session, serializes the plan, and submits both for analysis.
func (a *Analyzer) AnalyzeWithPlan(ctx context.Context, pool *db.Pool, statement string, args ...interface{}) (*Result, error) {
	plans, err := pool.Explain(ctx, statement, args...)
	if err != nil {
		return nil, err
	}

	planJSON, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize plan: %w", err)
	}

	return a.Analyze(ctx, Input{
		SQL:           statement,
		ExplainOutput: string(planJSON),
	})
}

// buildPrompt embeds the query and its plan verbatim in delimited code
// blocks.
func buildPrompt(in Input) string {
	return fmt.Sprintf(`SQL Query:
`+"```sql"+`
%s
`+"```"+`

EXPLAIN ANALYZE Output:
`+"```"+`
%s
`+"```"+`

Please provide optimization suggestions.`, in.SQL, in.ExplainOutput)
}

// parseResult validates the model's reply against the suggestion-list
// shape. Markdown code fences around the JSON are tolerated; anything else
// that deviates from the shape is ErrInvalidReply.
func parseResult(content string) (*Result, error) {
	payload := stripFences(content)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrInvalidReply)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.DisallowUnknownFields()

	var result Result
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}

	// Reject trailing non-whitespace after the JSON object.
	if err := trailingContent(dec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}

	for i, s := range result.Suggestions {
		if s.Type == "" || s.Description == "" {
			return nil, fmt.Errorf("%w: suggestion %d is missing suggestion_type or description", ErrInvalidReply, i)
		}
	}

	// Missing or null suggestions decodes to nil; the shape guarantees a
	// list, so normalize to empty.
	if result.Suggestions == nil {
		result.Suggestions = []Suggestion{}
	}
	return &result, nil
}

func trailingContent(dec *json.Decoder) error {
	// Only clean end-of-input is acceptable; a syntax error here means
	// trailing garbage, not a valid end.
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing content after JSON object")
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, from the reply.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "sql", or empty).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
