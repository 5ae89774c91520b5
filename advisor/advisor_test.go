// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package advisor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querytune/querytune/llm"
)

// fakeProvider returns a canned reply and records the request it received.
type fakeProvider struct {
	reply   string
	err     error
	lastReq llm.CompletionRequest
}

func (f *fakeProvider) Name() string                          { return "fake" }
func (f *fakeProvider) Type() llm.ProviderType                { return llm.ProviderTypeOpenAI }
func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply, Model: "fake-model"}, nil
}

func newTestAnalyzer(provider llm.Provider) *Analyzer {
	a := NewWithProvider(provider)
	a.log.SetOutput(io.Discard)
	return a
}

func TestAnalyze_ValidSuggestions(t *testing.T) {
	provider := &fakeProvider{
		reply: `{"suggestions": [
			{"suggestion_type": "index", "description": "CREATE INDEX idx_users_email ON users (email)"},
			{"suggestion_type": "rewrite", "description": "Use EXISTS instead of IN"}
		]}`,
	}
	analyzer := newTestAnalyzer(provider)

	result, err := analyzer.Analyze(context.Background(), Input{
		SQL:           "SELECT * FROM users WHERE email = $1",
		ExplainOutput: `[{"Plan": {"Node Type": "Seq Scan"}}]`,
	})
	require.NoError(t, err)

	require.Len(t, result.Suggestions, 2)
	assert.Equal(t, "index", result.Suggestions[0].Type)
	assert.Contains(t, result.Suggestions[0].Description, "CREATE INDEX")
	assert.Equal(t, "rewrite", result.Suggestions[1].Type)
}

func TestAnalyze_EmptyListIsSuccess(t *testing.T) {
	provider := &fakeProvider{reply: `{"suggestions": []}`}
	analyzer := newTestAnalyzer(provider)

	result, err := analyzer.Analyze(context.Background(), Input{SQL: "SELECT 1"})
	require.NoError(t, err)
	require.NotNil(t, result.Suggestions)
	assert.Empty(t, result.Suggestions)
}

func TestAnalyze_NullSuggestionsNormalized(t *testing.T) {
	provider := &fakeProvider{reply: `{"suggestions": null}`}
	analyzer := newTestAnalyzer(provider)

	result, err := analyzer.Analyze(context.Background(), Input{SQL: "SELECT 1"})
	require.NoError(t, err)
	require.NotNil(t, result.Suggestions)
	assert.Empty(t, result.Suggestions)
}

func TestAnalyze_FencedReplyAccepted(t *testing.T) {
	provider := &fakeProvider{
		reply: "```json\n" +
			`{"suggestions": [{"suggestion_type": "config", "description": "raise work_mem"}]}` +
			"\n```",
	}
	analyzer := newTestAnalyzer(provider)

	result, err := analyzer.Analyze(context.Background(), Input{SQL: "SELECT 1"})
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, "config", result.Suggestions[0].Type)
}

func TestAnalyze_InvalidReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose instead of JSON", "You should add an index on users(email)."},
		{"unknown top-level field", `{"suggestions": [], "confidence": 0.9}`},
		{"missing description", `{"suggestions": [{"suggestion_type": "index"}]}`},
		{"missing type", `{"suggestions": [{"description": "add an index"}]}`},
		{"trailing object", `{"suggestions": []} {"suggestions": []}`},
		{"trailing prose", `{"suggestions": []} sounds good, let me know!`},
		{"array instead of object", `[{"suggestion_type": "index", "description": "x"}]`},
		{"empty reply", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{reply: tt.reply}
			analyzer := newTestAnalyzer(provider)

			_, err := analyzer.Analyze(context.Background(), Input{SQL: "SELECT 1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidReply)
		})
	}
}

func TestAnalyze_BackendErrorPropagates(t *testing.T) {
	backendErr := errors.New("rate limited")
	provider := &fakeProvider{err: backendErr}
	analyzer := newTestAnalyzer(provider)

	_, err := analyzer.Analyze(context.Background(), Input{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, backendErr)
	assert.NotErrorIs(t, err, ErrInvalidReply)
}

func TestAnalyze_PromptEmbedsInputsVerbatim(t *testing.T) {
	provider := &fakeProvider{reply: `{"suggestions": []}`}
	analyzer := newTestAnalyzer(provider)

	sql := "SELECT * FROM orders WHERE total > $1"
	plan := `[{"Plan": {"Node Type": "Seq Scan", "Relation Name": "orders"}}]`

	_, err := analyzer.Analyze(context.Background(), Input{SQL: sql, ExplainOutput: plan})
	require.NoError(t, err)

	assert.Contains(t, provider.lastReq.Prompt, sql)
	assert.Contains(t, provider.lastReq.Prompt, plan)
	assert.Contains(t, provider.lastReq.SystemPrompt, "suggestion_type")
	assert.Equal(t, float64(0), provider.lastReq.Temperature)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare JSON", `{"suggestions": []}`, `{"suggestions": []}`},
		{"json fence", "```json\n{\"suggestions\": []}\n```", `{"suggestions": []}`},
		{"plain fence", "```\n{\"suggestions\": []}\n```", `{"suggestions": []}`},
		{"surrounding whitespace", "  {\"suggestions\": []}  \n", `{"suggestions": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.content))
		})
	}
}
