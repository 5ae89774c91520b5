// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"time"
)

// ProviderType identifies the type of LLM provider.
type ProviderType string

// Provider types supported out of the box.
const (
	// ProviderTypeOpenAI represents OpenAI's GPT models.
	ProviderTypeOpenAI ProviderType = "openai"

	// ProviderTypeAnthropic represents Anthropic's Claude models.
	ProviderTypeAnthropic ProviderType = "anthropic"

	// ProviderTypeOllama represents self-hosted Ollama models.
	ProviderTypeOllama ProviderType = "ollama"
)

// CompletionRequest encapsulates the parameters for an LLM completion.
type CompletionRequest struct {
	// Prompt is the user's input text.
	Prompt string `json:"prompt"`

	// SystemPrompt is an optional system message that sets behavior.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the response length. If 0, provider defaults apply.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 = deterministic). Negative
	// means unset; providers substitute their default.
	Temperature float64 `json:"temperature,omitempty"`

	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`

	// StopSequences are strings that cause generation to stop.
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// CompletionResponse contains the result of an LLM completion.
type CompletionResponse struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model is the actual model used (may differ from requested).
	Model string `json:"model"`

	// Usage contains token usage statistics.
	Usage UsageStats `json:"usage"`

	// Latency is the time taken to generate the response.
	Latency time.Duration `json:"latency"`

	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason,omitempty"`
}

// UsageStats tracks token usage.
type UsageStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is the unified interface for LLM backends. Implementations must
// be safe for concurrent use.
type Provider interface {
	// Name returns the identifier for this provider instance, used for
	// logging and metrics.
	Name() string

	// Type returns the provider type (openai, anthropic, ollama).
	Type() ProviderType

	// Complete generates a completion for the given request. The context
	// is used for cancellation and timeout.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// HealthCheck verifies the provider is operational. Implementations
	// should check connectivity or the last observed backend state and
	// return an error describing why the provider is unusable.
	HealthCheck(ctx context.Context) error
}

// ProviderConfig contains configuration for creating a provider.
type ProviderConfig struct {
	// Name is the identifier for this provider instance. Defaults to the
	// provider type when empty.
	Name string `json:"name"`

	// Type identifies the provider implementation to use.
	Type ProviderType `json:"type"`

	// APIKey is the authentication key for the provider API. Ollama does
	// not require one.
	APIKey string `json:"api_key,omitempty"`

	// Endpoint is the API endpoint URL. Provider defaults apply when empty.
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the default model to use.
	Model string `json:"model,omitempty"`

	// TimeoutSeconds bounds a single completion call.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}
