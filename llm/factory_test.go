// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		wantType   ProviderType
		wantModel  string
		wantErr    bool
	}{
		{
			name:       "openai with model",
			identifier: "openai:gpt-4o",
			wantType:   ProviderTypeOpenAI,
			wantModel:  "gpt-4o",
		},
		{
			name:       "anthropic with model",
			identifier: "anthropic:claude-3-5-sonnet-20241022",
			wantType:   ProviderTypeAnthropic,
			wantModel:  "claude-3-5-sonnet-20241022",
		},
		{
			name:       "bare model defaults to openai",
			identifier: "gpt-4o-mini",
			wantType:   ProviderTypeOpenAI,
			wantModel:  "gpt-4o-mini",
		},
		{
			name:       "ollama tag keeps inner colon",
			identifier: "ollama:llama3:8b",
			wantType:   ProviderTypeOllama,
			wantModel:  "llama3:8b",
		},
		{
			name:       "provider is case insensitive",
			identifier: "OpenAI:gpt-4o",
			wantType:   ProviderTypeOpenAI,
			wantModel:  "gpt-4o",
		},
		{
			name:       "surrounding whitespace trimmed",
			identifier: "  openai:gpt-4o  ",
			wantType:   ProviderTypeOpenAI,
			wantModel:  "gpt-4o",
		},
		{
			name:       "unknown provider",
			identifier: "mistral:large",
			wantErr:    true,
		},
		{
			name:       "empty identifier",
			identifier: "",
			wantErr:    true,
		},
		{
			name:       "missing model name",
			identifier: "openai:",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providerType, model, err := ParseModel(tt.identifier)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, providerType)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestNewProvider_MissingType(t *testing.T) {
	_, err := NewProvider(ProviderConfig{})
	require.Error(t, err)

	var factoryErr *FactoryError
	require.True(t, errors.As(err, &factoryErr))
	assert.Equal(t, ErrFactoryMissingType, factoryErr.Code)
}

func TestNewProvider_NotRegistered(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Type: ProviderType("mistral")})
	require.Error(t, err)

	var factoryErr *FactoryError
	require.True(t, errors.As(err, &factoryErr))
	assert.Equal(t, ErrFactoryNotRegistered, factoryErr.Code)
	assert.Equal(t, ProviderType("mistral"), factoryErr.ProviderType)
}

func TestNewProvider_NameDefaultsToType(t *testing.T) {
	provider, err := NewProvider(ProviderConfig{
		Type:   ProviderTypeOpenAI,
		APIKey: "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())
	assert.Equal(t, ProviderTypeOpenAI, provider.Type())
}

func TestBuiltinFactoriesRegistered(t *testing.T) {
	for _, providerType := range []ProviderType{
		ProviderTypeOpenAI,
		ProviderTypeAnthropic,
		ProviderTypeOllama,
	} {
		assert.NotNil(t, GetFactory(providerType), "factory for %s", providerType)
	}

	types := ListFactories()
	assert.GreaterOrEqual(t, len(types), 3)
}

func TestRegisterFactory_Custom(t *testing.T) {
	custom := ProviderType("custom-test")
	RegisterFactory(custom, func(config ProviderConfig) (Provider, error) {
		return &stubProvider{name: config.Name, typ: custom}, nil
	})

	provider, err := NewProvider(ProviderConfig{Type: custom, Name: "mine"})
	require.NoError(t, err)
	assert.Equal(t, "mine", provider.Name())
	assert.Equal(t, custom, provider.Type())
}

func TestNewProviderForModel_InvalidIdentifier(t *testing.T) {
	_, err := NewProviderForModel("mistral:large", 0)
	require.Error(t, err)

	var factoryErr *FactoryError
	require.True(t, errors.As(err, &factoryErr))
	assert.Equal(t, ErrFactoryInvalidConfig, factoryErr.Code)
}

func TestNewProviderForModel_ReadsKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	provider, err := NewProviderForModel("openai:gpt-4o", 0)
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeOpenAI, provider.Type())
}

func TestNewProviderForModel_ThreadsTimeout(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	provider, err := NewProviderForModel("openai:gpt-4o", 42*time.Second)
	require.NoError(t, err)

	openAI, ok := provider.(*OpenAIProvider)
	require.True(t, ok)
	assert.Equal(t, 42*time.Second, openAI.client.Timeout)

	local, err := NewProviderForModel("ollama:llama3", 7*time.Second)
	require.NoError(t, err)

	ollama, ok := local.(*OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, ollama.client.Timeout)
}

func TestNewProviderForModel_ZeroTimeoutKeepsDefault(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	provider, err := NewProviderForModel("openai:gpt-4o", 0)
	require.NoError(t, err)

	openAI, ok := provider.(*OpenAIProvider)
	require.True(t, ok)
	assert.Equal(t, OpenAIDefaultTimeout, openAI.client.Timeout)
}

func TestNewProviderForModel_MissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewProviderForModel("anthropic:claude-3-5-sonnet-20241022", 0)
	require.Error(t, err)

	var factoryErr *FactoryError
	require.True(t, errors.As(err, &factoryErr))
	assert.Equal(t, ErrFactoryInvalidConfig, factoryErr.Code)
	assert.Equal(t, ProviderTypeAnthropic, factoryErr.ProviderType)
}

// stubProvider is a minimal Provider for registry tests.
type stubProvider struct {
	name string
	typ  ProviderType
}

func (s *stubProvider) Name() string                          { return s.name }
func (s *stubProvider) Type() ProviderType                    { return s.typ }
func (s *stubProvider) HealthCheck(ctx context.Context) error { return nil }

func (s *stubProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Content: "stub"}, nil
}
