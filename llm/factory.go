// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProviderFactory creates a Provider instance from configuration.
// Factories should validate the config and return an error if invalid.
type ProviderFactory func(config ProviderConfig) (Provider, error)

// factoryRegistry holds registered provider factories.
// Thread-safe for concurrent access.
type factoryRegistry struct {
	factories map[ProviderType]ProviderFactory
	mu        sync.RWMutex
}

var globalRegistry = &factoryRegistry{
	factories: make(map[ProviderType]ProviderFactory),
}

// RegisterFactory registers a factory function for a provider type.
// This is typically called during package init() to register built-in
// providers. An existing factory for the type is overwritten.
func RegisterFactory(providerType ProviderType, factory ProviderFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.factories[providerType] = factory
}

// GetFactory returns the factory for a provider type, or nil if not
// registered.
func GetFactory(providerType ProviderType) ProviderFactory {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return globalRegistry.factories[providerType]
}

// ListFactories returns all registered provider types.
func ListFactories() []ProviderType {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	types := make([]ProviderType, 0, len(globalRegistry.factories))
	for t := range globalRegistry.factories {
		types = append(types, t)
	}
	return types
}

// NewProvider creates a provider from configuration using the registered
// factory for its type.
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.Type == "" {
		return nil, &FactoryError{
			Code:    ErrFactoryMissingType,
			Message: "provider type is required",
		}
	}

	factory := GetFactory(config.Type)
	if factory == nil {
		return nil, &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryNotRegistered,
			Message:      fmt.Sprintf("no factory registered for provider type %q", config.Type),
		}
	}

	if config.Name == "" {
		config.Name = string(config.Type)
	}

	return factory(config)
}

// ParseModel resolves a model identifier of the form "provider:model"
// (e.g. "openai:gpt-4o", "anthropic:claude-3-5-sonnet-20241022",
// "ollama:llama3") into a provider type and model name. A bare model name
// defaults to openai. The model part may itself contain colons, as Ollama
// tags do ("ollama:llama3:8b").
func ParseModel(identifier string) (ProviderType, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", "", fmt.Errorf("model identifier is empty")
	}

	parts := strings.SplitN(identifier, ":", 2)
	if len(parts) == 1 {
		return ProviderTypeOpenAI, parts[0], nil
	}

	providerType := ProviderType(strings.ToLower(parts[0]))
	model := parts[1]
	if model == "" {
		return "", "", fmt.Errorf("model identifier %q has no model name", identifier)
	}

	switch providerType {
	case ProviderTypeOpenAI, ProviderTypeAnthropic, ProviderTypeOllama:
		return providerType, model, nil
	default:
		return "", "", fmt.Errorf("unknown provider %q in model identifier %q", parts[0], identifier)
	}
}

// NewProviderForModel resolves a "provider:model" identifier and builds the
// matching provider, reading API keys from the environment
// (OPENAI_API_KEY, ANTHROPIC_API_KEY). The timeout bounds a single
// completion call; zero keeps the provider's default.
func NewProviderForModel(identifier string, timeout time.Duration) (Provider, error) {
	providerType, model, err := ParseModel(identifier)
	if err != nil {
		return nil, &FactoryError{
			Code:    ErrFactoryInvalidConfig,
			Message: err.Error(),
			Cause:   err,
		}
	}

	return NewProvider(ProviderConfig{
		Type:           providerType,
		Model:          model,
		APIKey:         apiKeyFromEnv(providerType),
		TimeoutSeconds: int(timeout / time.Second),
	})
}

// FactoryError describes a failure to build a provider from configuration.
type FactoryError struct {
	ProviderType ProviderType
	Code         string
	Message      string
	Cause        error
}

// Factory error codes.
const (
	// ErrFactoryNotRegistered indicates no factory is registered for the type.
	ErrFactoryNotRegistered = "factory_not_registered"

	// ErrFactoryMissingType indicates the provider type was not specified.
	ErrFactoryMissingType = "factory_missing_type"

	// ErrFactoryCreationFailed indicates the factory returned an error.
	ErrFactoryCreationFailed = "factory_creation_failed"

	// ErrFactoryInvalidConfig indicates the configuration is invalid.
	ErrFactoryInvalidConfig = "factory_invalid_config"
)

func (e *FactoryError) Error() string {
	if e.ProviderType != "" {
		return fmt.Sprintf("llm factory (%s): %s: %s", e.ProviderType, e.Code, e.Message)
	}
	return fmt.Sprintf("llm factory: %s: %s", e.Code, e.Message)
}

func (e *FactoryError) Unwrap() error {
	return e.Cause
}
