// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

// Package config resolves process configuration from environment variables
// and an optional local config file. Settings are plain values: construct
// them once and pass them explicitly to the components that need them.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for all querytune environment variables,
	// e.g. QUERYTUNE_DATABASE_URL, QUERYTUNE_AI_MODEL.
	EnvPrefix = "QUERYTUNE"

	// DefaultAIModel is used when no model identifier is configured.
	// The format is "provider:model" (openai, anthropic or ollama).
	DefaultAIModel = "openai:gpt-4o"

	// DefaultQueryTimeout bounds individual database statements.
	DefaultQueryTimeout = 30 * time.Second

	// DefaultLLMTimeout bounds a single LLM completion call.
	DefaultLLMTimeout = 120 * time.Second
)

// configName is the base name of the optional local override file
// (querytune.yaml, querytune.json, ... in the working directory).
const configName = "querytune"

// Settings holds resolved configuration. Immutable after Load.
type Settings struct {
	// DatabaseURL is the PostgreSQL connection string (DSN). May be empty;
	// opening a session without it fails with a configuration error.
	DatabaseURL string

	// AIModel identifies the LLM backend as "provider:model".
	AIModel string

	// QueryTimeout is the per-statement timeout.
	QueryTimeout time.Duration

	// LLMTimeout is the per-completion timeout.
	LLMTimeout time.Duration

	// LogLevel is the minimum log level (DEBUG, INFO, WARN, ERROR).
	LogLevel string
}

// Load resolves settings from the environment, with an optional
// querytune.{yaml,json,toml} file in the working directory as override base.
// Environment variables take precedence over file values.
func Load() (*Settings, error) {
	return load("")
}

// LoadFromFile resolves settings like Load but reads the given config file.
// A missing or unreadable file is an error here, unlike the implicit search
// performed by Load.
func LoadFromFile(path string) (*Settings, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is empty")
	}
	return load(path)
}

func load(path string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("ai_model", DefaultAIModel)
	v.SetDefault("query_timeout", DefaultQueryTimeout)
	v.SetDefault("llm_timeout", DefaultLLMTimeout)
	v.SetDefault("log_level", "INFO")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	s := &Settings{
		DatabaseURL:  v.GetString("database_url"),
		AIModel:      v.GetString("ai_model"),
		QueryTimeout: v.GetDuration("query_timeout"),
		LLMTimeout:   v.GetDuration("llm_timeout"),
		LogLevel:     v.GetString("log_level"),
	}

	if s.DatabaseURL == "" {
		// Fall back to the conventional unprefixed variable.
		s.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	return s, nil
}
