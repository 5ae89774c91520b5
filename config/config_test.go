// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QUERYTUNE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	s, err := Load()
	require.NoError(t, err)

	assert.Empty(t, s.DatabaseURL)
	assert.Equal(t, DefaultAIModel, s.AIModel)
	assert.Equal(t, DefaultQueryTimeout, s.QueryTimeout)
	assert.Equal(t, DefaultLLMTimeout, s.LLMTimeout)
	assert.Equal(t, "INFO", s.LogLevel)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("QUERYTUNE_DATABASE_URL", "postgres://env:5432/app")
	t.Setenv("QUERYTUNE_AI_MODEL", "anthropic:claude-3-5-sonnet-20241022")
	t.Setenv("QUERYTUNE_QUERY_TIMEOUT", "10s")
	t.Setenv("QUERYTUNE_LOG_LEVEL", "DEBUG")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://env:5432/app", s.DatabaseURL)
	assert.Equal(t, "anthropic:claude-3-5-sonnet-20241022", s.AIModel)
	assert.Equal(t, 10*time.Second, s.QueryTimeout)
	assert.Equal(t, "DEBUG", s.LogLevel)
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	t.Setenv("QUERYTUNE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://fallback:5432/app")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://fallback:5432/app", s.DatabaseURL)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("QUERYTUNE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "querytune.yaml")
	content := []byte("database_url: postgres://file:5432/app\nai_model: ollama:llama3\nquery_timeout: 5s\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	s, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file:5432/app", s.DatabaseURL)
	assert.Equal(t, "ollama:llama3", s.AIModel)
	assert.Equal(t, 5*time.Second, s.QueryTimeout)
}

func TestLoadFromFile_EnvWinsOverFile(t *testing.T) {
	t.Setenv("QUERYTUNE_AI_MODEL", "openai:gpt-4o-mini")

	dir := t.TempDir()
	path := filepath.Join(dir, "querytune.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai_model: ollama:llama3\n"), 0o600))

	s, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "openai:gpt-4o-mini", s.AIModel)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = LoadFromFile("")
	assert.Error(t, err)
}
