// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

// Package llm provides a unified interface and factory registry for LLM
// completion backends. Providers are selected through "provider:model"
// identifiers (openai:gpt-4o, anthropic:claude-3-5-sonnet-20241022,
// ollama:llama3); API keys are read from OPENAI_API_KEY and
// ANTHROPIC_API_KEY.
package llm
