// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm implements the structured-output RPC client the synthesizer
// calls into: model-tier selection, token-budget computation, response
// caching, request coalescing, and named template rendering, over three
// provider backends (OpenAI, Anthropic, Gemini).
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tier is a task's declared complexity class, selecting both a model and
// a token-budget strategy.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Usage carries token accounting extracted from a provider response, when
// the provider reports it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is one structured-output call: a rendered prompt, the JSON
// schema the response must satisfy, and the requested output size (in
// tokens) the tier's budget formula scales from.
type Request struct {
	Prompt          string
	SchemaName      string
	Schema          json.RawMessage
	RequestedTokens int
}

// Result is a provider's raw structured response plus whatever usage it
// reported.
type Result struct {
	Raw   json.RawMessage
	Usage Usage
}

// Provider performs one structured-output call against a single backend.
// CompletionStyle reports which token-budget field the backend expects,
// since reasoning models only accept a completion-token budget while
// legacy chat models accept a verbatim max_tokens.
type Provider interface {
	Name() string
	CompletionStyle() CompletionStyle
	ChatStructured(ctx context.Context, req Request, maxOutputTokens int) (Result, error)
}

// CompletionStyle distinguishes the two token-budget conventions across
// model generations.
type CompletionStyle int

const (
	// CompletionStyleLegacy passes the requested token count verbatim as
	// max_tokens.
	CompletionStyleLegacy CompletionStyle = iota
	// CompletionStyleReasoning requires a larger max_completion_tokens
	// budget, since reasoning tokens are consumed from the same pool as
	// visible output.
	CompletionStyleReasoning
)

// ErrNoProviderForTier is returned when a tier names a provider the
// Client wasn't configured with.
type ErrNoProviderForTier struct {
	Tier Tier
}

func (e *ErrNoProviderForTier) Error() string {
	return fmt.Sprintf("llm: no provider configured for tier %q", e.Tier)
}
