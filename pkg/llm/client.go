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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/hashkey"
	"github.com/mkbabb/lexserve/pkg/observability"
	"github.com/mkbabb/lexserve/pkg/utils"
)

// CacheNamespace is where stable structured-output responses are cached.
const CacheNamespace = "llm-response"

// MinCacheTTL is the minimum TTL for a cached structured-output response.
const MinCacheTTL = 24 * time.Hour

// TierConfig binds a tier to a concrete provider and model identity.
type TierConfig struct {
	Provider Provider
	Model    string
}

// Config maps each tier to its provider/model, plus the template
// registry every chat_structured call renders its prompt from.
type Config struct {
	Tiers     map[Tier]TierConfig
	Templates *TemplateRegistry
}

// Client is the structured-output RPC client: tier selection, template
// rendering, response caching, and request coalescing around a Provider.
type Client struct {
	cfg     Config
	cache   *cache.Cache
	metrics *observability.Metrics
}

// New builds a Client.
func New(cfg Config, c *cache.Cache) *Client {
	return &Client{cfg: cfg, cache: c}
}

// WithMetrics attaches metrics recording to the client, returning c for chaining.
func (c *Client) WithMetrics(m *observability.Metrics) *Client {
	c.metrics = m
	return c
}

// Templates returns the template registry this Client renders prompts
// from, so callers (e.g. the synthesizer) can register their own named
// templates onto the same registry the Client looks them up from.
func (c *Client) Templates() *TemplateRegistry {
	return c.cfg.Templates
}

// ChatStructuredRequest is one call into the client: a named template,
// its render variables, the JSON schema the result must satisfy, the
// task's tier, and the requested output size (tokens) the tier's budget
// formula scales from.
type ChatStructuredRequest struct {
	Template        string
	Vars            map[string]any
	SchemaName      string
	Schema          json.RawMessage
	Tier            Tier
	RequestedTokens int
}

// ChatStructured renders the named template, dispatches to the tier's
// provider with its token-budget formula applied, and caches/coalesces
// the response keyed on the rendered prompt + schema + template identity
// + tier — so editing a template or switching a tier's model naturally
// invalidates prior cache entries without any explicit bump.
func (c *Client) ChatStructured(ctx context.Context, req ChatStructuredRequest) (Result, error) {
	tierCfg, ok := c.cfg.Tiers[req.Tier]
	if !ok {
		return Result{}, &ErrNoProviderForTier{Tier: req.Tier}
	}

	prompt, templateVersion, err := c.cfg.Templates.Render(req.Template, req.Vars)
	if err != nil {
		return Result{}, err
	}

	maxOutputTokens := outputTokenBudget(tierCfg.Provider.CompletionStyle(), req.RequestedTokens)

	key := hashkey.CacheKey(
		string(req.Tier),
		tierCfg.Model,
		req.Template,
		fmt.Sprintf("v%d", templateVersion),
		prompt,
		string(req.Schema),
	)

	raw, err := c.cache.GetOrBuild(ctx, CacheNamespace, string(key), MinCacheTTL, func(ctx context.Context) ([]byte, error) {
		start := time.Now()
		result, err := tierCfg.Provider.ChatStructured(ctx, Request{
			Prompt:          prompt,
			SchemaName:      req.SchemaName,
			Schema:          req.Schema,
			RequestedTokens: req.RequestedTokens,
		}, maxOutputTokens)
		c.metrics.RecordLLMCall(string(req.Tier), tierCfg.Model, tierCfg.Provider.Name(), time.Since(start))
		if err != nil {
			c.metrics.RecordLLMError(string(req.Tier), tierCfg.Model, tierCfg.Provider.Name(), "call_error")
			return nil, err
		}
		c.metrics.RecordLLMTokens(string(req.Tier), tierCfg.Model, tierCfg.Provider.Name(), result.Usage.PromptTokens, result.Usage.CompletionTokens)
		return json.Marshal(result)
	})
	if err != nil {
		return Result{}, err
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, fmt.Errorf("llm: decode cached result: %w", err)
	}
	return result, nil
}

// CountTokens returns an approximate token count for text under the
// given model's encoding, via utils.TokenCounter (pkoukk/tiktoken-go),
// for computing a call's RequestedTokens ahead of time.
func CountTokens(model, text string) (int, error) {
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		return 0, fmt.Errorf("llm: token counter for %q: %w", model, err)
	}
	return counter.Count(text), nil
}
