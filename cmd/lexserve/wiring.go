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

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/config"
	"github.com/mkbabb/lexserve/pkg/embedder"
	"github.com/mkbabb/lexserve/pkg/httpapi"
	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
	"github.com/mkbabb/lexserve/pkg/observability"
	"github.com/mkbabb/lexserve/pkg/pipeline"
	"github.com/mkbabb/lexserve/pkg/provider"
	"github.com/mkbabb/lexserve/pkg/ratelimit"
	"github.com/mkbabb/lexserve/pkg/resolver"
	"github.com/mkbabb/lexserve/pkg/synthesize"
	"github.com/mkbabb/lexserve/pkg/utils"
	"github.com/mkbabb/lexserve/pkg/vectorindex"
)

// defaultVocabulary is used when no vocabulary_path is configured, so a
// zero-config deployment still has something to resolve against.
var defaultVocabulary = []string{
	"hello", "world", "lexicon", "dictionary", "word", "language",
	"synthesize", "resolve", "cache", "provider",
}

// app holds every long-lived component a running server needs, so main
// can shut it all down in one place.
type app struct {
	cache    *cache.Cache
	fetcher  *provider.Fetcher
	resolver *resolver.Resolver
	llm      *llm.Client
	synth    *synthesize.Synthesizer
	pipeline *pipeline.Pipeline
	server   *httpapi.Server

	vectorIndex vectorindex.Provider
	embedder    embedder.Provider
	obs         *observability.Manager
}

// buildApp wires every component described by cfg, in dependency order:
// cache, rate limiter, provider fetcher, resolver (+ optional semantic
// leg), LLM client, synthesizer, pipeline, HTTP server.
func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if _, err := utils.EnsureDataDir(cfg.Cache.DiskPath); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}

	obsCfg := cfg.Observability.ToObservabilityConfig()
	obs, err := observability.NewManager(context.Background(), &obsCfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	cacheCfg := cfg.Cache.ToCacheConfig()
	cacheCfg.Metrics = obs.Metrics()
	c, err := cache.New(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimit.ToRateLimitConfig())

	clients := make([]provider.Client, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		cl, err := provider.NewRESTClient(p)
		if err != nil {
			c.Close()
			_ = obs.Shutdown(context.Background())
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		clients = append(clients, cl)
	}
	fetcher := provider.New(clients, limiter, c).WithMetrics(obs.Metrics())

	vocabulary, err := loadVocabulary(cfg.Resolver.VocabularyPath)
	if err != nil {
		c.Close()
		_ = obs.Shutdown(context.Background())
		return nil, fmt.Errorf("vocabulary: %w", err)
	}

	var vecIndex vectorindex.Provider
	var embed embedder.Provider
	if cfg.Resolver.SemanticEnabled {
		vecIndex, embed, err = buildSemanticLeg(cfg.Semantic)
		if err != nil {
			c.Close()
			_ = obs.Shutdown(context.Background())
			return nil, fmt.Errorf("semantic leg: %w", err)
		}
	}

	res := resolver.New(cfg.Resolver.Config, vocabulary, vecIndex, embed, cfg.Resolver.SemanticCollection).WithMetrics(obs.Metrics())

	llmClient, err := buildLLMClient(cfg.LLM, c)
	if err != nil {
		if embed != nil {
			embed.Close()
		}
		if vecIndex != nil {
			vecIndex.Close()
		}
		c.Close()
		_ = obs.Shutdown(context.Background())
		return nil, fmt.Errorf("llm: %w", err)
	}
	llmClient.WithMetrics(obs.Metrics())

	synth, err := synthesize.New(synthesize.Config{
		LLM:   llmClient,
		Cache: c,
		Logger: logger,
		ModelInfo: model.ModelInfo{
			Provider:        cfg.LLM.Medium.Provider,
			Model:           cfg.LLM.Medium.Model,
			PromptVersion:   "v1",
			PipelineVersion: synthesize.PipelineVersion,
		},
	})
	if err != nil {
		if embed != nil {
			embed.Close()
		}
		if vecIndex != nil {
			vecIndex.Close()
		}
		c.Close()
		_ = obs.Shutdown(context.Background())
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	pl := pipeline.New(pipeline.Config{
		Resolver:         res,
		Fetcher:          fetcher,
		Synthesizer:      synth,
		DefaultProviders: cfg.Pipeline.DefaultProviders,
		AIDefaultOn:      cfg.Pipeline.AIDefaultOn,
		Deadline:         cfg.Pipeline.Deadline,
		Metrics:          obs.Metrics(),
	})

	srv := httpapi.New(httpapi.Config{
		Addr:            cfg.Server.Addr,
		Pipeline:        pl,
		Resolver:        res,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ChunkThreshold:  cfg.Server.ChunkThreshold,
		Logger:          logger,
		Observability:   obs,
	})

	return &app{
		cache:       c,
		fetcher:     fetcher,
		resolver:    res,
		llm:         llmClient,
		synth:       synth,
		pipeline:    pl,
		server:      srv,
		vectorIndex: vecIndex,
		embedder:    embed,
		obs:         obs,
	}, nil
}

// Close releases every resource buildApp opened.
func (a *app) Close() {
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.vectorIndex != nil {
		a.vectorIndex.Close()
	}
	_ = a.obs.Shutdown(context.Background())
	a.cache.Close()
}

func buildLLMClient(cfg config.LLMConfig, c *cache.Cache) (*llm.Client, error) {
	tiers := map[llm.Tier]llm.TierConfig{}

	for tierName, tierCfg := range map[llm.Tier]config.LLMTierConfig{
		llm.TierLow:    cfg.Low,
		llm.TierMedium: cfg.Medium,
		llm.TierHigh:   cfg.High,
	} {
		p, err := buildLLMProvider(tierCfg)
		if err != nil {
			return nil, fmt.Errorf("tier %s: %w", tierName, err)
		}
		tiers[tierName] = llm.TierConfig{Provider: p, Model: tierCfg.Model}
	}

	return llm.New(llm.Config{
		Tiers:     tiers,
		Templates: llm.NewTemplateRegistry(),
	}, c), nil
}

func buildLLMProvider(cfg config.LLMTierConfig) (llm.Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = config.GetProviderAPIKey(cfg.Provider)
	}

	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAIProvider(apiKey, cfg.Model), nil
	case "anthropic":
		return llm.NewAnthropicProvider(apiKey, cfg.Model), nil
	case "gemini":
		return llm.NewGeminiProvider(context.Background(), apiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func buildSemanticLeg(cfg config.SemanticConfig) (vectorindex.Provider, embedder.Provider, error) {
	embed, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder: %w", err)
	}

	var idx vectorindex.Provider
	switch cfg.Backend {
	case "qdrant":
		idx, err = vectorindex.NewQdrantProvider(cfg.Qdrant)
	case "pinecone":
		idx, err = vectorindex.NewPineconeProvider(cfg.Pinecone)
	default:
		idx, err = vectorindex.NewChromemProvider(cfg.Chromem)
	}
	if err != nil {
		embed.Close()
		return nil, nil, fmt.Errorf("vector index: %w", err)
	}

	return idx, embed, nil
}

// loadVocabulary reads a newline-delimited word list, one word per line,
// blank lines and lines starting with "#" ignored. An empty path falls
// back to a small built-in list so a zero-config run still resolves.
func loadVocabulary(path string) ([]string, error) {
	if path == "" {
		return defaultVocabulary, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(words) == 0 {
		return defaultVocabulary, nil
	}
	return words, nil
}
