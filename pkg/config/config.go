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

// Package config loads and validates lexserve's YAML configuration: the
// HTTP server, the provider fetcher, the cache's namespace table, the
// resolver cascade, the LLM tier map, the pipeline defaults, rate
// limiting, logging, and observability.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/embedder"
	"github.com/mkbabb/lexserve/pkg/observability"
	"github.com/mkbabb/lexserve/pkg/provider"
	"github.com/mkbabb/lexserve/pkg/resolver"
	"github.com/mkbabb/lexserve/pkg/vectorindex"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server,omitempty"`
	Logging       LoggerConfig        `yaml:"logging,omitempty"`
	Cache         CacheConfig         `yaml:"cache,omitempty"`
	Providers     []provider.RESTConfig `yaml:"providers,omitempty"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit,omitempty"`
	Resolver      ResolverSection     `yaml:"resolver,omitempty"`
	Semantic      SemanticConfig      `yaml:"semantic,omitempty"`
	LLM           LLMConfig           `yaml:"llm,omitempty"`
	Pipeline      PipelineConfig      `yaml:"pipeline,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
}

// ServerConfig configures the HTTP/SSE server.
type ServerConfig struct {
	Addr            string        `yaml:"addr,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
	ChunkThreshold  int           `yaml:"chunk_threshold,omitempty"`
}

// SetDefaults fills in reasonable server defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.ChunkThreshold <= 0 {
		c.ChunkThreshold = 32 * 1024
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if c.ChunkThreshold <= 0 {
		return fmt.Errorf("server.chunk_threshold must be positive")
	}
	return nil
}

// PipelineConfig configures the orchestration pipeline's defaults.
type PipelineConfig struct {
	DefaultProviders []string      `yaml:"default_providers,omitempty"`
	AIDefaultOn      bool          `yaml:"ai_default_on"`
	Deadline         time.Duration `yaml:"deadline,omitempty"`
}

// Validate checks the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	if len(c.DefaultProviders) == 0 {
		return fmt.Errorf("pipeline.default_providers must name at least one provider")
	}
	return nil
}

// ObservabilityConfig toggles metrics/tracing export. The exporters
// themselves live in pkg/observability; this section only carries what a
// deployment needs to turn them on and point them somewhere.
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty"`
}

// ToObservabilityConfig builds the pkg/observability.Config this section
// describes, filling in lexserve's own defaults for everything the YAML
// doesn't expose directly.
func (c ObservabilityConfig) ToObservabilityConfig() observability.Config {
	return observability.Config{
		Tracing: observability.TracingConfig{
			Enabled:     c.TracingEnabled,
			Exporter:    "otlp",
			Endpoint:    c.OTLPEndpoint,
			ServiceName: "lexserve",
		},
		Metrics: observability.MetricsConfig{
			Enabled:   c.MetricsEnabled,
			Namespace: "lexserve",
		},
	}
}

// SetDefaults applies the root config's defaults, deriving each section's
// own SetDefaults in turn.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Cache.SetDefaults()
	c.RateLimit.SetDefaults()
	c.Resolver.Config.SetDefaults()
	c.Semantic.SetDefaults()
	c.LLM.SetDefaults()

	if len(c.Pipeline.DefaultProviders) == 0 {
		for _, p := range c.Providers {
			c.Pipeline.DefaultProviders = append(c.Pipeline.DefaultProviders, p.Name)
		}
	}
	if c.Cache.DiskPath == "" {
		c.Cache.DiskPath = ".lexserve/cache"
	}
}

// Validate aggregates every section's errors rather than failing fast, so
// a misconfigured deployment sees every problem in one pass.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging: %v", err))
	}
	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.RateLimit.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Resolver.SemanticEnabled {
		if err := c.Semantic.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, "providers: entry missing name")
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("providers: duplicate provider name %q", p.Name))
		}
		seen[p.Name] = true
		if p.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("providers.%s: base_url is required", p.Name))
		}
	}
	for _, name := range c.Pipeline.DefaultProviders {
		if !seen[name] {
			errs = append(errs, fmt.Sprintf("pipeline.default_providers references undefined provider %q", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CacheConfig is the data-driven namespace table: each namespace declares
// a size class, and memory_limit/ttl derive from it rather than being set
// field-by-field, per spec's "configuration is data-driven" note.
type CacheConfig struct {
	DiskPath   string                 `yaml:"disk_path,omitempty"`
	Namespaces []CacheNamespaceConfig `yaml:"namespaces,omitempty"`
}

// CacheNamespaceConfig is one row of the namespace table.
type CacheNamespaceConfig struct {
	Name         string `yaml:"name"`
	SizeClass    string `yaml:"size_class,omitempty"` // small|medium|large, default medium
	Compression  string `yaml:"compression,omitempty"`
	DiskResident bool   `yaml:"disk_resident,omitempty"`
}

// sizeClass derives memory_limit/ttl for a size class name. Namespaces
// that genuinely need a different TTL than their class's default (e.g.
// the provider-raw namespace's ≥24h floor) still just declare a size
// class; the floor is enforced downstream by the owning package
// (provider.MinCacheTTL, llm.MinCacheTTL), not duplicated here.
type sizeClass struct {
	memoryLimit int
	ttl         time.Duration
}

var sizeClasses = map[string]sizeClass{
	"small":  {memoryLimit: 256, ttl: 1 * time.Hour},
	"medium": {memoryLimit: 1024, ttl: 6 * time.Hour},
	"large":  {memoryLimit: 4096, ttl: 24 * time.Hour},
}

// defaultNamespaces is the fixed namespace set spec §4.1 requires at
// minimum, each pre-assigned the size class matching its expected churn
// and value size.
var defaultNamespaces = []CacheNamespaceConfig{
	{Name: "generic-default", SizeClass: "small"},
	{Name: provider.CacheNamespace, SizeClass: "large", DiskResident: true},
	{Name: "resolver-lexicon", SizeClass: "medium", DiskResident: true},
	{Name: "search-queries", SizeClass: "small"},
	{Name: "semantic-vectors", SizeClass: "large", DiskResident: true},
	{Name: "llm-response", SizeClass: "large", DiskResident: true},
	{Name: "language-lookup", SizeClass: "small"},
	{Name: "synthesized-entry", SizeClass: "large", DiskResident: true},
	{Name: "synthesized-entry-latest", SizeClass: "medium", DiskResident: true},
}

// SetDefaults fills in the fixed namespace set when none is configured,
// leaving an explicit configuration untouched.
func (c *CacheConfig) SetDefaults() {
	if len(c.Namespaces) == 0 {
		c.Namespaces = append(c.Namespaces, defaultNamespaces...)
	}
	for i := range c.Namespaces {
		if c.Namespaces[i].SizeClass == "" {
			c.Namespaces[i].SizeClass = "medium"
		}
		if c.Namespaces[i].Compression == "" {
			c.Namespaces[i].Compression = "none"
		}
	}
}

// Validate checks the cache configuration.
func (c *CacheConfig) Validate() error {
	for _, ns := range c.Namespaces {
		if ns.Name == "" {
			return fmt.Errorf("cache.namespaces: entry missing name")
		}
		if _, ok := sizeClasses[ns.SizeClass]; !ok {
			return fmt.Errorf("cache.namespaces.%s: invalid size_class %q (want small, medium, or large)", ns.Name, ns.SizeClass)
		}
		switch cache.Compression(ns.Compression) {
		case cache.CompressionNone, cache.CompressionGzip, cache.CompressionLZ4, "":
		default:
			return fmt.Errorf("cache.namespaces.%s: invalid compression %q", ns.Name, ns.Compression)
		}
	}
	return nil
}

// ToCacheConfig derives a cache.Config from the data-driven table.
func (c *CacheConfig) ToCacheConfig() cache.Config {
	out := cache.Config{DiskPath: c.DiskPath}
	for _, ns := range c.Namespaces {
		class := sizeClasses[ns.SizeClass]
		out.Namespaces = append(out.Namespaces, cache.NamespaceConfig{
			Name:         ns.Name,
			MemoryLimit:  class.memoryLimit,
			TTL:          class.ttl,
			Compression:  cache.Compression(ns.Compression),
			DiskResident: ns.DiskResident,
		})
	}
	return out
}

// ResolverSection is resolver.Config plus the vocabulary/semantic-wiring
// fields the resolver constructor needs but that aren't part of its own
// tunable thresholds.
type ResolverSection struct {
	resolver.Config    `yaml:",inline"`
	VocabularyPath     string `yaml:"vocabulary_path,omitempty"`
	SemanticCollection string `yaml:"semantic_collection,omitempty"`
}

// SemanticConfig selects and configures the resolver's semantic leg: an
// embedding provider plus one of the vector index backends. Only
// consulted when resolver.semantic_enabled is true; a zero-config
// deployment never touches either backend.
type SemanticConfig struct {
	Embedder embedder.Config           `yaml:"embedder,omitempty"`
	Backend  string                    `yaml:"backend,omitempty"` // "chromem", "qdrant", or "pinecone"
	Chromem  vectorindex.ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant   vectorindex.QdrantConfig  `yaml:"qdrant,omitempty"`
	Pinecone vectorindex.PineconeConfig `yaml:"pinecone,omitempty"`
}

// SetDefaults fills in the embedded-index default backend.
func (c *SemanticConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "chromem"
	}
	c.Embedder.SetDefaults()
}

// Validate checks the semantic configuration. Only called when the
// resolver's semantic leg is actually enabled.
func (c *SemanticConfig) Validate() error {
	switch c.Backend {
	case "chromem", "qdrant", "pinecone":
	default:
		return fmt.Errorf("semantic.backend: invalid backend %q (want chromem, qdrant, or pinecone)", c.Backend)
	}
	if c.Backend == "qdrant" && c.Qdrant.Host == "" {
		return fmt.Errorf("semantic.qdrant.host is required when backend is qdrant")
	}
	if c.Backend == "pinecone" && c.Pinecone.APIKey == "" {
		return fmt.Errorf("semantic.pinecone.api_key is required when backend is pinecone")
	}
	return c.Embedder.Validate()
}
