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

// Package embedder computes vector embeddings for words and glosses
// feeding the resolver's semantic leg, adapted from the teacher's pkg/embedders provider set down to
// a single OpenAI-backed implementation using the official SDK.
package embedder

import (
	"context"
	"fmt"
)

// Provider embeds text into a fixed-dimension vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
	Close() error
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider  string `yaml:"provider"` // "openai"
	APIKey    string `yaml:"api_key,omitempty"`
	Model     string `yaml:"model,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

// SetDefaults fills in provider-appropriate defaults.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedder: provider is required")
	}
	switch c.Provider {
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: api_key is required for openai provider")
		}
	default:
		return fmt.Errorf("embedder: unknown provider %q", c.Provider)
	}
	return nil
}

// New builds a Provider from Config.
func New(cfg Config) (Provider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case "openai":
		return newOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("embedder: unknown provider %q", cfg.Provider)
	}
}
