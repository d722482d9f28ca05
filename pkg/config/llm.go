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

package config

import "fmt"

// LLMTierConfig names one tier's backend: which SDK-backed provider
// (openai, anthropic, gemini) and model it resolves to. APIKey is
// usually left empty and sourced from the provider's standard
// environment variable instead (see GetProviderAPIKey); an explicit
// value here still goes through ${VAR} expansion like any other string
// field.
type LLMTierConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// LLMConfig maps spec's low/medium/high tiers onto concrete backends.
type LLMConfig struct {
	Low    LLMTierConfig `yaml:"low,omitempty"`
	Medium LLMTierConfig `yaml:"medium,omitempty"`
	High   LLMTierConfig `yaml:"high,omitempty"`
}

// SetDefaults fills unset tiers from the medium tier, then the medium
// tier itself from a sane zero-config default, so a deployment only
// naming one model gets it applied everywhere.
func (c *LLMConfig) SetDefaults() {
	if c.Medium.Provider == "" {
		c.Medium.Provider = "openai"
	}
	if c.Medium.Model == "" {
		c.Medium.Model = "gpt-4o-mini"
	}
	if c.Low.Provider == "" {
		c.Low = c.Medium
	}
	if c.High.Provider == "" {
		c.High = c.Medium
	}
}

// Validate checks the LLM tier configuration.
func (c *LLMConfig) Validate() error {
	for name, tier := range map[string]LLMTierConfig{"low": c.Low, "medium": c.Medium, "high": c.High} {
		switch tier.Provider {
		case "openai", "anthropic", "gemini":
		default:
			return fmt.Errorf("llm.%s: unsupported provider %q (want openai, anthropic, or gemini)", name, tier.Provider)
		}
		if tier.Model == "" {
			return fmt.Errorf("llm.%s: model is required", name)
		}
	}
	return nil
}
