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

import (
	"fmt"
	"time"

	"github.com/mkbabb/lexserve/pkg/ratelimit"
)

// RateLimitConfig is the YAML-decodable mirror of ratelimit.Config; the
// runtime type carries no yaml tags of its own since pkg/ratelimit has no
// dependency on pkg/config.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Capacity        float64       `yaml:"capacity,omitempty"`
	RefillPerSecond float64       `yaml:"refill_per_second,omitempty"`
	MinBackoff      time.Duration `yaml:"min_backoff,omitempty"`
	MaxBackoff      time.Duration `yaml:"max_backoff,omitempty"`
}

// SetDefaults fills in a reasonable single-provider default.
func (c *RateLimitConfig) SetDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 10
	}
	if c.RefillPerSecond <= 0 {
		c.RefillPerSecond = 2
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Validate checks the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MinBackoff > c.MaxBackoff {
		return fmt.Errorf("rate_limit.min_backoff must not exceed rate_limit.max_backoff")
	}
	return nil
}

// ToRateLimitConfig converts to the runtime ratelimit.Config.
func (c RateLimitConfig) ToRateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Enabled:         c.Enabled,
		Capacity:        c.Capacity,
		RefillPerSecond: c.RefillPerSecond,
		MinBackoff:      c.MinBackoff,
		MaxBackoff:      c.MaxBackoff,
	}
}
