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

// Package resolver implements the multi-method search cascade that maps
// a noisy query to ranked canonical words: normalize, exact (trie +
// Bloom filter), fuzzy (bounded edit distance), semantic (vector
// index), merged and deduplicated by canonical form.
package resolver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mkbabb/lexserve/pkg/embedder"
	"github.com/mkbabb/lexserve/pkg/hashkey"
	"github.com/mkbabb/lexserve/pkg/observability"
	"github.com/mkbabb/lexserve/pkg/vectorindex"
)

// Method identifies which leg of the cascade produced a SearchResult,
// used to break score ties by method rank (exact > fuzzy > semantic).
type Method int

const (
	MethodExact Method = iota
	MethodFuzzy
	MethodSemantic
)

func (m Method) rank() int {
	switch m {
	case MethodExact:
		return 0
	case MethodFuzzy:
		return 1
	default:
		return 2
	}
}

// String names a Method for the resolver_searches_total metric label.
func (m Method) String() string {
	switch m {
	case MethodExact:
		return "exact"
	case MethodFuzzy:
		return "fuzzy"
	default:
		return "semantic"
	}
}

// SearchResult is a single ranked candidate word.
type SearchResult struct {
	Word   string
	Score  float64
	Method Method
}

// Config tunes the cascade's thresholds and early-termination behavior.
type Config struct {
	MaxResults         int     `yaml:"max_results"`
	ExactScoreCutoff   float64 `yaml:"exact_score_cutoff"`
	SemanticEnabled    bool    `yaml:"semantic_enabled"`
	SemanticThreshold  float64 `yaml:"semantic_threshold"`
	FuzzyMaxDistance   int     `yaml:"fuzzy_max_distance"`
	FuzzyCandidatePool int     `yaml:"fuzzy_candidate_pool"`
}

// SetDefaults fills in reasonable defaults.
func (c *Config) SetDefaults() {
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.ExactScoreCutoff <= 0 {
		c.ExactScoreCutoff = 0.99
	}
	if c.SemanticThreshold <= 0 {
		c.SemanticThreshold = 0.75
	}
	if c.FuzzyMaxDistance <= 0 {
		c.FuzzyMaxDistance = maxFuzzyDistance
	}
	if c.FuzzyCandidatePool <= 0 {
		c.FuzzyCandidatePool = 5000
	}
}

// Resolver is the multi-method cascade over a versioned vocabulary.
type Resolver struct {
	cfg Config

	mu             sync.RWMutex
	index          *exactIndex
	vocabularyHash hashkey.Hash

	semantic *semanticLeg
	metrics  *observability.Metrics
}

// WithMetrics attaches metrics recording to the resolver, returning r for chaining.
func (r *Resolver) WithMetrics(m *observability.Metrics) *Resolver {
	r.metrics = m
	return r
}

// New builds a Resolver over the given normalized vocabulary.
// semanticIndex/embed may be nil to disable the semantic leg entirely.
func New(cfg Config, vocabulary []string, semanticIndex vectorindex.Provider, embed embedder.Provider, semanticCollection string) *Resolver {
	cfg.SetDefaults()

	r := &Resolver{
		cfg:            cfg,
		index:          newExactIndex(vocabulary),
		vocabularyHash: hashkey.OfSorted(vocabulary),
	}
	if cfg.SemanticEnabled && semanticIndex != nil && embed != nil {
		r.semantic = newSemanticLeg(semanticIndex, embed, semanticCollection, cfg.SemanticThreshold)
	}
	return r
}

// VocabularyHash reports the fingerprint of the vocabulary currently
// backing the index.
func (r *Resolver) VocabularyHash() hashkey.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vocabularyHash
}

// Rebuild swaps in a new vocabulary atomically if its hash differs from
// the index currently loaded, preserving whether the semantic leg was
// enabled.
func (r *Resolver) Rebuild(vocabulary []string) bool {
	newHash := hashkey.OfSorted(vocabulary)

	r.mu.Lock()
	defer r.mu.Unlock()
	if newHash == r.vocabularyHash {
		return false
	}
	r.index = newExactIndex(vocabulary)
	r.vocabularyHash = newHash
	return true
}

// EnsureSemanticReady kicks off (at most once) the semantic leg's
// warm-up, if a semantic leg is configured.
func (r *Resolver) EnsureSemanticReady(ctx context.Context) {
	r.mu.RLock()
	sem := r.semantic
	r.mu.RUnlock()
	if sem != nil {
		sem.Initialize(ctx)
	}
}

// SemanticState reports the semantic leg's readiness, or not_started if
// no semantic leg is configured.
func (r *Resolver) SemanticState() vectorindex.ReadinessState {
	r.mu.RLock()
	sem := r.semantic
	r.mu.RUnlock()
	if sem == nil {
		return vectorindex.ReadinessNotStarted
	}
	return sem.State()
}

// Resolve runs the normalize -> exact -> fuzzy -> semantic cascade and
// returns ranked, deduplicated results.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]SearchResult, error) {
	start := time.Now()
	results, err := r.resolve(ctx, query)
	strategy := "none"
	if len(results) > 0 {
		strategy = results[0].Method.String()
	}
	r.metrics.RecordResolverSearch(strategy, time.Since(start))
	return results, err
}

func (r *Resolver) resolve(ctx context.Context, query string) ([]SearchResult, error) {
	normalized := Normalize(query)
	if normalized == "" {
		return nil, nil
	}

	r.mu.RLock()
	idx := r.index
	sem := r.semantic
	r.mu.RUnlock()

	byWord := make(map[string]SearchResult)
	add := func(res SearchResult) {
		existing, ok := byWord[res.Word]
		if !ok || res.Score > existing.Score {
			byWord[res.Word] = res
		}
	}

	if word, ok := idx.lookup(normalized); ok {
		add(SearchResult{Word: word, Score: 1, Method: MethodExact})
	}

	if len(byWord) >= r.cfg.MaxResults && allAboveCutoff(byWord, r.cfg.ExactScoreCutoff) {
		return rank(byWord), nil
	}

	candidates := idx.prefixCandidates(prefixOf(normalized, 2), r.cfg.FuzzyCandidatePool)
	if len(candidates) == 0 {
		candidates = idx.allWords()
		if len(candidates) > r.cfg.FuzzyCandidatePool {
			candidates = candidates[:r.cfg.FuzzyCandidatePool]
		}
	}
	for _, res := range fuzzyCandidates(normalized, candidates) {
		add(res)
	}

	if sem != nil && sem.ready() && len(byWord) < r.cfg.MaxResults {
		results, err := sem.search(ctx, normalized, r.cfg.MaxResults)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			add(res)
		}
	}

	return rank(byWord), nil
}

func allAboveCutoff(byWord map[string]SearchResult, cutoff float64) bool {
	for _, res := range byWord {
		if res.Score < cutoff {
			return false
		}
	}
	return true
}

func prefixOf(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func rank(byWord map[string]SearchResult) []SearchResult {
	out := make([]SearchResult, 0, len(byWord))
	for _, res := range byWord {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Method.rank() < out[j].Method.rank()
	})
	return out
}
