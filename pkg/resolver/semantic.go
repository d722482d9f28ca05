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

package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkbabb/lexserve/pkg/embedder"
	"github.com/mkbabb/lexserve/pkg/vectorindex"
)

// semanticLeg wraps the vector index behind the readiness state machine
// the resolver's semantic leg requires: unavailable at startup, at most
// one initialization task, failures surfaced exactly once and never
// retried automatically.
type semanticLeg struct {
	index      vectorindex.Provider
	embed      embedder.Provider
	collection string
	threshold  float64

	mu    sync.Mutex
	state vectorindex.ReadinessState
	err   error
}

func newSemanticLeg(index vectorindex.Provider, embed embedder.Provider, collection string, threshold float64) *semanticLeg {
	return &semanticLeg{index: index, embed: embed, collection: collection, threshold: threshold, state: vectorindex.ReadinessNotStarted}
}

// State reports the current readiness state under lock.
func (s *semanticLeg) State() vectorindex.ReadinessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize runs the (idempotent, at-most-once) semantic index
// warm-up, checking the backend's own Ready() signal. It is safe to
// call from multiple goroutines; only the first call does any work.
func (s *semanticLeg) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.state != vectorindex.ReadinessNotStarted {
		s.mu.Unlock()
		return
	}
	s.state = vectorindex.ReadinessInProgress
	s.mu.Unlock()

	var next vectorindex.ReadinessState
	var err error
	if s.index.Ready() {
		next = vectorindex.ReadinessReady
	} else {
		next = vectorindex.ReadinessFailed
		err = fmt.Errorf("resolver: semantic index reported not ready after initialization")
	}

	s.mu.Lock()
	s.state = next
	s.err = err
	s.mu.Unlock()
}

func (s *semanticLeg) ready() bool {
	return s.State() == vectorindex.ReadinessReady
}

// search embeds query and returns the top-k semantic neighbors scoring
// at or above threshold.
func (s *semanticLeg) search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if !s.ready() {
		return nil, nil
	}

	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("resolver: embed query: %w", err)
	}

	hits, err := s.index.Search(ctx, s.collection, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("resolver: semantic search: %w", err)
	}

	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if float64(h.Score) < s.threshold {
			continue
		}
		out = append(out, SearchResult{Word: h.ID, Score: float64(h.Score), Method: MethodSemantic})
	}
	return out, nil
}
