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

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/pipeline"
	"github.com/mkbabb/lexserve/pkg/state"
)

func (s *Server) buildRequest(r *http.Request, word string) pipeline.Request {
	q := r.URL.Query()
	forceRefresh, _ := strconv.ParseBool(q.Get("force_refresh"))
	noAI, _ := strconv.ParseBool(q.Get("no_ai"))

	return pipeline.Request{
		Query:        word,
		Providers:    q["providers"],
		Languages:    q["languages"],
		ForceRefresh: forceRefresh,
		NoAI:         noAI,
	}
}

// handleLookup serves GET /lookup/{word}: a plain JSON SynthesizedEntry or
// a JSON error body on failure.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	word := chi.URLParam(r, "word")
	req := s.buildRequest(r, word)

	tracker := state.New(uuid.NewString(), word, state.CategoryLookup)

	entry, err := s.cfg.Pipeline.Run(r.Context(), req, tracker)
	if err != nil {
		s.writeLookupError(w, r, word, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entry)
}

// writeLookupError adds a resolver-driven suggestion array to not_found
// responses, per spec.md's "optional suggestion array drawn from the
// resolver's top-k."
func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, word string, err error) {
	if errs.KindOf(err) != errs.NotFound || s.cfg.Resolver == nil {
		writeError(w, err)
		return
	}

	results, rerr := s.cfg.Resolver.Resolve(r.Context(), word)
	if rerr != nil || len(results) == 0 {
		writeError(w, err)
		return
	}

	suggestions := make([]string, 0, len(results))
	for _, res := range results {
		suggestions = append(suggestions, res.Word)
	}
	writeErrorWithSuggestions(w, err, suggestions)
}
