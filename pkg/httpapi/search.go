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

	"github.com/go-chi/chi/v5"

	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/resolver"
)

var methodNames = map[resolver.Method]string{
	resolver.MethodExact:    "exact",
	resolver.MethodFuzzy:    "fuzzy",
	resolver.MethodSemantic: "semantic",
}

func methodName(m resolver.Method) string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

type searchResult struct {
	Word   string  `json:"word"`
	Score  float64 `json:"score"`
	Method string  `json:"method"`
}

// handleSearch serves GET /search?q= with the resolver's ranked candidate
// list.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if s.cfg.Resolver == nil {
		writeError(w, errs.New(errs.Internal, "httpapi.handleSearch", "resolver not configured"))
		return
	}

	results, err := s.cfg.Resolver.Resolve(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]searchResult, 0, len(results))
	for _, res := range results {
		out = append(out, searchResult{Word: res.Word, Score: res.Score, Method: methodName(res.Method)})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// handleSuggestions serves GET /search/{query}/suggestions, returning just
// the resolver's ranked words as a flat string array.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if s.cfg.Resolver == nil {
		writeError(w, errs.New(errs.Internal, "httpapi.handleSuggestions", "resolver not configured"))
		return
	}

	results, err := s.cfg.Resolver.Resolve(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	words := make([]string, 0, len(results))
	for _, res := range results {
		words = append(words, res.Word)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(words)
}
