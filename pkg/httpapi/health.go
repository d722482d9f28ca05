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
)

type healthBody struct {
	Status        string `json:"status"`
	SemanticIndex string `json:"semantic_index,omitempty"`
	ShuttingDown  bool   `json:"shutting_down"`
}

// handleHealthz reports process liveness plus the resolver's semantic leg
// readiness, so a load balancer can tell a cold semantic index apart from a
// genuinely broken process.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", ShuttingDown: s.shuttingDown.Load()}
	if s.cfg.Resolver != nil {
		body.SemanticIndex = string(s.cfg.Resolver.SemanticState())
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
