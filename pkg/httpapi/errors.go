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

	"github.com/mkbabb/lexserve/pkg/errs"
)

// shuttingDownKind is outside pkg/errs's taxonomy because it's an HTTP-layer
// refusal, not a pipeline failure kind.
const shuttingDownKind errs.Kind = "shutting_down"

func errShuttingDown(message string) *errs.Error {
	return errs.New(shuttingDownKind, "httpapi", message)
}

// statusFor maps an errs.Kind to an HTTP status: 404 for not_found, 429
// for rate_limited, 502 for provider_error and llm_error, 503 for
// upstream_unavailable and shutting_down, 504 for timeout and
// deadline_exceeded, 408 for cancelled (most clients never see it — the
// connection is already gone by the time a response would be sent), and
// 500 for storage_error, corrupted_cache and everything else.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.NotFound:
		return http.StatusNotFound
	case errs.RateLimited:
		return http.StatusTooManyRequests
	case errs.ProviderError:
		return http.StatusBadGateway
	case errs.UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case shuttingDownKind:
		return http.StatusServiceUnavailable
	case errs.LLMError:
		return http.StatusBadGateway
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case errs.Cancelled:
		return http.StatusRequestTimeout
	case errs.StorageError:
		return http.StatusInternalServerError
	case errs.CorruptedCache:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// writeError writes err as the JSON error body spec.md's user-visible
// behaviour section describes, with an optional suggestion array for
// not_found responses.
func writeError(w http.ResponseWriter, err error) {
	writeErrorWithSuggestions(w, err, nil)
}

func writeErrorWithSuggestions(w http.ResponseWriter, err error, suggestions []string) {
	kind := errs.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(kind))
	_ = json.NewEncoder(w).Encode(errorBody{
		Kind:        string(kind),
		Message:     err.Error(),
		Suggestions: suggestions,
	})
}
