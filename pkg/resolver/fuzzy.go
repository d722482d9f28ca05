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
	"github.com/agext/levenshtein"
)

const maxFuzzyDistance = 3

var fuzzyParams = levenshtein.NewParams()

// fuzzyCandidates scores each candidate word by bounded edit distance
// against query, discarding anything farther than maxFuzzyDistance and
// applying a length prefilter so obviously-mismatched lengths never pay
// for a full distance computation.
func fuzzyCandidates(query string, candidates []string) []SearchResult {
	results := make([]SearchResult, 0, len(candidates))
	queryLen := len([]rune(query))

	for _, candidate := range candidates {
		candLen := len([]rune(candidate))
		lengthDiff := candLen - queryLen
		if lengthDiff < 0 {
			lengthDiff = -lengthDiff
		}
		if lengthDiff > maxFuzzyDistance {
			continue
		}

		distance := levenshtein.Distance(query, candidate, fuzzyParams)
		if distance > maxFuzzyDistance {
			continue
		}

		maxLen := queryLen
		if candLen > maxLen {
			maxLen = candLen
		}
		if maxLen == 0 {
			continue
		}

		score := 1 - float64(distance)/float64(maxLen)
		if score < 0 {
			score = 0
		}

		results = append(results, SearchResult{Word: candidate, Score: score, Method: MethodFuzzy})
	}
	return results
}
