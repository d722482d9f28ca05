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
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// wholeWordContractions covers irregular contractions that don't follow
// a simple suffix pattern.
var wholeWordContractions = map[string]string{
	"won't":   "will not",
	"can't":   "cannot",
	"let's":   "let us",
	"it's":    "it is",
	"that's":  "that is",
	"who's":   "who is",
	"what's":  "what is",
	"there's": "there is",
}

// suffixContractions is ordered longest-suffix-first so a token like
// "don't" matches "n't" before the shorter, less specific "'t" would.
var suffixContractions = []struct {
	suffix    string
	expansion string
}{
	{"n't", " not"},
	{"'re", " are"},
	{"'ve", " have"},
	{"'ll", " will"},
	{"'d", " would"},
	{"'s", " is"},
	{"'m", " am"},
	{"'t", " not"},
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func expandContraction(token string) string {
	if expansion, ok := wholeWordContractions[token]; ok {
		return expansion
	}
	for _, sc := range suffixContractions {
		if strings.HasSuffix(token, sc.suffix) {
			return strings.TrimSuffix(token, sc.suffix) + sc.expansion
		}
	}
	return token
}

// Normalize applies the resolver's single-pass query normalization: fix
// stray whitespace/encoding noise, strip diacritics via NFD + combining
// mark removal, lowercase, strip punctuation other than apostrophe and
// hyphen, expand common contractions, and collapse whitespace. The
// intermediate strings produced along the way are not meant to be
// observed individually -- callers only ever see the final result.
func Normalize(s string) string {
	stripped, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		stripped = s
	}

	lower := strings.ToLower(stripped)

	var cleaned strings.Builder
	cleaned.Grow(len(lower))
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'', r == '-', unicode.IsSpace(r):
			cleaned.WriteRune(r)
		default:
			cleaned.WriteRune(' ')
		}
	}

	tokens := strings.Fields(cleaned.String())
	for i, tok := range tokens {
		tokens[i] = expandContraction(tok)
	}

	return strings.Join(strings.Fields(strings.Join(tokens, " ")), " ")
}
