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

package provider

import (
	"encoding/json"

	"github.com/mkbabb/lexserve/pkg/model"
)

// dictionaryAPIEntry mirrors the response shape of the public
// dictionaryapi.dev-style JSON array: one entry per headword spelling,
// each with phonetic transcriptions and meanings grouped by part of
// speech.
type dictionaryAPIEntry struct {
	Word      string `json:"word"`
	Phonetic  string `json:"phonetic"`
	Phonetics []struct {
		Text string `json:"text"`
	} `json:"phonetics"`
	Origin   string `json:"origin"`
	Meanings []struct {
		PartOfSpeech string `json:"partOfSpeech"`
		Definitions  []struct {
			Definition string   `json:"definition"`
			Example    string   `json:"example"`
			Synonyms   []string `json:"synonyms"`
			Antonyms   []string `json:"antonyms"`
		} `json:"definitions"`
		Synonyms []string `json:"synonyms"`
		Antonyms []string `json:"antonyms"`
	} `json:"meanings"`
}

// parseDictionaryAPIBody decodes a dictionaryapi.dev-shaped response body
// into the RawDefinition list plus whatever word-level pronunciation and
// etymology it carries. Any entry that fails to decode as the expected
// shape is treated as zero usable definitions rather than an error — a
// provider returning an unexpected body shouldn't crash the fetch, it
// should just contribute nothing.
func parseDictionaryAPIBody(providerName string, body []byte) ([]model.RawDefinition, string, string) {
	var entries []dictionaryAPIEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, "", ""
	}

	var (
		defs          []model.RawDefinition
		pronunciation string
		etymology     string
	)

	for _, entry := range entries {
		if pronunciation == "" {
			pronunciation = entry.Phonetic
			if pronunciation == "" {
				for _, p := range entry.Phonetics {
					if p.Text != "" {
						pronunciation = p.Text
						break
					}
				}
			}
		}
		if etymology == "" {
			etymology = entry.Origin
		}

		for _, meaning := range entry.Meanings {
			for _, d := range meaning.Definitions {
				if d.Definition == "" {
					continue
				}
				rd := model.RawDefinition{
					Provider:     providerName,
					PartOfSpeech: meaning.PartOfSpeech,
					Text:         d.Definition,
					Synonyms:     append(append([]string(nil), meaning.Synonyms...), d.Synonyms...),
					Antonyms:     append(append([]string(nil), meaning.Antonyms...), d.Antonyms...),
				}
				if d.Example != "" {
					rd.Examples = []string{d.Example}
				}
				defs = append(defs, rd)
			}
		}
	}

	return defs, pronunciation, etymology
}
