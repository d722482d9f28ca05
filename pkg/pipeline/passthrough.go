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

package pipeline

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mkbabb/lexserve/pkg/hashkey"
	"github.com/mkbabb/lexserve/pkg/model"
)

// noAIPipelineVersion tags the fingerprint of a raw pass-through entry so
// it never collides with an LLM-synthesized entry's fingerprint for the
// same provider inputs — the two are never interchangeable.
const noAIPipelineVersion = "no-ai-v1"

// passthroughEntry builds a SynthesizedEntry directly from raw provider
// data with no LLM involvement at all, for "no_ai" requests: one
// SynthesizedDefinition per RawDefinition, unranked and unenhanced.
func passthroughEntry(word model.Word, providerData []model.ProviderData) model.SynthesizedEntry {
	providerSet := make([]string, 0, len(providerData))
	rawHashes := make([]string, 0, len(providerData))
	var pronunciation, etymology string
	var definitions []model.SynthesizedDefinition

	for _, d := range providerData {
		providerSet = append(providerSet, d.Provider)
		if d.ContentHash != "" {
			rawHashes = append(rawHashes, d.ContentHash)
		}
		if pronunciation == "" {
			pronunciation = d.Pronunciation
		}
		if etymology == "" {
			etymology = d.Etymology
		}
		for _, raw := range d.RawDefinitions {
			definitions = append(definitions, model.SynthesizedDefinition{
				ID:           uuid.NewString(),
				WordRef:      word.Normalized,
				PartOfSpeech: raw.PartOfSpeech,
				Text:         raw.Text,
				Relevancy:    1.0,
				Examples:     model.DefinitionExamples{Generated: raw.Examples},
				Synonyms:     raw.Synonyms,
				Antonyms:     raw.Antonyms,
				SourceCount:  1,
			})
		}
	}
	sort.Strings(providerSet)

	fingerprint := hashkey.Fingerprint(providerSet, rawHashes, "none/none@none", noAIPipelineVersion)

	return model.SynthesizedEntry{
		Word:          word,
		Definitions:   definitions,
		Pronunciation: pronunciation,
		Etymology:     etymology,
		ProviderSet:   providerSet,
		ModelInfo: model.ModelInfo{
			Provider:        "none",
			Model:           "none",
			PipelineVersion: noAIPipelineVersion,
		},
		Version: model.VersionInfo{Fingerprint: string(fingerprint), BuiltAt: time.Now()},
	}
}
