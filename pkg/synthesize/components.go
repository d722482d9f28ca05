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

package synthesize

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
)

// Scope is the level an enhancement component operates at: once per
// word, or once per definition within the word.
type Scope int

const (
	ScopeWord Scope = iota
	ScopeDefinition
)

// wordConcurrency/definitionConcurrency bound how many component calls
// run at once within each scope, per spec's "concurrency is bounded per
// scope."
const (
	wordConcurrency       = 4
	definitionConcurrency = 6
)

// Component declares one enhancement's scope and synthesis function. Word
// components mutate the entry directly (pronunciation, etymology,
// word_forms, facts); definition components each mutate the
// SynthesizedDefinition they are handed, a pointer into
// `entry.Definitions` taken by index before the fan-out starts. Results
// are written through that pointer, not matched back by definition ID;
// `entry.Definitions` is not resized or reordered while they run.
type Component struct {
	Name           string
	Scope          Scope
	RunWord        func(ctx context.Context, client *llm.Client, word model.Word, entry *model.SynthesizedEntry, requestTokens int) error
	RunDefinition  func(ctx context.Context, client *llm.Client, word model.Word, def *model.SynthesizedDefinition, requestTokens int) error
}

// DefaultComponents returns the full enhancement registry: the
// word-scoped components (pronunciation, etymology, word_forms, facts)
// and the definition-scoped components (synonyms, antonyms, examples,
// cefr_level, register, domain, frequency_band, collocations,
// usage_notes).
func DefaultComponents() []Component {
	return []Component{
		stringWordComponent("pronunciation", func(e *model.SynthesizedEntry, v string) { e.Pronunciation = v }),
		stringWordComponent("etymology", func(e *model.SynthesizedEntry, v string) { e.Etymology = v }),
		stringSliceWordComponent("word_forms", func(e *model.SynthesizedEntry, v []string) { e.WordForms = v }),
		stringSliceWordComponent("facts", func(e *model.SynthesizedEntry, v []string) { e.Facts = v }),

		stringSliceDefinitionComponent("synonyms", func(d *model.SynthesizedDefinition, v []string) { d.Synonyms = v }),
		stringSliceDefinitionComponent("antonyms", func(d *model.SynthesizedDefinition, v []string) { d.Antonyms = v }),
		examplesDefinitionComponent(),
		stringDefinitionComponent("cefr_level", func(d *model.SynthesizedDefinition, v string) { d.CEFRLevel = v }),
		stringDefinitionComponent("register", func(d *model.SynthesizedDefinition, v string) { d.Register = v }),
		stringDefinitionComponent("domain", func(d *model.SynthesizedDefinition, v string) { d.Domain = v }),
		stringDefinitionComponent("frequency_band", func(d *model.SynthesizedDefinition, v string) { d.FrequencyBand = v }),
		stringSliceDefinitionComponent("collocations", func(d *model.SynthesizedDefinition, v []string) { d.Collocations = v }),
		stringDefinitionComponent("usage_notes", func(d *model.SynthesizedDefinition, v string) { d.UsageNotes = v }),
	}
}

// enhance fans the requested components out across their declared scope,
// bounded per scope, and applies each successful result directly to the
// entry (word components) or to the definition each was handed
// (definition components). A component's failure is logged and skipped — it never
// fails the others, and never fails Synthesize.
func (s *Synthesizer) enhance(ctx context.Context, word model.Word, entry *model.SynthesizedEntry, names []string, requestTokens int, onProgress ProgressFunc) []string {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var (
		mu        sync.Mutex
		succeeded []string
	)

	markSucceeded := func(name string) {
		mu.Lock()
		succeeded = append(succeeded, name)
		mu.Unlock()
		if onProgress != nil {
			onProgress(name, *entry)
		}
	}

	wordGroup, wordCtx := errgroup.WithContext(ctx)
	wordGroup.SetLimit(wordConcurrency)
	for _, c := range s.components {
		if c.Scope != ScopeWord || !wanted[c.Name] || !wantedMissing(c.Name, *entry) {
			continue
		}
		c := c
		wordGroup.Go(func() error {
			if err := c.RunWord(wordCtx, s.llmClient, word, entry, requestTokens); err != nil {
				s.logger.Warn("enhancement component failed", "component", c.Name, "scope", "word", "error", err)
				return nil
			}
			markSucceeded(c.Name)
			return nil
		})
	}
	_ = wordGroup.Wait()

	defGroup, defCtx := errgroup.WithContext(ctx)
	defGroup.SetLimit(definitionConcurrency)
	for i := range entry.Definitions {
		def := &entry.Definitions[i]
		for _, c := range s.components {
			if c.Scope != ScopeDefinition || !wanted[c.Name] {
				continue
			}
			c, def := c, def
			defGroup.Go(func() error {
				if err := c.RunDefinition(defCtx, s.llmClient, word, def, requestTokens); err != nil {
					s.logger.Warn("enhancement component failed", "component", c.Name, "scope", "definition", "definition_id", def.ID, "error", err)
					return nil
				}
				markSucceeded(fmt.Sprintf("%s:%s", c.Name, def.ID))
				return nil
			})
		}
	}
	_ = defGroup.Wait()

	return succeeded
}

// wantedMissing implements the "default is all missing" selection rule
// for word-scoped components: a component already populated on a
// previously-published entry being re-enhanced isn't re-run.
func wantedMissing(name string, entry model.SynthesizedEntry) bool {
	switch name {
	case "pronunciation":
		return entry.Pronunciation == ""
	case "etymology":
		return entry.Etymology == ""
	case "word_forms":
		return len(entry.WordForms) == 0
	case "facts":
		return len(entry.Facts) == 0
	default:
		return true
	}
}
