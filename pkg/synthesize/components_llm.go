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

	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
)

// Every enhancement component except examples uses one of two response
// shapes: a single string value, or a list of strings. The templates in
// componentPrompts differ only in the instruction text; examples has its
// own template and schema below.
var stringComponentSchema = reflectSchema[stringComponentResult]()
var stringSliceComponentSchema = reflectSchema[stringSliceComponentResult]()

type stringComponentResult struct {
	Value string `json:"value" jsonschema:"required"`
}

type stringSliceComponentResult struct {
	Values []string `json:"values" jsonschema:"required"`
}

// componentPrompts gives each component name its own one-line instruction
// body, keeping every word/definition template registered under a
// distinct, versioned name.
var componentPrompts = map[string]string{
	"pronunciation":  `Give the IPA pronunciation of the word "{{.Word}}". Respond with just the transcription.`,
	"etymology":      `Give a concise etymology (one or two sentences) of the word "{{.Word}}".`,
	"word_forms":     `List the inflected word forms (plurals, verb tenses, comparative/superlative, etc) of "{{.Word}}" that actually exist.`,
	"facts":          `List up to five interesting, verifiable facts about the word "{{.Word}}" (origin trivia, usage notes, notable quotations).`,
	"synonyms":       `List synonyms for this specific sense of "{{.Word}}": "{{.Text}}"`,
	"antonyms":       `List antonyms for this specific sense of "{{.Word}}": "{{.Text}}"`,
	"cefr_level":     `Estimate the CEFR level (A1/A2/B1/B2/C1/C2) for this sense of "{{.Word}}": "{{.Text}}". Respond with just the level.`,
	"register":       `Name the register (formal, informal, slang, technical, etc) of this sense of "{{.Word}}": "{{.Text}}". Respond with one word or short phrase.`,
	"domain":         `Name the subject domain (if any) of this sense of "{{.Word}}": "{{.Text}}". Respond with one phrase, or empty if general.`,
	"frequency_band": `Estimate the usage frequency band (very common/common/uncommon/rare) of this sense of "{{.Word}}": "{{.Text}}". Respond with just the band.`,
	"collocations":   `List common collocations (words that typically co-occur) with this sense of "{{.Word}}": "{{.Text}}"`,
	"usage_notes":    `Give a short usage note (register, common confusions, regional variation) for this sense of "{{.Word}}": "{{.Text}}"`,
}

const examplesTemplateName = "synthesize.component.examples"
const examplesTemplateBody = `Give example sentences for this specific sense of "{{.Word}}": "{{.Text}}"
Provide both newly written illustrative examples and, where you're
confident one exists, an example drawn from published literature.`

var examplesSchema = reflectSchema[examplesComponentResult]()

type examplesComponentResult struct {
	Generated  []string `json:"generated" jsonschema:"required"`
	Literature []string `json:"literature,omitempty"`
}

// registerTemplates registers the stage templates (cluster, define) and
// one template per enhancement component on the LLM client's registry.
// Every template is version 1; bumping a body's wording requires bumping
// its version here so in-flight and cached responses invalidate cleanly.
func (s *Synthesizer) registerTemplates() error {
	reg := s.llmClient.Templates()

	if err := reg.Register(clusterTemplateName, 1, clusterTemplateBody); err != nil {
		return err
	}
	if err := reg.Register(defineTemplateName, 1, defineTemplateBody); err != nil {
		return err
	}
	if err := reg.Register(examplesTemplateName, 1, examplesTemplateBody); err != nil {
		return err
	}

	for name, body := range componentPrompts {
		if err := reg.Register(componentTemplateName(name), 1, body); err != nil {
			return err
		}
	}

	return nil
}

func componentTemplateName(component string) string {
	return "synthesize.component." + component
}

func enhanceString(ctx context.Context, client *llm.Client, component string, vars map[string]any, requestTokens int) (string, error) {
	result, err := client.ChatStructured(ctx, llm.ChatStructuredRequest{
		Template:        componentTemplateName(component),
		Vars:            vars,
		SchemaName:      component + "_result",
		Schema:          stringComponentSchema,
		Tier:            llm.TierLow,
		RequestedTokens: requestTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", component, err)
	}
	parsed, err := decodeJSONValue[stringComponentResult](result.Raw)
	if err != nil {
		return "", fmt.Errorf("%s: decode: %w", component, err)
	}
	return parsed.Value, nil
}

func enhanceStringSlice(ctx context.Context, client *llm.Client, component string, vars map[string]any, requestTokens int) ([]string, error) {
	result, err := client.ChatStructured(ctx, llm.ChatStructuredRequest{
		Template:        componentTemplateName(component),
		Vars:            vars,
		SchemaName:      component + "_result",
		Schema:          stringSliceComponentSchema,
		Tier:            llm.TierLow,
		RequestedTokens: requestTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", component, err)
	}
	parsed, err := decodeJSONValue[stringSliceComponentResult](result.Raw)
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", component, err)
	}
	return parsed.Values, nil
}

func stringWordComponent(name string, apply func(*model.SynthesizedEntry, string)) Component {
	return Component{
		Name:  name,
		Scope: ScopeWord,
		RunWord: func(ctx context.Context, client *llm.Client, word model.Word, entry *model.SynthesizedEntry, requestTokens int) error {
			value, err := enhanceString(ctx, client, name, map[string]any{"Word": word.Normalized}, requestTokens)
			if err != nil {
				return err
			}
			apply(entry, value)
			return nil
		},
	}
}

func stringSliceWordComponent(name string, apply func(*model.SynthesizedEntry, []string)) Component {
	return Component{
		Name:  name,
		Scope: ScopeWord,
		RunWord: func(ctx context.Context, client *llm.Client, word model.Word, entry *model.SynthesizedEntry, requestTokens int) error {
			values, err := enhanceStringSlice(ctx, client, name, map[string]any{"Word": word.Normalized}, requestTokens)
			if err != nil {
				return err
			}
			apply(entry, values)
			return nil
		},
	}
}

func stringDefinitionComponent(name string, apply func(*model.SynthesizedDefinition, string)) Component {
	return Component{
		Name:  name,
		Scope: ScopeDefinition,
		RunDefinition: func(ctx context.Context, client *llm.Client, word model.Word, def *model.SynthesizedDefinition, requestTokens int) error {
			value, err := enhanceString(ctx, client, name, map[string]any{"Word": word.Normalized, "Text": def.Text}, requestTokens)
			if err != nil {
				return err
			}
			apply(def, value)
			return nil
		},
	}
}

func stringSliceDefinitionComponent(name string, apply func(*model.SynthesizedDefinition, []string)) Component {
	return Component{
		Name:  name,
		Scope: ScopeDefinition,
		RunDefinition: func(ctx context.Context, client *llm.Client, word model.Word, def *model.SynthesizedDefinition, requestTokens int) error {
			values, err := enhanceStringSlice(ctx, client, name, map[string]any{"Word": word.Normalized, "Text": def.Text}, requestTokens)
			if err != nil {
				return err
			}
			apply(def, values)
			return nil
		},
	}
}

func examplesDefinitionComponent() Component {
	return Component{
		Name:  "examples",
		Scope: ScopeDefinition,
		RunDefinition: func(ctx context.Context, client *llm.Client, word model.Word, def *model.SynthesizedDefinition, requestTokens int) error {
			result, err := client.ChatStructured(ctx, llm.ChatStructuredRequest{
				Template:        examplesTemplateName,
				Vars:            map[string]any{"Word": word.Normalized, "Text": def.Text},
				SchemaName:      "examples_result",
				Schema:          examplesSchema,
				Tier:            llm.TierLow,
				RequestedTokens: requestTokens,
			})
			if err != nil {
				return fmt.Errorf("examples: %w", err)
			}
			parsed, err := decodeJSONValue[examplesComponentResult](result.Raw)
			if err != nil {
				return fmt.Errorf("examples: decode: %w", err)
			}
			def.Examples = model.DefinitionExamples{Generated: parsed.Generated, Literature: parsed.Literature}
			return nil
		},
	}
}
