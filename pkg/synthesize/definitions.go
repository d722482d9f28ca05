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
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
)

const defineTemplateName = "synthesize.define"

const defineTemplateBody = `Write one or more canonical dictionary definitions for "{{.Word}}"
covering this single sense cluster ("{{.Label}}"): {{.Description}}

Source definitions for this sense, from multiple providers:
{{.Members}}

Merge any of the source definitions that are semantically identical into
a single definition. For each resulting definition give: the definition
text, its part of speech, and a relevancy score in [0,1] ranking it
against the cluster's other definitions (1.0 = most central sense).`

var defineSchema = reflectSchema[defineLLMResult]()

type defineItem struct {
	Text         string  `json:"text" jsonschema:"required"`
	PartOfSpeech string  `json:"part_of_speech,omitempty"`
	Relevancy    float64 `json:"relevancy" jsonschema:"required"`
}

type defineLLMResult struct {
	Definitions []defineItem `json:"definitions" jsonschema:"required"`
}

// synthesizeDefinitions calls the LLM once per cluster to produce its
// SynthesizedDefinitions, in cluster order.
func (s *Synthesizer) synthesizeDefinitions(ctx context.Context, word model.Word, clusters []model.MeaningCluster, requestTokens int) ([]model.SynthesizedDefinition, error) {
	var out []model.SynthesizedDefinition

	for _, cluster := range clusters {
		result, err := s.llmClient.ChatStructured(ctx, llm.ChatStructuredRequest{
			Template: defineTemplateName,
			Vars: map[string]any{
				"Word":        word.Normalized,
				"Label":       cluster.Label,
				"Description": cluster.Description,
				"Members":     formatClusterMembers(cluster.Members),
			},
			SchemaName:      "define_result",
			Schema:          defineSchema,
			Tier:            llm.TierMedium,
			RequestedTokens: requestTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("cluster %s: chat_structured: %w", cluster.ID, err)
		}

		parsed, err := decodeJSONValue[defineLLMResult](result.Raw)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: decode define result: %w", cluster.ID, err)
		}

		for _, d := range parsed.Definitions {
			partOfSpeech := d.PartOfSpeech
			if partOfSpeech == "" {
				partOfSpeech = cluster.PartOfSpeech
			}
			out = append(out, model.SynthesizedDefinition{
				ID:           uuid.NewString(),
				WordRef:      word.Normalized,
				ClusterRef:   cluster.ID,
				PartOfSpeech: partOfSpeech,
				Text:         d.Text,
				Relevancy:    d.Relevancy,
				SourceCount:  len(cluster.Members),
			})
		}
	}

	return out, nil
}

func formatClusterMembers(members []model.RawDefinition) string {
	var sb strings.Builder
	for i, m := range members {
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(". [")
		sb.WriteString(m.Provider)
		sb.WriteString("] ")
		sb.WriteString(m.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
