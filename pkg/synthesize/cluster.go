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
	"strings"

	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
)

const clusterTemplateName = "synthesize.cluster"

const clusterTemplateBody = `You are clustering dictionary definitions of "{{.Word}}" by distinct sense.
Each definition below is numbered; group the numbers that express the same
meaning into one cluster. Definitions from different providers describing
the same sense belong in the same cluster. Drop nothing; every index must
appear in exactly one cluster.

{{.Definitions}}

Respond with disjoint clusters: id, a short label, a one-sentence
description, a confidence in [0,1], and the member indices.`

var clusterSchema = reflectSchema[clusterLLMResult]()

// minClusterConfidence drops clusters the LLM itself flagged as
// low-confidence, per spec's "empty or low-confidence clusters are
// dropped."
const minClusterConfidence = 0.25

type clusterItem struct {
	ID            string  `json:"id" jsonschema:"required"`
	Label         string  `json:"label" jsonschema:"required"`
	Description   string  `json:"description,omitempty"`
	PartOfSpeech  string  `json:"part_of_speech,omitempty"`
	Confidence    float64 `json:"confidence" jsonschema:"required"`
	MemberIndices []int   `json:"member_indices" jsonschema:"required"`
}

type clusterLLMResult struct {
	Clusters []clusterItem `json:"clusters" jsonschema:"required"`
}

// cluster calls the LLM with every raw definition and partitions them
// into disjoint MeaningClusters, dropping empty or low-confidence ones.
func (s *Synthesizer) cluster(ctx context.Context, word model.Word, rawDefs []model.RawDefinition, requestTokens int) ([]model.MeaningCluster, error) {
	result, err := s.llmClient.ChatStructured(ctx, llm.ChatStructuredRequest{
		Template: clusterTemplateName,
		Vars: map[string]any{
			"Word":        word.Normalized,
			"Definitions": formatNumberedDefinitions(rawDefs),
		},
		SchemaName:      "cluster_result",
		Schema:          clusterSchema,
		Tier:            llm.TierMedium,
		RequestedTokens: requestTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat_structured: %w", err)
	}

	parsed, err := decodeJSONValue[clusterLLMResult](result.Raw)
	if err != nil {
		return nil, fmt.Errorf("decode cluster result: %w", err)
	}

	clusters := make([]model.MeaningCluster, 0, len(parsed.Clusters))
	for _, c := range parsed.Clusters {
		if c.Confidence < minClusterConfidence {
			continue
		}
		members := make([]model.RawDefinition, 0, len(c.MemberIndices))
		for _, idx := range c.MemberIndices {
			if idx < 0 || idx >= len(rawDefs) {
				continue
			}
			members = append(members, rawDefs[idx])
		}
		if len(members) == 0 {
			continue
		}
		clusters = append(clusters, model.MeaningCluster{
			ID:           c.ID,
			Label:        c.Label,
			Description:  c.Description,
			PartOfSpeech: c.PartOfSpeech,
			Confidence:   c.Confidence,
			Members:      members,
		})
	}

	return clusters, nil
}

func formatNumberedDefinitions(defs []model.RawDefinition) string {
	var sb strings.Builder
	for i, d := range defs {
		fmt.Fprintf(&sb, "%d. [%s/%s] %s\n", i, d.Provider, d.PartOfSpeech, d.Text)
	}
	return sb.String()
}
