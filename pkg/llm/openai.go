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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// reasoningModelPrefixes are OpenAI model families that only accept a
// max_completion_tokens budget, since their hidden reasoning tokens share
// the same pool as visible output.
var reasoningModelPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

func isOpenAIReasoningModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range reasoningModelPrefixes {
		if lower == prefix || strings.HasPrefix(lower, prefix+"-") {
			return true
		}
	}
	return false
}

// openAIProvider performs structured-output chat completions against the
// official OpenAI SDK's Chat Completions API with a JSON-schema response
// format, in place of the teacher's hand-rolled Responses API client:
// the teacher's pkg/llms/openai.go targets a full streaming tool-calling
// agent loop this spec doesn't need, and Tangerg-lynx's
// ai/providers/openaiv2 package shows the idiomatic SDK call shape for
// plain structured chat completions.
type openAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a Provider backed by the OpenAI Chat
// Completions API.
func NewOpenAIProvider(apiKey, model string) Provider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openAIProvider{client: &client, model: model}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) CompletionStyle() CompletionStyle {
	if isOpenAIReasoningModel(p.model) {
		return CompletionStyleReasoning
	}
	return CompletionStyleLegacy
}

func (p *openAIProvider) ChatStructured(ctx context.Context, req Request, maxOutputTokens int) (Result, error) {
	var schema map[string]any
	if len(req.Schema) > 0 {
		if err := json.Unmarshal(req.Schema, &schema); err != nil {
			return Result{}, fmt.Errorf("llm(openai): invalid response schema: %w", err)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}

	if p.CompletionStyle() == CompletionStyleReasoning {
		params.MaxCompletionTokens = openai.Int(int64(maxOutputTokens))
	} else {
		params.MaxTokens = openai.Int(int64(maxOutputTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("llm(openai): chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("llm(openai): no choices in response")
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}

	return Result{
		Raw:   json.RawMessage(resp.Choices[0].Message.Content),
		Usage: usage,
	}, nil
}
