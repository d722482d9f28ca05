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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// structuredToolName is the single forced tool every Anthropic structured
// request declares: Anthropic has no native JSON-schema response format,
// so structured output is obtained by forcing exactly one tool call whose
// input schema is the caller's response schema, and reading the tool's
// input back as the result.
const structuredToolName = "emit_structured_response"

// anthropicProvider performs structured-output calls against the
// official Anthropic SDK via the forced-single-tool pattern.
type anthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider builds a Provider backed by the Anthropic Messages
// API.
func NewAnthropicProvider(apiKey, model string) Provider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicProvider{client: &client, model: model}
}

func (p *anthropicProvider) Name() string { return "anthropic" }

// CompletionStyle: Anthropic's max_tokens is always a hard output cap
// shared with any visible text, which matches the legacy convention.
func (p *anthropicProvider) CompletionStyle() CompletionStyle { return CompletionStyleLegacy }

func (p *anthropicProvider) ChatStructured(ctx context.Context, req Request, maxOutputTokens int) (Result, error) {
	var schema map[string]any
	if len(req.Schema) > 0 {
		if err := json.Unmarshal(req.Schema, &schema); err != nil {
			return Result{}, fmt.Errorf("llm(anthropic): invalid response schema: %w", err)
		}
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxOutputTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        structuredToolName,
					Description: anthropic.String("Emit the final structured result matching the required schema."),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: schema["properties"],
						Required:   toStringSlice(schema["required"]),
					},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: structuredToolName},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("llm(anthropic): messages.new: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == structuredToolName {
			return Result{
				Raw: json.RawMessage(block.Input),
				Usage: Usage{
					PromptTokens:     int(resp.Usage.InputTokens),
					CompletionTokens: int(resp.Usage.OutputTokens),
					TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
				},
			}, nil
		}
	}

	return Result{}, fmt.Errorf("llm(anthropic): response carried no %s tool_use block", structuredToolName)
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
