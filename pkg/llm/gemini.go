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

	"google.golang.org/genai"
)

// geminiProvider performs structured-output calls against the official
// google.golang.org/genai SDK, grounded on the teacher's
// pkg/model/gemini/gemini.go use of genai.NewClient +
// client.Models.GenerateContent, extended with the SDK's JSON response
// schema support instead of the teacher's free-text/tool-call path.
type geminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider builds a Provider backed by the Gemini API.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm(gemini): new client: %w", err)
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

// CompletionStyle: Gemini's MaxOutputTokens is a verbatim cap, not a
// reasoning-inclusive budget.
func (p *geminiProvider) CompletionStyle() CompletionStyle { return CompletionStyleLegacy }

func (p *geminiProvider) ChatStructured(ctx context.Context, req Request, maxOutputTokens int) (Result, error) {
	var schema *genai.Schema
	if len(req.Schema) > 0 {
		schema = &genai.Schema{}
		if err := json.Unmarshal(req.Schema, schema); err != nil {
			return Result{}, fmt.Errorf("llm(gemini): invalid response schema: %w", err)
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		MaxOutputTokens:  int32(maxOutputTokens),
	})
	if err != nil {
		return Result{}, fmt.Errorf("llm(gemini): generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return Result{}, fmt.Errorf("llm(gemini): empty response")
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return Result{Raw: json.RawMessage(text), Usage: usage}, nil
}
