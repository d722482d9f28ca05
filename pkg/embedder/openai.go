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

package embedder

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// dimensionsByModel holds the known output size for OpenAI's published
// embedding models; a model not listed here is treated as 1536.
var dimensionsByModel = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// openAIEmbedder wraps the official OpenAI SDK client.
type openAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
	batchSize int
}

func newOpenAIEmbedder(cfg Config) (*openAIEmbedder, error) {
	dim, ok := dimensionsByModel[cfg.Model]
	if !ok {
		dim = 1536
	}

	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))

	return &openAIEmbedder{
		client:    client,
		model:     cfg.Model,
		dimension: dim,
		batchSize: cfg.BatchSize,
	}, nil
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("embedder: received no embeddings for input")
	}
	return out[0], nil
}

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: e.model,
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		})
		if err != nil {
			return nil, fmt.Errorf("embedder: openai embeddings: %w", err)
		}

		batchOut := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(batchOut) {
				continue
			}
			vec := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float32(v)
			}
			batchOut[d.Index] = vec
		}
		out = append(out, batchOut...)
	}
	return out, nil
}

func (e *openAIEmbedder) Dimension() int    { return e.dimension }
func (e *openAIEmbedder) ModelName() string { return e.model }
func (e *openAIEmbedder) Close() error      { return nil }

var _ Provider = (*openAIEmbedder)(nil)
