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

package vectorindex

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the hosted Pinecone-backed provider, for
// deployments that want a managed index rather than running chromem or
// Qdrant themselves.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host,omitempty"`
	IndexName string `yaml:"index_name,omitempty"`
}

// PineconeProvider implements Provider against Pinecone, adapted from
// the teacher's pkg/vector PineconeProvider down to the Upsert/Search/
// Delete/Ready shape this pipeline needs.
type PineconeProvider struct {
	client    *pinecone.Client
	indexName string
	ready     atomic.Bool
}

// NewPineconeProvider dials Pinecone's control plane.
func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vectorindex: pinecone api_key is required")
	}

	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}

	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: pinecone client: %w", err)
	}

	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "lexserve-index"
	}

	return &PineconeProvider{client: client, indexName: indexName}, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

func (p *PineconeProvider) index(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	name := collection
	if name == "" {
		name = p.indexName
	}

	desc, err := p.client.DescribeIndex(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: describe index %s: %w", name, err)
	}

	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: desc.Host})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: index connection: %w", err)
	}
	return conn, nil
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	conn, err := p.index(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	var meta *pinecone.Metadata
	if len(metadata) > 0 {
		meta, err = structpb.NewStruct(metadata)
		if err != nil {
			return fmt.Errorf("vectorindex: convert metadata: %w", err)
		}
	}

	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vector, Metadata: meta}})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert vector: %w", err)
	}
	p.ready.Store(true)
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	conn, err := p.index(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", err)
	}

	out := make([]Result, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		meta := map[string]any{}
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.AsMap() {
				meta[k] = v
			}
		}
		out = append(out, Result{ID: m.Vector.Id, Score: m.Score, Metadata: meta})
	}
	return out, nil
}

func (p *PineconeProvider) Delete(ctx context.Context, collection, id string) error {
	conn, err := p.index(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("vectorindex: delete %q: %w", id, err)
	}
	return nil
}

func (p *PineconeProvider) Ready() bool  { return p.ready.Load() }
func (p *PineconeProvider) Close() error { return nil }

var _ Provider = (*PineconeProvider)(nil)
