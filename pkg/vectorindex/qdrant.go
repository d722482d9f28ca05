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
	"strings"
	"sync/atomic"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the remote Qdrant-backed provider, for
// deployments where the vocabulary is too large for the embedded
// chromem index or needs to be shared across replicas.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

// QdrantProvider implements Provider against a Qdrant server, adapted
// from the teacher's pkg/vector QdrantProvider.
type QdrantProvider struct {
	client *qdrant.Client
	ready  atomic.Bool
}

// NewQdrantProvider dials a Qdrant server.
func NewQdrantProvider(cfg QdrantConfig) (*QdrantProvider, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantProvider{client: client}, nil
}

func (p *QdrantProvider) Name() string { return "qdrant" }

func (p *QdrantProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorindex: check collection: %w", err)
	}
	if !exists {
		err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(len(vector)),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("vectorindex: create collection: %w", err)
		}
	}

	payload := make(map[string]*qdrant.Value, len(metadata))
	for k, v := range metadata {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return fmt.Errorf("vectorindex: convert metadata %q: %w", k, err)
		}
		payload[k] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vector...),
		Payload: payload,
	}

	_, err = p.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: []*qdrant.PointStruct{point}})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert point: %w", err)
	}
	p.ready.Store(true)
	return nil
}

func (p *QdrantProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	pointsClient := p.client.GetPointsClient()
	resp, err := pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search: %w", err)
	}

	out := make([]Result, 0, len(resp.Result))
	for _, point := range resp.Result {
		var id string
		if point.Id != nil {
			switch idv := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = idv.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", idv.Num)
			}
		}

		meta := make(map[string]any, len(point.Payload))
		for k, v := range point.Payload {
			switch val := v.Kind.(type) {
			case *qdrant.Value_StringValue:
				meta[k] = val.StringValue
			case *qdrant.Value_IntegerValue:
				meta[k] = val.IntegerValue
			case *qdrant.Value_DoubleValue:
				meta[k] = val.DoubleValue
			case *qdrant.Value_BoolValue:
				meta[k] = val.BoolValue
			}
		}

		out = append(out, Result{ID: id, Score: point.Score, Metadata: meta})
	}
	return out, nil
}

func (p *QdrantProvider) Delete(ctx context.Context, collection, id string) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: delete %q: %w", id, err)
	}
	return nil
}

func (p *QdrantProvider) Ready() bool  { return p.ready.Load() }
func (p *QdrantProvider) Close() error { return p.client.Close() }

var _ Provider = (*QdrantProvider)(nil)
