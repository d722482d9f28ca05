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
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/philippgille/chromem-go"
)

// ChromemProvider implements Provider with an embedded chromem-go index:
// zero external services, in-memory with optional gob persistence,
// adapted from the teacher's pkg/vector ChromemProvider down to the
// vocabulary-lookup use case (pre-computed embeddings only, single
// collection per word-index version).
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection

	ready atomic.Bool
}

// ChromemConfig configures the embedded vector index.
type ChromemConfig struct {
	PersistPath string `yaml:"persist_path,omitempty"`
}

// NewChromemProvider opens (or creates) an embedded vector index.
func NewChromemProvider(cfg ChromemConfig) (*ChromemProvider, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("vectorindex: create persist dir: %w", err)
		}
		dbPath := cfg.PersistPath + "/vocab.gob"
		if _, err := os.Stat(dbPath); err == nil {
			loaded, lerr := chromem.NewPersistentDB(dbPath, false)
			if lerr == nil {
				db = loaded
			}
		}
	}
	if db == nil {
		db = chromem.NewDB()
	}

	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("vectorindex: embeddings must be precomputed by pkg/embedder")
	}
	_ = identityEmbed

	p := &ChromemProvider{
		db:          db,
		persistPath: cfg.PersistPath,
		collections: make(map[string]*chromem.Collection),
	}
	return p, nil
}

func (p *ChromemProvider) getCollection(name string) (*chromem.Collection, error) {
	p.mu.RLock()
	if col, ok := p.collections[name]; ok {
		p.mu.RUnlock()
		return col, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if col, ok := p.collections[name]; ok {
		return col, nil
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("vectorindex: embeddings must be precomputed")
	}
	col, err := p.db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: get/create collection %q: %w", name, err)
	}
	p.collections[name] = col
	return col, nil
}

func (p *ChromemProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}

	strMeta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMeta[k] = fmt.Sprint(v)
	}

	doc := chromem.Document{ID: id, Metadata: strMeta, Embedding: vector}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("vectorindex: upsert %q: %w", id, err)
	}
	p.ready.Store(true)
	return p.persist()
}

func (p *ChromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	col, err := p.getCollection(collection)
	if err != nil {
		return nil, err
	}

	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		out = append(out, Result{ID: r.ID, Score: r.Similarity, Metadata: meta})
	}
	return out, nil
}

func (p *ChromemProvider) Delete(ctx context.Context, collection, id string) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("vectorindex: delete %q: %w", id, err)
	}
	return p.persist()
}

func (p *ChromemProvider) Ready() bool { return p.ready.Load() }
func (p *ChromemProvider) Name() string { return "chromem" }
func (p *ChromemProvider) Close() error { return p.persist() }

func (p *ChromemProvider) persist() error {
	if p.persistPath == "" {
		return nil
	}
	dbPath := p.persistPath + "/vocab.gob"
	//nolint:staticcheck // teacher's pkg/vector uses the same deprecated Export call
	if err := p.db.Export(dbPath, false, ""); err != nil {
		return fmt.Errorf("vectorindex: persist: %w", err)
	}
	return nil
}

var _ Provider = (*ChromemProvider)(nil)
