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

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
	"github.com/mkbabb/lexserve/pkg/provider"
	"github.com/mkbabb/lexserve/pkg/resolver"
	"github.com/mkbabb/lexserve/pkg/state"
	"github.com/mkbabb/lexserve/pkg/synthesize"
)

type fakeProviderClient struct {
	name string
	data model.ProviderData
	err  error
}

func (f *fakeProviderClient) Name() string { return f.name }
func (f *fakeProviderClient) Host() string { return "fake.test" }
func (f *fakeProviderClient) Fetch(ctx context.Context, word model.Word) (model.ProviderData, error) {
	return f.data, f.err
}

type stubLLMProvider struct{}

func (s *stubLLMProvider) Name() string                        { return "stub" }
func (s *stubLLMProvider) CompletionStyle() llm.CompletionStyle { return llm.CompletionStyleLegacy }
func (s *stubLLMProvider) ChatStructured(ctx context.Context, req llm.Request, maxOutputTokens int) (llm.Result, error) {
	switch req.SchemaName {
	case "cluster_result":
		return llm.Result{Raw: json.RawMessage(`{"clusters":[{"id":"c1","label":"l","description":"d","part_of_speech":"verb","confidence":0.9,"member_indices":[0]}]}`)}, nil
	case "define_result":
		return llm.Result{Raw: json.RawMessage(`{"definitions":[{"text":"to move fast","part_of_speech":"verb","relevancy":1.0}]}`)}, nil
	default:
		return llm.Result{}, fmt.Errorf("component not stubbed: %s", req.SchemaName)
	}
}

func newTestPipeline(t *testing.T, clients []provider.Client, vocabulary []string, aiOn bool) (*Pipeline, int64) {
	t.Helper()

	c, err := cache.New(cache.Config{
		DiskPath: t.TempDir(),
		Namespaces: []cache.NamespaceConfig{
			{Name: "llm-response", MemoryLimit: 64, DiskResident: false},
			{Name: provider.CacheNamespace, MemoryLimit: 64, DiskResident: false},
			{Name: synthesize.EntryNamespace, MemoryLimit: 64, DiskResident: false},
			{Name: synthesize.LatestNamespace, MemoryLimit: 64, DiskResident: false},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	fetcher := provider.New(clients, nil, c)

	var cfg resolver.Config
	res := resolver.New(cfg, vocabulary, nil, nil, "")

	llmClient := llm.New(llm.Config{
		Tiers: map[llm.Tier]llm.TierConfig{
			llm.TierLow:    {Provider: &stubLLMProvider{}, Model: "stub-low"},
			llm.TierMedium: {Provider: &stubLLMProvider{}, Model: "stub-medium"},
			llm.TierHigh:   {Provider: &stubLLMProvider{}, Model: "stub-high"},
		},
		Templates: llm.NewTemplateRegistry(),
	}, c)

	synth, err := synthesize.New(synthesize.Config{
		LLM:   llmClient,
		Cache: c,
		ModelInfo: model.ModelInfo{
			Provider: "stub", Model: "stub-model", PromptVersion: "p1", PipelineVersion: synthesize.PipelineVersion,
		},
	})
	require.NoError(t, err)

	names := make([]string, 0, len(clients))
	for _, cl := range clients {
		names = append(names, cl.Name())
	}

	p := New(Config{
		Resolver:         res,
		Fetcher:          fetcher,
		Synthesizer:      synth,
		DefaultProviders: names,
		AIDefaultOn:      aiOn,
	})
	return p, 0
}

func TestPipeline_Run_FullLookupCompletes(t *testing.T) {
	clients := []provider.Client{
		&fakeProviderClient{name: "dictionaryapi", data: model.ProviderData{
			Provider: "dictionaryapi", Status: model.ProviderStatusOK,
			RawDefinitions: []model.RawDefinition{{Provider: "dictionaryapi", PartOfSpeech: "verb", Text: "to move quickly"}},
		}},
	}
	p, _ := newTestPipeline(t, clients, []string{"run"}, true)

	tracker := state.New("req-1", "run", state.CategoryLookup)
	sub := tracker.Subscribe(context.Background())

	entry, err := p.Run(context.Background(), Request{Query: "run"}, tracker)
	require.NoError(t, err)
	require.Len(t, entry.Definitions, 1)
	require.Equal(t, "to move fast", entry.Definitions[0].Text)

	var lastTerminal bool
	for {
		ev, ok := <-sub
		if !ok {
			break
		}
		lastTerminal = ev.Terminal
	}
	require.True(t, lastTerminal)
}

func TestPipeline_Run_NoCandidateIsNotFound(t *testing.T) {
	p, _ := newTestPipeline(t, nil, []string{"run"}, true)

	tracker := state.New("req-2", "zzzzqqqq", state.CategoryLookup)
	_, err := p.Run(context.Background(), Request{Query: "zzzzqqqq"}, tracker)
	require.Error(t, err)
	require.Equal(t, errs.NotFound, errs.KindOf(err))
	require.True(t, tracker.Snapshot().Terminal)
}

func TestPipeline_Run_NoUsableProviderDataIsUpstreamUnavailable(t *testing.T) {
	clients := []provider.Client{
		&fakeProviderClient{name: "dictionaryapi", data: model.ProviderData{Provider: "dictionaryapi", Status: model.ProviderStatusError, Err: "boom"}},
	}
	p, _ := newTestPipeline(t, clients, []string{"run"}, true)

	tracker := state.New("req-3", "run", state.CategoryLookup)
	_, err := p.Run(context.Background(), Request{Query: "run"}, tracker)
	require.Error(t, err)
	require.Equal(t, errs.UpstreamUnavailable, errs.KindOf(err))
}

func TestPipeline_Run_NoAIBuildsPassthroughWithoutLLMCalls(t *testing.T) {
	clients := []provider.Client{
		&fakeProviderClient{name: "dictionaryapi", data: model.ProviderData{
			Provider: "dictionaryapi", Status: model.ProviderStatusOK,
			RawDefinitions: []model.RawDefinition{{Provider: "dictionaryapi", PartOfSpeech: "verb", Text: "to move quickly"}},
		}},
	}
	p, _ := newTestPipeline(t, clients, []string{"run"}, true)

	tracker := state.New("req-4", "run", state.CategoryLookup)
	entry, err := p.Run(context.Background(), Request{Query: "run", NoAI: true}, tracker)
	require.NoError(t, err)
	require.Len(t, entry.Definitions, 1)
	require.Equal(t, "to move quickly", entry.Definitions[0].Text)
	require.Equal(t, "none", entry.ModelInfo.Provider)
}
