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
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
)

// fakeLLMProvider returns a canned structured response keyed by the
// request's SchemaName, so a single stub stands in for the cluster,
// define, and every enhancement-component call.
type fakeLLMProvider struct {
	calls int64
}

func (f *fakeLLMProvider) Name() string                    { return "fake" }
func (f *fakeLLMProvider) CompletionStyle() llm.CompletionStyle { return llm.CompletionStyleLegacy }

func (f *fakeLLMProvider) ChatStructured(ctx context.Context, req llm.Request, maxOutputTokens int) (llm.Result, error) {
	atomic.AddInt64(&f.calls, 1)

	switch {
	case req.SchemaName == "cluster_result":
		return llm.Result{Raw: json.RawMessage(`{
			"clusters": [
				{"id": "c1", "label": "move quickly", "description": "to move at speed", "part_of_speech": "verb", "confidence": 0.9, "member_indices": [0, 1]}
			]
		}`)}, nil
	case req.SchemaName == "define_result":
		return llm.Result{Raw: json.RawMessage(`{
			"definitions": [
				{"text": "to move swiftly on foot", "part_of_speech": "verb", "relevancy": 1.0}
			]
		}`)}, nil
	case req.SchemaName == "examples_result":
		return llm.Result{Raw: json.RawMessage(`{"generated": ["She ran to the store."], "literature": []}`)}, nil
	case strings.HasSuffix(req.SchemaName, "_result"):
		// Every remaining component is either a string or string-slice
		// shape; tell them apart from the schema body itself.
		if strings.Contains(string(req.Schema), `"values"`) {
			return llm.Result{Raw: json.RawMessage(`{"values": ["alpha", "beta"]}`)}, nil
		}
		return llm.Result{Raw: json.RawMessage(`{"value": "stub"}`)}, nil
	default:
		return llm.Result{}, fmt.Errorf("unexpected schema name %q", req.SchemaName)
	}
}

func newTestSynthesizer(t *testing.T) (*Synthesizer, *fakeLLMProvider) {
	t.Helper()

	c, err := cache.New(cache.Config{
		DiskPath: t.TempDir(),
		Namespaces: []cache.NamespaceConfig{
			{Name: "llm-response", MemoryLimit: 256, DiskResident: false},
			{Name: EntryNamespace, MemoryLimit: 256, DiskResident: false},
			{Name: LatestNamespace, MemoryLimit: 256, DiskResident: false},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	fake := &fakeLLMProvider{}
	client := llm.New(llm.Config{
		Tiers: map[llm.Tier]llm.TierConfig{
			llm.TierLow:    {Provider: fake, Model: "fake-low"},
			llm.TierMedium: {Provider: fake, Model: "fake-medium"},
			llm.TierHigh:   {Provider: fake, Model: "fake-high"},
		},
		Templates: llm.NewTemplateRegistry(),
	}, c)

	s, err := New(Config{
		LLM:       client,
		Cache:     c,
		ModelInfo: model.ModelInfo{Provider: "fake", Model: "fake-model", PromptVersion: "p1", PipelineVersion: PipelineVersion},
	})
	require.NoError(t, err)

	return s, fake
}

func testProviderData() []model.ProviderData {
	return []model.ProviderData{
		{
			Provider:    "dictionaryapi",
			Word:        "run",
			ContentHash: "hash-1",
			Status:      model.ProviderStatusOK,
			RawDefinitions: []model.RawDefinition{
				{Provider: "dictionaryapi", PartOfSpeech: "verb", Text: "to move at a speed faster than a walk"},
				{Provider: "dictionaryapi", PartOfSpeech: "verb", Text: "to move swiftly on foot"},
			},
		},
	}
}

func TestSynthesizer_Synthesize_FullPipeline(t *testing.T) {
	s, fake := newTestSynthesizer(t)

	entry, err := s.Synthesize(context.Background(), Request{
		Word:         model.Word{Surface: "run", Normalized: "run"},
		ProviderData: testProviderData(),
	}, nil)
	require.NoError(t, err)

	require.Len(t, entry.Definitions, 1)
	require.Equal(t, "to move swiftly on foot", entry.Definitions[0].Text)
	require.Equal(t, "verb", entry.Definitions[0].PartOfSpeech)
	require.NotEmpty(t, entry.Definitions[0].ID)
	require.Equal(t, "run", entry.Definitions[0].WordRef)

	// Word-scoped enhancement applied.
	require.Equal(t, "stub", entry.Pronunciation)
	require.Equal(t, "stub", entry.Etymology)
	require.ElementsMatch(t, []string{"alpha", "beta"}, entry.WordForms)

	// Definition-scoped enhancement applied.
	require.ElementsMatch(t, []string{"alpha", "beta"}, entry.Definitions[0].Synonyms)
	require.Equal(t, []string{"She ran to the store."}, entry.Definitions[0].Examples.Generated)

	require.NotEmpty(t, entry.Version.Fingerprint)
	require.Contains(t, entry.ModelInfo.Succeeded, "pronunciation")

	require.Greater(t, atomic.LoadInt64(&fake.calls), int64(0))
}

func TestSynthesizer_Synthesize_FingerprintHitSkipsLLM(t *testing.T) {
	s, fake := newTestSynthesizer(t)

	req := Request{
		Word:         model.Word{Surface: "run", Normalized: "run"},
		ProviderData: testProviderData(),
	}

	_, err := s.Synthesize(context.Background(), req, nil)
	require.NoError(t, err)

	callsAfterFirst := atomic.LoadInt64(&fake.calls)
	require.Greater(t, callsAfterFirst, int64(0))

	entry2, err := s.Synthesize(context.Background(), req, nil)
	require.NoError(t, err)

	require.Equal(t, callsAfterFirst, atomic.LoadInt64(&fake.calls), "a fingerprint hit should skip cluster/synthesize/enhance entirely")
	require.Equal(t, "to move swiftly on foot", entry2.Definitions[0].Text)
}

func TestSynthesizer_Synthesize_ForceRefreshRecomputes(t *testing.T) {
	s, fake := newTestSynthesizer(t)

	req := Request{
		Word:         model.Word{Surface: "run", Normalized: "run"},
		ProviderData: testProviderData(),
	}

	_, err := s.Synthesize(context.Background(), req, nil)
	require.NoError(t, err)
	callsAfterFirst := atomic.LoadInt64(&fake.calls)

	req.ForceRefresh = true
	_, err = s.Synthesize(context.Background(), req, nil)
	require.NoError(t, err)

	require.Greater(t, atomic.LoadInt64(&fake.calls), callsAfterFirst, "force_refresh must bypass the synthesized-entry cache")
}

func TestSynthesizer_Synthesize_NoUsableProviderDataErrors(t *testing.T) {
	s, _ := newTestSynthesizer(t)

	_, err := s.Synthesize(context.Background(), Request{
		Word:         model.Word{Surface: "zzz", Normalized: "zzz"},
		ProviderData: []model.ProviderData{{Provider: "dictionaryapi", Word: "zzz", Err: "word not found"}},
	}, nil)
	require.Error(t, err)
}

func TestSynthesizer_Synthesize_EnhancementFailureIsNonFatal(t *testing.T) {
	s, fake := newTestSynthesizer(t)
	failingFake := &failingAfterNProvider{fakeLLMProvider: fake, failFrom: 2}

	client := llm.New(llm.Config{
		Tiers: map[llm.Tier]llm.TierConfig{
			llm.TierLow:    {Provider: failingFake, Model: "fake-low"},
			llm.TierMedium: {Provider: failingFake, Model: "fake-medium"},
			llm.TierHigh:   {Provider: failingFake, Model: "fake-high"},
		},
		Templates: llm.NewTemplateRegistry(),
	}, s.cache)
	s2, err := New(Config{LLM: client, Cache: s.cache, ModelInfo: s.modelInfo})
	require.NoError(t, err)

	entry, err := s2.Synthesize(context.Background(), Request{
		Word:         model.Word{Surface: "walk", Normalized: "walk"},
		ProviderData: testProviderData(),
	}, nil)
	require.NoError(t, err, "enhancement failures must not fail Synthesize")
	require.Len(t, entry.Definitions, 1, "clustering/definition synthesis must still have succeeded")
}

// failingAfterNProvider lets every call through the Nth call succeed (to
// get past clustering/definition synthesis, which are fatal) then fails
// every call after it, to exercise enhancement's per-component tolerance.
type failingAfterNProvider struct {
	*fakeLLMProvider
	failFrom int64
	seen     int64
}

func (f *failingAfterNProvider) ChatStructured(ctx context.Context, req llm.Request, maxOutputTokens int) (llm.Result, error) {
	n := atomic.AddInt64(&f.seen, 1)
	if n > f.failFrom {
		return llm.Result{}, fmt.Errorf("simulated enhancement failure")
	}
	return f.fakeLLMProvider.ChatStructured(ctx, req, maxOutputTokens)
}
