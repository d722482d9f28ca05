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

package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
	"github.com/mkbabb/lexserve/pkg/pipeline"
	"github.com/mkbabb/lexserve/pkg/provider"
	"github.com/mkbabb/lexserve/pkg/resolver"
	"github.com/mkbabb/lexserve/pkg/synthesize"
)

type fakeProviderClient struct {
	name string
	data model.ProviderData
}

func (f *fakeProviderClient) Name() string { return f.name }
func (f *fakeProviderClient) Host() string { return "fake.test" }
func (f *fakeProviderClient) Fetch(ctx context.Context, word model.Word) (model.ProviderData, error) {
	return f.data, nil
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

func newTestServer(t *testing.T, vocabulary []string) *Server {
	t.Helper()

	c, err := cache.New(cache.Config{
		DiskPath: t.TempDir(),
		Namespaces: []cache.NamespaceConfig{
			{Name: "llm-response", MemoryLimit: 64},
			{Name: provider.CacheNamespace, MemoryLimit: 64},
			{Name: synthesize.EntryNamespace, MemoryLimit: 64},
			{Name: synthesize.LatestNamespace, MemoryLimit: 64},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	clients := []provider.Client{
		&fakeProviderClient{name: "dictionaryapi", data: model.ProviderData{
			Provider: "dictionaryapi", Status: model.ProviderStatusOK,
			RawDefinitions: []model.RawDefinition{{Provider: "dictionaryapi", PartOfSpeech: "verb", Text: "to move quickly"}},
		}},
	}
	fetcher := provider.New(clients, nil, c)

	var rcfg resolver.Config
	res := resolver.New(rcfg, vocabulary, nil, nil, "")

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

	p := pipeline.New(pipeline.Config{
		Resolver:         res,
		Fetcher:          fetcher,
		Synthesizer:      synth,
		DefaultProviders: []string{"dictionaryapi"},
		AIDefaultOn:      true,
	})

	return New(Config{Pipeline: p, Resolver: res})
}

func TestServer_HandleLookup_Success(t *testing.T) {
	s := newTestServer(t, []string{"run"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lookup/run", nil)
	s.router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var entry model.SynthesizedEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entry))
	require.Len(t, entry.Definitions, 1)
	require.Equal(t, "to move fast", entry.Definitions[0].Text)
}

func TestServer_HandleLookup_NotFoundReturns404WithKind(t *testing.T) {
	s := newTestServer(t, []string{"run"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lookup/zzzzqqqq", nil)
	s.router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "not_found", body.Kind)
}

func TestServer_HandleLookupStream_EndsWithComplete(t *testing.T) {
	s := newTestServer(t, []string{"run"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lookup/run/stream", nil)
	s.router().ServeHTTP(rr, req)

	body := rr.Body.String()
	require.Contains(t, body, "event: config")
	require.Contains(t, body, "event: complete")
	require.NotContains(t, body, "event: error")

	lastEvent := ""
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			lastEvent = strings.TrimPrefix(line, "event: ")
		}
	}
	require.Equal(t, "complete", lastEvent)
}

func TestServer_HandleSearch(t *testing.T) {
	s := newTestServer(t, []string{"run", "ran", "runner"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/search?q=run", nil)
	s.router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var results []searchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.NotEmpty(t, results)
}

func TestServer_HandleHealthz(t *testing.T) {
	s := newTestServer(t, []string{"run"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body healthBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
}

func TestServer_ShuttingDownRefusesNewRequests(t *testing.T) {
	s := newTestServer(t, []string{"run"})
	s.shuttingDown.Store(true)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lookup/run", nil)
	s.router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "shutting_down", body.Kind)
}
