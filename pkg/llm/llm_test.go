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
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkbabb/lexserve/pkg/cache"
)

func TestMaxCompletionTokens_SmallRequestHitsFloor(t *testing.T) {
	require.Equal(t, minCompletionTokenBudget, MaxCompletionTokens(10)) // 10*30=300 < floor
	require.Equal(t, minCompletionTokenBudget, MaxCompletionTokens(50)) // 50*30=1500 < floor
}

func TestMaxCompletionTokens_LargeRequestUsesLowerMultiplier(t *testing.T) {
	require.Equal(t, minCompletionTokenBudget, MaxCompletionTokens(51)) // 51*15=765 < floor
	require.Equal(t, 1000*15, MaxCompletionTokens(1000))
}

func TestOutputTokenBudget_LegacyPassesThrough(t *testing.T) {
	require.Equal(t, 200, outputTokenBudget(CompletionStyleLegacy, 200))
}

func TestOutputTokenBudget_ReasoningAppliesFormula(t *testing.T) {
	require.Equal(t, MaxCompletionTokens(200), outputTokenBudget(CompletionStyleReasoning, 200))
}

func TestTemplateRegistry_RenderAndIdentity(t *testing.T) {
	reg := NewTemplateRegistry()
	require.NoError(t, reg.Register("cluster", 1, "Cluster these for {{.Word}}: {{.Count}} definitions."))

	rendered, version, err := reg.Render("cluster", map[string]any{"Word": "run", "Count": 5})
	require.NoError(t, err)
	require.Equal(t, 1, version)
	require.Equal(t, "Cluster these for run: 5 definitions.", rendered)

	identity, err := reg.Identity("cluster")
	require.NoError(t, err)
	require.Equal(t, "cluster@v1", identity)
}

func TestTemplateRegistry_RenderUnknownTemplateErrors(t *testing.T) {
	reg := NewTemplateRegistry()
	_, _, err := reg.Render("missing", nil)
	require.Error(t, err)
}

// fakeProvider counts invocations so the client's cache/coalescing can be
// verified without a real network call.
type fakeProvider struct {
	calls int64
	style CompletionStyle
}

func (f *fakeProvider) Name() string                      { return "fake" }
func (f *fakeProvider) CompletionStyle() CompletionStyle  { return f.style }
func (f *fakeProvider) ChatStructured(ctx context.Context, req Request, maxOutputTokens int) (Result, error) {
	atomic.AddInt64(&f.calls, 1)
	return Result{Raw: json.RawMessage(`{"ok":true}`), Usage: Usage{TotalTokens: maxOutputTokens}}, nil
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(cache.Config{
		DiskPath: t.TempDir(),
		Namespaces: []cache.NamespaceConfig{
			{Name: CacheNamespace, MemoryLimit: 64, DiskResident: false},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_ChatStructured_CachesIdenticalRequests(t *testing.T) {
	reg := NewTemplateRegistry()
	require.NoError(t, reg.Register("define", 1, "Define {{.Word}}."))

	fp := &fakeProvider{}
	client := New(Config{
		Tiers:     map[Tier]TierConfig{TierLow: {Provider: fp, Model: "fake-model"}},
		Templates: reg,
	}, newTestCache(t))

	req := ChatStructuredRequest{
		Template:        "define",
		Vars:            map[string]any{"Word": "hello"},
		SchemaName:      "definition",
		Tier:            TierLow,
		RequestedTokens: 40,
	}

	r1, err := client.ChatStructured(context.Background(), req)
	require.NoError(t, err)
	r2, err := client.ChatStructured(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, r1, r2)
	require.EqualValues(t, 1, fp.calls, "second identical request should hit the cache, not the provider")
}

func TestClient_ChatStructured_UnknownTierErrors(t *testing.T) {
	reg := NewTemplateRegistry()
	client := New(Config{Tiers: map[Tier]TierConfig{}, Templates: reg}, newTestCache(t))

	_, err := client.ChatStructured(context.Background(), ChatStructuredRequest{Tier: TierHigh})
	require.Error(t, err)

	var tierErr *ErrNoProviderForTier
	require.ErrorAs(t, err, &tierErr)
}
