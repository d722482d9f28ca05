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

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/model"
	"github.com/mkbabb/lexserve/pkg/ratelimit"
)

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

func newTestLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{Enabled: false})
}

func TestFetcher_FetchAll_SingleProviderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"word":"hello"}]`))
	}))
	defer srv.Close()

	client, err := NewRESTClient(RESTConfig{Name: "dictionaryapi", BaseURL: srv.URL})
	require.NoError(t, err)

	fetcher := New([]Client{client}, newTestLimiter(), newTestCache(t))
	results := fetcher.FetchAll(context.Background(), model.Word{Surface: "Hello", Normalized: "hello"}, []string{"dictionaryapi"})

	require.Len(t, results, 1)
	require.Equal(t, "dictionaryapi", results[0].Provider)
	require.Equal(t, http.StatusOK, results[0].StatusCode)
	require.Empty(t, results[0].Err)
	require.NotEmpty(t, results[0].ContentHash)
}

func TestFetcher_FetchAll_IsolatesFailingProvider(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"word":"world"}]`))
	}))
	defer ok.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	okClient, err := NewRESTClient(RESTConfig{Name: "ok", BaseURL: ok.URL})
	require.NoError(t, err)
	brokenClient, err := NewRESTClient(RESTConfig{Name: "broken", BaseURL: broken.URL})
	require.NoError(t, err)

	fetcher := New([]Client{okClient, brokenClient}, newTestLimiter(), newTestCache(t))
	results := fetcher.FetchAll(context.Background(), model.Word{Normalized: "world"}, []string{"broken", "ok"})

	require.Len(t, results, 2)
	// sorted by provider identity: "broken" < "ok"
	require.Equal(t, "broken", results[0].Provider)
	require.NotEmpty(t, results[0].Err)
	require.Equal(t, "ok", results[1].Provider)
	require.Empty(t, results[1].Err)
}

func TestFetcher_FetchAll_UnknownProviderRecordsError(t *testing.T) {
	fetcher := New(nil, newTestLimiter(), newTestCache(t))
	results := fetcher.FetchAll(context.Background(), model.Word{Normalized: "ghost"}, []string{"nonexistent"})

	require.Len(t, results, 1)
	require.Equal(t, "nonexistent", results[0].Provider)
	require.Contains(t, results[0].Err, "unknown provider")
}

func TestFetcher_FetchAll_NotFoundIsRecordedNotErrored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewRESTClient(RESTConfig{Name: "dictionaryapi", BaseURL: srv.URL})
	require.NoError(t, err)

	fetcher := New([]Client{client}, newTestLimiter(), newTestCache(t))
	results := fetcher.FetchAll(context.Background(), model.Word{Normalized: "zzznotaword"}, []string{"dictionaryapi"})

	require.Len(t, results, 1)
	require.Equal(t, http.StatusNotFound, results[0].StatusCode)
	require.Equal(t, "word not found", results[0].Err)
}

func TestRESTClient_RequestURL_PathAppend(t *testing.T) {
	client, err := NewRESTClient(RESTConfig{Name: "p", BaseURL: "https://api.dictionaryapi.dev/api/v2/entries/en"})
	require.NoError(t, err)
	rc := client.(*restClient)
	require.Equal(t,
		"https://api.dictionaryapi.dev/api/v2/entries/en/hello",
		rc.requestURL(model.Word{Normalized: "hello"}),
	)
}

func TestRESTClient_RequestURL_PlaceholderTemplate(t *testing.T) {
	client, err := NewRESTClient(RESTConfig{Name: "p", BaseURL: "https://example.com/dict/{word}/definitions"})
	require.NoError(t, err)
	rc := client.(*restClient)
	require.Equal(t,
		"https://example.com/dict/hello/definitions",
		rc.requestURL(model.Word{Normalized: "hello"}),
	)
}
