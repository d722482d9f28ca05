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

// Package provider implements the fan-out provider fetcher: concurrent,
// rate-limited, per-provider-cached calls to external dictionary APIs,
// isolating any single provider's failure from the rest of the batch.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/hashkey"
	"github.com/mkbabb/lexserve/pkg/httpclient"
	"github.com/mkbabb/lexserve/pkg/model"
	"github.com/mkbabb/lexserve/pkg/observability"
	"github.com/mkbabb/lexserve/pkg/ratelimit"
)

// CacheNamespace is the cache namespace the fetcher writes raw provider
// responses to, per the fixed namespace table.
const CacheNamespace = "provider-raw"

// MinCacheTTL is the minimum per-provider cache TTL.
const MinCacheTTL = 24 * time.Hour

// Client fetches one provider's raw data for a word. Implementations own
// the wire format; the fetcher only sees ProviderData.
type Client interface {
	Name() string
	Host() string
	Fetch(ctx context.Context, word model.Word) (model.ProviderData, error)
}

// Fetcher fans a word lookup out across a set of configured provider
// clients, concurrently, with per-provider rate limiting and caching.
type Fetcher struct {
	clients map[string]Client
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	metrics *observability.Metrics
}

// New builds a Fetcher over the given clients, keyed by their Name().
func New(clients []Client, limiter *ratelimit.Limiter, c *cache.Cache) *Fetcher {
	byName := make(map[string]Client, len(clients))
	for _, cl := range clients {
		byName[cl.Name()] = cl
	}
	return &Fetcher{clients: byName, limiter: limiter, cache: c}
}

// WithMetrics attaches metrics recording to the fetcher, returning f for chaining.
func (f *Fetcher) WithMetrics(m *observability.Metrics) *Fetcher {
	f.metrics = m
	return f
}

// FetchAll fetches ProviderData from every named provider concurrently.
// A provider that isn't registered is recorded with an error rather than
// silently omitted, so callers can see it was requested. Results are
// sorted by provider identity for determinism regardless of arrival order.
func (f *Fetcher) FetchAll(ctx context.Context, word model.Word, providerNames []string) []model.ProviderData {
	return f.FetchAllWithProgress(ctx, word, providerNames, nil)
}

// FetchAllWithProgress is FetchAll plus a per-provider completion callback
// (onProvider), invoked as each provider's fetch returns, so a caller
// (the pipeline) can emit an SSE progress update per provider without
// waiting for the whole fan-out. onProvider may be nil.
func (f *Fetcher) FetchAllWithProgress(ctx context.Context, word model.Word, providerNames []string, onProvider func(model.ProviderData)) []model.ProviderData {
	results := make([]model.ProviderData, len(providerNames))

	var wg sync.WaitGroup
	for i, name := range providerNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			data := f.fetchOne(ctx, word, name)
			results[i] = data
			if onProvider != nil {
				onProvider(data)
			}
		}(i, name)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Provider < results[j].Provider })
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, word model.Word, name string) model.ProviderData {
	client, ok := f.clients[name]
	if !ok {
		return model.ProviderData{
			Provider:  name,
			Word:      word.Normalized,
			FetchedAt: time.Now(),
			Err:       fmt.Sprintf("unknown provider %q", name),
		}
	}

	key := string(hashkey.CacheKey(name, word.Normalized, word.Language))
	raw, err := f.cache.GetOrBuild(ctx, CacheNamespace, key, MinCacheTTL, func(ctx context.Context) ([]byte, error) {
		return f.fetchAndEncode(ctx, client, word)
	})
	if err != nil {
		return classifyError(name, word, err)
	}

	data, decErr := decodeProviderData(raw)
	if decErr != nil {
		return model.ProviderData{Provider: name, Word: word.Normalized, FetchedAt: time.Now(), Err: decErr.Error()}
	}
	return data
}

func (f *Fetcher) fetchAndEncode(ctx context.Context, client Client, word model.Word) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, client.Host()); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	data, err := client.Fetch(ctx, word)
	f.metrics.RecordProviderFetch(client.Name(), time.Since(start))
	if err != nil {
		if f.limiter != nil {
			if retryAfter, isRateLimit := rateLimitRetryAfter(err); isRateLimit {
				f.limiter.NotifyRateLimited(client.Host(), retryAfter)
			}
		}
		f.metrics.RecordProviderError(client.Name(), errorTypeOf(err))
		return nil, err
	}

	if f.limiter != nil {
		f.limiter.NotifySuccess(client.Host())
	}

	if len(data.RawContent) > 0 && data.ContentHash == "" {
		data.ContentHash = string(hashkey.Bytes(data.RawContent))
	}

	return encodeProviderData(data)
}

// classifyError turns a fetch-path error into a recorded ProviderData
// rather than propagating it, so one provider's failure never fails the
// batch. The HTTP status, when known via a *httpclient.RetryableError,
// is carried through so callers can tell rate_limited (429), transient
// (>=500), and permanent (other >=400) failures apart.
func classifyError(name string, word model.Word, err error) model.ProviderData {
	status := 0
	if retryable, ok := asRetryable(err); ok {
		status = retryable.StatusCode
	}
	return model.ProviderData{
		Provider:   name,
		Word:       word.Normalized,
		FetchedAt:  time.Now(),
		StatusCode: status,
		Err:        err.Error(),
	}
}

func asRetryable(err error) (*httpclient.RetryableError, bool) {
	re, ok := err.(*httpclient.RetryableError)
	return re, ok
}

// errorTypeOf labels a fetch error for the errors_total metric: the HTTP
// status class when known, otherwise a generic "fetch_error".
func errorTypeOf(err error) string {
	if re, ok := asRetryable(err); ok && re.StatusCode > 0 {
		return fmt.Sprintf("http_%d", re.StatusCode)
	}
	return "fetch_error"
}

func rateLimitRetryAfter(err error) (time.Duration, bool) {
	re, ok := asRetryable(err)
	if !ok || re.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	return re.RetryAfter, true
}

// encodeProviderData/decodeProviderData let the fetcher store ProviderData
// (including its error/status fields, not just a success payload) as the
// cache's opaque []byte, so a recorded permanent failure is cached too and
// doesn't re-hit a dead provider on every lookup within the TTL.
func encodeProviderData(data model.ProviderData) ([]byte, error) {
	return json.Marshal(data)
}

func decodeProviderData(raw []byte) (model.ProviderData, error) {
	var data model.ProviderData
	err := json.Unmarshal(raw, &data)
	return data, err
}
