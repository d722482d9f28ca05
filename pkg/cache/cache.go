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

// Package cache implements the namespaced, two-tier content cache: an
// in-process LRU tier (github.com/hashicorp/golang-lru/v2) backed by a
// disk tier (github.com/dgraph-io/badger/v4), following the Cache
// interface shape of the blueberrycongee-llmux cache package and the
// BadgerDB blockstore pattern from gloudx-ues's entity store. A single
// lock guards the in-flight builder map so GetOrBuild gives
// at-most-one-builder coalescing per key. Memory-tier eviction is
// size-based LRU, done by golang-lru as entries are added; no background
// goroutine runs.
package cache

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"

	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/hashkey"
	"github.com/mkbabb/lexserve/pkg/observability"
)

// Compression selects the disk-tier compression codec.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionLZ4  Compression = "lz4"
)

// NamespaceConfig is one entry of the config-driven namespace table:
// namespace -> size class -> derived memory_limit/ttl, as required by the
// "configuration is data-driven" design note.
type NamespaceConfig struct {
	Name         string        `yaml:"name"`
	MemoryLimit  int           `yaml:"memory_limit"`
	TTL          time.Duration `yaml:"ttl"`
	Compression  Compression   `yaml:"compression"`
	DiskResident bool          `yaml:"disk_resident"`
}

// Config configures the Cache.
type Config struct {
	DiskPath   string            `yaml:"disk_path"`
	Namespaces []NamespaceConfig `yaml:"namespaces"`

	// Metrics is optional; a nil value disables cache instrumentation.
	Metrics *observability.Metrics `yaml:"-"`
}

type namespaceState struct {
	cfg NamespaceConfig
	mem *lru.Cache[string, []byte]
}

// Cache is the namespaced two-tier cache.
type Cache struct {
	disk *badger.DB

	mu         sync.RWMutex
	namespaces map[string]*namespaceState

	inflightMu sync.Mutex
	inflight   map[string]*inflightBuilder

	blobs *BlobStore

	stats   Stats
	metrics *observability.Metrics
}

type inflightBuilder struct {
	done    chan struct{}
	val     []byte
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Stats mirrors the hit/miss/set accounting the other_examples cache
// interface exposes, extended with coalesce counts.
type Stats struct {
	mu        sync.Mutex
	Hits      int64
	Misses    int64
	Sets      int64
	Coalesced int64
}

func (s *Stats) hit()       { s.mu.Lock(); s.Hits++; s.mu.Unlock() }
func (s *Stats) miss()      { s.mu.Lock(); s.Misses++; s.mu.Unlock() }
func (s *Stats) set()       { s.mu.Lock(); s.Sets++; s.mu.Unlock() }
func (s *Stats) coalesced() { s.mu.Lock(); s.Coalesced++; s.mu.Unlock() }

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Hits: s.Hits, Misses: s.Misses, Sets: s.Sets, Coalesced: s.Coalesced}
}

// New opens the disk tier and builds the configured namespace memory tiers.
func New(cfg Config) (*Cache, error) {
	opts := badger.DefaultOptions(cfg.DiskPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "cache.New", err)
	}

	c := &Cache{
		disk:       db,
		namespaces: make(map[string]*namespaceState),
		inflight:   make(map[string]*inflightBuilder),
		metrics:    cfg.Metrics,
	}

	for _, ns := range cfg.Namespaces {
		if err := c.addNamespace(ns); err != nil {
			db.Close()
			return nil, err
		}
	}

	return c, nil
}

func (c *Cache) addNamespace(ns NamespaceConfig) error {
	limit := ns.MemoryLimit
	if limit <= 0 {
		limit = 1024
	}
	mem, err := lru.NewWithEvict[string, []byte](limit, func(key string, value []byte) {
		c.metrics.RecordCacheEviction(ns.Name)
	})
	if err != nil {
		return errs.Wrap(errs.Internal, "cache.addNamespace", err)
	}

	c.mu.Lock()
	c.namespaces[ns.Name] = &namespaceState{cfg: ns, mem: mem}
	c.mu.Unlock()
	return nil
}

func (c *Cache) namespace(name string) *namespaceState {
	c.mu.RLock()
	ns, ok := c.namespaces[name]
	c.mu.RUnlock()
	if ok {
		return ns
	}
	// Unconfigured namespaces fall back to a small default memory tier
	// and no disk residency, rather than failing the request.
	c.mu.Lock()
	defer c.mu.Unlock()
	if ns, ok := c.namespaces[name]; ok {
		return ns
	}
	mem, _ := lru.New[string, []byte](256)
	ns = &namespaceState{cfg: NamespaceConfig{Name: name, TTL: time.Hour}, mem: mem}
	c.namespaces[name] = ns
	return ns
}

// Get returns the raw bytes for namespace/key, checking the memory tier
// before falling back to disk.
func (c *Cache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	ns := c.namespace(namespace)
	full := string(hashkey.CacheKey(namespace, key))

	if v, ok := ns.mem.Get(full); ok {
		c.stats.hit()
		c.metrics.RecordCacheHit(namespace)
		return v, true, nil
	}

	if ns.cfg.DiskResident {
		var raw []byte
		err := c.disk.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(full))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				raw = append([]byte(nil), val...)
				return nil
			})
		})
		if err == nil {
			decoded, derr := decode(raw, ns.cfg.Compression)
			if derr != nil {
				return nil, false, errs.Wrap(errs.CorruptedCache, "cache.Get", derr)
			}
			ns.mem.Add(full, decoded)
			c.stats.hit()
			c.metrics.RecordCacheHit(namespace)
			return decoded, true, nil
		}
		if err != badger.ErrKeyNotFound {
			return nil, false, errs.Wrap(errs.StorageError, "cache.Get", err)
		}
	}

	c.stats.miss()
	c.metrics.RecordCacheMiss(namespace)
	return nil, false, nil
}

// Set writes value into the memory tier and, if the namespace is disk
// resident, the compressed disk tier with a TTL.
func (c *Cache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	ns := c.namespace(namespace)
	full := string(hashkey.CacheKey(namespace, key))

	ns.mem.Add(full, value)

	if ns.cfg.DiskResident {
		encoded, err := encode(value, ns.cfg.Compression)
		if err != nil {
			return errs.Wrap(errs.StorageError, "cache.Set", err)
		}
		if ttl <= 0 {
			ttl = ns.cfg.TTL
		}
		err = c.disk.Update(func(txn *badger.Txn) error {
			entry := badger.NewEntry([]byte(full), encoded)
			if ttl > 0 {
				entry = entry.WithTTL(ttl)
			}
			return txn.SetEntry(entry)
		})
		if err != nil {
			return errs.Wrap(errs.StorageError, "cache.Set", err)
		}
	}

	c.stats.set()
	c.metrics.RecordCacheWrite(namespace)
	return nil
}

// Delete removes a key from both tiers.
func (c *Cache) Delete(ctx context.Context, namespace, key string) error {
	ns := c.namespace(namespace)
	full := string(hashkey.CacheKey(namespace, key))
	ns.mem.Remove(full)
	if ns.cfg.DiskResident {
		if err := c.disk.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(full))
		}); err != nil {
			return errs.Wrap(errs.StorageError, "cache.Delete", err)
		}
	}
	return nil
}

// Builder produces the bytes to cache for a key on a miss.
type Builder func(ctx context.Context) ([]byte, error)

// GetOrBuild is the at-most-one-builder coalescing primitive: concurrent
// callers for the same namespace/key block on a single in-flight Builder
// invocation rather than each invoking it, matching spec's get_or_build
// semantics. The build itself runs against a context detached from any one
// caller: a waiter walking away from its own request context must not tear
// down work the rest of the waiters are still blocked on. The build's
// context is only cancelled once every waiter -- including whichever
// caller happened to start it -- has given up.
func (c *Cache) GetOrBuild(ctx context.Context, namespace, key string, ttl time.Duration, build Builder) ([]byte, error) {
	if v, ok, err := c.Get(ctx, namespace, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}

	full := string(hashkey.CacheKey(namespace, key))

	c.inflightMu.Lock()
	if b, ok := c.inflight[full]; ok {
		b.waiters++
		c.inflightMu.Unlock()
		c.stats.coalesced()
		defer c.releaseWaiter(b)
		select {
		case <-b.done:
			return b.val, b.err
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Cancelled, "cache.GetOrBuild", ctx.Err())
		}
	}

	buildCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b := &inflightBuilder{done: make(chan struct{}), waiters: 1, cancel: cancel}
	c.inflight[full] = b
	c.inflightMu.Unlock()
	defer c.releaseWaiter(b)

	go func() {
		val, err := build(buildCtx)
		if err == nil {
			_ = c.Set(buildCtx, namespace, key, val, ttl)
		}

		c.inflightMu.Lock()
		delete(c.inflight, full)
		c.inflightMu.Unlock()

		b.val, b.err = val, err
		close(b.done)
		cancel()
	}()

	select {
	case <-b.done:
		return b.val, b.err
	case <-ctx.Done():
		return nil, errs.Wrap(errs.Cancelled, "cache.GetOrBuild", ctx.Err())
	}
}

// releaseWaiter drops a caller's hold on an in-flight build, cancelling the
// build's detached context once nobody is left waiting on it.
func (c *Cache) releaseWaiter(b *inflightBuilder) {
	c.inflightMu.Lock()
	b.waiters--
	abandoned := b.waiters <= 0
	c.inflightMu.Unlock()
	if abandoned {
		b.cancel()
	}
}

// Close releases the disk tier.
func (c *Cache) Close() error {
	return c.disk.Close()
}

func encode(value []byte, codec Compression) ([]byte, error) {
	switch codec {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(value); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(value); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return value, nil
	}
}

func decode(raw []byte, codec Compression) ([]byte, error) {
	switch codec {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(raw))
		return io.ReadAll(r)
	default:
		return raw, nil
	}
}
