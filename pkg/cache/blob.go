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

package cache

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/hashkey"
)

// BlobStore is the content-addressed external storage tier: payloads
// large enough that storing them inline in a CacheEntry would be wasteful
// are written here, keyed by their own content hash, and the CacheEntry
// records only the Location.
type BlobStore struct {
	disk *badger.DB
}

// NewBlobStore opens a blob tier backed by the same badger engine the
// namespaced cache uses, in a distinct key prefix.
func NewBlobStore(db *badger.DB) *BlobStore {
	return &BlobStore{disk: db}
}

// Blobs returns the cache's external blob tier, constructing it on first
// use against the same disk engine the namespaced cache already owns.
func (c *Cache) Blobs() *BlobStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blobs == nil {
		c.blobs = NewBlobStore(c.disk)
	}
	return c.blobs
}

const blobPrefix = "blob"

// Put stores content and returns its content-hash location.
func (b *BlobStore) Put(ctx context.Context, content []byte) (string, error) {
	h := hashkey.Of(string(content))
	key := string(hashkey.CacheKey(blobPrefix, string(h)))
	err := b.disk.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), content)
	})
	if err != nil {
		return "", errs.Wrap(errs.StorageError, "blob.Put", err)
	}
	return string(h), nil
}

// Get retrieves content by its location (content hash).
func (b *BlobStore) Get(ctx context.Context, location string) ([]byte, error) {
	key := string(hashkey.CacheKey(blobPrefix, location))
	var out []byte
	err := b.disk.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, errs.New(errs.NotFound, "blob.Get", "location not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "blob.Get", err)
	}
	return out, nil
}
