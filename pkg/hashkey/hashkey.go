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

// Package hashkey computes the canonical, content-addressable hashes the
// cache and synthesis pipeline use as keys: a 256-bit blake3 digest over a
// deterministically ordered tuple of fields, following the content-hash
// pattern in gloudx-ues's entity store.
package hashkey

import (
	"encoding/hex"
	"sort"

	"lukechampine.com/blake3"
)

// Hash is a 256-bit content hash, hex-encoded.
type Hash string

// Of hashes an arbitrary ordered list of fields into a stable Hash. Fields
// are joined with a separator that cannot appear in any well-formed field
// (a NUL byte), so distinct tuples never collide by concatenation.
func Of(fields ...string) Hash {
	h := blake3.New(32, nil)
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// OfSorted hashes a set of fields after sorting them, for callers that need
// order-independence (e.g. a provider set where fetch order is irrelevant).
func OfSorted(fields []string) Hash {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return Of(sorted...)
}

// Bytes computes a raw 256-bit blake3 digest of b, without hex encoding.
func Bytes(b []byte) []byte {
	h := blake3.New(32, nil)
	h.Write(b)
	return h.Sum(nil)
}

// CacheKey builds the canonical cache key for a namespaced tuple: the
// single hashing entry point every cache call site uses, so two callers
// that mean the same (namespace, parts...) always land on the same key
// and no decorator grows its own ad-hoc scheme. A zero-arg call still
// hashes to valid 256-bit hex, since Of hashes the empty field list.
func CacheKey(namespace string, parts ...string) Hash {
	return Of(append([]string{namespace}, parts...)...)
}

// Fingerprint computes a SynthesizedEntry's content fingerprint: a 256-bit
// hash over the provider set, the raw content hashes of every provider
// payload that fed the synthesis, and the model identity + pipeline
// version, so that any change to sources, model, or pipeline invalidates
// the cached result.
func Fingerprint(providerSet []string, rawContentHashes []string, modelIdentity, pipelineVersion string) Hash {
	fields := make([]string, 0, len(providerSet)+len(rawContentHashes)+2)
	sortedProviders := append([]string(nil), providerSet...)
	sort.Strings(sortedProviders)
	fields = append(fields, sortedProviders...)

	sortedHashes := append([]string(nil), rawContentHashes...)
	sort.Strings(sortedHashes)
	fields = append(fields, sortedHashes...)

	fields = append(fields, modelIdentity, pipelineVersion)
	return Of(fields...)
}
