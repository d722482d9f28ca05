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
	"time"

	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/model"
)

// inlineThreshold is the largest encoded entry stored directly in a
// CacheEntry; anything bigger is written to the blob tier and the
// CacheEntry carries only a Location pointer.
const inlineThreshold = 16 * 1024

// latestPointerKey identifies the "latest entry" record for a
// (word, language, model tier) triple.
func latestPointerKey(word model.Word, info model.ModelInfo) string {
	return word.Normalized + ":" + word.Language + ":" + info.Identity()
}

// buildCacheEntry encodes entry and wraps it in a CacheEntry envelope,
// storing the payload inline when it fits under inlineThreshold and in
// the blob tier otherwise.
func (s *Synthesizer) buildCacheEntry(ctx context.Context, namespace, key string, entry model.SynthesizedEntry) (model.CacheEntry, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return model.CacheEntry{}, fmt.Errorf("encode entry: %w", err)
	}

	env := model.CacheEntry{
		Key:         key,
		Namespace:   namespace,
		Fingerprint: entry.Version.Fingerprint,
		CreatedAt:   time.Now(),
		Size:        int64(len(payload)),
	}

	if len(payload) <= inlineThreshold {
		env.Mode = model.StorageInline
		env.Inline = payload
		return env, nil
	}

	location, err := s.cache.Blobs().Put(ctx, payload)
	if err != nil {
		return model.CacheEntry{}, fmt.Errorf("write blob: %w", err)
	}
	env.Mode = model.StorageExternal
	env.Location = location
	return env, nil
}

// readCacheEntry materializes a SynthesizedEntry from the CacheEntry
// envelope stored at namespace/key. For a StorageExternal envelope whose
// blob is missing, the pointer itself is deleted and the read is treated
// as a miss: content_location exists but its blob doesn't, so the dangling
// pointer can't be trusted and self-heals rather than surfacing an error.
func (s *Synthesizer) readCacheEntry(ctx context.Context, namespace, key string) (model.SynthesizedEntry, bool, error) {
	raw, ok, err := s.cache.Get(ctx, namespace, key)
	if err != nil {
		return model.SynthesizedEntry{}, false, fmt.Errorf("synthesize: lookup %s: %w", namespace, err)
	}
	if !ok {
		return model.SynthesizedEntry{}, false, nil
	}

	var env model.CacheEntry
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.SynthesizedEntry{}, false, fmt.Errorf("synthesize: decode cache entry: %w", err)
	}

	payload := env.Inline
	if env.Mode == model.StorageExternal {
		blob, err := s.cache.Blobs().Get(ctx, env.Location)
		if err != nil {
			if errs.KindOf(err) == errs.NotFound {
				_ = s.cache.Delete(ctx, namespace, key)
				return model.SynthesizedEntry{}, false, nil
			}
			return model.SynthesizedEntry{}, false, fmt.Errorf("synthesize: fetch blob: %w", err)
		}
		payload = blob
	}

	var entry model.SynthesizedEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return model.SynthesizedEntry{}, false, fmt.Errorf("synthesize: decode entry payload: %w", err)
	}
	return entry, true, nil
}

// lookupByFingerprint returns the already-published entry for a
// fingerprint, if one exists — the fast path that lets Synthesize skip
// clustering/synthesis/enhancement entirely when nothing about the
// inputs or model identity has changed. A fingerprint-keyed entry is
// content-addressed and authoritative once published: its content never
// changes, so readCacheEntry's blob-presence check is the only
// validation it needs, with no re-check against anything else.
func (s *Synthesizer) lookupByFingerprint(ctx context.Context, fingerprint string) (model.SynthesizedEntry, bool, error) {
	return s.readCacheEntry(ctx, EntryNamespace, fingerprint)
}

// publish writes the entry under its version-specific fingerprint key and
// then updates the "latest for (word, model tier)" pointer, each as its
// own CacheEntry envelope (inline or blob-backed, by size). The two
// writes aren't transactional — pkg/cache has no multi-key transaction
// primitive — so a reader racing the second write may briefly see a
// "latest" pointer one version behind an already-durable fingerprinted
// entry, never the reverse; readers that need the absolute latest should
// re-check after a miss rather than assume atomicity across the two keys.
func (s *Synthesizer) publish(ctx context.Context, entry model.SynthesizedEntry) error {
	fpEnv, err := s.buildCacheEntry(ctx, EntryNamespace, entry.Version.Fingerprint, entry)
	if err != nil {
		return err
	}
	fpEncoded, err := json.Marshal(fpEnv)
	if err != nil {
		return fmt.Errorf("encode fingerprinted envelope: %w", err)
	}
	if err := s.cache.Set(ctx, EntryNamespace, entry.Version.Fingerprint, fpEncoded, 0); err != nil {
		return fmt.Errorf("write fingerprinted entry: %w", err)
	}

	pointerKey := latestPointerKey(entry.Word, entry.ModelInfo)
	latestEnv, err := s.buildCacheEntry(ctx, LatestNamespace, pointerKey, entry)
	if err != nil {
		return err
	}
	latestEncoded, err := json.Marshal(latestEnv)
	if err != nil {
		return fmt.Errorf("encode latest envelope: %w", err)
	}
	if err := s.cache.Set(ctx, LatestNamespace, pointerKey, latestEncoded, 0); err != nil {
		return fmt.Errorf("write latest pointer: %w", err)
	}

	return nil
}

// LatestForWord returns the most recently published entry for a
// (word, language) pair under the synthesizer's configured model tier, if
// one exists. Unlike lookupByFingerprint, the "latest" pointer is
// revalidated against the fingerprinted store on every read: it can point
// at a fingerprint that has since been evicted from EntryNamespace
// independently of this read, so a dangling pointer must be treated as a
// miss (and self-heal) rather than trusted outright.
func (s *Synthesizer) LatestForWord(ctx context.Context, word model.Word) (model.SynthesizedEntry, bool, error) {
	pointerKey := latestPointerKey(word, s.modelInfo)
	entry, ok, err := s.readCacheEntry(ctx, LatestNamespace, pointerKey)
	if err != nil || !ok {
		return entry, ok, err
	}

	if _, stillCurrent, err := s.cache.Get(ctx, EntryNamespace, entry.Version.Fingerprint); err != nil {
		return model.SynthesizedEntry{}, false, fmt.Errorf("synthesize: revalidate latest: %w", err)
	} else if !stillCurrent {
		_ = s.cache.Delete(ctx, LatestNamespace, pointerKey)
		return model.SynthesizedEntry{}, false, nil
	}

	return entry, true, nil
}
