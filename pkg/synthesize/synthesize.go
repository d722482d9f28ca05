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

// Package synthesize turns a word's fan-out ProviderData into a single
// SynthesizedEntry: cluster raw definitions by sense, synthesize one or
// more canonical definitions per cluster, parallel-enhance word- and
// definition-scoped components, and write the result through the
// content-addressable cache under its fingerprint.
package synthesize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mkbabb/lexserve/pkg/cache"
	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/hashkey"
	"github.com/mkbabb/lexserve/pkg/llm"
	"github.com/mkbabb/lexserve/pkg/model"
)

// EntryNamespace holds entries keyed by their content fingerprint —
// the version-specific, content-addressable store.
const EntryNamespace = "synthesized-entry"

// LatestNamespace holds the "latest entry for (word, model tier)" pointer,
// one record per (word, language, model identity).
const LatestNamespace = "synthesized-entry-latest"

// PipelineVersion participates in every fingerprint, so a deploy that
// changes clustering/synthesis/enhancement logic invalidates prior
// entries without touching provider or LLM caches.
const PipelineVersion = "v1"

// Config configures a Synthesizer.
type Config struct {
	LLM        *llm.Client
	Cache      *cache.Cache
	ModelInfo  model.ModelInfo
	Components []Component // defaults to DefaultComponents() if nil
	Logger     *slog.Logger
}

// Synthesizer produces SynthesizedEntry values from provider data.
type Synthesizer struct {
	llmClient  *llm.Client
	cache      *cache.Cache
	modelInfo  model.ModelInfo
	components []Component
	logger     *slog.Logger
}

// New builds a Synthesizer. Templates the stages and components need are
// registered on cfg.LLM's TemplateRegistry during construction, so a
// caller only needs to supply the LLM client and cache.
func New(cfg Config) (*Synthesizer, error) {
	components := cfg.Components
	if components == nil {
		components = DefaultComponents()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Synthesizer{
		llmClient:  cfg.LLM,
		cache:      cfg.Cache,
		modelInfo:  cfg.ModelInfo,
		components: components,
		logger:     logger,
	}

	if err := s.registerTemplates(); err != nil {
		return nil, fmt.Errorf("synthesize: register templates: %w", err)
	}

	return s, nil
}

// Request is one synthesis call: the resolved word, its fan-out provider
// data, which enhancement components to run, and whether to bypass the
// synthesized-entry cache.
type Request struct {
	Word          model.Word
	ProviderData  []model.ProviderData
	Components    []string // nil/empty means "all missing" (DefaultComponents names)
	ForceRefresh  bool
	RequestTokens int // baseline RequestedTokens hint for LLM calls; 0 uses a sane default
}

// ProgressFunc receives a partial, in-progress entry and the name of the
// boundary that just completed ("clusters", or an enhancement component
// name), for the pipeline's progressive-streaming emission.
type ProgressFunc func(boundary string, partial model.SynthesizedEntry)

// Synthesize runs the full cluster → synthesize → enhance → publish
// pipeline, or returns the cached entry unchanged if one already exists
// under the computed fingerprint and ForceRefresh is false.
//
// Clustering and definition-synthesis errors are fatal: no entry is
// published. Enhancement failures are per-component and non-fatal; a
// failed component simply leaves its field(s) unset and is omitted from
// ModelInfo.Succeeded.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request, onProgress ProgressFunc) (model.SynthesizedEntry, error) {
	usable := usableProviderData(req.ProviderData)

	providerSet := providerIdentities(req.ProviderData)
	rawHashes := rawContentHashes(req.ProviderData)
	fingerprint := hashkey.Fingerprint(providerSet, rawHashes, s.modelInfo.Identity(), PipelineVersion)

	if !req.ForceRefresh {
		if entry, ok, err := s.lookupByFingerprint(ctx, string(fingerprint)); err != nil {
			return model.SynthesizedEntry{}, err
		} else if ok {
			return entry, nil
		}
	}

	rawDefs := flattenRawDefinitions(usable)
	if len(rawDefs) == 0 {
		return model.SynthesizedEntry{}, errs.New(errs.NotFound, "synthesize.Synthesize", "no usable provider definitions to synthesize from")
	}

	requestTokens := req.RequestTokens
	if requestTokens <= 0 {
		requestTokens = 200
	}

	clusters, err := s.cluster(ctx, req.Word, rawDefs, requestTokens)
	if err != nil {
		return model.SynthesizedEntry{}, fmt.Errorf("synthesize: cluster: %w", err)
	}

	entry := model.SynthesizedEntry{
		Word:        req.Word,
		ProviderSet: providerSet,
		ModelInfo:   s.modelInfo,
		Version: model.VersionInfo{
			Fingerprint: string(fingerprint),
			BuiltAt:     time.Now(),
		},
	}

	if onProgress != nil {
		onProgress("clusters", entry)
	}

	definitions, err := s.synthesizeDefinitions(ctx, req.Word, clusters, requestTokens)
	if err != nil {
		return model.SynthesizedEntry{}, fmt.Errorf("synthesize: synthesize definitions: %w", err)
	}
	entry.Definitions = definitions

	componentNames := req.Components
	if len(componentNames) == 0 {
		componentNames = allComponentNames(s.components)
	}

	succeeded := s.enhance(ctx, req.Word, &entry, componentNames, requestTokens, onProgress)
	entry.ModelInfo.Succeeded = succeeded

	if err := s.publish(ctx, entry); err != nil {
		return model.SynthesizedEntry{}, fmt.Errorf("synthesize: publish: %w", err)
	}

	return entry, nil
}

func usableProviderData(data []model.ProviderData) []model.ProviderData {
	out := make([]model.ProviderData, 0, len(data))
	for _, d := range data {
		if d.Usable() {
			out = append(out, d)
		}
	}
	return out
}

func providerIdentities(data []model.ProviderData) []string {
	out := make([]string, 0, len(data))
	for _, d := range data {
		out = append(out, d.Provider)
	}
	sort.Strings(out)
	return out
}

func rawContentHashes(data []model.ProviderData) []string {
	out := make([]string, 0, len(data))
	for _, d := range data {
		if d.ContentHash != "" {
			out = append(out, d.ContentHash)
		}
	}
	return out
}

func flattenRawDefinitions(data []model.ProviderData) []model.RawDefinition {
	var out []model.RawDefinition
	for _, d := range data {
		out = append(out, d.RawDefinitions...)
	}
	return out
}

func allComponentNames(components []Component) []string {
	names := make([]string, 0, len(components))
	for _, c := range components {
		names = append(names, c.Name)
	}
	return names
}

func decodeJSONValue[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
