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

// Package model defines the core data types shared across the lookup
// pipeline: the canonical word identity, provider-fetched raw definitions,
// LLM-synthesized entries, and the envelopes the cache and state tracker
// wrap around them.
package model

import "time"

// Word is the canonical, normalized lookup key for a headword.
type Word struct {
	// Surface is the form as typed by the caller.
	Surface string `json:"surface"`

	// Normalized is Surface after normalization (NFD fold, lowercase,
	// diacritic strip, contraction/punctuation handling).
	Normalized string `json:"normalized"`

	// Language is a BCP-47 language tag; empty means "detect from content".
	Language string `json:"language,omitempty"`
}

// ProviderStatus classifies a fetch's overall usability for synthesis.
type ProviderStatus string

const (
	ProviderStatusOK      ProviderStatus = "ok"
	ProviderStatusPartial ProviderStatus = "partial"
	ProviderStatusError   ProviderStatus = "error"
)

// ProviderData is one provider's response for a word: the raw bytes (kept
// for content-hashing and re-parsing) plus whatever the provider's client
// could parse out of them. Cached independently of the synthesized entry.
type ProviderData struct {
	Provider        string          `json:"provider"`
	Word            string          `json:"word"`
	Status          ProviderStatus  `json:"status,omitempty"`
	RawDefinitions  []RawDefinition `json:"raw_definitions,omitempty"`
	Etymology       string          `json:"etymology,omitempty"`
	Pronunciation   string          `json:"pronunciation,omitempty"`
	RawContent      []byte          `json:"raw_content"`
	ContentHash     string          `json:"content_hash"`
	FetchedAt       time.Time       `json:"fetched_at"`
	StatusCode      int             `json:"status_code"`
	Err             string          `json:"error,omitempty"`
}

// Usable reports whether this provider contributed any definitions the
// synthesizer can cluster over.
func (p ProviderData) Usable() bool {
	return p.Err == "" && len(p.RawDefinitions) > 0
}

// RawDefinition is a single sense extracted from a provider's payload,
// before clustering and synthesis. It is never merged between providers
// at this layer — merging is the cluster/synthesis step's job.
type RawDefinition struct {
	Provider     string            `json:"provider"`
	PartOfSpeech string            `json:"part_of_speech,omitempty"`
	Text         string            `json:"text"`
	Examples     []string          `json:"examples,omitempty"`
	Synonyms     []string          `json:"synonyms,omitempty"`
	Antonyms     []string          `json:"antonyms,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// MeaningCluster groups raw definitions from multiple providers that the
// synthesizer judged to express the same sense. Clusters within one word
// are pairwise disjoint over the RawDefinitions they contain.
type MeaningCluster struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	Description  string          `json:"description,omitempty"`
	PartOfSpeech string          `json:"part_of_speech,omitempty"`
	Confidence   float64         `json:"confidence"`
	Members      []RawDefinition `json:"members"`
}

// DefinitionExamples separates LLM-generated illustrative examples from
// ones lifted verbatim out of a provider's literature/citation data.
type DefinitionExamples struct {
	Generated  []string `json:"generated,omitempty"`
	Literature []string `json:"literature,omitempty"`
}

// SynthesizedDefinition is the LLM-authored definition for one meaning
// cluster, plus the definition-scoped enhancement components applied
// afterward (synonyms, antonyms, examples, register, etc). Word-scoped
// enhancements (pronunciation, etymology, word forms, facts) live on the
// owning SynthesizedEntry instead.
type SynthesizedDefinition struct {
	ID               string             `json:"id"`
	WordRef          string             `json:"word_ref"`
	ClusterRef       string             `json:"cluster_ref"`
	PartOfSpeech     string             `json:"part_of_speech,omitempty"`
	Text             string             `json:"text"`
	Relevancy        float64            `json:"relevancy"`
	Examples         DefinitionExamples `json:"examples,omitempty"`
	Synonyms         []string           `json:"synonyms,omitempty"`
	Antonyms         []string           `json:"antonyms,omitempty"`
	CEFRLevel        string             `json:"cefr_level,omitempty"`
	Register         string             `json:"register,omitempty"`
	Domain           string             `json:"domain,omitempty"`
	FrequencyBand    string             `json:"frequency_band,omitempty"`
	RegionalVariants []string           `json:"regional_variants,omitempty"`
	Collocations     []string           `json:"collocations,omitempty"`
	UsageNotes       string             `json:"usage_notes,omitempty"`
	SourceCount      int                `json:"source_count"`
}

// ModelInfo identifies the LLM configuration that produced a synthesis,
// forming part of the content fingerprint so that re-synthesis under a
// different model or prompt version invalidates stale entries.
type ModelInfo struct {
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	PromptVersion   string `json:"prompt_version"`
	PipelineVersion string `json:"pipeline_version"`

	// Succeeded lists which enhancement component names completed for
	// this entry; enhancement failures are per-component and non-fatal,
	// so a field being absent from the entry is explained by its
	// component's name being absent here rather than by an error.
	Succeeded []string `json:"succeeded,omitempty"`
}

// Identity returns the stable string the fingerprint hashes over.
func (m ModelInfo) Identity() string {
	return m.Provider + "/" + m.Model + "@" + m.PromptVersion + "+" + m.PipelineVersion
}

// VersionInfo tracks an entry's lineage: when it was built, by what
// fingerprint, and which prior version (if any) it supersedes.
type VersionInfo struct {
	Fingerprint string    `json:"fingerprint"`
	BuiltAt     time.Time `json:"built_at"`
	Supersedes  string    `json:"supersedes,omitempty"`
}

// SynthesizedEntry is the complete, publishable lookup result for a word.
// Pronunciation, Etymology, WordForms, and Facts are the word-scoped
// enhancement components (as opposed to the definition-scoped ones that
// live on each SynthesizedDefinition).
type SynthesizedEntry struct {
	ID            string                  `json:"id"`
	Word          Word                    `json:"word"`
	Definitions   []SynthesizedDefinition `json:"definitions"`
	Pronunciation string                  `json:"pronunciation,omitempty"`
	Etymology     string                  `json:"etymology,omitempty"`
	WordForms     []string                `json:"word_forms,omitempty"`
	Facts         []string                `json:"facts,omitempty"`
	ProviderSet   []string                `json:"provider_set"`
	ModelInfo     ModelInfo               `json:"model_info"`
	Version       VersionInfo             `json:"version"`
	RelatedWords  []string                `json:"related_words,omitempty"`
}

// StorageMode selects where an entry's payload physically lives.
type StorageMode string

const (
	// StorageInline embeds the payload directly in the cache record.
	StorageInline StorageMode = "inline"
	// StorageExternal stores the payload in the blob tier, keyed by
	// content hash, with only a location recorded inline.
	StorageExternal StorageMode = "external"
)

// CacheEntry is the envelope the cache stores for any namespaced key:
// either the payload inline, or a pointer to it in the blob tier. For
// StorageExternal, Location+Size+Fingerprint together are the
// (namespace, key, size, checksum) content_location tuple: Location is
// the blob tier's own content-hash key (doubling as the checksum), Size
// is the inline payload's byte length before it was moved to the blob
// tier, and Namespace/Key identify this pointer's own cache slot.
type CacheEntry struct {
	Key         string      `json:"key"`
	Namespace   string      `json:"namespace"`
	Mode        StorageMode `json:"mode"`
	Inline      []byte      `json:"inline,omitempty"`
	Location    string      `json:"location,omitempty"`
	Size        int64       `json:"size"`
	Compressed  bool        `json:"compressed"`
	Fingerprint string      `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Expired reports whether the entry is stale as of now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Stage is a named step of request processing, used by the state tracker
// to report monotone progress over SSE.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageResolving  Stage = "resolving"
	StageFetching   Stage = "fetching"
	StageSynthesize Stage = "synthesizing"
	StageEnhancing  Stage = "enhancing"
	StagePublished  Stage = "published"
	StageFailed     Stage = "failed"
)

// ProcessState is the mutable, per-request snapshot broadcast to SSE
// subscribers; Stage and Progress only ever advance, and exactly one
// terminal event (Published or Failed) is ever emitted for a given
// RequestID.
type ProcessState struct {
	RequestID string            `json:"request_id"`
	Word      string            `json:"word"`
	Stage     Stage             `json:"stage"`
	Progress  int               `json:"progress"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Error     *StateError       `json:"error,omitempty"`
	Terminal  bool              `json:"terminal"`
	UpdatedAt time.Time         `json:"updated_at"`
	Entry     *SynthesizedEntry `json:"entry,omitempty"`
}

// StateError is the terminal error payload of a failed ProcessState.
type StateError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Terminal reports whether the stage is one of the two terminal states.
func (s Stage) Terminal() bool {
	return s == StagePublished || s == StageFailed
}
