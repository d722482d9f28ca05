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

// Package pipeline orchestrates one end-to-end word lookup: resolve the
// query to a canonical word, fan the fetch out across providers, run the
// synthesizer (or build a raw pass-through when AI is off), and drive a
// state.Tracker through the whole thing for SSE streaming.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/model"
	"github.com/mkbabb/lexserve/pkg/observability"
	"github.com/mkbabb/lexserve/pkg/provider"
	"github.com/mkbabb/lexserve/pkg/resolver"
	"github.com/mkbabb/lexserve/pkg/state"
	"github.com/mkbabb/lexserve/pkg/synthesize"
)

// Config wires a Pipeline's dependencies.
type Config struct {
	Resolver         *resolver.Resolver
	Fetcher          *provider.Fetcher
	Synthesizer      *synthesize.Synthesizer
	DefaultProviders []string
	AIDefaultOn      bool
	Deadline         time.Duration // 0 means no overall pipeline deadline
	Metrics          *observability.Metrics
}

// Pipeline runs the orchestration described in Config over a Tracker.
type Pipeline struct {
	cfg Config
}

// New builds a Pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Request is one lookup call.
type Request struct {
	Query        string
	Providers    []string // empty uses Config.DefaultProviders
	Languages    []string // first entry, if any, selects the resolved word's language
	ForceRefresh bool
	NoAI         bool
}

// Run executes the full lookup, reporting every stage transition and
// progressive partial on tracker. It returns the final entry on success;
// on failure, tracker.Error has already been called and the same error is
// returned to the caller.
func (p *Pipeline) Run(ctx context.Context, req Request, tracker *state.Tracker) (model.SynthesizedEntry, error) {
	if p.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Deadline)
		defer cancel()
	}

	tracker.Update(model.StageResolving, "resolving query", nil)

	resolveStart := time.Now()
	results, err := p.cfg.Resolver.Resolve(ctx, req.Query)
	p.cfg.Metrics.RecordPipelineStage("resolve", time.Since(resolveStart))
	if err != nil {
		p.cfg.Metrics.RecordPipelineError("resolve", "resolve_error")
		return p.fail(tracker, classifyContextErr(ctx, err))
	}
	if len(results) == 0 {
		p.cfg.Metrics.RecordPipelineError("resolve", "not_found")
		return p.fail(tracker, errs.New(errs.NotFound, "pipeline.Run", fmt.Sprintf("no candidate found for %q", req.Query)))
	}

	lang := ""
	if len(req.Languages) > 0 {
		lang = req.Languages[0]
	}
	word := model.Word{Surface: req.Query, Normalized: results[0].Word, Language: lang}

	tracker.Update(model.StageFetching, "fetching provider data", nil)

	providerNames := req.Providers
	if len(providerNames) == 0 {
		providerNames = p.cfg.DefaultProviders
	}

	fetchStart := time.Now()
	providerData := p.cfg.Fetcher.FetchAllWithProgress(ctx, word, providerNames, func(d model.ProviderData) {
		tracker.Update(model.StageFetching, fmt.Sprintf("fetched %s", d.Provider), map[string]string{
			"provider": d.Provider,
			"status":   string(d.Status),
		})
	})
	p.cfg.Metrics.RecordPipelineStage("fetch", time.Since(fetchStart))

	usableCount := 0
	for _, d := range providerData {
		if d.Usable() {
			usableCount++
		}
	}

	aiOn := p.cfg.AIDefaultOn && !req.NoAI

	if usableCount == 0 {
		p.cfg.Metrics.RecordPipelineError("fetch", "no_usable_data")
		return p.fail(tracker, errs.New(errs.UpstreamUnavailable, "pipeline.Run", "no provider returned usable data"))
	}

	if !aiOn {
		entry := passthroughEntry(word, providerData)
		tracker.Complete(entry)
		return entry, nil
	}

	tracker.Update(model.StageSynthesize, "synthesizing definitions", nil)

	synthStart := time.Now()
	entry, err := p.cfg.Synthesizer.Synthesize(ctx, synthesize.Request{
		Word:         word,
		ProviderData: providerData,
		ForceRefresh: req.ForceRefresh,
	}, func(boundary string, partial model.SynthesizedEntry) {
		if boundary != "clusters" {
			tracker.Update(model.StageEnhancing, boundary, nil)
		}
		tracker.Partial(boundary, partial)
	})
	p.cfg.Metrics.RecordPipelineStage("synthesize", time.Since(synthStart))
	if err != nil {
		p.cfg.Metrics.RecordPipelineError("synthesize", "synthesize_error")
		return p.fail(tracker, classifyContextErr(ctx, err))
	}

	tracker.Complete(entry)
	return entry, nil
}

func (p *Pipeline) fail(tracker *state.Tracker, err error) (model.SynthesizedEntry, error) {
	tracker.Error(err)
	return model.SynthesizedEntry{}, err
}

// classifyContextErr maps a context cancellation/deadline into the
// corresponding errs.Kind, per spec's "cancellation completes the state
// tracker with a terminal cancelled event" / "deadline_exceeded" split;
// any other error passes through unchanged (it's expected to already be
// an *errs.Error from a lower layer).
func classifyContextErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.Cancelled, "pipeline.Run", err)
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.DeadlineExceeded, "pipeline.Run", err)
	default:
		if ctx.Err() != nil {
			return classifyContextErr(ctx, ctx.Err())
		}
		return err
	}
}
