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

package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/model"
)

func drain(t *testing.T, ch <-chan model.ProcessState, timeout time.Duration) []model.ProcessState {
	t.Helper()
	var events []model.ProcessState
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
}

func TestTracker_ProgressMonotoneNonDecreasing(t *testing.T) {
	tr := New("req-1", "run", CategoryLookup)
	sub := tr.Subscribe(context.Background())

	tr.Update(model.StageResolving, "resolving", nil)
	tr.Update(model.StageFetching, "fetching", nil)
	tr.Update(model.StageSynthesize, "synthesizing", nil)
	tr.Complete(model.SynthesizedEntry{Word: model.Word{Normalized: "run"}})

	events := drain(t, sub, time.Second)
	require.NotEmpty(t, events)

	last := -1
	for _, ev := range events {
		require.GreaterOrEqual(t, ev.Progress, last)
		last = ev.Progress
	}
	require.True(t, events[len(events)-1].Terminal)
	require.Equal(t, model.StagePublished, events[len(events)-1].Stage)
	require.Equal(t, 100, events[len(events)-1].Progress)
}

func TestTracker_PartialCarriesEntryWithoutAdvancingStage(t *testing.T) {
	tr := New("req-partial", "run", CategoryLookup)
	tr.Update(model.StageSynthesize, "synthesizing", nil)
	sub := tr.Subscribe(context.Background())

	tr.Partial("clusters", model.SynthesizedEntry{Word: model.Word{Normalized: "run"}})

	events := drain(t, sub, 100*time.Millisecond)
	require.Len(t, events, 1)
	require.Equal(t, model.StageSynthesize, events[0].Stage)
	require.False(t, events[0].Terminal)
	require.NotNil(t, events[0].Entry)
	require.Equal(t, "clusters", events[0].Message)
}

func TestTracker_CompleteAndErrorAreIdempotent(t *testing.T) {
	tr := New("req-2", "run", CategoryLookup)
	sub := tr.Subscribe(context.Background())

	tr.Complete(model.SynthesizedEntry{Word: model.Word{Normalized: "run"}})
	tr.Error(errs.New(errs.Internal, "test", "should not win"))
	tr.Update(model.StageFailed, "should be ignored too", nil)

	events := drain(t, sub, time.Second)
	require.Len(t, events, 1)
	require.Equal(t, model.StagePublished, events[0].Stage)
	require.True(t, events[0].Terminal)
}

func TestTracker_ErrorSetsTerminalErrorPayload(t *testing.T) {
	tr := New("req-3", "glarp", CategoryLookup)
	sub := tr.Subscribe(context.Background())

	tr.Error(errs.New(errs.NotFound, "resolver.Resolve", "no candidates found"))

	events := drain(t, sub, time.Second)
	require.Len(t, events, 1)
	require.True(t, events[0].Terminal)
	require.Equal(t, model.StageFailed, events[0].Stage)
	require.NotNil(t, events[0].Error)
	require.Equal(t, string(errs.NotFound), events[0].Error.Kind)
}

func TestTracker_SubscribeAfterTerminalReplaysFinalEventOnly(t *testing.T) {
	tr := New("req-4", "run", CategoryLookup)
	tr.Complete(model.SynthesizedEntry{Word: model.Word{Normalized: "run"}})

	sub := tr.Subscribe(context.Background())
	events := drain(t, sub, time.Second)

	require.Len(t, events, 1)
	require.True(t, events[0].Terminal)
}

func TestTracker_MultipleSubscribersEachSeeFullSequence(t *testing.T) {
	tr := New("req-5", "ephemeral", CategoryLookup)
	sub1 := tr.Subscribe(context.Background())
	sub2 := tr.Subscribe(context.Background())

	tr.Update(model.StageResolving, "", nil)
	tr.Complete(model.SynthesizedEntry{Word: model.Word{Normalized: "ephemeral"}})

	events1 := drain(t, sub1, time.Second)
	events2 := drain(t, sub2, time.Second)

	require.Equal(t, len(events1), len(events2))
	require.True(t, events1[len(events1)-1].Terminal)
	require.True(t, events2[len(events2)-1].Terminal)
}

func TestTracker_UnsubscribeOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := New("req-6", "run", CategoryLookup)
	sub := tr.Subscribe(ctx)

	cancel()
	time.Sleep(50 * time.Millisecond)

	_, ok := <-sub
	require.False(t, ok, "channel should be closed after context cancellation")
}
