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

// Package state tracks one request's progress through a predefined stage
// sequence and broadcasts every change to any number of SSE subscribers.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/mkbabb/lexserve/pkg/errs"
	"github.com/mkbabb/lexserve/pkg/model"
)

// subscriberBuffer bounds how many pending events a slow SSE consumer can
// fall behind by before updates are dropped for it; the terminal event is
// always delivered because notify drops the oldest pending update to make
// room for it when the buffer is full.
const subscriberBuffer = 32

// Tracker is the per-request progress/stage/error state machine. Stage and
// Progress only ever advance; complete()/error() are idempotent — only the
// first call of either wins.
type Tracker struct {
	category Category

	mu    sync.RWMutex
	state model.ProcessState

	subsMu      sync.Mutex
	subscribers []chan model.ProcessState
}

// New creates a Tracker for one request, starting at the category's queued
// stage.
func New(requestID, word string, category Category) *Tracker {
	t := &Tracker{
		category: category,
		state: model.ProcessState{
			RequestID: requestID,
			Word:      word,
			Stage:     model.StageQueued,
			UpdatedAt: time.Now(),
		},
	}
	if def, ok := lookup(category, model.StageQueued); ok {
		t.state.Progress = def.Progress
	}
	return t
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() model.ProcessState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Reset clears terminal flags and returns the tracker to its queued stage,
// for reuse across retried attempts of the same request.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Stage = model.StageQueued
	t.state.Message = ""
	t.state.Details = nil
	t.state.Error = nil
	t.state.Terminal = false
	t.state.Entry = nil
	t.state.UpdatedAt = time.Now()
	if def, ok := lookup(t.category, model.StageQueued); ok {
		t.state.Progress = def.Progress
	}
}

// Update advances the current stage and raises progress monotonically. A
// repeated update at the already-current stage only replaces
// message/details; an update naming an earlier stage in the sequence is a
// no-op against the stage/progress fields (its message/details are still
// dropped, since they'd describe a stage already left behind). Updates
// after a terminal event are no-ops: complete()/error() already won.
func (t *Tracker) Update(stage model.Stage, message string, details map[string]string) {
	t.mu.Lock()
	if t.state.Terminal {
		t.mu.Unlock()
		return
	}

	newDef, newOK := lookup(t.category, stage)
	curDef, _ := lookup(t.category, t.state.Stage)
	if newOK && newDef.Progress < curDef.Progress {
		t.mu.Unlock()
		return
	}

	t.state.Stage = stage
	if newOK && newDef.Progress > t.state.Progress {
		t.state.Progress = newDef.Progress
	}
	t.state.Message = message
	t.state.Details = details
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.mu.Unlock()

	t.notify(snapshot)
}

// Partial attaches an in-progress SynthesizedEntry to the tracker's
// current stage/progress without advancing either, for the pipeline's
// progressive-streaming emission (cluster skeleton, per-component
// enhancement partials). boundary is recorded as the Message.
func (t *Tracker) Partial(boundary string, entry model.SynthesizedEntry) {
	t.mu.Lock()
	if t.state.Terminal {
		t.mu.Unlock()
		return
	}
	t.state.Message = boundary
	t.state.Entry = &entry
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.mu.Unlock()

	t.notify(snapshot)
}

// Complete sets the terminal "published" stage at 100% progress, carrying
// the finished entry. Only the first of Complete/Error wins.
func (t *Tracker) Complete(entry model.SynthesizedEntry) {
	t.mu.Lock()
	if t.state.Terminal {
		t.mu.Unlock()
		return
	}
	t.state.Stage = model.StagePublished
	t.state.Progress = 100
	t.state.Terminal = true
	t.state.Entry = &entry
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.mu.Unlock()

	t.notify(snapshot)
	t.closeSubscribers()
}

// Error sets the terminal "failed" stage. Only the first of
// Complete/Error wins.
func (t *Tracker) Error(err error) {
	t.mu.Lock()
	if t.state.Terminal {
		t.mu.Unlock()
		return
	}
	t.state.Stage = model.StageFailed
	t.state.Terminal = true
	t.state.Error = stateError(err)
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.mu.Unlock()

	t.notify(snapshot)
	t.closeSubscribers()
}

// Subscribe registers a new listener for this tracker's StateChange
// events. If the tracker has already reached a terminal state, the
// current (terminal) snapshot is delivered immediately and the returned
// channel is closed, mirroring a late subscriber to an already-finished
// task. Otherwise the channel receives every subsequent Update/Complete/
// Error snapshot until the tracker terminates or ctx is cancelled.
func (t *Tracker) Subscribe(ctx context.Context) <-chan model.ProcessState {
	t.mu.RLock()
	snapshot := t.state
	t.mu.RUnlock()

	ch := make(chan model.ProcessState, subscriberBuffer)

	if snapshot.Terminal {
		ch <- snapshot
		close(ch)
		return ch
	}

	t.subsMu.Lock()
	t.subscribers = append(t.subscribers, ch)
	t.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		t.unsubscribe(ch)
	}()

	return ch
}

// notify delivers a snapshot to every live subscriber without blocking on
// a slow consumer; a subscriber whose buffer is full misses a
// non-terminal update, while a terminal snapshot displaces the oldest
// pending update so it is still delivered before Complete/Error close
// the channel.
func (t *Tracker) notify(snapshot model.ProcessState) {
	t.subsMu.Lock()
	subs := make([]chan model.ProcessState, len(t.subscribers))
	copy(subs, t.subscribers)
	t.subsMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
			if snapshot.Terminal {
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- snapshot:
				default:
				}
			}
		}
	}
}

func (t *Tracker) closeSubscribers() {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()

	for _, ch := range t.subscribers {
		close(ch)
	}
	t.subscribers = nil
}

func (t *Tracker) unsubscribe(ch chan model.ProcessState) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()

	for i, sub := range t.subscribers {
		if sub == ch {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func stateError(err error) *model.StateError {
	if e, ok := err.(*errs.Error); ok {
		return &model.StateError{Kind: string(e.Kind), Message: e.Error()}
	}
	return &model.StateError{Kind: string(errs.Internal), Message: err.Error()}
}
