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

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkbabb/lexserve/pkg/model"
	"github.com/mkbabb/lexserve/pkg/state"
)

type configEvent struct {
	Category string       `json:"category"`
	Stages   []stageEvent `json:"stages"`
}

type stageEvent struct {
	Name        model.Stage `json:"name"`
	Progress    int         `json:"progress"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
}

type progressEvent struct {
	Stage    model.Stage       `json:"stage"`
	Progress int               `json:"progress"`
	Message  string            `json:"message,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

type completeStartEvent struct {
	TotalChunks int `json:"total_chunks"`
	TotalBytes  int `json:"total_bytes"`
}

type completeChunkEvent struct {
	ChunkIndex int    `json:"chunk_index"`
	Data       string `json:"data"`
}

// handleLookupStream serves GET /lookup/{word}/stream as text/event-stream,
// per spec.md's config/progress/partial/complete(_chunk)/error event
// sequence. Exactly one of complete/error terminates the stream.
func (s *Server) handleLookupStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	word := chi.URLParam(r, "word")
	req := s.buildRequest(r, word)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, flusher, "config", configEvent{
		Category: string(state.CategoryLookup),
		Stages:   stageEvents(state.Stages(state.CategoryLookup)),
	})

	tracker := state.New(uuid.NewString(), word, state.CategoryLookup)
	sub := tracker.Subscribe(r.Context())

	go func() {
		_, _ = s.cfg.Pipeline.Run(r.Context(), req, tracker)
	}()

	for snapshot := range sub {
		switch {
		case snapshot.Terminal && snapshot.Error != nil:
			writeSSE(w, flusher, "error", snapshot.Error)
			return
		case snapshot.Terminal && snapshot.Entry != nil:
			s.writeComplete(w, flusher, *snapshot.Entry)
			return
		case snapshot.Entry != nil:
			writeSSE(w, flusher, "partial", snapshot.Entry)
		default:
			writeSSE(w, flusher, "progress", progressEvent{
				Stage:    snapshot.Stage,
				Progress: snapshot.Progress,
				Message:  snapshot.Message,
				Details:  snapshot.Details,
			})
		}
	}
}

func stageEvents(defs []state.StageDefinition) []stageEvent {
	out := make([]stageEvent, 0, len(defs))
	for _, d := range defs {
		out = append(out, stageEvent{Name: d.Name, Progress: d.Progress, Label: d.Label, Description: d.Description})
	}
	return out
}

// writeComplete emits the final entry inline as one "complete" event, or
// chunked as complete_start/complete_chunk*/complete_end when the
// serialized entry exceeds the configured threshold.
func (s *Server) writeComplete(w http.ResponseWriter, flusher http.Flusher, entry model.SynthesizedEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		writeSSE(w, flusher, "error", map[string]string{"kind": "internal", "message": err.Error()})
		return
	}

	if len(data) <= s.cfg.ChunkThreshold {
		writeRawSSE(w, flusher, "complete", data)
		return
	}

	chunkSize := s.cfg.ChunkThreshold
	totalChunks := (len(data) + chunkSize - 1) / chunkSize

	writeSSE(w, flusher, "complete_start", completeStartEvent{TotalChunks: totalChunks, TotalBytes: len(data)})
	for i := 0; i < totalChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		writeSSE(w, flusher, "complete_chunk", completeChunkEvent{ChunkIndex: i, Data: string(data[start:end])})
	}
	writeSSE(w, flusher, "complete_end", struct{}{})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	writeRawSSE(w, flusher, event, data)
}

func writeRawSSE(w http.ResponseWriter, flusher http.Flusher, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
