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

import "github.com/mkbabb/lexserve/pkg/model"

// Category names a predefined stage sequence. The set of stages and their
// progress values is data, not a switch statement, so a new request
// category is added by extending the table below rather than the Tracker.
type Category string

const (
	CategoryLookup  Category = "lookup"
	CategoryGeneric Category = "generic"
)

// StageDefinition is one entry of a category's predefined stage sequence.
type StageDefinition struct {
	Name        model.Stage
	Progress    int
	Label       string
	Description string
}

// stageTables maps each category to its ordered stage sequence. Category
// "lookup" is the word-lookup pipeline's stage sequence (resolve, fetch,
// synthesize, enhance, publish); "generic" is the fallback for callers
// that only need queued/published/failed.
var stageTables = map[Category][]StageDefinition{
	CategoryLookup: {
		{model.StageQueued, 0, "Queued", "Request accepted and queued"},
		{model.StageResolving, 10, "Resolving", "Matching the query against the vocabulary"},
		{model.StageFetching, 35, "Fetching", "Fetching definitions from providers"},
		{model.StageSynthesize, 55, "Synthesizing", "Clustering and synthesizing definitions"},
		{model.StageEnhancing, 85, "Enhancing", "Enhancing definitions with additional detail"},
		{model.StagePublished, 100, "Published", "Entry published"},
		{model.StageFailed, 100, "Failed", "Request failed"},
	},
	CategoryGeneric: {
		{model.StageQueued, 0, "Queued", "Request accepted and queued"},
		{model.StagePublished, 100, "Published", "Request completed"},
		{model.StageFailed, 100, "Failed", "Request failed"},
	},
}

// lookup returns the stage definition for a (category, stage) pair.
func lookup(category Category, stage model.Stage) (StageDefinition, bool) {
	for _, sd := range stageTables[category] {
		if sd.Name == stage {
			return sd, true
		}
	}
	return StageDefinition{}, false
}

// Stages returns the ordered stage sequence for category, for the SSE
// layer's leading "config" event.
func Stages(category Category) []StageDefinition {
	return stageTables[category]
}
