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
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// reflector generates response_schema bodies for chat_structured calls
// from the Go result types that actually decode them, rather than
// hand-maintaining a parallel JSON literal per call site: editing a
// result struct's fields or jsonschema tags is what keeps the schema an
// LLM is given in sync with what decodeJSONValue then parses.
var reflector = &jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	DoNotReference:             true,
}

// reflectSchema produces the json.RawMessage response_schema for T,
// inlining the generated struct schema as a bare object schema
// (type/properties/required) with the $schema and $id keys removed.
func reflectSchema[T any]() json.RawMessage {
	schema := reflector.Reflect(new(T))

	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("synthesize: reflect schema for %T: %v", *new(T), err))
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("synthesize: decode reflected schema for %T: %v", *new(T), err))
	}
	delete(m, "$schema")
	delete(m, "$id")

	out, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("synthesize: encode reflected schema for %T: %v", *new(T), err))
	}
	return out
}
