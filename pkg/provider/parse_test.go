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

package provider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDictionaryAPIBody = `[
  {
    "word": "run",
    "phonetic": "/rʌn/",
    "phonetics": [{"text": "/rʌn/"}],
    "origin": "Old English rinnan",
    "meanings": [
      {
        "partOfSpeech": "verb",
        "definitions": [
          {"definition": "Move at a speed faster than a walk.", "example": "she ran down the road", "synonyms": ["sprint"], "antonyms": ["walk"]}
        ],
        "synonyms": ["sprint"],
        "antonyms": []
      },
      {
        "partOfSpeech": "noun",
        "definitions": [
          {"definition": "An act of running.", "example": "", "synonyms": [], "antonyms": []}
        ]
      }
    ]
  }
]`

func TestParseDictionaryAPIBody_ExtractsDefinitionsAndWordLevelFields(t *testing.T) {
	defs, pronunciation, etymology := parseDictionaryAPIBody("dictionaryapi", []byte(sampleDictionaryAPIBody))

	require.Len(t, defs, 2)
	require.Equal(t, "/rʌn/", pronunciation)
	require.Equal(t, "Old English rinnan", etymology)

	require.Equal(t, "verb", defs[0].PartOfSpeech)
	require.Equal(t, "Move at a speed faster than a walk.", defs[0].Text)
	require.Equal(t, []string{"she ran down the road"}, defs[0].Examples)
	require.Contains(t, defs[0].Synonyms, "sprint")
	require.Contains(t, defs[0].Antonyms, "walk")

	require.Equal(t, "noun", defs[1].PartOfSpeech)
	require.Empty(t, defs[1].Examples)
}

func TestParseDictionaryAPIBody_MalformedBodyYieldsNothing(t *testing.T) {
	defs, pronunciation, etymology := parseDictionaryAPIBody("dictionaryapi", []byte(`not json`))
	require.Nil(t, defs)
	require.Empty(t, pronunciation)
	require.Empty(t, etymology)
}
