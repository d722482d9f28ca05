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

package resolver

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/spaolacci/murmur3"
)

// bloomFilter is a small membership prefilter over the normalized
// vocabulary: a miss here lets the exact leg skip the trie walk
// entirely, trading a handful of bits per word for O(1) negative
// lookups, in the spirit of the teacher's generic BitSet usage.
type bloomFilter struct {
	bits   *bitset.BitSet
	hashes int
	size   uint
}

func newBloomFilter(expectedWords int, hashes int) *bloomFilter {
	if expectedWords < 1 {
		expectedWords = 1
	}
	if hashes < 1 {
		hashes = 4
	}
	size := uint(expectedWords * 10)
	return &bloomFilter{bits: bitset.New(size), hashes: hashes, size: size}
}

func (f *bloomFilter) positions(word string) []uint {
	h1, h2 := murmur3.Sum128([]byte(word))
	positions := make([]uint, f.hashes)
	for i := 0; i < f.hashes; i++ {
		combined := h1 + uint64(i)*h2
		positions[i] = uint(combined % uint64(f.size))
	}
	return positions
}

func (f *bloomFilter) add(word string) {
	for _, pos := range f.positions(word) {
		f.bits.Set(pos)
	}
}

func (f *bloomFilter) mightContain(word string) bool {
	for _, pos := range f.positions(word) {
		if !f.bits.Test(pos) {
			return false
		}
	}
	return true
}

// trieNode is a node of a compact trie over normalized vocabulary
// words, used by the exact leg once the Bloom filter admits a
// candidate.
type trieNode struct {
	children map[rune]*trieNode
	terminal bool
	word     string
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// exactIndex is the resolver's exact-match leg: a trie guarded by a
// Bloom membership filter, built once per vocabulary version.
type exactIndex struct {
	root  *trieNode
	bloom *bloomFilter
	size  int
}

func newExactIndex(vocabulary []string) *exactIndex {
	idx := &exactIndex{root: newTrieNode(), bloom: newBloomFilter(len(vocabulary), 4)}
	for _, w := range vocabulary {
		idx.insert(w)
	}
	return idx
}

func (idx *exactIndex) insert(word string) {
	idx.bloom.add(word)
	node := idx.root
	for _, r := range word {
		child, ok := node.children[r]
		if !ok {
			child = newTrieNode()
			node.children[r] = child
		}
		node = child
	}
	if !node.terminal {
		idx.size++
	}
	node.terminal = true
	node.word = word
}

// lookup returns the canonical word and true if word is an exact member
// of the vocabulary.
func (idx *exactIndex) lookup(word string) (string, bool) {
	if !idx.bloom.mightContain(word) {
		return "", false
	}
	node := idx.root
	for _, r := range word {
		child, ok := node.children[r]
		if !ok {
			return "", false
		}
		node = child
	}
	if node.terminal {
		return node.word, true
	}
	return "", false
}

// prefixCandidates walks the trie under prefix and returns every
// terminal word reachable from there, bounded by limit, for use as a
// candidate pool feeding the fuzzy leg's length-prefiltered scan.
func (idx *exactIndex) prefixCandidates(prefix string, limit int) []string {
	node := idx.root
	for _, r := range prefix {
		child, ok := node.children[r]
		if !ok {
			return nil
		}
		node = child
	}

	var out []string
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		if len(out) >= limit {
			return
		}
		if n.terminal {
			out = append(out, n.word)
		}
		for _, child := range n.children {
			if len(out) >= limit {
				return
			}
			walk(child)
		}
	}
	walk(node)
	return out
}

// allWords returns every word in the index, for the fuzzy leg's
// full-scan fallback on small vocabularies.
func (idx *exactIndex) allWords() []string {
	out := make([]string, 0, idx.size)
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		if n.terminal {
			out = append(out, n.word)
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(idx.root)
	return out
}
