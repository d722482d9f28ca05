package resolver

import (
	"context"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Café   Résumé  ": "cafe resume",
		"Don't Stop":        "do not stop",
		"ATTITUDE!!":        "attitude",
		"rock-n-roll":       "rock-n-roll",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolver_ExactMatch(t *testing.T) {
	r := New(Config{}, []string{"hello", "world", "help"}, nil, nil, "")

	results, err := r.Resolve(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Word != "hello" || results[0].Score != 1 || results[0].Method != MethodExact {
		t.Fatalf("expected exact top hit for hello, got %+v", results[0])
	}
}

func TestResolver_FuzzyMatch(t *testing.T) {
	r := New(Config{}, []string{"hello", "world", "help"}, nil, nil, "")

	results, err := r.Resolve(context.Background(), "helo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, res := range results {
		if res.Word == "hello" && res.Method == MethodFuzzy {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fuzzy match for 'helo' -> 'hello', got %+v", results)
	}
}

func TestResolver_NoMatchReturnsEmpty(t *testing.T) {
	r := New(Config{}, []string{"hello", "world"}, nil, nil, "")

	results, err := r.Resolve(context.Background(), "qwzzyx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for a wildly different query, got %+v", results)
	}
}

func TestResolver_Rebuild(t *testing.T) {
	r := New(Config{}, []string{"hello"}, nil, nil, "")
	firstHash := r.VocabularyHash()

	changed := r.Rebuild([]string{"hello", "world"})
	if !changed {
		t.Fatal("expected Rebuild to report a change")
	}
	if r.VocabularyHash() == firstHash {
		t.Fatal("expected vocabulary hash to change after rebuild")
	}

	changedAgain := r.Rebuild([]string{"hello", "world"})
	if changedAgain {
		t.Fatal("expected Rebuild to be a no-op for an identical vocabulary")
	}
}

func TestResolver_SemanticStateWithoutLeg(t *testing.T) {
	r := New(Config{}, []string{"hello"}, nil, nil, "")
	if r.SemanticState() != "not_started" {
		t.Fatalf("expected not_started readiness without a semantic leg, got %q", r.SemanticState())
	}
}

func TestBloomFilter_NoFalseNegatives(t *testing.T) {
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	f := newBloomFilter(len(words), 4)
	for _, w := range words {
		f.add(w)
	}
	for _, w := range words {
		if !f.mightContain(w) {
			t.Fatalf("bloom filter false negative for %q", w)
		}
	}
}

func TestFuzzyCandidates_DiscardsBeyondMaxDistance(t *testing.T) {
	results := fuzzyCandidates("hello", []string{"completely-different-word"})
	if len(results) != 0 {
		t.Fatalf("expected no candidates beyond max distance, got %+v", results)
	}
}
