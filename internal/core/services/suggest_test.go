package services

import (
	"context"
	"testing"
)

func TestSuggest_PrefixCompletion(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "smart phone"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "smart watch"})
	e.indexDoc(t, "a", "3", map[string]any{"title": "smartphone case"})
	e.drain(t)

	suggestions, err := e.search.Suggest(context.Background(), "a", "smart", "title", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(suggestions) < 2 {
		t.Fatalf("got %d suggestions, want at least smart and smartphone", len(suggestions))
	}

	texts := map[string]bool{}
	for _, s := range suggestions {
		texts[s.Text] = true
		if s.Freq <= 0 {
			t.Errorf("suggestion %q freq = %d, want > 0", s.Text, s.Freq)
		}
	}
	if !texts["smart"] || !texts["smartphone"] {
		t.Errorf("suggestions = %v, want both smart and smartphone", texts)
	}
}

func TestSuggest_ExactMatchRanksFirst(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "smart phone"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "smart watch"})
	e.indexDoc(t, "a", "3", map[string]any{"title": "smartphone case"})
	e.drain(t)

	suggestions, err := e.search.Suggest(context.Background(), "a", "smart", "title", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestions[0].Text != "smart" {
		t.Errorf("top suggestion = %q, want smart (df 2, distance 0)", suggestions[0].Text)
	}
	if suggestions[0].Distance != 0 {
		t.Errorf("exact match distance = %d, want 0", suggestions[0].Distance)
	}
}

func TestSuggest_SizeBound(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "sand sandal sandwich sandbox sandstorm sander"})
	e.drain(t)

	suggestions, err := e.search.Suggest(context.Background(), "a", "sand", "title", 3)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(suggestions) > 3 {
		t.Errorf("got %d suggestions, want at most 3", len(suggestions))
	}
}

func TestSuggest_EmptyTextYieldsNothing(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")

	suggestions, err := e.search.Suggest(context.Background(), "a", "   ", "", 5)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(suggestions) != 0 {
		t.Errorf("got %d suggestions for blank input, want 0", len(suggestions))
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"smart", "smart", 0},
		{"smart", "smartphone", 5},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
