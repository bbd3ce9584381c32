package analysis

import (
	"testing"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

func TestStandardAnalyzer_Analyze(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts domain.AnalyzerOptions
		want []string
	}{
		{
			name: "lowercases by default",
			text: "Hello World",
			opts: domain.DefaultAnalyzerOptions(),
			want: []string{"hello", "world"},
		},
		{
			name: "empty input yields empty sequence",
			text: "",
			opts: domain.DefaultAnalyzerOptions(),
			want: nil,
		},
		{
			name: "strips punctuation on word boundaries",
			text: "bulk-indexing, v2!",
			opts: domain.DefaultAnalyzerOptions(),
			want: []string{"bulk", "indexing", "v2"},
		},
		{
			name: "removes configured stop words",
			text: "the quick fox",
			opts: domain.AnalyzerOptions{Lowercase: true, RemoveStopWords: true},
			want: []string{"quick", "fox"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := StandardAnalyzer{Options: tt.opts}
			tokens := a.Analyze(tt.text)
			if len(tokens) != len(tt.want) {
				t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(tt.want), tokens)
			}
			for i, tok := range tokens {
				if tok.Text != tt.want[i] {
					t.Errorf("token %d = %q, want %q", i, tok.Text, tt.want[i])
				}
				if tok.Position != i {
					t.Errorf("token %d position = %d, want %d", i, tok.Position, i)
				}
			}
		})
	}
}

func TestWhitespaceAnalyzer_PreservesPunctuation(t *testing.T) {
	a := WhitespaceAnalyzer{}
	tokens := a.Analyze("bulk-one bulk-two")
	want := []string{"bulk-one", "bulk-two"}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.Text != want[i] {
			t.Errorf("token %d = %q, want %q", i, tok.Text, want[i])
		}
	}
}

func TestGet_DefaultsToStandard(t *testing.T) {
	a := Get("unknown-analyzer", domain.DefaultAnalyzerOptions())
	if _, ok := a.(StandardAnalyzer); !ok {
		t.Errorf("expected StandardAnalyzer fallback, got %T", a)
	}
}
