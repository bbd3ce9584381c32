package services

import (
	"context"
	"sort"
	"strings"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

const defaultSuggestSize = 5

// Suggest returns term-prefix completions for text, scored by document
// frequency discounted by edit distance from the input. Candidates come
// from the chunked store's prefix index merged with the in-memory
// dictionary, so uncommitted terms still surface.
func (s *searchService) Suggest(ctx context.Context, index, text, field string, size int) ([]domain.Suggestion, error) {
	meta, err := s.indexStore.Get(ctx, index)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultSuggestSize
	}

	prefix := strings.ToLower(strings.TrimSpace(text))
	if prefix == "" {
		return []domain.Suggestion{}, nil
	}

	candidates := map[string]domain.TermKey{}

	stored, err := s.chunkStore.FindTermsByIndexAndValuePrefix(ctx, index, prefix)
	if err != nil {
		return nil, err
	}
	for _, termKeyStr := range stored {
		key, err := domain.ParseTermKey(termKeyStr)
		if err != nil {
			continue
		}
		if field != "" && key.Field != field {
			continue
		}
		candidates[key.Token] = key
	}

	for _, key := range s.engine.Dictionary.GetTerms(meta.Name) {
		if field != "" && key.Field != field {
			continue
		}
		if !strings.HasPrefix(key.Token, prefix) {
			continue
		}
		if _, seen := candidates[key.Token]; !seen {
			candidates[key.Token] = key
		}
	}

	corpus := s.engine.Stats.Get(index)
	suggestions := make([]domain.Suggestion, 0, len(candidates))
	for token, key := range candidates {
		freq := corpus.DF(key)
		if freq <= 0 {
			if list := s.engine.Dictionary.GetPostingList(key.Index, key.Field, key.Token); list != nil {
				freq = list.Size()
			}
		}
		distance := levenshtein(prefix, token)
		suggestions = append(suggestions, domain.Suggestion{
			Text:     token,
			Score:    float64(freq) / float64(1+distance),
			Freq:     freq,
			Distance: distance,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Text < suggestions[j].Text
	})
	if len(suggestions) > size {
		suggestions = suggestions[:size]
	}
	return suggestions, nil
}

// levenshtein computes the edit distance between two strings with the
// classic two-row dynamic program.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
