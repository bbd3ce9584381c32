package services

import (
	"strings"
	"unicode"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/engine/wildcard"
)

const (
	highlightPre  = "<em>"
	highlightPost = "</em>"
)

// termMatcher decides whether one token of a source field matched the
// query.
type termMatcher struct {
	exact    map[string]struct{}
	patterns []wildcard.Pattern
}

func (m termMatcher) matches(token string) bool {
	if _, ok := m.exact[strings.ToLower(token)]; ok {
		return true
	}
	for _, p := range m.patterns {
		if p.Matches(token) {
			return true
		}
	}
	return false
}

// highlightSource wraps matched term spans in each searched field of a
// hit's source content, for the _search response's highlights map. Fields
// with
// no match are omitted.
func highlightSource(q domain.Query, fields []string, source map[string]any) map[string]string {
	if source == nil {
		return nil
	}

	matchers := map[string]*termMatcher{}
	collectMatchers(q, matchers)
	if len(matchers) == 0 {
		return nil
	}

	highlights := map[string]string{}
	for _, field := range fields {
		value, ok := source[field].(string)
		if !ok || value == "" {
			continue
		}

		matcher := matchers[field]
		if matcher == nil {
			matcher = matchers["_all"]
		}
		if matcher == nil {
			continue
		}

		if highlighted, any := highlightText(value, matcher); any {
			highlights[field] = highlighted
		}
	}

	if len(highlights) == 0 {
		return nil
	}
	return highlights
}

// collectMatchers walks the query tree gathering per-field token matchers.
func collectMatchers(q domain.Query, out map[string]*termMatcher) {
	get := func(field string) *termMatcher {
		m, ok := out[field]
		if !ok {
			m = &termMatcher{exact: map[string]struct{}{}}
			out[field] = m
		}
		return m
	}

	switch q.Kind {
	case domain.QueryKindTerm:
		get(q.Field).exact[strings.ToLower(q.Value)] = struct{}{}
	case domain.QueryKindPhrase:
		m := get(q.Field)
		for _, tok := range q.Tokens {
			m.exact[strings.ToLower(tok)] = struct{}{}
		}
	case domain.QueryKindWildcard:
		m := get(q.Field)
		m.patterns = append(m.patterns, wildcard.Compile(q.Value))
	case domain.QueryKindBoolean:
		if q.Operator == domain.BoolNot {
			return // excluded terms are not highlights
		}
		for _, c := range q.Children {
			collectMatchers(c, out)
		}
	}
}

// highlightText scans text word by word, wrapping matched words while
// preserving the original spacing and punctuation.
func highlightText(text string, matcher *termMatcher) (string, bool) {
	var b strings.Builder
	matched := false

	runes := []rune(text)
	i := 0
	for i < len(runes) {
		if !unicode.IsLetter(runes[i]) && !unicode.IsDigit(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}

		start := i
		for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
			i++
		}
		word := string(runes[start:i])

		if matcher.matches(strings.ToLower(word)) {
			b.WriteString(highlightPre)
			b.WriteString(word)
			b.WriteString(highlightPost)
			matched = true
		} else {
			b.WriteString(word)
		}
	}

	return b.String(), matched
}
