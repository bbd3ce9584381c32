// Package analysis implements the text analyzers: pure,
// side-effect-free transforms from raw field text into an ordered token
// sequence.
package analysis

import (
	"strings"
	"unicode"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// Analyzer turns a raw text value into an ordered token sequence. Empty or
// absent input yields an empty sequence; analyzers never error.
type Analyzer interface {
	Analyze(text string) []domain.Token
}

// Get resolves an analyzer by name, defaulting to "standard" for an unknown
// or empty name rather than failing — parsing is meant to be forgiving.
func Get(name string, opts domain.AnalyzerOptions) Analyzer {
	switch name {
	case "whitespace":
		return WhitespaceAnalyzer{}
	default:
		return StandardAnalyzer{Options: opts}
	}
}

// StandardAnalyzer splits on Unicode word boundaries, then optionally
// lowercases, strips stop words, and strips special characters.
type StandardAnalyzer struct {
	Options domain.AnalyzerOptions
}

var defaultStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {}, "that": {},
	"the": {}, "their": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// Analyze implements Analyzer.
func (a StandardAnalyzer) Analyze(text string) []domain.Token {
	if text == "" {
		return nil
	}

	words := splitOnWordBoundaries(text)
	stopSet := defaultStopWords
	if len(a.Options.StopWords) > 0 {
		stopSet = make(map[string]struct{}, len(a.Options.StopWords))
		for _, w := range a.Options.StopWords {
			stopSet[strings.ToLower(w)] = struct{}{}
		}
	}

	tokens := make([]domain.Token, 0, len(words))
	pos := 0
	for _, w := range words {
		if a.Options.Lowercase {
			w = strings.ToLower(w)
		}
		if a.Options.RemoveSpecialChars {
			w = stripSpecialChars(w)
		}
		if w == "" {
			continue
		}
		if a.Options.RemoveStopWords {
			checkWord := w
			if !a.Options.Lowercase {
				checkWord = strings.ToLower(w)
			}
			if _, isStop := stopSet[checkWord]; isStop {
				continue
			}
		}

		tokens = append(tokens, domain.Token{Text: w, Position: pos})
		pos++
	}

	return tokens
}

// splitOnWordBoundaries splits text into runs of letters/digits, discarding
// everything else (punctuation, whitespace).
func splitOnWordBoundaries(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return words
}

func stripSpecialChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhitespaceAnalyzer splits only on whitespace runs, preserving punctuation.
type WhitespaceAnalyzer struct{}

// Analyze implements Analyzer.
func (WhitespaceAnalyzer) Analyze(text string) []domain.Token {
	fields := strings.Fields(text)
	tokens := make([]domain.Token, len(fields))
	for i, f := range fields {
		tokens[i] = domain.Token{Text: f, Position: i}
	}
	return tokens
}
