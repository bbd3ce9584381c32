// Package wildcard implements the Wildcard Expander: resolving a
// glob pattern against the term dictionary via a prefix-index lookup,
// never a full scan.
package wildcard

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
)

// TermLookup resolves whether an exact term exists in an index for a field,
// used for the suffix-wildcard shortcut.
type TermLookup func(ctx context.Context, index, field, token string) bool

// Pattern is a compiled wildcard expression.
type Pattern struct {
	Raw         string
	BasePattern string
	regex       *regexp.Regexp
	// SuffixOnly is true when the pattern is exactly "basePattern*" with no
	// other wildcards: the cheapest case, answerable with one exact lookup.
	SuffixOnly bool
}

// Compile derives BasePattern (the pattern with '*'/'?' stripped) and an
// anchored, case-insensitive regular expression: '.' for '?', '.*' for '*'.
func Compile(pattern string) Pattern {
	var regexBuilder strings.Builder
	var baseBuilder strings.Builder
	regexBuilder.WriteString("(?i)^")

	wildcardCount := 0
	leadingWildcard := len(pattern) > 0 && (pattern[0] == '*' || pattern[0] == '?')

	for _, r := range pattern {
		switch r {
		case '*':
			regexBuilder.WriteString(".*")
			wildcardCount++
		case '?':
			regexBuilder.WriteString(".")
			wildcardCount++
		default:
			regexBuilder.WriteString(regexp.QuoteMeta(string(r)))
			baseBuilder.WriteRune(r)
		}
	}
	regexBuilder.WriteString("$")

	suffixOnly := wildcardCount == 1 && !leadingWildcard && strings.HasSuffix(pattern, "*")

	return Pattern{
		Raw:         pattern,
		BasePattern: baseBuilder.String(),
		regex:       regexp.MustCompile(regexBuilder.String()),
		SuffixOnly:  suffixOnly && !strings.ContainsAny(pattern[:len(pattern)-1], "*?"),
	}
}

// Matches reports whether token satisfies the compiled pattern.
func (p Pattern) Matches(token string) bool {
	return p.regex.MatchString(token)
}

// Expand resolves a compiled pattern against an index/field to the set of
// matching terms, following the plan executor's wildcard step:
//  1. suffix-wildcard shortcut via an exact lookup when possible,
//  2. otherwise a prefix lookup via the store, filtered by the regex.
func Expand(ctx context.Context, store driven.ChunkStore, exists TermLookup, index, field string, p Pattern) ([]string, error) {
	if p.SuffixOnly && exists != nil && field != "" {
		if exists(ctx, index, field, p.BasePattern) {
			return []string{index + ":" + field + ":" + p.BasePattern}, nil
		}
	}

	candidates, err := store.FindTermsByIndexAndValuePrefix(ctx, index, p.BasePattern)
	if err != nil {
		return nil, fmt.Errorf("expand wildcard %q: %w", p.Raw, err)
	}

	matched := make([]string, 0, len(candidates))
	for _, termKeyStr := range candidates {
		keyField, token, ok := splitTermKey(termKeyStr)
		if !ok {
			continue
		}
		if field != "" && keyField != field {
			continue
		}
		if p.Matches(token) {
			matched = append(matched, termKeyStr)
		}
	}
	return matched, nil
}

// splitTermKey extracts the field and token portions of a canonical
// "index:field:token" term key string.
func splitTermKey(termKeyStr string) (field, token string, ok bool) {
	parts := strings.SplitN(termKeyStr, ":", 3)
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}
