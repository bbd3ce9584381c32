// Package query implements the query parser, planner, and plan executor:
// turning a raw wire-shaped query into a logical tree, the tree
// into a cost-annotated execution plan, and the plan into ranked hits.
package query

import (
	"strings"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/engine/analysis"
)

// Parse turns a raw, loosely-typed query object (as decoded from a JSON
// request body) into a normalized domain.Query. Parsing is forgiving:
// unrecognized shapes produce an empty match-all rather than an
// error, and the caller's requested fields are used when a bare string is
// given without an explicit field.
func Parse(raw any, fields []string) domain.Query {
	switch v := raw.(type) {
	case nil:
		return domain.MatchAll(1)
	case string:
		return parseString(v, fields)
	case map[string]any:
		return parseObject(v, fields)
	default:
		return domain.MatchAll(1)
	}
}

func parseString(s string, fields []string) domain.Query {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "*" {
		return domain.MatchAll(1)
	}

	if strings.ContainsAny(trimmed, "*?") {
		return wildcardAcrossFields(trimmed, fields)
	}

	if strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) && len(trimmed) >= 2 {
		phraseText := trimmed[1 : len(trimmed)-1]
		return phraseAcrossFields(phraseText, fields)
	}

	tokens := analysis.StandardAnalyzer{Options: domain.DefaultAnalyzerOptions()}.Analyze(trimmed)
	if len(tokens) == 0 {
		return domain.MatchAll(1)
	}
	if len(tokens) == 1 {
		return termAcrossFields(tokens[0].Text, fields)
	}

	// Multiple tokens: boolean OR over per-field term queries across the
	// requested field set.
	var children []domain.Query
	for _, tok := range tokens {
		q := termAcrossFields(tok.Text, fields)
		if q.Kind == domain.QueryKindBoolean {
			children = append(children, q.Children...)
		} else {
			children = append(children, q)
		}
	}
	return domain.Boolean(domain.BoolOr, children...)
}

func termAcrossFields(token string, fields []string) domain.Query {
	if len(fields) == 0 {
		return domain.Term("_all", token)
	}
	if len(fields) == 1 {
		return domain.Term(fields[0], token)
	}
	children := make([]domain.Query, len(fields))
	for i, f := range fields {
		children[i] = domain.Term(f, token)
	}
	return domain.Boolean(domain.BoolOr, children...)
}

func wildcardAcrossFields(pattern string, fields []string) domain.Query {
	if len(fields) == 0 {
		return domain.Wildcard("_all", pattern)
	}
	if len(fields) == 1 {
		return domain.Wildcard(fields[0], pattern)
	}
	children := make([]domain.Query, len(fields))
	for i, f := range fields {
		children[i] = domain.Wildcard(f, pattern)
	}
	return domain.Boolean(domain.BoolOr, children...)
}

func phraseAcrossFields(text string, fields []string) domain.Query {
	tokens := analysis.StandardAnalyzer{Options: domain.DefaultAnalyzerOptions()}.Analyze(text)
	texts := make([]string, len(tokens))
	for i, t := range tokens {
		texts[i] = t.Text
	}

	field := "_all"
	if len(fields) > 0 {
		field = fields[0]
	}
	return domain.Phrase(field, texts, nil)
}

// parseObject handles the structured wire shapes: match, wildcard, phrase,
// bool, match_all.
func parseObject(obj map[string]any, fields []string) domain.Query {
	if m, ok := obj["match"].(map[string]any); ok {
		return parseMatch(m, fields)
	}
	if w, ok := obj["wildcard"].(map[string]any); ok {
		return parseWildcard(w, fields)
	}
	if p, ok := obj["phrase"].(map[string]any); ok {
		return parsePhrase(p, fields)
	}
	if b, ok := obj["bool"].(map[string]any); ok {
		return parseBool(b, fields)
	}
	if ma, ok := obj["match_all"].(map[string]any); ok {
		return parseMatchAll(ma)
	}
	if _, ok := obj["match_all"]; ok {
		return domain.MatchAll(1)
	}
	return domain.MatchAll(1)
}

func parseMatch(m map[string]any, fields []string) domain.Query {
	field, _ := m["field"].(string)
	value, _ := m["value"].(string)
	if field == "" {
		if len(fields) > 0 {
			field = fields[0]
		} else {
			field = "_all"
		}
	}

	// A match clause whose value contains wildcards is rewritten to a
	// wildcard query.
	if strings.ContainsAny(value, "*?") {
		return domain.Wildcard(field, value)
	}

	tokens := analysis.StandardAnalyzer{Options: domain.DefaultAnalyzerOptions()}.Analyze(value)
	if len(tokens) == 0 {
		return domain.MatchAll(1)
	}
	if len(tokens) == 1 {
		return domain.Term(field, tokens[0].Text)
	}

	children := make([]domain.Query, len(tokens))
	for i, t := range tokens {
		children[i] = domain.Term(field, t.Text)
	}
	return domain.Boolean(domain.BoolOr, children...)
}

func parseWildcard(w map[string]any, fields []string) domain.Query {
	field, _ := w["field"].(string)
	value, _ := w["value"].(string)
	if field == "" {
		if len(fields) > 0 {
			field = fields[0]
		} else {
			field = "_all"
		}
	}
	return domain.Wildcard(field, value)
}

func parsePhrase(p map[string]any, fields []string) domain.Query {
	field, _ := p["field"].(string)
	if field == "" {
		if len(fields) > 0 {
			field = fields[0]
		} else {
			field = "_all"
		}
	}

	var tokens []string
	if rawTokens, ok := p["tokens"].([]any); ok {
		for _, rt := range rawTokens {
			if s, ok := rt.(string); ok {
				tokens = append(tokens, s)
			}
		}
	} else if value, ok := p["value"].(string); ok {
		analyzed := analysis.StandardAnalyzer{Options: domain.DefaultAnalyzerOptions()}.Analyze(value)
		for _, t := range analyzed {
			tokens = append(tokens, t.Text)
		}
	}

	var offsets []int
	if rawOffsets, ok := p["offsets"].([]any); ok {
		for _, ro := range rawOffsets {
			if f, ok := ro.(float64); ok {
				offsets = append(offsets, int(f))
			}
		}
	}

	return domain.Phrase(field, tokens, offsets)
}

func parseBool(b map[string]any, fields []string) domain.Query {
	var children []domain.Query
	op := domain.BoolAnd

	if must, ok := b["must"].([]any); ok {
		for _, m := range must {
			children = append(children, Parse(m, fields))
		}
	}
	if should, ok := b["should"].([]any); ok {
		var orChildren []domain.Query
		for _, s := range should {
			orChildren = append(orChildren, Parse(s, fields))
		}
		if len(orChildren) > 0 {
			if len(children) == 0 {
				children = orChildren
				op = domain.BoolOr
			} else {
				children = append(children, domain.Boolean(domain.BoolOr, orChildren...))
			}
		}
	}
	if mustNot, ok := b["must_not"].([]any); ok {
		var notChildren []domain.Query
		for _, mn := range mustNot {
			notChildren = append(notChildren, Parse(mn, fields))
		}
		if len(notChildren) > 0 {
			children = append(children, domain.Boolean(domain.BoolNot, notChildren...))
		}
	}
	if and, ok := b["and"].([]any); ok {
		for _, a := range and {
			children = append(children, Parse(a, fields))
		}
	}
	if or, ok := b["or"].([]any); ok {
		var orChildren []domain.Query
		for _, o := range or {
			orChildren = append(orChildren, Parse(o, fields))
		}
		return domain.Boolean(domain.BoolOr, orChildren...)
	}
	if not, ok := b["not"].([]any); ok {
		var notChildren []domain.Query
		for _, n := range not {
			notChildren = append(notChildren, Parse(n, fields))
		}
		return domain.Boolean(domain.BoolNot, notChildren...)
	}

	if len(children) == 0 {
		return domain.MatchAll(1)
	}
	return domain.Boolean(op, children...)
}

func parseMatchAll(ma map[string]any) domain.Query {
	boost := 1.0
	if b, ok := ma["boost"].(float64); ok && b >= 0 {
		boost = b
	}
	return domain.MatchAll(boost)
}
