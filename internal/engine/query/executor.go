package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/engine/analysis"
	"github.com/scarab-search/scarab-core/internal/engine/postings"
	"github.com/scarab-search/scarab-core/internal/engine/scorer"
	"github.com/scarab-search/scarab-core/internal/engine/wildcard"
)

// PostingSource resolves the logical posting list for a term key, preferring
// the larger of the in-memory cache and the chunked store: bulk
// ingestion may have persisted a longer list than the cache retained after
// eviction, so the store is treated as equally authoritative.
type PostingSource interface {
	Resolve(ctx context.Context, key domain.TermKey) (*postings.List, error)
	ExpandWildcard(ctx context.Context, index, field string, pattern wildcard.Pattern) ([]string, error)
	AllDocIDs(ctx context.Context, index string, limit int) ([]string, error)
}

// ScoredDoc is one intermediate result of plan execution: a docId with its
// accumulated score.
type ScoredDoc struct {
	DocID string
	Score float64
}

// Deps bundles the collaborators the executor needs beyond the plan tree
// itself: corpus stats for BM25, the posting source, and the boost cache.
type Deps struct {
	Source   PostingSource
	Stats    StatsSource
	CorpusN  func(index string) int
	FieldLen func(index, docID, field string) float64
	AvgLen   func(index, field string) float64
	Boost    *scorer.BoostCache
	Scorer   *scorer.BM25
	Analyzer analysis.Analyzer
}

// Deadline is checked at the start of every Execute call, that is before
// each plan node runs; iterations inside one node do not check it. A nil
// deadline never expires.
type Deadline interface {
	Exceeded() bool
}

// Execute runs a plan node against index and returns ranked (docId, score)
// pairs, unsorted-but-deduplicated by docId. The caller (the search
// service) is responsible for the final sort, post-filter, and pagination
// steps.
func Execute(ctx context.Context, node domain.PlanNode, index string, deps Deps, deadline Deadline) ([]ScoredDoc, error) {
	if deadline != nil && deadline.Exceeded() {
		return nil, fmt.Errorf("execute %s: %w", node.Kind, domain.ErrTimeout)
	}

	switch node.Kind {
	case domain.PlanNodeTerm:
		return executeTerm(ctx, node, index, deps)
	case domain.PlanNodeBoolean:
		return executeBoolean(ctx, node, index, deps, deadline)
	case domain.PlanNodePhrase:
		return executePhrase(ctx, node, index, deps)
	case domain.PlanNodeWildcard:
		return executeWildcard(ctx, node, index, deps)
	case domain.PlanNodeMatchAll:
		return executeMatchAll(ctx, node, index, deps)
	default:
		return nil, fmt.Errorf("execute: unknown plan node kind %q: %w", node.Kind, domain.ErrInvalidInput)
	}
}

// executeTerm implements the term step: analyze the input token
// through the standard analyzer, resolve each resulting token's posting
// list, and score every posting as a BM25 contribution.
func executeTerm(ctx context.Context, node domain.PlanNode, index string, deps Deps) ([]ScoredDoc, error) {
	tokens := analyzeValue(deps, node.Value)
	if len(tokens) == 0 {
		return nil, nil
	}

	// Forgiving execution: a multi-token term value (e.g. an un-tokenized
	// caller-supplied value) is scored as an OR across its tokens, mirroring
	// the parser's bare-string handling.
	acc := map[string]float64{}
	for _, tok := range tokens {
		key := domain.NewTermKey(index, node.Field, tok)
		list, err := deps.Source.Resolve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("resolve term %s: %w", key, err)
		}
		if list == nil {
			continue
		}

		boost, err := deps.Boost.Boost(ctx, index, node.Field)
		if err != nil {
			return nil, fmt.Errorf("resolve boost for %s.%s: %w", index, node.Field, err)
		}
		boost *= node.Boost
		if boost <= 0 {
			boost = 1.0
		}

		df := deps.Stats.DF(key)
		n := deps.CorpusN(index)
		avgLen := deps.AvgLen(index, node.Field)

		list.EntriesFunc(func(e domain.PostingEntry) bool {
			fieldLen := deps.FieldLen(index, e.DocID, node.Field)
			score := deps.Scorer.Score(n, df, float64(e.Frequency), fieldLen, avgLen, boost)
			acc[e.DocID] += score
			return true
		})
	}

	return mapToScored(acc), nil
}

// executeBoolean implements the boolean step: AND intersects by
// docId and multiplies scores; OR unions and sums scores; NOT subtracts by
// set membership, dropping the excluded side's score contribution.
func executeBoolean(ctx context.Context, node domain.PlanNode, index string, deps Deps, deadline Deadline) ([]ScoredDoc, error) {
	switch node.Operator {
	case domain.BoolAnd:
		return executeAnd(ctx, node, index, deps, deadline)
	case domain.BoolOr:
		return executeOr(ctx, node, index, deps, deadline)
	case domain.BoolNot:
		return executeNot(ctx, node, index, deps, deadline)
	default:
		return nil, fmt.Errorf("execute boolean: unknown operator %q: %w", node.Operator, domain.ErrInvalidInput)
	}
}

func executeAnd(ctx context.Context, node domain.PlanNode, index string, deps Deps, deadline Deadline) ([]ScoredDoc, error) {
	if len(node.Children) == 0 {
		return nil, nil
	}

	// Children already sorted ascending by cost: the most selective
	// branch runs first so later branches only need to probe its survivors.
	current, err := Execute(ctx, node.Children[0], index, deps, deadline)
	if err != nil {
		return nil, err
	}
	scores := toMap(current)

	for _, child := range node.Children[1:] {
		if len(scores) == 0 {
			break // early termination: nothing left to intersect
		}
		childScores, err := Execute(ctx, child, index, deps, deadline)
		if err != nil {
			return nil, err
		}
		childMap := toMap(childScores)

		for docID, s := range scores {
			other, ok := childMap[docID]
			if !ok {
				delete(scores, docID)
				continue
			}
			scores[docID] = s * other
		}
	}

	return mapToScored(scores), nil
}

func executeOr(ctx context.Context, node domain.PlanNode, index string, deps Deps, deadline Deadline) ([]ScoredDoc, error) {
	scores := map[string]float64{}
	for _, child := range node.Children {
		childScores, err := Execute(ctx, child, index, deps, deadline)
		if err != nil {
			return nil, err
		}
		for _, sd := range childScores {
			scores[sd.DocID] += sd.Score
		}
	}
	return mapToScored(scores), nil
}

func executeNot(ctx context.Context, node domain.PlanNode, index string, deps Deps, deadline Deadline) ([]ScoredDoc, error) {
	if len(node.Children) == 0 {
		return nil, nil
	}

	excluded := map[string]struct{}{}
	for _, child := range node.Children {
		childScores, err := Execute(ctx, child, index, deps, deadline)
		if err != nil {
			return nil, err
		}
		for _, sd := range childScores {
			excluded[sd.DocID] = struct{}{}
		}
	}

	allDocs, err := deps.Source.AllDocIDs(ctx, index, 0)
	if err != nil {
		return nil, fmt.Errorf("execute not: %w", err)
	}

	out := make([]ScoredDoc, 0, len(allDocs))
	for _, docID := range allDocs {
		if _, ok := excluded[docID]; ok {
			continue
		}
		out = append(out, ScoredDoc{DocID: docID, Score: 1.0})
	}
	return out, nil
}

// executePhrase implements the phrase step: intersect documents
// containing every term, verify their position lists form an increasing
// arithmetic progression matching the phrase's relative offsets, and boost
// surviving documents' summed BM25 score by a constant factor.
const phraseBoostFactor = 1.5

func executePhrase(ctx context.Context, node domain.PlanNode, index string, deps Deps) ([]ScoredDoc, error) {
	if len(node.Tokens) == 0 {
		return nil, nil
	}

	offsets := node.Offsets
	if len(offsets) != len(node.Tokens) {
		offsets = make([]int, len(node.Tokens))
		for i := range offsets {
			offsets[i] = i
		}
	}

	lists := make([]*postings.List, len(node.Tokens))
	boost, err := deps.Boost.Boost(ctx, index, node.Field)
	if err != nil {
		return nil, fmt.Errorf("resolve boost for %s.%s: %w", index, node.Field, err)
	}
	boost *= node.Boost
	if boost <= 0 {
		boost = 1.0
	}

	for i, tok := range node.Tokens {
		key := domain.NewTermKey(index, node.Field, tok)
		list, err := deps.Source.Resolve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("resolve phrase term %s: %w", key, err)
		}
		if list == nil || list.Size() == 0 {
			return nil, nil // a missing term means no document can match
		}
		lists[i] = list
	}

	// Intersect candidate docIds starting from the smallest list.
	sort.Slice(lists, func(i, j int) bool { return lists[i].Size() < lists[j].Size() })
	candidates := lists[0].DocIDs()

	n := deps.CorpusN(index)
	avgLen := deps.AvgLen(index, node.Field)

	var out []ScoredDoc
	for _, docID := range candidates {
		positions := make([][]int, len(node.Tokens))
		match := true
		for i, tok := range node.Tokens {
			key := domain.NewTermKey(index, node.Field, tok)
			list, err := deps.Source.Resolve(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("resolve phrase term %s: %w", key, err)
			}
			entry, ok := list.GetEntry(docID)
			if !ok {
				match = false
				break
			}
			positions[i] = entry.Positions
		}
		if !match || !matchesPhraseOffsets(positions, offsets) {
			continue
		}

		var score float64
		for _, tok := range node.Tokens {
			key := domain.NewTermKey(index, node.Field, tok)
			df := deps.Stats.DF(key)
			list, _ := deps.Source.Resolve(ctx, key)
			entry, _ := list.GetEntry(docID)
			fieldLen := deps.FieldLen(index, docID, node.Field)
			score += deps.Scorer.Score(n, df, float64(entry.Frequency), fieldLen, avgLen, boost)
		}

		out = append(out, ScoredDoc{DocID: docID, Score: score * phraseBoostFactor})
	}

	return out, nil
}

// matchesPhraseOffsets reports whether, for some starting position p in the
// first term's occurrences, every term i occurs at p+offsets[i]-offsets[0].
func matchesPhraseOffsets(positions [][]int, offsets []int) bool {
	if len(positions) == 0 || len(positions[0]) == 0 {
		return false
	}

	for _, start := range positions[0] {
		base := start - offsets[0]
		allMatch := true
		for i := 1; i < len(positions); i++ {
			want := base + offsets[i]
			found := false
			for _, p := range positions[i] {
				if p == want {
					found = true
					break
				}
			}
			if !found {
				allMatch = false
				break
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}

// executeWildcard implements the wildcard step: resolve matching
// terms via the compiled pattern, score each as an OR contribution, and sum
// scores across matching terms per document.
func executeWildcard(ctx context.Context, node domain.PlanNode, index string, deps Deps) ([]ScoredDoc, error) {
	pattern := wildcard.Compile(node.Value)
	matchingKeys, err := deps.Source.ExpandWildcard(ctx, index, node.Field, pattern)
	if err != nil {
		return nil, fmt.Errorf("expand wildcard: %w", err)
	}

	boost, err := deps.Boost.Boost(ctx, index, node.Field)
	if err != nil {
		return nil, fmt.Errorf("resolve boost for %s.%s: %w", index, node.Field, err)
	}
	boost *= node.Boost
	if boost <= 0 {
		boost = 1.0
	}

	n := deps.CorpusN(index)
	avgLen := deps.AvgLen(index, node.Field)

	acc := map[string]float64{}
	for _, termKeyStr := range matchingKeys {
		key, err := domain.ParseTermKey(termKeyStr)
		if err != nil {
			continue
		}
		list, err := deps.Source.Resolve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("resolve wildcard term %s: %w", key, err)
		}
		if list == nil {
			continue
		}

		df := deps.Stats.DF(key)
		list.EntriesFunc(func(e domain.PostingEntry) bool {
			fieldLen := deps.FieldLen(index, e.DocID, node.Field)
			score := deps.Scorer.Score(n, df, float64(e.Frequency), fieldLen, avgLen, boost)
			acc[e.DocID] += score
			return true
		})
	}

	return mapToScored(acc), nil
}

// executeMatchAll implements the match-all step: enumerate every
// docId for the index (AllDocIDs is called without a limit), assigning a
// uniform score equal to the query's boost.
func executeMatchAll(ctx context.Context, node domain.PlanNode, index string, deps Deps) ([]ScoredDoc, error) {
	docIDs, err := deps.Source.AllDocIDs(ctx, index, 0)
	if err != nil {
		return nil, fmt.Errorf("execute match_all: %w", err)
	}

	boost := node.Boost
	if boost <= 0 {
		boost = 1.0
	}

	out := make([]ScoredDoc, len(docIDs))
	for i, id := range docIDs {
		out[i] = ScoredDoc{DocID: id, Score: boost}
	}
	return out, nil
}

func analyzeValue(deps Deps, value string) []string {
	a := deps.Analyzer
	if a == nil {
		a = analysis.StandardAnalyzer{Options: domain.DefaultAnalyzerOptions()}
	}
	tokens := a.Analyze(value)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func toMap(docs []ScoredDoc) map[string]float64 {
	m := make(map[string]float64, len(docs))
	for _, d := range docs {
		m[d.DocID] = d.Score
	}
	return m
}

func mapToScored(m map[string]float64) []ScoredDoc {
	out := make([]ScoredDoc, 0, len(m))
	for docID, score := range m {
		out = append(out, ScoredDoc{DocID: docID, Score: score})
	}
	return out
}

// SortAndPaginate sorts by descending score with a stable docId tiebreak,
// then slices [from, from+size), completing the "after plan execution"
// steps prior to source resolution.
func SortAndPaginate(docs []ScoredDoc, from, size int) (page []ScoredDoc, total int, maxScore float64) {
	total = len(docs)
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})

	for _, d := range docs {
		if d.Score > maxScore {
			maxScore = d.Score
		}
	}

	if from < 0 {
		from = 0
	}
	if from >= len(docs) {
		return nil, total, maxScore
	}
	end := from + size
	if size <= 0 || end > len(docs) {
		end = len(docs)
	}
	return docs[from:end], total, maxScore
}
