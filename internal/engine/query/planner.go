package query

import (
	"sort"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// StatsSource supplies the counters the planner needs to cost a node.
type StatsSource interface {
	DF(term domain.TermKey) int
	TotalDocuments(index string) int
}

// Plan turns a logical Query tree into a cost-annotated PlanNode tree,
// following the per-node-type cost and estimatedResults formulas.
func Plan(q domain.Query, index string, stats StatsSource) domain.PlanNode {
	switch q.Kind {
	case domain.QueryKindTerm:
		return planTerm(q, index, stats)
	case domain.QueryKindPhrase:
		return planPhrase(q, index, stats)
	case domain.QueryKindBoolean:
		return planBoolean(q, index, stats)
	case domain.QueryKindWildcard:
		return planWildcard(q, index, stats)
	case domain.QueryKindMatchAll:
		return planMatchAll(q, index, stats)
	default:
		return planMatchAll(domain.MatchAll(1), index, stats)
	}
}

func planTerm(q domain.Query, index string, stats StatsSource) domain.PlanNode {
	df := stats.DF(domain.NewTermKey(index, q.Field, q.Value))
	cost := float64(df)
	if df <= 0 {
		cost = domain.TermSentinelCost
	}
	return domain.PlanNode{
		Kind:             domain.PlanNodeTerm,
		Field:            q.Field,
		Value:            q.Value,
		Cost:             cost,
		EstimatedResults: df,
		Boost:            q.EffectiveBoost(),
	}
}

func planBoolean(q domain.Query, index string, stats StatsSource) domain.PlanNode {
	children := make([]domain.PlanNode, len(q.Children))
	for i, c := range q.Children {
		children[i] = Plan(c, index, stats)
	}

	node := domain.PlanNode{
		Kind:     domain.PlanNodeBoolean,
		Operator: q.Operator,
		Children: children,
		Boost:    q.EffectiveBoost(),
	}

	switch q.Operator {
	case domain.BoolAnd:
		sort.Slice(children, func(i, j int) bool { return children[i].Cost < children[j].Cost })
		node.Children = children

		var totalCost float64
		minEstimated := -1
		for _, c := range children {
			totalCost += c.Cost
			if minEstimated < 0 || c.EstimatedResults < minEstimated {
				minEstimated = c.EstimatedResults
			}
		}
		node.Cost = totalCost
		if minEstimated < 0 {
			minEstimated = 0
		}
		node.EstimatedResults = minEstimated

	case domain.BoolOr:
		var totalCost float64
		var totalEstimated int
		for _, c := range children {
			totalCost += c.Cost
			totalEstimated += c.EstimatedResults
		}
		node.Cost = totalCost
		node.EstimatedResults = totalEstimated

	case domain.BoolNot:
		var totalCost float64
		var excluded int
		for _, c := range children {
			totalCost += c.Cost
			excluded += c.EstimatedResults
		}
		node.Cost = 1.5 * totalCost
		totalDocs := stats.TotalDocuments(index)
		estimated := totalDocs - excluded
		if estimated < 0 {
			estimated = 0
		}
		node.EstimatedResults = estimated
	}

	return node
}

func planPhrase(q domain.Query, index string, stats StatsSource) domain.PlanNode {
	var children []domain.Query
	for _, tok := range q.Tokens {
		children = append(children, domain.Term(q.Field, tok))
	}
	base := planBoolean(domain.Boolean(domain.BoolAnd, children...), index, stats)

	return domain.PlanNode{
		Kind:             domain.PlanNodePhrase,
		Field:            q.Field,
		Tokens:           q.Tokens,
		Offsets:          q.Offsets,
		Children:         base.Children,
		Cost:             base.Cost * 1.5,
		EstimatedResults: int(float64(base.EstimatedResults) * 0.3),
		Boost:            q.EffectiveBoost(),
	}
}

func planWildcard(q domain.Query, index string, stats StatsSource) domain.PlanNode {
	wildcards := 0
	leading := len(q.Value) > 0 && (q.Value[0] == '*' || q.Value[0] == '?')
	freeChars := 0
	for _, r := range q.Value {
		if r == '*' || r == '?' {
			wildcards++
		} else {
			freeChars++
		}
	}

	cost := float64(10 * wildcards)
	if leading {
		// No prefix index can help; penalize heavily so the planner never
		// prefers a leading-wildcard branch over a term/boolean sibling.
		cost += 500
	}

	totalDocs := stats.TotalDocuments(index)
	estimated := 0
	if len(q.Value) > 0 {
		estimated = totalDocs * freeChars / len(q.Value)
	}

	return domain.PlanNode{
		Kind:             domain.PlanNodeWildcard,
		Field:            q.Field,
		Value:            q.Value,
		Cost:             cost,
		EstimatedResults: estimated,
		Boost:            q.EffectiveBoost(),
	}
}

func planMatchAll(q domain.Query, index string, stats StatsSource) domain.PlanNode {
	total := stats.TotalDocuments(index)
	return domain.PlanNode{
		Kind:             domain.PlanNodeMatchAll,
		Cost:             float64(total),
		EstimatedResults: total,
		Boost:            q.EffectiveBoost(),
	}
}
