// Package scorer implements the BM25 Scorer, with per-field boosts
// and a per-index single-flight cache for field-boost lookups.
package scorer

import "math"

// Defaults.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Params holds the tunable BM25 constants. Zero values fall back to the
// standard defaults via New.
type Params struct {
	K1 float64
	B  float64
}

// BM25 scores (term, doc, field) pairs given corpus statistics.
type BM25 struct {
	params Params
}

// New returns a BM25 scorer with the given constants; zero fields default
// to K1=1.2, B=0.75.
func New(params Params) *BM25 {
	if params.K1 <= 0 {
		params.K1 = DefaultK1
	}
	if params.B <= 0 {
		params.B = DefaultB
	}
	return &BM25{params: params}
}

// Score computes the BM25 contribution of one term in one field of one
// document.
//
//	idf   = ln((N − df + 0.5) / (df + 0.5) + 1)
//	norm  = tf + k1 × (1 − b + b × (fieldLength / avgFieldLength))
//	score = idf × (tf × (k1 + 1) / norm) × fieldBoost
//
// Returns 0 if tf <= 0, df <= 0, or avgFieldLength == 0.
func (s *BM25) Score(totalDocuments, df int, tf float64, fieldLength, avgFieldLength float64, fieldBoost float64) float64 {
	if tf <= 0 || df <= 0 || avgFieldLength == 0 {
		return 0
	}

	n := float64(totalDocuments)
	idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)

	k1 := s.params.K1
	b := s.params.B
	norm := tf + k1*(1-b+b*(fieldLength/avgFieldLength))
	if norm == 0 {
		return 0
	}

	if fieldBoost <= 0 {
		fieldBoost = 1.0
	}

	return idf * (tf * (k1 + 1) / norm) * fieldBoost
}

// SumFields sums the BM25 contribution of a term across multiple fields it
// matched in, summing per-field contributions.
func (s *BM25) SumFields(perField []FieldScore) float64 {
	var total float64
	for _, fs := range perField {
		total += s.Score(fs.TotalDocuments, fs.DF, fs.TF, fs.FieldLength, fs.AvgFieldLength, fs.FieldBoost)
	}
	return total
}

// FieldScore bundles the inputs to one field's BM25 contribution, for use
// with SumFields.
type FieldScore struct {
	TotalDocuments int
	DF             int
	TF             float64
	FieldLength    float64
	AvgFieldLength float64
	FieldBoost     float64
}
