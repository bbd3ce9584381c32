package domain

import (
	"encoding/json"
	"strings"
	"sync"
)

// CorpusStats holds the counters the BM25 scorer needs: total document
// count, per-term document frequency, and per-field average length. Stats
// are authoritative only when derived from committed chunks; Recompute
// operations in internal/engine/stats rebuild them from the store.
//
// One CorpusStats is shared per index between concurrent indexing requests
// and readers, so every access goes through its internally guarded
// methods. The exported fields exist for the JSON snapshot form; outside
// this package, use the accessors.
type CorpusStats struct {
	mu sync.RWMutex

	TotalDocuments int `json:"total_documents"`

	// DocumentFrequency maps a term key's canonical string form to the
	// number of distinct documents containing it.
	DocumentFrequency map[string]int `json:"document_frequency"`

	// FieldLength maps "docId:field" to that document's token count in
	// the field, used to compute per-field averages.
	FieldLength map[string]int `json:"field_length"`

	// AvgFieldLength maps "index:field" to the average token count across
	// all documents of that index for that field.
	AvgFieldLength map[string]float64 `json:"avg_field_length"`

	// fieldLengthSum and fieldDocCount back incremental AvgFieldLength
	// maintenance; they are not part of the persisted snapshot.
	fieldLengthSum map[string]int
	fieldDocCount  map[string]int
}

// NewCorpusStats returns an empty, zeroed stats snapshot.
func NewCorpusStats() *CorpusStats {
	return &CorpusStats{
		DocumentFrequency: make(map[string]int),
		FieldLength:       make(map[string]int),
		AvgFieldLength:    make(map[string]float64),
		fieldLengthSum:    make(map[string]int),
		fieldDocCount:     make(map[string]int),
	}
}

// Total returns the current total document count.
func (s *CorpusStats) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TotalDocuments
}

// AddTotal adjusts the total document count by delta, clamped at zero.
func (s *CorpusStats) AddTotal(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalDocuments += delta
	if s.TotalDocuments < 0 {
		s.TotalDocuments = 0
	}
}

// DF returns the document frequency for a term key, or 0 if absent.
func (s *CorpusStats) DF(term TermKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DocumentFrequency[term.String()]
}

// AvgLength returns the average field length for (index, field), or 0 if
// no document has been observed yet.
func (s *CorpusStats) AvgLength(index, field string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.AvgFieldLength[index+":"+field]
}

// FieldLen returns the recorded token count of one document's field, or 0
// if the document has not been observed.
func (s *CorpusStats) FieldLen(docID, field string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.FieldLength[docID+":"+field]
}

// ObservedFields lists the fields this index has recorded lengths for,
// used to widen fieldless queries over dynamically mapped documents.
func (s *CorpusStats) ObservedFields(index string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fields []string
	for avgKey := range s.AvgFieldLength {
		if field, ok := strings.CutPrefix(avgKey, index+":"); ok {
			fields = append(fields, field)
		}
	}
	return fields
}

// RecordFieldLength updates the per-document field length and rolls the new
// value into the running average for (index, field). Call once per
// (doc, field) at index time.
func (s *CorpusStats) RecordFieldLength(index, docID, field string, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docKey := docID + ":" + field
	avgKey := index + ":" + field

	if prev, existed := s.FieldLength[docKey]; existed {
		s.fieldLengthSum[avgKey] += length - prev
	} else {
		s.fieldLengthSum[avgKey] += length
		s.fieldDocCount[avgKey]++
	}
	s.FieldLength[docKey] = length

	if count := s.fieldDocCount[avgKey]; count > 0 {
		s.AvgFieldLength[avgKey] = float64(s.fieldLengthSum[avgKey]) / float64(count)
	}
}

// RemoveFieldLength reverses RecordFieldLength when a document is deleted.
func (s *CorpusStats) RemoveFieldLength(index, docID, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docKey := docID + ":" + field
	avgKey := index + ":" + field

	prev, existed := s.FieldLength[docKey]
	if !existed {
		return
	}
	s.fieldLengthSum[avgKey] -= prev
	s.fieldDocCount[avgKey]--
	delete(s.FieldLength, docKey)

	if count := s.fieldDocCount[avgKey]; count > 0 {
		s.AvgFieldLength[avgKey] = float64(s.fieldLengthSum[avgKey]) / float64(count)
	} else {
		s.AvgFieldLength[avgKey] = 0
		delete(s.fieldLengthSum, avgKey)
		delete(s.fieldDocCount, avgKey)
	}
}

// IncrementDF bumps the document frequency of a term key by delta (negative
// to decrement on delete). The entry is pruned once it reaches zero.
func (s *CorpusStats) IncrementDF(term TermKey, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := term.String()
	s.DocumentFrequency[key] += delta
	if s.DocumentFrequency[key] <= 0 {
		delete(s.DocumentFrequency, key)
	}
}

// RebuildDerived reconstructs the unexported running sums behind
// AvgFieldLength from the persisted FieldLength map, for stats snapshots
// that were round-tripped through JSON (the unexported maps are not
// serialized). index is the owning index of this snapshot; field names must
// not contain ':'.
func (s *CorpusStats) RebuildDerived(index string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fieldLengthSum = make(map[string]int)
	s.fieldDocCount = make(map[string]int)
	if s.DocumentFrequency == nil {
		s.DocumentFrequency = make(map[string]int)
	}
	if s.FieldLength == nil {
		s.FieldLength = make(map[string]int)
	}
	if s.AvgFieldLength == nil {
		s.AvgFieldLength = make(map[string]float64)
	}

	for docKey, length := range s.FieldLength {
		sep := strings.LastIndex(docKey, ":")
		if sep < 0 {
			continue
		}
		avgKey := index + ":" + docKey[sep+1:]
		s.fieldLengthSum[avgKey] += length
		s.fieldDocCount[avgKey]++
	}
	for avgKey, count := range s.fieldDocCount {
		if count > 0 {
			s.AvgFieldLength[avgKey] = float64(s.fieldLengthSum[avgKey]) / float64(count)
		}
	}
}

// corpusStatsSnapshot is the lock-free JSON form of CorpusStats.
type corpusStatsSnapshot struct {
	TotalDocuments    int                `json:"total_documents"`
	DocumentFrequency map[string]int     `json:"document_frequency"`
	FieldLength       map[string]int     `json:"field_length"`
	AvgFieldLength    map[string]float64 `json:"avg_field_length"`
}

// MarshalJSON serializes a consistent snapshot, so persisting stats is safe
// while indexing keeps mutating them.
func (s *CorpusStats) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(corpusStatsSnapshot{
		TotalDocuments:    s.TotalDocuments,
		DocumentFrequency: s.DocumentFrequency,
		FieldLength:       s.FieldLength,
		AvgFieldLength:    s.AvgFieldLength,
	})
}

// UnmarshalJSON restores the snapshot form. Callers should follow with
// RebuildDerived before mutating the restored stats.
func (s *CorpusStats) UnmarshalJSON(data []byte) error {
	var snap corpusStatsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalDocuments = snap.TotalDocuments
	s.DocumentFrequency = snap.DocumentFrequency
	s.FieldLength = snap.FieldLength
	s.AvgFieldLength = snap.AvgFieldLength
	return nil
}
