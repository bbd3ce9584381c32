package domain

import (
	"strings"
	"time"
)

// IndexStatus is the lifecycle state of an index.
type IndexStatus string

const (
	IndexStatusOpen   IndexStatus = "open"
	IndexStatusClosed IndexStatus = "closed"
)

// IndexSettings holds per-index tunables a caller may override at creation.
type IndexSettings struct {
	NumberOfShards   int `json:"number_of_shards,omitempty"`
	NumberOfReplicas int `json:"number_of_replicas,omitempty"`
}

// FieldMapping describes how one field of a document should be indexed.
type FieldMapping struct {
	// Type is the field's declared value type, e.g. "text" or "keyword".
	Type string `json:"type"`

	// Analyzer names the analyzer used for "text" fields. Empty means the
	// mapping's index default ("standard") applies.
	Analyzer string `json:"analyzer,omitempty"`

	// Boost is a positive multiplier applied to this field's BM25
	// contribution. Defaults to 1.0 when zero.
	Boost float64 `json:"boost,omitempty"`

	// Fields declares nested sub-fields, e.g. a text field exposing a
	// "keyword" sub-field for exact-match/wildcard queries.
	Fields map[string]FieldMapping `json:"fields,omitempty"`
}

// EffectiveBoost returns Boost, defaulting to 1.0 when unset.
func (f FieldMapping) EffectiveBoost() float64 {
	if f.Boost <= 0 {
		return 1.0
	}
	return f.Boost
}

// EffectiveAnalyzer returns Analyzer, defaulting to "standard" when unset.
func (f FieldMapping) EffectiveAnalyzer() string {
	if f.Analyzer == "" {
		return "standard"
	}
	return f.Analyzer
}

// Mappings describes the field shape of documents stored in an index.
type Mappings struct {
	Properties map[string]FieldMapping `json:"properties"`
}

// FieldMapping looks up a (possibly nested) field mapping by dotted path,
// e.g. "title.keyword" resolves the "keyword" sub-field of "title".
func (m Mappings) FieldMapping(field string) (FieldMapping, bool) {
	if m.Properties == nil {
		return FieldMapping{}, false
	}
	if fm, ok := m.Properties[field]; ok {
		return fm, true
	}

	parts := strings.Split(field, ".")
	props := m.Properties
	var fm FieldMapping
	for i, part := range parts {
		next, ok := props[part]
		if !ok {
			return FieldMapping{}, false
		}
		fm = next
		if i < len(parts)-1 {
			if fm.Fields == nil {
				return FieldMapping{}, false
			}
			props = fm.Fields
		}
	}
	return fm, true
}

// IndexMetadata is the durable description of one index.
type IndexMetadata struct {
	Name          string        `json:"name"`
	Settings      IndexSettings `json:"settings"`
	Mappings      Mappings      `json:"mappings"`
	Status        IndexStatus   `json:"status"`
	DocumentCount int           `json:"document_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
}

// NewIndexMetadata constructs a freshly created, open index.
func NewIndexMetadata(name string, settings IndexSettings, mappings Mappings) *IndexMetadata {
	return &IndexMetadata{
		Name:      name,
		Settings:  settings,
		Mappings:  mappings,
		Status:    IndexStatusOpen,
		CreatedAt: time.Now(),
	}
}

// IsOpen reports whether the index currently accepts reads and writes.
func (m *IndexMetadata) IsOpen() bool {
	return m.Status == IndexStatusOpen
}

// Touch records that the index metadata changed.
func (m *IndexMetadata) Touch() {
	now := time.Now()
	m.UpdatedAt = &now
}
