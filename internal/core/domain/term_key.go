package domain

import (
	"fmt"
	"strings"
)

// TermKey is the index-aware triple (indexName, fieldName, token) used
// everywhere in the engine: dictionary lookups, chunk storage, and dirty-set
// tracking all key off it so documents from different indexes never collide.
type TermKey struct {
	Index string `json:"index"`
	Field string `json:"field"`
	Token string `json:"token"`
}

// NewTermKey builds a TermKey from its three parts.
func NewTermKey(index, field, token string) TermKey {
	return TermKey{Index: index, Field: field, Token: token}
}

// String returns the canonical serialization "indexName:fieldName:token".
// All persistent keys use this form.
func (k TermKey) String() string {
	return k.Index + ":" + k.Field + ":" + k.Token
}

// ParseTermKey reverses String. It fails if the input does not split into
// exactly three colon-separated parts.
func ParseTermKey(s string) (TermKey, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return TermKey{}, fmt.Errorf("parse term key %q: %w", s, ErrInvalidInput)
	}
	return TermKey{Index: parts[0], Field: parts[1], Token: parts[2]}, nil
}
