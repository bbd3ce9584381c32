package domain

// Token is a single normalized unit produced by an analyzer: a lowercased,
// filtered text fragment together with its offset within the analyzed field.
type Token struct {
	// Text is the normalized token value.
	Text string `json:"text"`

	// Position is the zero-based token offset within the field, used for
	// phrase and adjacency checks.
	Position int `json:"position"`
}

// AnalyzerOptions configures how an analyzer normalizes raw field text.
type AnalyzerOptions struct {
	Lowercase          bool     `json:"lowercase"`
	RemoveStopWords    bool     `json:"remove_stop_words"`
	StopWords          []string `json:"stop_words,omitempty"`
	RemoveSpecialChars bool     `json:"remove_special_chars"`
}

// DefaultAnalyzerOptions returns the options the standard analyzer applies
// when a mapping does not override them.
func DefaultAnalyzerOptions() AnalyzerOptions {
	return AnalyzerOptions{
		Lowercase:          true,
		RemoveStopWords:    false,
		RemoveSpecialChars: false,
	}
}
