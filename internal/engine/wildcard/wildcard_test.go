package wildcard

import "testing"

func TestCompile_BasePattern(t *testing.T) {
	p := Compile("bulk*")
	if p.BasePattern != "bulk" {
		t.Errorf("base pattern = %q, want %q", p.BasePattern, "bulk")
	}
	if !p.SuffixOnly {
		t.Error("expected SuffixOnly for pure suffix wildcard")
	}
}

func TestCompile_LeadingWildcardNotSuffixOnly(t *testing.T) {
	p := Compile("*bulk")
	if p.SuffixOnly {
		t.Error("leading wildcard must not be treated as suffix-only")
	}
}

func TestCompile_QuestionMarkIsSingleChar(t *testing.T) {
	p := Compile("b?lk")
	if !p.Matches("bulk") {
		t.Error("b?lk should match bulk")
	}
	if p.Matches("bllk") == false {
		t.Error("b?lk should match bllk too")
	}
	if p.Matches("bulkk") {
		t.Error("b?lk should not match bulkk (extra char)")
	}
}

func TestCompile_CaseInsensitive(t *testing.T) {
	p := Compile("bulk*")
	if !p.Matches("BULK-ONE") {
		t.Error("expected case-insensitive match")
	}
}

func TestCompile_AnchoredBothEnds(t *testing.T) {
	p := Compile("smart*")
	if p.Matches("unsmartphone") {
		t.Error("pattern must be left-anchored")
	}
	if !p.Matches("smartphone") {
		t.Error("expected smartphone to match smart*")
	}
}
