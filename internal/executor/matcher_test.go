package executor

import (
	"testing"

	"voicelog/internal/domain"
)

func TestSupplementMatcherPrefersExact(t *testing.T) {
	t.Parallel()

	known := []domain.Supplement{
		{ID: "1", Name: "Vitamin D3"},
		{ID: "2", Name: "Vitamin D"},
		{ID: "3", Name: "Fish Oil"},
	}
	m := DefaultMatcher()

	cases := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"vitamin d", "2", true},
		{"  VITAMIN   D3 ", "1", true},
		{"fish oil capsule", "3", true},
		{"oil", "3", true},
		{"iron", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := m.Match(tc.name, known)
		if ok != tc.wantOK || got.ID != tc.wantID {
			t.Fatalf("Match(%q) = (%q, %t), want (%q, %t)", tc.name, got.ID, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestSupplementMatcherCustomChain(t *testing.T) {
	t.Parallel()

	exactOnly := NewSupplementMatcher(ExactMatch{})
	if _, ok := exactOnly.Match("vitamin", []domain.Supplement{{ID: "1", Name: "Vitamin C"}}); ok {
		t.Fatalf("exact-only chain should not match substrings")
	}
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"":                 DefaultSeverity,
		"mild":             2,
		"Very Mild":        1,
		"moderate":         3,
		"severe":           5,
		"very severe":      5,
		"extremely bad":    5,
		"kind of annoying": DefaultSeverity,
		"4":                4,
		"9":                DefaultSeverity,
	}
	for raw, want := range cases {
		if got := ParseSeverity(raw); got != want {
			t.Fatalf("ParseSeverity(%q) = %d, want %d", raw, got, want)
		}
	}
}
