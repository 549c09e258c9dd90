package executor

import (
	"strings"

	"voicelog/internal/domain"
)

// MatchStrategy picks a supplement for a spoken name, or reports no match.
type MatchStrategy interface {
	Match(name string, candidates []domain.Supplement) (domain.Supplement, bool)
}

// ExactMatch compares trimmed names case-insensitively.
type ExactMatch struct{}

func (ExactMatch) Match(name string, candidates []domain.Supplement) (domain.Supplement, bool) {
	want := foldName(name)
	if want == "" {
		return domain.Supplement{}, false
	}
	for _, s := range candidates {
		if foldName(s.Name) == want {
			return s, true
		}
	}
	return domain.Supplement{}, false
}

// SubstringMatch accepts containment in either direction, so "vitamin d" finds "Vitamin D3"
// and "prenatal vitamin" finds "Prenatal".
type SubstringMatch struct{}

func (SubstringMatch) Match(name string, candidates []domain.Supplement) (domain.Supplement, bool) {
	want := foldName(name)
	if want == "" {
		return domain.Supplement{}, false
	}
	for _, s := range candidates {
		have := foldName(s.Name)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return s, true
		}
	}
	return domain.Supplement{}, false
}

// SupplementMatcher tries each strategy in order; the first hit wins.
type SupplementMatcher struct {
	strategies []MatchStrategy
}

func NewSupplementMatcher(strategies ...MatchStrategy) SupplementMatcher {
	return SupplementMatcher{strategies: strategies}
}

// DefaultMatcher is exact match, then substring match.
func DefaultMatcher() SupplementMatcher {
	return NewSupplementMatcher(ExactMatch{}, SubstringMatch{})
}

func (m SupplementMatcher) Match(name string, candidates []domain.Supplement) (domain.Supplement, bool) {
	for _, strategy := range m.strategies {
		if s, ok := strategy.Match(name, candidates); ok {
			return s, true
		}
	}
	return domain.Supplement{}, false
}

func foldName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
