package executor

import (
	"strconv"
	"strings"
)

// DefaultSeverity is used when no severity was spoken or the term is unknown.
const DefaultSeverity = 3

// Longest phrases first so "very mild" wins over "mild".
var severityVocabulary = []struct {
	term  string
	score int
}{
	{"very severe", 5},
	{"very mild", 1},
	{"extreme", 5},
	{"severe", 5},
	{"moderate", 3},
	{"mild", 2},
}

// ParseSeverity maps a qualitative term (or a 1-5 digit) to the 1..5 scale.
func ParseSeverity(raw string) int {
	term := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if term == "" {
		return DefaultSeverity
	}
	if n, err := strconv.Atoi(term); err == nil {
		if n >= 1 && n <= 5 {
			return n
		}
		return DefaultSeverity
	}
	for _, entry := range severityVocabulary {
		if strings.Contains(term, entry.term) {
			return entry.score
		}
	}
	return DefaultSeverity
}
