package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var smallNumbers = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensNumbers = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// numberWordsRule rewrites spelled-out cardinals ("twenty four") as digits.
type numberWordsRule struct {
	re *regexp.Regexp
}

func newNumberWordsRule() numberWordsRule {
	words := make([]string, 0, len(smallNumbers)+len(tensNumbers)+2)
	for w := range smallNumbers {
		words = append(words, w)
	}
	for w := range tensNumbers {
		words = append(words, w)
	}
	words = append(words, "hundred", "thousand")
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	alt := strings.Join(words, "|")
	return numberWordsRule{re: regexp.MustCompile(`(?i)\b(?:` + alt + `)(?:[\s-]+(?:` + alt + `))*\b`)}
}

func (r numberWordsRule) Apply(input string) (string, bool) {
	output := r.re.ReplaceAllStringFunc(input, func(match string) string {
		if value, ok := parseCardinal(match); ok {
			return strconv.Itoa(value)
		}
		return match
	})
	return output, output != input
}

// parseCardinal accepts well-formed English cardinals below one million.
func parseCardinal(phrase string) (int, bool) {
	fields := strings.FieldsFunc(strings.ToLower(phrase), func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t' || r == '\n'
	})

	total, current := 0, 0
	// lastSmall and lastTens reject sequences like "two three" or "five twenty".
	lastSmall, lastTens := false, false
	for _, word := range fields {
		switch {
		case smallNumbers[word] > 0 || word == "zero":
			v := smallNumbers[word]
			if lastSmall || (lastTens && v >= 10) {
				return 0, false
			}
			current += v
			lastSmall, lastTens = true, false
		case tensNumbers[word] > 0:
			if lastSmall || lastTens {
				return 0, false
			}
			current += tensNumbers[word]
			lastSmall, lastTens = false, true
		case word == "hundred":
			if current == 0 || current >= 100 {
				return 0, false
			}
			current *= 100
			lastSmall, lastTens = false, false
		case word == "thousand":
			if current == 0 || total > 0 {
				return 0, false
			}
			total = current * 1000
			current = 0
			lastSmall, lastTens = false, false
		default:
			return 0, false
		}
	}
	return total + current, true
}

type unitSynonym struct {
	pattern string
	unit    string
}

var unitSynonyms = []unitSynonym{
	{`fl\.?\s*oz\.?|fluid\s+ounces?|ounces?|oz\.?`, "oz"},
	{`millilit(?:er|re)s?|mls?`, "ml"},
	{`lit(?:er|re)s?`, "l"},
	{`milligrams?|mgs?`, "mg"},
	{`micrograms?|mcg|µg`, "mcg"},
	{`grams?`, "g"},
	{`international\s+units?`, "IU"},
	{`cups?`, "cups"},
}

// newUnitRules normalises unit names that directly follow a quantity.
func newUnitRules() []Rule {
	rules := make([]Rule, 0, len(unitSynonyms))
	for _, syn := range unitSynonyms {
		re := regexp.MustCompile(`(?i)(\d)\s*(?:` + syn.pattern + `)(?:\b|$)`)
		rules = append(rules, regexRule{re: re, replacement: "${1} " + syn.unit, global: true})
	}
	return rules
}

// BuiltinRules are always applied before user rules.
func BuiltinRules() []Rule {
	return append([]Rule{newNumberWordsRule()}, newUnitRules()...)
}
