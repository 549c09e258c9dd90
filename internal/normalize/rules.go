package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Rule rewrites a transcript and reports whether anything changed.
type Rule interface {
	Apply(input string) (output string, changed bool)
}

// LineParser compiles one line of a user rule file.
type LineParser interface {
	CanParse(line string) bool
	Parse(line string) (Rule, error)
}

// ParseRules compiles a rule file. Blank lines and '#' comments are skipped.
func ParseRules(contents string, parsers []LineParser) ([]Rule, error) {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}

	var rules []Rule
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseLine(line, parsers)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseLine(line string, parsers []LineParser) (Rule, error) {
	for _, parser := range parsers {
		if parser.CanParse(line) {
			return parser.Parse(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

// DefaultParsers understands sed-style "s/re/rep/flags" and literal "from => to" lines.
func DefaultParsers() []LineParser {
	return []LineParser{sedParser{}, literalParser{}}
}

type literalParser struct{}

func (literalParser) CanParse(line string) bool { return strings.Contains(line, "=>") }

func (literalParser) Parse(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	return NewLiteralRule(strings.TrimSpace(from), strings.TrimSpace(to))
}

// NewLiteralRule replaces whole-word, case-insensitive occurrences of from.
func NewLiteralRule(from, to string) (Rule, error) {
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	pattern := regexp.QuoteMeta(from)
	if isWordRune(rune(from[0])) {
		pattern = `\b` + pattern
	}
	if isWordRune(rune(from[len(from)-1])) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return regexRule{re: re, replacement: to, global: true}, nil
}

type sedParser struct{}

func (sedParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordRune(rune(line[1])) && !unicode.IsSpace(rune(line[1]))
}

func (sedParser) Parse(line string) (Rule, error) {
	delim := line[1]
	pattern, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	// Matching is case-insensitive unless the pattern overrides it.
	inline := "i"
	global := false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
		case 'g':
			global = true
		case 'm', 's':
			inline += string(flag)
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexRule{re: re, replacement: replacement, global: global}, nil
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r regexRule) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

func readDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == delim:
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated expression")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
