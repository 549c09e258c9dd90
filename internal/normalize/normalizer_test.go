package normalize

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func writeRules(t *testing.T, contents string) (afero.Fs, string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	path := "/config/voicelog/substitutions.rules"
	if err := afero.WriteFile(fs, path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return fs, path
}

func TestBuiltinRules(t *testing.T) {
	t.Parallel()

	n, err := New(afero.NewMemMapFs(), "", 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	cases := map[string]string{
		"I drank sixteen ounces of water":          "I drank 16 oz of water",
		"took two hundred milligrams of magnesium": "took 200 mg of magnesium",
		"had twenty-four fl oz":                    "had 24 oz",
		"ate three bananas":                        "ate 3 bananas",
		"one thousand two hundred fifty ml":        "1250 ml",
		"500 International Units of vitamin D":     "500 IU of vitamin D",
		"nothing to change":                        "nothing to change",
		"an hour ago":                              "an hour ago",
		"two three":                                "two three",
	}
	for in, want := range cases {
		got, err := n.Apply(in)
		if err != nil {
			t.Fatalf("apply %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("Apply(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUserLiteralAndRegexRules(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, `
# literal
pre natal => prenatal
# regex with default case-insensitive
s/\bvit\s*d\b/vitamin D/g
`)

	n, err := New(fs, path, 30)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := n.Apply("took my Pre Natal and vit d")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != "took my prenatal and vitamin D" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestLiteralRuleMatchesWholeWords(t *testing.T) {
	t.Parallel()

	rule, err := NewLiteralRule("oz", "ounce")
	if err != nil {
		t.Fatalf("new rule: %v", err)
	}
	if out, changed := rule.Apply("frozen"); changed {
		t.Fatalf("literal rule rewrote part of a word: %q", out)
	}
}

func TestIteratesUntilStable(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "alpha => beta\nbeta => gamma\n")
	n, err := New(fs, path, 5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got, _ := n.Apply("alpha"); got != "gamma" {
		t.Fatalf("expected gamma, got %q", got)
	}
}

func TestMissingRulesFileIsIgnored(t *testing.T) {
	t.Parallel()

	if _, err := New(afero.NewMemMapFs(), "/does/not/exist.rules", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvalidRulesFile(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "not a valid rule\n")
	if _, err := New(fs, path, 0); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected line error, got %v", err)
	}
}

func TestSedRuleWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	rule, err := sedParser{}.Parse(`s/(foo)/[$1]/`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, changed := rule.Apply("foo foo")
	if !changed || out != "[foo] foo" {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := (sedParser{}).Parse(`s/foo/bar/x`); err == nil {
		t.Fatalf("expected unsupported flag error")
	}
}

func TestParserExtension(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "prefix:Hello=>Howdy\n")
	parsers := append([]LineParser{prefixParser{}}, DefaultParsers()...)
	n, err := NewWithParsers(fs, path, 5, parsers)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got, _ := n.Apply("hello world"); got != "Howdy world" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestBestEffortFallsBack(t *testing.T) {
	t.Parallel()

	got, err := BestEffort{Next: failingNormalizer{}}.Apply("keep me")
	if err != nil || got != "keep me" {
		t.Fatalf("expected passthrough, got %q %v", got, err)
	}
}

type failingNormalizer struct{}

func (failingNormalizer) Apply(string) (string, error) { return "", errors.New("boom") }

type prefixParser struct{}

func (prefixParser) CanParse(line string) bool { return strings.HasPrefix(line, "prefix:") }

func (prefixParser) Parse(line string) (Rule, error) {
	from, to, ok := strings.Cut(strings.TrimPrefix(line, "prefix:"), "=>")
	if !ok {
		return nil, fmt.Errorf("invalid prefix rule")
	}
	return NewLiteralRule(from, to)
}
