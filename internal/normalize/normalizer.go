package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
)

const defaultLoopLimit = 30

// Normalizer applies deterministic rewrites to transcripts until they stop changing.
type Normalizer struct {
	rules     []Rule
	loopLimit int
}

// New builds a normalizer from the built-in rules plus an optional user rule file.
// A missing file is not an error.
func New(fs afero.Fs, path string, loopLimit int) (*Normalizer, error) {
	return NewWithParsers(fs, path, loopLimit, DefaultParsers())
}

func NewWithParsers(fs afero.Fs, path string, loopLimit int, parsers []LineParser) (*Normalizer, error) {
	if loopLimit <= 0 {
		loopLimit = defaultLoopLimit
	}
	rules := BuiltinRules()

	if strings.TrimSpace(path) == "" {
		return &Normalizer{rules: rules, loopLimit: loopLimit}, nil
	}

	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Normalizer{rules: rules, loopLimit: loopLimit}, nil
		}
		return nil, fmt.Errorf("read rules file %q: %w", path, err)
	}

	user, err := ParseRules(string(contents), parsers)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %q: %w", path, err)
	}
	return &Normalizer{rules: append(rules, user...), loopLimit: loopLimit}, nil
}

// Apply rewrites text. Rules run in order, repeatedly, until a pass makes no change.
func (n *Normalizer) Apply(text string) (string, error) {
	result := text
	for i := 0; i < n.loopLimit; i++ {
		changed := false
		for _, rule := range n.rules {
			if next, ok := rule.Apply(result); ok {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}
	return result, nil
}

// BestEffort wraps a normalizer so failures fall back to the original text.
type BestEffort struct {
	Next interface {
		Apply(text string) (string, error)
	}
	Logger *slog.Logger
}

func (b BestEffort) Apply(text string) (string, error) {
	if b.Next == nil {
		return text, nil
	}
	out, err := b.Next.Apply(text)
	if err != nil {
		if b.Logger != nil {
			b.Logger.Warn("transcript normalisation failed", slog.String("error", err.Error()))
		}
		return text, nil
	}
	return out, nil
}
