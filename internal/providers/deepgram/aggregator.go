package deepgram

import (
	"strings"
	"sync"
)

type transcriptAggregator struct {
	mu         sync.Mutex
	finals     []string
	lastSpoken string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(seg segment) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return
	}
	a.lastSpoken = text
	if seg.Final {
		a.finals = append(a.finals, text)
	}
}

// Text joins final segments, falling back to the last interim segment when it extends past them.
func (a *transcriptAggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	if joined == "" {
		return a.lastSpoken
	}
	if a.lastSpoken == "" || strings.HasSuffix(joined, a.lastSpoken) {
		return joined
	}
	if len(a.lastSpoken) > len(joined) {
		return strings.TrimSpace(joined + " " + a.lastSpoken)
	}
	return joined
}
