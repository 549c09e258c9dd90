package executor

import (
	"fmt"
	"math"
	"sync/atomic"

	"voicelog/internal/domain"
)

// DefaultConfidenceThreshold is the confidence an action must exceed to run without confirmation.
const DefaultConfidenceThreshold = 0.8

// ConfidencePolicy decides which candidates execute immediately.
// The threshold can be swapped at runtime by the config watcher.
type ConfidencePolicy struct {
	bits atomic.Uint64
}

func NewConfidencePolicy(threshold float64) (*ConfidencePolicy, error) {
	p := &ConfidencePolicy{}
	if err := p.SetThreshold(threshold); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ConfidencePolicy) SetThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("confidence threshold must be within [0,1], got %v", threshold)
	}
	p.bits.Store(math.Float64bits(threshold))
	return nil
}

func (p *ConfidencePolicy) Threshold() float64 {
	return math.Float64frombits(p.bits.Load())
}

// AutoExecute is strict: a confidence equal to the threshold still needs confirmation.
func (p *ConfidencePolicy) AutoExecute(action domain.CandidateAction) bool {
	return action.Confidence > p.Threshold()
}
