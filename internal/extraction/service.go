package extraction

import (
	"context"
	"strings"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

// Service implements the extraction and enrichment contracts on top of any text Completer.
type Service struct {
	llm ports.Completer
}

func NewService(llm ports.Completer) *Service {
	return &Service{llm: llm}
}

func (s *Service) Extract(ctx context.Context, req ports.ExtractionRequest) ([]domain.CandidateAction, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, nil
	}
	raw, err := s.llm.Complete(ctx, SystemPrompt(req.CurrentTime, req.Location), UserPrompt(req.Transcript))
	if err != nil {
		return nil, err
	}
	return Decode("extraction", raw, req.Location)
}

func (s *Service) EstimateMacros(ctx context.Context, description string) (domain.Macros, error) {
	if strings.TrimSpace(description) == "" {
		return domain.Macros{}, domain.NewInvalidAction(domain.ActionLogFood, "description", "is required")
	}
	raw, err := s.llm.Complete(ctx, NutritionSystemPrompt, NutritionUserPrompt(description))
	if err != nil {
		return domain.Macros{}, err
	}
	return DecodeMacros("enrichment", raw)
}
