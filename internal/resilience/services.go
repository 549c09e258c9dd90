package resilience

import (
	"context"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

// RetryingTranscriber applies a Policy to a TranscriptionService.
type RetryingTranscriber struct {
	Next   ports.TranscriptionService
	Policy Policy
}

func (r RetryingTranscriber) Transcribe(ctx context.Context, artifact domain.AudioArtifact) (domain.Transcript, error) {
	return Do(ctx, r.Policy, func(ctx context.Context) (domain.Transcript, error) {
		return r.Next.Transcribe(ctx, artifact)
	})
}

// RetryingExtractor applies a Policy to an ExtractionService.
type RetryingExtractor struct {
	Next   ports.ExtractionService
	Policy Policy
}

func (r RetryingExtractor) Extract(ctx context.Context, req ports.ExtractionRequest) ([]domain.CandidateAction, error) {
	return Do(ctx, r.Policy, func(ctx context.Context) ([]domain.CandidateAction, error) {
		return r.Next.Extract(ctx, req)
	})
}

// RetryingEnricher applies a Policy to an EnrichmentService.
type RetryingEnricher struct {
	Next   ports.EnrichmentService
	Policy Policy
}

func (r RetryingEnricher) EstimateMacros(ctx context.Context, description string) (domain.Macros, error) {
	return Do(ctx, r.Policy, func(ctx context.Context) (domain.Macros, error) {
		return r.Next.EstimateMacros(ctx, description)
	})
}

// RetryingCompleter applies a Policy to a Completer.
type RetryingCompleter struct {
	Next   ports.Completer
	Policy Policy
}

func (r RetryingCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return Do(ctx, r.Policy, func(ctx context.Context) (string, error) {
		return r.Next.Complete(ctx, system, prompt)
	})
}

// RetryingVision applies a Policy to a VisionCompleter.
type RetryingVision struct {
	Next   ports.VisionCompleter
	Policy Policy
}

func (r RetryingVision) CompleteWithImage(ctx context.Context, system, prompt string, image []byte, mediaType string) (string, error) {
	return Do(ctx, r.Policy, func(ctx context.Context) (string, error) {
		return r.Next.CompleteWithImage(ctx, system, prompt, image, mediaType)
	})
}
