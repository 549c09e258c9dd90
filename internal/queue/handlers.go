package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"voicelog/internal/domain"
	"voicelog/internal/extraction"
	"voicelog/internal/ports"
)

// NutritionHandler estimates macros for a food description and writes them onto the stored log.
// Re-running it overwrites the same fields.
type NutritionHandler struct {
	Enricher ports.EnrichmentService
	Food     ports.FoodLog
}

func (h NutritionHandler) Handle(ctx context.Context, task domain.QueuedTask) (map[string]string, error) {
	description, err := requirePayload(task, domain.PayloadDescription)
	if err != nil {
		return nil, err
	}
	logID, err := requirePayload(task, domain.PayloadLogID)
	if err != nil {
		return nil, err
	}

	macros, err := h.Enricher.EstimateMacros(ctx, description)
	if err != nil {
		return nil, err
	}

	if err := h.Food.UpdateMacros(ctx, logID, macros); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewInvalidAction(domain.ActionLogFood, "log "+logID, "no longer exists")
		}
		return nil, domain.NewStorageError("update macros", err)
	}

	return map[string]string{
		domain.PayloadLogID: logID,
		"calories":          strconv.Itoa(macros.Calories),
		"protein":           strconv.Itoa(macros.Protein),
		"carbs":             strconv.Itoa(macros.Carbs),
		"fat":               strconv.Itoa(macros.Fat),
	}, nil
}

// SymptomSuggestionHandler fetches self-care suggestions for logged symptoms.
type SymptomSuggestionHandler struct {
	LLM ports.Completer
}

func (h SymptomSuggestionHandler) Handle(ctx context.Context, task domain.QueuedTask) (map[string]string, error) {
	symptoms, err := requirePayload(task, domain.PayloadSymptoms)
	if err != nil {
		return nil, err
	}

	raw, err := h.LLM.Complete(ctx, extraction.SymptomSuggestionSystemPrompt, extraction.SymptomSuggestionPrompt(symptoms))
	if err != nil {
		return nil, err
	}
	suggestions, err := extraction.DecodeSuggestions("enrichment", raw)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"suggestions": strings.Join(suggestions, "\n"),
	}, nil
}

// ImageAnalysisHandler describes a stored meal photo.
type ImageAnalysisHandler struct {
	Vision ports.VisionCompleter
	Fs     afero.Fs
}

func (h ImageAnalysisHandler) Handle(ctx context.Context, task domain.QueuedTask) (map[string]string, error) {
	path, err := requirePayload(task, domain.PayloadImagePath)
	if err != nil {
		return nil, err
	}

	image, err := afero.ReadFile(h.Fs, path)
	if err != nil {
		return nil, domain.NewInvalidAction(domain.ActionLogFood, "image "+path, fmt.Sprintf("is unreadable: %v", err))
	}

	raw, err := h.Vision.CompleteWithImage(ctx,
		extraction.ImageAnalysisSystemPrompt,
		extraction.ImageAnalysisPrompt(task.Payload[domain.PayloadDescription]),
		image,
		http.DetectContentType(image),
	)
	if err != nil {
		return nil, err
	}
	analysis, err := extraction.DecodeImageAnalysis("enrichment", raw)
	if err != nil {
		return nil, err
	}

	result := map[string]string{
		"description": analysis.Description,
		"items":       strings.Join(analysis.Items, "\n"),
	}
	if analysis.Calories != nil {
		result["calories"] = strconv.Itoa(*analysis.Calories)
	}
	return result, nil
}

// VoiceFollowupHandler answers a follow-up to a voice command.
type VoiceFollowupHandler struct {
	LLM ports.Completer
}

func (h VoiceFollowupHandler) Handle(ctx context.Context, task domain.QueuedTask) (map[string]string, error) {
	transcript, err := requirePayload(task, domain.PayloadTranscript)
	if err != nil {
		return nil, err
	}

	raw, err := h.LLM.Complete(ctx, extraction.FollowupSystemPrompt,
		extraction.FollowupPrompt(transcript, task.Payload[domain.PayloadPrompt]))
	if err != nil {
		return nil, err
	}
	reply, err := extraction.DecodeReply("enrichment", raw)
	if err != nil {
		return nil, err
	}
	return map[string]string{"reply": reply}, nil
}

func requirePayload(task domain.QueuedTask, key string) (string, error) {
	value := strings.TrimSpace(task.Payload[key])
	if value == "" {
		return "", domain.NewInvalidAction(domain.ActionUnknown, "payload "+key, fmt.Sprintf("is missing from %s task", task.Kind))
	}
	return value, nil
}
