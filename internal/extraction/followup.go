package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"voicelog/internal/domain"
)

const SymptomSuggestionSystemPrompt = `You help a pregnant user manage everyday symptoms.
Given a list of symptoms, suggest up to five short, practical self-care tips.
Never diagnose. If a symptom may need medical attention, include a tip to contact a healthcare provider.
Respond with JSON only: {"suggestions": ["..."]}`

const FollowupSystemPrompt = `You are a health logging assistant answering a follow-up to something the user said.
Answer in one or two friendly sentences. Do not invent logged data.
Respond with JSON only: {"reply": "..."}`

const ImageAnalysisSystemPrompt = `You describe meal photos for a food log.
Identify the foods and portions visible and estimate total calories.
Respond with JSON only: {"description": "...", "items": ["..."], "calories": 0}`

func SymptomSuggestionPrompt(symptoms string) string {
	return "Symptoms: " + strings.TrimSpace(symptoms)
}

func FollowupPrompt(transcript, question string) string {
	var b strings.Builder
	b.WriteString("Transcript: ")
	b.WriteString(strings.TrimSpace(transcript))
	if q := strings.TrimSpace(question); q != "" {
		b.WriteString("\nFollow-up: ")
		b.WriteString(q)
	}
	return b.String()
}

func ImageAnalysisPrompt(note string) string {
	if note = strings.TrimSpace(note); note != "" {
		return "Describe this meal. The user noted: " + note
	}
	return "Describe this meal."
}

// DecodeSuggestions requires at least one non-empty suggestion.
func DecodeSuggestions(service, raw string) ([]string, error) {
	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := decodeObject(raw, &resp); err != nil {
		return nil, domain.NewServiceError(service, domain.CodeDeserializationError, err)
	}

	out := make([]string, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, domain.NewServiceError(service, domain.CodeDeserializationError, errors.New("no suggestions in response"))
	}
	return out, nil
}

func DecodeReply(service, raw string) (string, error) {
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := decodeObject(raw, &resp); err != nil {
		return "", domain.NewServiceError(service, domain.CodeDeserializationError, err)
	}
	reply := strings.TrimSpace(resp.Reply)
	if reply == "" {
		return "", domain.NewServiceError(service, domain.CodeDeserializationError, errors.New("empty reply"))
	}
	return reply, nil
}

// ImageAnalysis is the structured description of a meal photo.
type ImageAnalysis struct {
	Description string
	Items       []string
	Calories    *int
}

func DecodeImageAnalysis(service, raw string) (ImageAnalysis, error) {
	var resp struct {
		Description string   `json:"description"`
		Items       []string `json:"items"`
		Calories    *flexInt `json:"calories"`
	}
	if err := decodeObject(raw, &resp); err != nil {
		return ImageAnalysis{}, domain.NewServiceError(service, domain.CodeDeserializationError, err)
	}

	out := ImageAnalysis{Description: strings.TrimSpace(resp.Description)}
	if out.Description == "" {
		return ImageAnalysis{}, domain.NewServiceError(service, domain.CodeDeserializationError, errors.New("empty description"))
	}
	for _, item := range resp.Items {
		if item = strings.TrimSpace(item); item != "" {
			out.Items = append(out.Items, item)
		}
	}
	if resp.Calories != nil {
		if v := resp.Calories.intPtr(); v != nil && *v >= 0 {
			out.Calories = v
		}
	}
	return out, nil
}

func decodeObject(raw string, v any) error {
	body, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
