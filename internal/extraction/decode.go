package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicelog/internal/domain"
)

var errNoJSONObject = errors.New("no JSON object found in response")

// extractJSON returns the text between the first '{' and the last '}'.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errNoJSONObject
	}
	return s[start : end+1], nil
}

// Decode parses a raw model reply into ordered candidate actions.
// Timestamps without a zone are read in loc. Parse failures are deserialization errors.
func Decode(service, raw string, loc *time.Location) ([]domain.CandidateAction, error) {
	if loc == nil {
		loc = time.Local
	}

	body, err := extractJSON(raw)
	if err != nil {
		return nil, domain.NewServiceError(service, domain.CodeDeserializationError, err)
	}

	var resp actionsResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, domain.NewServiceError(service, domain.CodeDeserializationError, fmt.Errorf("decode actions: %w", err))
	}

	actions := make([]domain.CandidateAction, 0, len(resp.Actions))
	for _, wire := range resp.Actions {
		actions = append(actions, domain.CandidateAction{
			ID:         uuid.NewString(),
			Kind:       domain.ParseActionKind(wire.Type),
			Confidence: clamp(wire.Confidence),
			Details:    wire.Details.toDomain(loc),
		})
	}
	return actions, nil
}

func (d wireDetails) toDomain(loc *time.Location) domain.ActionDetails {
	symptoms := make([]string, 0, len(d.Symptoms))
	for _, s := range d.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			symptoms = append(symptoms, s)
		}
	}
	if len(symptoms) == 0 {
		symptoms = nil
	}

	return domain.ActionDetails{
		Item:             strings.TrimSpace(d.Item),
		Amount:           string(d.Amount),
		Unit:             strings.TrimSpace(d.Unit),
		MealType:         strings.ToLower(strings.TrimSpace(d.MealType)),
		Symptoms:         symptoms,
		Severity:         strings.TrimSpace(d.Severity),
		VitaminName:      strings.TrimSpace(d.VitaminName),
		Dosage:           strings.TrimSpace(d.Dosage),
		Frequency:        strings.TrimSpace(d.Frequency),
		TimesPerDay:      d.TimesPerDay.intPtr(),
		NauseaHours:      d.NauseaHours.intPtr(),
		VomitingEpisodes: d.VomitingEpisodes.intPtr(),
		RetchingEpisodes: d.RetchingEpisodes.intPtr(),
		Timestamp:        parseTimestamp(d.Timestamp, loc),
		Notes:            strings.TrimSpace(d.Notes),
	}
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp returns the zero time when raw is missing or unparseable.
func parseTimestamp(raw string, loc *time.Location) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func clamp(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
