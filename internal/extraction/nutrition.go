package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"voicelog/internal/domain"
)

// NutritionSystemPrompt instructs the model to estimate macros for a described portion.
const NutritionSystemPrompt = `You estimate nutrition for food descriptions.
The description includes the quantity eaten; scale the estimate to it ("3 bananas" is three times one banana).
Return ONLY a JSON object: {"calories": <int>, "protein": <int grams>, "carbs": <int grams>, "fat": <int grams>}.`

// NutritionUserPrompt formats the description for the enrichment call.
func NutritionUserPrompt(description string) string {
	return "Food: " + strings.TrimSpace(description)
}

type macrosResponse struct {
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
}

// DecodeMacros parses a nutrition reply. Missing or negative fields are deserialization errors.
func DecodeMacros(service, raw string) (domain.Macros, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return domain.Macros{}, domain.NewServiceError(service, domain.CodeDeserializationError, err)
	}

	var resp macrosResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return domain.Macros{}, domain.NewServiceError(service, domain.CodeDeserializationError, fmt.Errorf("decode macros: %w", err))
	}

	fields := []struct {
		name  string
		value *float64
	}{
		{"calories", resp.Calories},
		{"protein", resp.Protein},
		{"carbs", resp.Carbs},
		{"fat", resp.Fat},
	}
	for _, f := range fields {
		if f.value == nil {
			return domain.Macros{}, domain.NewServiceError(service, domain.CodeDeserializationError, fmt.Errorf("missing %s", f.name))
		}
		if *f.value < 0 || math.IsNaN(*f.value) {
			return domain.Macros{}, domain.NewServiceError(service, domain.CodeDeserializationError, errors.New(f.name+" must not be negative"))
		}
	}

	return domain.Macros{
		Calories: int(math.Round(*resp.Calories)),
		Protein:  int(math.Round(*resp.Protein)),
		Carbs:    int(math.Round(*resp.Carbs)),
		Fat:      int(math.Round(*resp.Fat)),
	}, nil
}
