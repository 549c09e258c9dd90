package extraction

import (
	"fmt"
	"strings"
	"time"
)

const extractionInstructions = `You turn short spoken health-log requests into structured actions.

Return ONLY a JSON object matching this schema:
%s

Rules:
- Emit one action per distinct request, in the order spoken.
- Every action except "unknown" MUST include "timestamp" as ISO-8601 with offset. Resolve relative times ("this morning", "an hour ago") against the current time below; use the current time when none is spoken.
- Put food quantities inline in "item" ("3 bananas", "2 slices of toast"), never in "amount".
- Use "amount" and "unit" for water ("16", "oz") and supplement doses.
- "add_new_vitamin" is only for explicitly adding a supplement to the regimen; it needs "vitaminName" and "frequency".
- "log_puqe_score" carries nauseaHours, vomitingEpisodes and retchingEpisodes for the last 24 hours.
- "confidence" is your certainty in [0,1]. Use "unknown" for anything you cannot map.

Current time: %s (%s)`

// SystemPrompt builds the extraction system prompt for the given wall clock.
func SystemPrompt(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	return fmt.Sprintf(extractionInstructions, ResponseSchema(), local.Format(time.RFC3339), local.Format("Monday"))
}

// UserPrompt wraps the transcript as the user turn.
func UserPrompt(transcript string) string {
	return "Transcript: " + strings.TrimSpace(transcript)
}
