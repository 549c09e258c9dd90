package domain

import (
	"strconv"
	"strings"
	"time"
)

// ActionKind identifies what a spoken request asks the app to log.
type ActionKind string

const (
	ActionLogWater      ActionKind = "log_water"
	ActionLogFood       ActionKind = "log_food"
	ActionLogSymptom    ActionKind = "log_symptom"
	ActionLogVitamin    ActionKind = "log_vitamin"
	ActionLogPUQEScore  ActionKind = "log_puqe_score"
	ActionAddNewVitamin ActionKind = "add_new_vitamin"
	ActionUnknown       ActionKind = "unknown"
)

// ActionKinds lists every kind the extraction contract accepts, in prompt order.
var ActionKinds = []ActionKind{
	ActionLogWater,
	ActionLogFood,
	ActionLogSymptom,
	ActionLogVitamin,
	ActionLogPUQEScore,
	ActionAddNewVitamin,
	ActionUnknown,
}

// ParseActionKind maps unrecognised values to ActionUnknown.
func ParseActionKind(raw string) ActionKind {
	kind := ActionKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range ActionKinds {
		if kind == known {
			return kind
		}
	}
	return ActionUnknown
}

// ActionDetails is the sparse bag of optional fields an extracted action may carry.
type ActionDetails struct {
	Item             string    `json:"item,omitempty"`
	Amount           string    `json:"amount,omitempty"`
	Unit             string    `json:"unit,omitempty"`
	MealType         string    `json:"mealType,omitempty"`
	Symptoms         []string  `json:"symptoms,omitempty"`
	Severity         string    `json:"severity,omitempty"`
	VitaminName      string    `json:"vitaminName,omitempty"`
	Dosage           string    `json:"dosage,omitempty"`
	Frequency        string    `json:"frequency,omitempty"`
	TimesPerDay      *int      `json:"timesPerDay,omitempty"`
	NauseaHours      *int      `json:"nauseaHours,omitempty"`
	VomitingEpisodes *int      `json:"vomitingEpisodes,omitempty"`
	RetchingEpisodes *int      `json:"retchingEpisodes,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
	Notes            string    `json:"notes,omitempty"`
}

// AmountValue parses Amount as a positive number.
func (d ActionDetails) AmountValue() (float64, bool) {
	raw := strings.TrimSpace(d.Amount)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// CandidateAction is one structured action returned by the extraction service.
type CandidateAction struct {
	ID         string        `json:"id"`
	Kind       ActionKind    `json:"kind"`
	Details    ActionDetails `json:"details"`
	Confidence float64       `json:"confidence"`
}

// RequiresTimestamp reports whether the action feeds a time-indexed log.
func (a CandidateAction) RequiresTimestamp() bool {
	return a.Kind != ActionUnknown
}

// LogTarget names the collaborator an executed action was written to.
type LogTarget string

const (
	LogTargetHydration  LogTarget = "hydration"
	LogTargetFood       LogTarget = "food"
	LogTargetSupplement LogTarget = "supplement"
	LogTargetSymptom    LogTarget = "symptom"
	LogTargetPUQE       LogTarget = "puqe"
	LogTargetNone       LogTarget = "none"
)

// ExecutedAction is a candidate that has been applied to a log collaborator.
type ExecutedAction struct {
	Action     CandidateAction `json:"action"`
	Target     LogTarget       `json:"target"`
	LogIDs     []string        `json:"logIds"`
	TaskID     string          `json:"taskId,omitempty"`
	Message    string          `json:"message"`
	ExecutedAt time.Time       `json:"executedAt"`
}

// LogID returns the first collaborator-assigned identifier, if any.
func (e ExecutedAction) LogID() string {
	if len(e.LogIDs) == 0 {
		return ""
	}
	return e.LogIDs[0]
}

// PendingAction is a low-confidence candidate waiting for the user to confirm it.
type PendingAction struct {
	Action CandidateAction `json:"action"`
	Prompt string          `json:"prompt"`
}

// SkippedAction is a candidate that could not be applied.
type SkippedAction struct {
	Action CandidateAction `json:"action"`
	Reason string          `json:"reason"`
}

// Transcript is the text recognised from one recording.
type Transcript struct {
	Text     string        `json:"text"`
	Duration time.Duration `json:"duration,omitempty"`
	Language string        `json:"language,omitempty"`
}

// AudioArtifact references a recorded clip on disk.
type AudioArtifact struct {
	ID        string        `json:"id"`
	Duration  time.Duration `json:"duration"`
	Path      string        `json:"path"`
	Bytes     int64         `json:"bytes"`
	CreatedAt time.Time     `json:"createdAt"`
}
