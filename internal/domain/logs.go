package domain

import "time"

// Source records how a log entry was created.
type Source string

const (
	SourceManual Source = "manual"
	SourceVoice  Source = "voice"
)

// Macros are the nutrition estimates attached to a food entry.
type Macros struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

type HydrationEntry struct {
	ID         string
	Amount     float64
	Unit       string
	Source     Source
	LoggedAt   time.Time
	ArtifactID string
}

type FoodEntry struct {
	ID          string
	Description string
	MealType    string
	Source      Source
	LoggedAt    time.Time
	Macros      *Macros
	ArtifactID  string
}

type Supplement struct {
	ID          string
	Name        string
	Dosage      string
	Frequency   string
	TimesPerDay int
	CreatedAt   time.Time
}

// NewSupplement carries the fields needed to create a supplement.
type NewSupplement struct {
	Name        string
	Dosage      string
	Frequency   string
	TimesPerDay int
}

type SupplementIntake struct {
	ID           string
	SupplementID string
	Source       Source
	TakenAt      time.Time
}

type SymptomEntry struct {
	ID          string
	Description string
	Severity    int
	Source      Source
	LoggedAt    time.Time
}

// PUQEUpdate is the deferred score input handed to the PUQE collaborator.
type PUQEUpdate struct {
	NauseaHours      *int
	VomitingEpisodes *int
	RetchingEpisodes *int
	Notes            string
	Source           Source
	ReportedAt       time.Time
}

// Complete reports whether every scoring input is present.
func (u PUQEUpdate) Complete() bool {
	return u.NauseaHours != nil && u.VomitingEpisodes != nil && u.RetchingEpisodes != nil
}

// Score computes the PUQE total (3..15); ok is false when inputs are missing.
func (u PUQEUpdate) Score() (int, bool) {
	if !u.Complete() {
		return 0, false
	}
	return scoreNauseaHours(*u.NauseaHours) +
		scoreEpisodes(*u.VomitingEpisodes) +
		scoreEpisodes(*u.RetchingEpisodes), true
}

type PUQEEntry struct {
	ID         string
	Update     PUQEUpdate
	Score      *int
	ReportedAt time.Time
}

// VoiceMarker flags a log record as voice-sourced for the UI.
type VoiceMarker struct {
	Target    LogTarget
	LogID     string
	CreatedAt time.Time
}

func scoreNauseaHours(hours int) int {
	switch {
	case hours <= 0:
		return 1
	case hours <= 1:
		return 2
	case hours <= 3:
		return 3
	case hours <= 6:
		return 4
	default:
		return 5
	}
}

func scoreEpisodes(count int) int {
	switch {
	case count <= 0:
		return 1
	case count <= 2:
		return 2
	case count <= 4:
		return 3
	case count <= 6:
		return 4
	default:
		return 5
	}
}
