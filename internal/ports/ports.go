package ports

import (
	"context"
	"io"
	"time"

	"voicelog/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// ArtifactWriter receives PCM samples for a clip that is still being recorded.
type ArtifactWriter interface {
	io.Writer
	// Commit finalises the clip. An empty clip is deleted and reported as domain.ErrNoAudio.
	Commit() (domain.AudioArtifact, error)
	Discard() error
}

// ArtifactStore owns recorded audio clips on disk.
type ArtifactStore interface {
	Create(ctx context.Context, cfg AudioConfig) (ArtifactWriter, error)
	Open(ctx context.Context, artifact domain.AudioArtifact) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}

// TranscriptionService turns a recorded clip into text.
type TranscriptionService interface {
	Transcribe(ctx context.Context, artifact domain.AudioArtifact) (domain.Transcript, error)
}

// ExtractionRequest is the input of the action extraction contract.
type ExtractionRequest struct {
	Transcript  string
	CurrentTime time.Time
	Location    *time.Location
}

// ExtractionService turns a transcript into ordered candidate actions.
type ExtractionService interface {
	Extract(ctx context.Context, req ExtractionRequest) ([]domain.CandidateAction, error)
}

// EnrichmentService estimates nutrition for a food description.
type EnrichmentService interface {
	EstimateMacros(ctx context.Context, description string) (domain.Macros, error)
}

// Completer runs a single free-form text completion.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// VisionCompleter runs a completion over a text prompt and one image.
type VisionCompleter interface {
	CompleteWithImage(ctx context.Context, system, prompt string, image []byte, mediaType string) (string, error)
}

// TranscriptNormalizer rewrites transcripts deterministically before extraction.
type TranscriptNormalizer interface {
	Apply(text string) (string, error)
}

// HydrationLog stores water intake.
type HydrationLog interface {
	AppendHydration(ctx context.Context, amount float64, unit string, source domain.Source, at time.Time) (string, error)
}

// FoodLog stores meals and their nutrition estimates.
type FoodLog interface {
	AppendFood(ctx context.Context, description, mealType string, source domain.Source, at time.Time) (string, error)
	UpdateMacros(ctx context.Context, logID string, macros domain.Macros) error
}

// SupplementStore manages the supplement catalogue and intake history.
type SupplementStore interface {
	ListSupplements(ctx context.Context) ([]domain.Supplement, error)
	CreateSupplement(ctx context.Context, in domain.NewSupplement) (domain.Supplement, error)
	RecordIntake(ctx context.Context, supplementID string, source domain.Source, at time.Time) (string, error)
}

// SymptomLog stores symptom entries.
type SymptomLog interface {
	AppendSymptom(ctx context.Context, description string, severity int, source domain.Source, at time.Time) (string, error)
}

// PUQESink accepts deferred PUQE score updates.
type PUQESink interface {
	SubmitPUQE(ctx context.Context, update domain.PUQEUpdate) (string, error)
}

// VoiceMarkerLog flags log records created by voice.
type VoiceMarkerLog interface {
	MarkVoiceSourced(ctx context.Context, target domain.LogTarget, logID string) error
}

// EntryStore links log entries to their clips and removes entries.
type EntryStore interface {
	AttachArtifact(ctx context.Context, target domain.LogTarget, logID, artifactID string) error
	DeleteEntry(ctx context.Context, target domain.LogTarget, id string) error
}

// Notifier shows user-visible confirmation messages.
type Notifier interface {
	Notify(message string)
}

// TaskEnqueuer accepts background enrichment work.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, kind domain.TaskKind, payload map[string]string) (domain.QueuedTask, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	TranscriptReady(text string)
	ActionsProcessed(result domain.Result)
	SessionError(code domain.ErrorCode, detail string)
}
