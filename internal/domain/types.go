package domain

// SessionState models the voice logging lifecycle.
type SessionState string

const (
	SessionStateIdle        SessionState = "idle"
	SessionStateRecording   SessionState = "recording"
	SessionStateRecognizing SessionState = "recognizing"
	SessionStateExecuting   SessionState = "executing"
	SessionStateCompleted   SessionState = "completed"
	SessionStateError       SessionState = "error"
)

// Busy reports whether a pipeline is in flight and a new recording cannot begin.
func (s SessionState) Busy() bool {
	return s == SessionStateRecognizing || s == SessionStateExecuting
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady                 SessionStateReason = "ready"
	SessionReasonRecordingStarted      SessionStateReason = "recording_started"
	SessionReasonRecordingStopped      SessionStateReason = "recording_stopped"
	SessionReasonRestartStoppedCapture SessionStateReason = "restart_stopped_capture"
	SessionReasonTranscribing          SessionStateReason = "transcribing"
	SessionReasonExtracting            SessionStateReason = "extracting"
	SessionReasonExecutingActions      SessionStateReason = "executing_actions"
	SessionReasonActionsLogged         SessionStateReason = "actions_logged"
	SessionReasonAwaitingConfirmation  SessionStateReason = "awaiting_confirmation"
	SessionReasonNoActions             SessionStateReason = "no_actions"
	SessionReasonRecordingDiscarded    SessionStateReason = "recording_discarded"
	SessionReasonNoAudio               SessionStateReason = "no_audio"
	SessionReasonNoTranscript          SessionStateReason = "no_transcript"
	SessionReasonTranscriptionFailed   SessionStateReason = "transcription_failed"
	SessionReasonExtractionFailed      SessionStateReason = "extraction_failed"
	SessionReasonDismissed             SessionStateReason = "dismissed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeExtraction    ErrorCode = "extraction"
	ErrorCodeExecution     ErrorCode = "execution"
	ErrorCodeStorage       ErrorCode = "storage"
)

// Result is returned once a recording has been recognized and its actions applied.
type Result struct {
	Transcript Transcript       `json:"transcript"`
	Executed   []ExecutedAction `json:"executed"`
	Pending    []PendingAction  `json:"pending"`
	Skipped    []SkippedAction  `json:"skipped"`
}

// Status summarizes the current runtime status.
type Status struct {
	State          SessionState     `json:"state"`
	Active         bool             `json:"active"`
	Message        string           `json:"message,omitempty"`
	LastTranscript string           `json:"lastTranscript,omitempty"`
	Executed       []ExecutedAction `json:"executed,omitempty"`
	Pending        []PendingAction  `json:"pending,omitempty"`
}
