package domain

import "time"

// TaskKind identifies the enrichment work a queued task performs.
type TaskKind string

const (
	TaskNutritionMacros    TaskKind = "nutrition_macros"
	TaskImageAnalysis      TaskKind = "image_analysis"
	TaskSymptomSuggestions TaskKind = "symptom_suggestions"
	TaskVoiceFollowup      TaskKind = "voice_followup"
)

// TaskStatus is the lifecycle position of a queued task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Payload keys shared by the executor and queue handlers.
const (
	PayloadDescription = "description"
	PayloadLogID       = "log_id"
	PayloadImagePath   = "image_path"
	PayloadSymptoms    = "symptoms"
	PayloadTranscript  = "transcript"
	PayloadPrompt      = "prompt"
)

// QueuedTask is a durable unit of background enrichment work.
type QueuedTask struct {
	ID            string            `json:"id"`
	Kind          TaskKind          `json:"kind"`
	Payload       map[string]string `json:"payload"`
	Status        TaskStatus        `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	RetryCount    int               `json:"retryCount"`
	NextAttemptAt time.Time         `json:"nextAttemptAt,omitempty"`
	Result        map[string]string `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// CanAutoRetry reports whether ProcessPending may pick the task up again.
func (t QueuedTask) CanAutoRetry(maxRetries int) bool {
	switch t.Status {
	case TaskPending:
		return true
	case TaskFailed:
		return t.RetryCount < maxRetries
	default:
		return false
	}
}

// Clone returns a deep copy so callers never share payload maps with the queue.
func (t QueuedTask) Clone() QueuedTask {
	out := t
	out.Payload = cloneMap(t.Payload)
	out.Result = cloneMap(t.Result)
	return out
}

// QueueStats counts tasks by status.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
