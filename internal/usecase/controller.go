package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"voicelog/internal/domain"
	"voicelog/internal/executor"
	"voicelog/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrPipelineBusy    = errors.New("a recording is still being processed")
	ErrPendingNotFound = errors.New("no pending action with that id")
	ErrNoTranscript    = errors.New("no speech was recognised")
)

// ActionExecutor applies extracted actions to the logs.
type ActionExecutor interface {
	Execute(ctx context.Context, actions []domain.CandidateAction) executor.Outcome
	Confirm(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error)
}

// ArtifactLinker records which clip a log entry was dictated from.
type ArtifactLinker interface {
	AttachArtifact(ctx context.Context, target domain.LogTarget, logID, artifactID string) error
}

// Config controls recording and recognition behavior.
type Config struct {
	Audio     ports.AudioConfig
	ChunkSize int
	// Location resolves relative times such as "this morning". Defaults to time.Local.
	Location *time.Location
	// RetainAudio keeps clips that produced log entries instead of deleting them.
	RetainAudio bool
	// Followups enqueues a voice_followup task when nothing in a recording could be logged.
	Followups bool
}

// Services are the collaborators of the recognition pipeline.
type Services struct {
	Audio       ports.AudioCapture
	Artifacts   ports.ArtifactStore
	Transcriber ports.TranscriptionService
	Normalizer  ports.TranscriptNormalizer
	Extractor   ports.ExtractionService
	Executor    ActionExecutor
	Events      ports.EventSink
	Tasks       ports.TaskEnqueuer
	Linker      ArtifactLinker
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// Controller runs the record → recognize → execute state machine. One pipeline runs at a time.
type Controller struct {
	audio       ports.AudioCapture
	artifacts   ports.ArtifactStore
	transcriber ports.TranscriptionService
	normalizer  ports.TranscriptNormalizer
	extractor   ports.ExtractionService
	executor    ActionExecutor
	events      ports.EventSink
	tasks       ports.TaskEnqueuer
	linker      ArtifactLinker
	cfg         Config
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time

	mu         sync.Mutex
	state      domain.SessionState
	message    string
	recording  *recording
	starting   bool
	run        uint64
	transcript string
	result     domain.Result
}

func NewController(s Services, cfg Config, opts ...Option) *Controller {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	c := &Controller{
		audio:       s.Audio,
		artifacts:   s.Artifacts,
		transcriber: s.Transcriber,
		normalizer:  s.Normalizer,
		extractor:   s.Extractor,
		executor:    s.Executor,
		events:      s.Events,
		tasks:       s.Tasks,
		linker:      s.Linker,
		cfg:         cfg,
		logger:      slog.Default(),
		tracer:      otel.Tracer("voicelog/usecase"),
		now:         time.Now,
		state:       domain.SessionStateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "usecase")
	return c
}

// Start begins a recording. While a recording is already running, that capture is
// stopped and processed instead and no new recording begins.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == domain.SessionStateRecording:
		rec := c.recording
		c.recording = nil
		c.state = domain.SessionStateRecognizing
		c.mu.Unlock()

		_, err := c.process(ctx, rec, domain.SessionReasonRestartStoppedCapture)
		return err
	case c.state.Busy() || c.starting:
		c.mu.Unlock()
		return ErrPipelineBusy
	}

	fromResult := c.state != domain.SessionStateIdle
	c.clearLocked()
	// Blocks other Starts until capture is running.
	c.starting = true
	c.mu.Unlock()

	if fromResult {
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
	}

	rec, err := c.startRecording(ctx)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("start recording", "error", err)
		return err
	}
	c.state = domain.SessionStateRecording
	c.recording = rec
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	return nil
}

// Stop ends the recording, then transcribes, extracts and executes its actions.
func (c *Controller) Stop(ctx context.Context) (domain.Result, error) {
	c.mu.Lock()
	if c.state != domain.SessionStateRecording {
		busy := c.state.Busy()
		c.mu.Unlock()
		if busy {
			return domain.Result{}, ErrPipelineBusy
		}
		return domain.Result{}, ErrNoActiveSession
	}
	rec := c.recording
	c.recording = nil
	c.state = domain.SessionStateRecognizing
	c.mu.Unlock()

	return c.process(ctx, rec, domain.SessionReasonRecordingStopped)
}

func (c *Controller) process(ctx context.Context, rec *recording, reason domain.SessionStateReason) (domain.Result, error) {
	ctx, span := c.tracer.Start(ctx, "recognition.pipeline")
	defer span.End()

	c.events.SessionStateChanged(domain.SessionStateRecognizing, reason)

	artifact, err := c.finish(rec)
	if err != nil {
		if errors.Is(err, domain.ErrNoAudio) {
			return domain.Result{}, c.fail(span, domain.ErrorCodeAudioStream, domain.SessionReasonNoAudio, err)
		}
		return domain.Result{}, c.fail(span, domain.ErrorCodeStorage, domain.SessionReasonNoAudio, err)
	}
	span.SetAttributes(attribute.String("artifact.id", artifact.ID), attribute.Int64("artifact.bytes", artifact.Bytes))

	keep := false
	defer func() {
		if keep {
			return
		}
		// Clips are ephemeral unless an entry was linked to them.
		if err := c.artifacts.Delete(context.WithoutCancel(ctx), artifact.ID); err != nil {
			c.logger.Warn("delete artifact", "artifact_id", artifact.ID, "error", err)
		}
	}()

	c.events.SessionStateChanged(domain.SessionStateRecognizing, domain.SessionReasonTranscribing)
	transcript, err := c.transcribe(ctx, artifact)
	if err != nil {
		return domain.Result{}, c.fail(span, domain.ErrorCodeTranscription, domain.SessionReasonTranscriptionFailed, err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return domain.Result{}, c.fail(span, domain.ErrorCodeTranscription, domain.SessionReasonNoTranscript, ErrNoTranscript)
	}

	transcript.Text = c.normalize(ctx, transcript.Text)
	c.mu.Lock()
	c.transcript = transcript.Text
	c.mu.Unlock()
	c.events.TranscriptReady(transcript.Text)

	c.events.SessionStateChanged(domain.SessionStateRecognizing, domain.SessionReasonExtracting)
	actions, err := c.extract(ctx, transcript.Text)
	if err != nil {
		result := domain.Result{Transcript: transcript}
		return result, c.fail(span, domain.ErrorCodeExtraction, domain.SessionReasonExtractionFailed, err)
	}

	c.setState(domain.SessionStateExecuting, "")
	c.events.SessionStateChanged(domain.SessionStateExecuting, domain.SessionReasonExecutingActions)
	outcome := c.execute(ctx, actions)

	result := domain.Result{
		Transcript: transcript,
		Executed:   outcome.Executed,
		Pending:    outcome.Pending,
		Skipped:    outcome.Skipped,
	}
	for _, skipped := range outcome.Skipped {
		if skipped.Action.Kind != domain.ActionUnknown {
			c.events.SessionError(domain.ErrorCodeExecution, skipped.Reason)
		}
	}

	if c.cfg.RetainAudio {
		keep = c.linkArtifact(ctx, artifact.ID, outcome.Executed)
	}
	c.followup(ctx, transcript.Text, outcome)

	c.mu.Lock()
	c.state = domain.SessionStateCompleted
	c.message = ""
	c.result = cloneResult(result)
	completedReason := c.completedReasonLocked()
	c.mu.Unlock()

	span.SetAttributes(
		attribute.Int("actions.executed", len(result.Executed)),
		attribute.Int("actions.pending", len(result.Pending)),
		attribute.Int("actions.skipped", len(result.Skipped)),
	)
	c.events.ActionsProcessed(result)
	c.events.SessionStateChanged(domain.SessionStateCompleted, completedReason)
	return result, nil
}

func (c *Controller) transcribe(ctx context.Context, artifact domain.AudioArtifact) (domain.Transcript, error) {
	ctx, span := c.tracer.Start(ctx, "recognition.transcribe")
	defer span.End()
	transcript, err := c.transcriber.Transcribe(ctx, artifact)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
	}
	return transcript, err
}

// normalize is best effort: on failure the transcript passes through unchanged.
func (c *Controller) normalize(ctx context.Context, text string) string {
	if c.normalizer == nil {
		return text
	}
	_, span := c.tracer.Start(ctx, "recognition.normalize")
	defer span.End()
	out, err := c.normalizer.Apply(text)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("transcript normalization failed", "error", err)
		return text
	}
	return out
}

func (c *Controller) extract(ctx context.Context, text string) ([]domain.CandidateAction, error) {
	ctx, span := c.tracer.Start(ctx, "recognition.extract")
	defer span.End()
	actions, err := c.extractor.Extract(ctx, ports.ExtractionRequest{
		Transcript:  text,
		CurrentTime: c.now().In(c.cfg.Location),
		Location:    c.cfg.Location,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("actions", len(actions)))
	return actions, nil
}

func (c *Controller) execute(ctx context.Context, actions []domain.CandidateAction) executor.Outcome {
	ctx, span := c.tracer.Start(ctx, "recognition.execute")
	defer span.End()
	return c.executor.Execute(ctx, actions)
}

func (c *Controller) linkArtifact(ctx context.Context, artifactID string, executed []domain.ExecutedAction) bool {
	if c.linker == nil {
		return false
	}
	linked := false
	for _, e := range executed {
		switch e.Target {
		case domain.LogTargetHydration, domain.LogTargetFood, domain.LogTargetSymptom:
		default:
			continue
		}
		for _, id := range e.LogIDs {
			if err := c.linker.AttachArtifact(ctx, e.Target, id, artifactID); err != nil {
				c.logger.Warn("attach artifact", "target", e.Target, "log_id", id, "error", err)
				continue
			}
			linked = true
		}
	}
	return linked
}

// followup hands recordings with nothing loggable to the background queue for a reply.
func (c *Controller) followup(ctx context.Context, transcript string, outcome executor.Outcome) {
	if !c.cfg.Followups || c.tasks == nil || len(outcome.Executed) > 0 || len(outcome.Pending) > 0 {
		return
	}
	var notes []string
	for _, skipped := range outcome.Skipped {
		if skipped.Action.Kind != domain.ActionUnknown {
			return
		}
		if n := strings.TrimSpace(skipped.Action.Details.Notes); n != "" {
			notes = append(notes, n)
		}
	}
	payload := map[string]string{domain.PayloadTranscript: transcript}
	if len(notes) > 0 {
		payload[domain.PayloadPrompt] = strings.Join(notes, "; ")
	}
	if _, err := c.tasks.Enqueue(ctx, domain.TaskVoiceFollowup, payload); err != nil {
		c.logger.Warn("enqueue follow-up", "error", err)
	}
}

func (c *Controller) fail(span trace.Span, code domain.ErrorCode, reason domain.SessionStateReason, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(reason))

	message := domain.UserMessage(err)
	if errors.Is(err, ErrNoTranscript) {
		message = "No speech was recognised. Try again a little closer to the microphone."
	}
	c.logger.Error("recognition failed", "reason", reason, "error", err)

	c.setState(domain.SessionStateError, message)
	c.events.SessionError(code, message)
	c.events.SessionStateChanged(domain.SessionStateError, reason)
	return err
}

// Abort discards the recording without processing it.
func (c *Controller) Abort() error {
	c.mu.Lock()
	if c.state != domain.SessionStateRecording {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	rec := c.recording
	c.recording = nil
	c.state = domain.SessionStateIdle
	c.mu.Unlock()

	c.discard(rec)
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	return nil
}

// Confirm applies a pending low-confidence action.
func (c *Controller) Confirm(ctx context.Context, actionID string) (domain.ExecutedAction, error) {
	c.mu.Lock()
	pending, ok := c.takePendingLocked(actionID)
	run := c.run
	c.mu.Unlock()
	if !ok {
		return domain.ExecutedAction{}, ErrPendingNotFound
	}

	executed, err := c.executor.Confirm(ctx, pending.Action)
	c.mu.Lock()
	if run != c.run {
		c.mu.Unlock()
		return executed, err
	}
	if err != nil {
		c.result.Pending = append(c.result.Pending, pending)
		c.mu.Unlock()
		c.events.SessionError(domain.ErrorCodeExecution, domain.UserMessage(err))
		return domain.ExecutedAction{}, err
	}
	c.result.Executed = append(c.result.Executed, executed)
	result := cloneResult(c.result)
	reason := c.completedReasonLocked()
	c.mu.Unlock()

	c.events.ActionsProcessed(result)
	c.events.SessionStateChanged(domain.SessionStateCompleted, reason)
	return executed, nil
}

// Reject drops a pending action without logging it.
func (c *Controller) Reject(actionID string) error {
	c.mu.Lock()
	if _, ok := c.takePendingLocked(actionID); !ok {
		c.mu.Unlock()
		return ErrPendingNotFound
	}
	result := cloneResult(c.result)
	reason := c.completedReasonLocked()
	c.mu.Unlock()

	c.events.ActionsProcessed(result)
	c.events.SessionStateChanged(domain.SessionStateCompleted, reason)
	return nil
}

// Dismiss clears a finished result and returns to idle.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	switch c.state {
	case domain.SessionStateIdle:
		c.mu.Unlock()
		return nil
	case domain.SessionStateCompleted, domain.SessionStateError:
	default:
		c.mu.Unlock()
		return ErrPipelineBusy
	}
	c.clearLocked()
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonDismissed)
	return nil
}

// Status returns a snapshot of the session.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := cloneResult(c.result)
	return domain.Status{
		State:          c.state,
		Active:         c.state == domain.SessionStateRecording || c.state.Busy(),
		Message:        c.message,
		LastTranscript: c.transcript,
		Executed:       result.Executed,
		Pending:        result.Pending,
	}
}

// Close discards any recording in progress.
func (c *Controller) Close() {
	if err := c.Abort(); err != nil && !errors.Is(err, ErrNoActiveSession) {
		c.logger.Warn("close controller", "error", err)
	}
}

func (c *Controller) setState(state domain.SessionState, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.message = message
}

func (c *Controller) clearLocked() {
	c.state = domain.SessionStateIdle
	c.message = ""
	c.transcript = ""
	c.result = domain.Result{}
	c.run++
}

func (c *Controller) takePendingLocked(actionID string) (domain.PendingAction, bool) {
	if c.state != domain.SessionStateCompleted {
		return domain.PendingAction{}, false
	}
	i := slices.IndexFunc(c.result.Pending, func(p domain.PendingAction) bool {
		return p.Action.ID == actionID
	})
	if i < 0 {
		return domain.PendingAction{}, false
	}
	pending := c.result.Pending[i]
	c.result.Pending = slices.Delete(slices.Clone(c.result.Pending), i, i+1)
	return pending, true
}

func (c *Controller) completedReasonLocked() domain.SessionStateReason {
	switch {
	case len(c.result.Pending) > 0:
		return domain.SessionReasonAwaitingConfirmation
	case len(c.result.Executed) > 0:
		return domain.SessionReasonActionsLogged
	default:
		return domain.SessionReasonNoActions
	}
}

func cloneResult(r domain.Result) domain.Result {
	r.Executed = slices.Clone(r.Executed)
	r.Pending = slices.Clone(r.Pending)
	r.Skipped = slices.Clone(r.Skipped)
	return r
}
