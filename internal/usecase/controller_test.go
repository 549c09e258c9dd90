package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"voicelog/internal/artifact"
	"voicelog/internal/domain"
	"voicelog/internal/executor"
	"voicelog/internal/ports"
)

var testNow = time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)

type harness struct {
	capture     *fakeAudioCapture
	artifacts   *artifact.Store
	transcriber *fakeTranscriber
	normalizer  *fakeNormalizer
	extractor   *fakeExtractor
	executor    *fakeExecutor
	events      *fakeEventSink
	tasks       *fakeTasks
	linker      *fakeLinker
}

func newHarness(t *testing.T, sessions ...ports.AudioSession) *harness {
	t.Helper()
	store, err := artifact.NewStore(afero.NewMemMapFs(), "/clips")
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	return &harness{
		capture:     &fakeAudioCapture{sessions: sessions},
		artifacts:   store,
		transcriber: &fakeTranscriber{text: "drank sixteen ounces of water"},
		normalizer:  &fakeNormalizer{},
		extractor:   &fakeExtractor{},
		executor:    &fakeExecutor{},
		events:      &fakeEventSink{},
		tasks:       &fakeTasks{},
		linker:      &fakeLinker{},
	}
}

func (h *harness) controller(cfg Config) *Controller {
	return NewController(Services{
		Audio:       h.capture,
		Artifacts:   h.artifacts,
		Transcriber: h.transcriber,
		Normalizer:  h.normalizer,
		Extractor:   h.extractor,
		Executor:    h.executor,
		Events:      h.events,
		Tasks:       h.tasks,
		Linker:      h.linker,
	}, cfg, WithClock(func() time.Time { return testNow }))
}

func (h *harness) clipCount(t *testing.T) int {
	t.Helper()
	clips, err := h.artifacts.List(context.Background())
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	return len(clips)
}

func speech() *fakeAudioSession {
	return &fakeAudioSession{chunks: [][]byte{make([]byte, 3200), make([]byte, 3200)}}
}

func waterAction(confidence float64) domain.CandidateAction {
	return domain.CandidateAction{
		ID:         "a-1",
		Kind:       domain.ActionLogWater,
		Details:    domain.ActionDetails{Amount: "16", Unit: "oz", Timestamp: testNow},
		Confidence: confidence,
	}
}

func TestControllerStartStopSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech())
	h.normalizer.transform = "drank 16 oz of water"
	action := waterAction(0.95)
	h.extractor.actions = []domain.CandidateAction{action}
	executed := domain.ExecutedAction{
		Action:  action,
		Target:  domain.LogTargetHydration,
		LogIDs:  []string{"h-1"},
		Message: "Logged 16 oz of water",
	}
	h.executor.outcome = executor.Outcome{Executed: []domain.ExecutedAction{executed}}
	controller := h.controller(Config{ChunkSize: 512})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := controller.Status(); got.State != domain.SessionStateRecording || !got.Active {
		t.Fatalf("expected active recording, got %+v", got)
	}

	result, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if result.Transcript.Text != "drank 16 oz of water" {
		t.Fatalf("unexpected transcript: %q", result.Transcript.Text)
	}
	if diff := cmp.Diff([]domain.ExecutedAction{executed}, result.Executed); diff != "" {
		t.Fatalf("executed mismatch (-want +got):\n%s", diff)
	}

	if got := h.transcriber.seen(); len(got) != 1 || got[0].Bytes == 0 {
		t.Fatalf("expected one non-empty artifact transcribed, got %+v", got)
	}
	if len(h.extractor.requests) != 1 {
		t.Fatalf("expected one extraction, got %d", len(h.extractor.requests))
	}
	req := h.extractor.requests[0]
	if req.Transcript != "drank 16 oz of water" || !req.CurrentTime.Equal(testNow) {
		t.Fatalf("unexpected extraction request: %+v", req)
	}
	if h.clipCount(t) != 0 {
		t.Fatalf("expected artifact to be deleted after the pipeline")
	}

	wantStates := []stateEvent{
		{domain.SessionStateRecording, domain.SessionReasonRecordingStarted},
		{domain.SessionStateRecognizing, domain.SessionReasonRecordingStopped},
		{domain.SessionStateRecognizing, domain.SessionReasonTranscribing},
		{domain.SessionStateRecognizing, domain.SessionReasonExtracting},
		{domain.SessionStateExecuting, domain.SessionReasonExecutingActions},
		{domain.SessionStateCompleted, domain.SessionReasonActionsLogged},
	}
	if diff := cmp.Diff(wantStates, h.events.snapshotStates(), cmp.AllowUnexported(stateEvent{})); diff != "" {
		t.Fatalf("state transitions mismatch (-want +got):\n%s", diff)
	}
	if h.events.transcripts[0] != "drank 16 oz of water" {
		t.Fatalf("expected normalized transcript event, got %v", h.events.transcripts)
	}

	status := controller.Status()
	if status.State != domain.SessionStateCompleted || status.LastTranscript != "drank 16 oz of water" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestControllerStopWithoutActiveSession(t *testing.T) {
	t.Parallel()

	controller := newHarness(t).controller(Config{})

	_, err := controller.Stop(context.Background())
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestControllerAbortDiscardsRecording(t *testing.T) {
	t.Parallel()

	audio := speech()
	h := newHarness(t, audio)
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Abort(); err != nil {
		t.Fatalf("abort failed: %v", err)
	}

	states := h.events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonRecordingDiscarded {
		t.Fatalf("expected discarded reason, got %s", states[len(states)-1].reason)
	}
	if h.clipCount(t) != 0 {
		t.Fatalf("aborted recording left an artifact behind")
	}
	if len(h.transcriber.seen()) != 0 {
		t.Fatalf("aborted recording must not be transcribed")
	}
	if audio.stopCalls == 0 {
		t.Fatalf("expected capture to be stopped")
	}
	if err := controller.Abort(); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession on second abort, got %v", err)
	}
}

func TestControllerTranscriptionFailureCreatesNoEntries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech(), speech())
	h.transcriber.err = domain.NewServiceError("transcription", domain.CodeNoCredentials, errors.New("missing key"))
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, err := controller.Stop(context.Background())
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}

	if h.executor.calls != 0 || len(h.extractor.requests) != 0 {
		t.Fatalf("failed transcription must not reach extraction or execution")
	}
	if h.clipCount(t) != 0 {
		t.Fatalf("expected artifact to be deleted after a failed pipeline")
	}

	status := controller.Status()
	if status.State != domain.SessionStateError || status.Message == "" {
		t.Fatalf("expected error state with a message, got %+v", status)
	}
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeTranscription {
		t.Fatalf("expected one transcription error, got %+v", errs)
	}

	// Error is terminal for the pipeline but a new recording can start.
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start after error failed: %v", err)
	}
	states := h.events.snapshotStates()
	tail := states[len(states)-2:]
	want := []stateEvent{
		{domain.SessionStateIdle, domain.SessionReasonReady},
		{domain.SessionStateRecording, domain.SessionReasonRecordingStarted},
	}
	if diff := cmp.Diff(want, tail, cmp.AllowUnexported(stateEvent{})); diff != "" {
		t.Fatalf("restart transitions mismatch (-want +got):\n%s", diff)
	}
	if controller.Status().LastTranscript != "" {
		t.Fatalf("expected previous transcript to be cleared")
	}
}

func TestControllerExtractionFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech())
	h.extractor.err = domain.NewServiceError("extraction", domain.CodeDeserializationError, errors.New("not json"))
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	if result.Transcript.Text == "" {
		t.Fatalf("expected transcript to be kept on extraction failure")
	}
	if h.executor.calls != 0 {
		t.Fatalf("executor must not run after extraction failure")
	}
	states := h.events.snapshotStates()
	last := states[len(states)-1]
	if last.state != domain.SessionStateError || last.reason != domain.SessionReasonExtractionFailed {
		t.Fatalf("unexpected final transition %+v", last)
	}
}

func TestControllerNoAudio(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioSession{})
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, err := controller.Stop(context.Background())
	if !errors.Is(err, domain.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if len(h.transcriber.seen()) != 0 {
		t.Fatalf("empty recording must not be transcribed")
	}
	states := h.events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonNoAudio {
		t.Fatalf("unexpected final reason %s", states[len(states)-1].reason)
	}
}

func TestControllerEmptyTranscript(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech())
	h.transcriber.text = "  "
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
	if len(h.extractor.requests) != 0 {
		t.Fatalf("empty transcript must not be extracted")
	}
}

func TestControllerRestartWhileRecordingStopsCapture(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech(), speech())
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	if h.capture.calls != 1 {
		t.Fatalf("expected no new capture to begin, got %d captures", h.capture.calls)
	}
	if len(h.transcriber.seen()) != 1 {
		t.Fatalf("expected the stopped capture to be processed")
	}
	states := h.events.snapshotStates()
	if states[1].reason != domain.SessionReasonRestartStoppedCapture {
		t.Fatalf("expected restart reason, got %s", states[1].reason)
	}
	if got := controller.Status().State; got != domain.SessionStateCompleted {
		t.Fatalf("expected completed state, got %s", got)
	}
}

func TestControllerRejectsStartWhileBusy(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech(), speech())
	h.transcriber.entered = make(chan struct{})
	h.transcriber.release = make(chan struct{})
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := controller.Stop(context.Background())
		done <- err
	}()
	<-h.transcriber.entered

	if err := controller.Start(context.Background()); !errors.Is(err, ErrPipelineBusy) {
		t.Fatalf("expected ErrPipelineBusy, got %v", err)
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrPipelineBusy) {
		t.Fatalf("expected ErrPipelineBusy from Stop, got %v", err)
	}
	if err := controller.Dismiss(); !errors.Is(err, ErrPipelineBusy) {
		t.Fatalf("expected ErrPipelineBusy from Dismiss, got %v", err)
	}
	if !controller.Status().Active {
		t.Fatalf("expected busy status to be active")
	}

	close(h.transcriber.release)
	if err := <-done; err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestControllerConcurrentStartLaunchesOneCapture(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech(), speech())
	h.capture.entered = make(chan struct{}, 1)
	h.capture.release = make(chan struct{})
	controller := h.controller(Config{})

	done := make(chan error, 1)
	go func() { done <- controller.Start(context.Background()) }()
	<-h.capture.entered

	if err := controller.Start(context.Background()); !errors.Is(err, ErrPipelineBusy) {
		t.Fatalf("expected ErrPipelineBusy while capture is starting, got %v", err)
	}

	close(h.capture.release)
	if err := <-done; err != nil {
		t.Fatalf("start failed: %v", err)
	}
	h.capture.mu.Lock()
	calls := h.capture.calls
	h.capture.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one capture to start, got %d", calls)
	}
	if got := controller.Status().State; got != domain.SessionStateRecording {
		t.Fatalf("expected recording, got %s", got)
	}
	if err := controller.Abort(); err != nil {
		t.Fatalf("abort failed: %v", err)
	}
}

func TestControllerConfirmAndRejectPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech())
	low := waterAction(0.5)
	other := waterAction(0.4)
	other.ID = "a-2"
	h.extractor.actions = []domain.CandidateAction{low, other}
	h.executor.outcome = executor.Outcome{Pending: []domain.PendingAction{
		{Action: low, Prompt: "Log 16 oz of water?"},
		{Action: other, Prompt: "Log 16 oz of water?"},
	}}
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	states := h.events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonAwaitingConfirmation {
		t.Fatalf("expected awaiting confirmation, got %s", states[len(states)-1].reason)
	}

	executed, err := controller.Confirm(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if executed.Action.ID != "a-1" || len(h.executor.confirmed) != 1 {
		t.Fatalf("expected a-1 to be dispatched, got %+v", executed)
	}
	if _, err := controller.Confirm(context.Background(), "a-1"); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("expected ErrPendingNotFound on double confirm, got %v", err)
	}

	if err := controller.Reject("a-2"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	status := controller.Status()
	if len(status.Pending) != 0 || len(status.Executed) != 1 {
		t.Fatalf("unexpected status after confirm/reject: %+v", status)
	}
	states = h.events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonActionsLogged {
		t.Fatalf("expected actions logged, got %s", states[len(states)-1].reason)
	}

	if err := controller.Dismiss(); err != nil {
		t.Fatalf("dismiss failed: %v", err)
	}
	if got := controller.Status(); got.State != domain.SessionStateIdle || len(got.Executed) != 0 {
		t.Fatalf("expected cleared idle status, got %+v", got)
	}
}

func TestControllerConfirmFailureKeepsPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech())
	low := waterAction(0.5)
	h.executor.outcome = executor.Outcome{Pending: []domain.PendingAction{{Action: low}}}
	h.executor.confirmErr = domain.NewStorageError("append hydration", errors.New("disk full"))
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if _, err := controller.Confirm(context.Background(), "a-1"); !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if len(controller.Status().Pending) != 1 {
		t.Fatalf("failed confirmation should stay pending")
	}
}

func TestControllerNormalizerFailurePassesThrough(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech())
	h.normalizer.err = errors.New("bad rule")
	controller := h.controller(Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Transcript.Text != "drank sixteen ounces of water" {
		t.Fatalf("expected raw transcript, got %q", result.Transcript.Text)
	}
}

func TestControllerRetainAudioLinksEntries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech())
	h.executor.outcome = executor.Outcome{Executed: []domain.ExecutedAction{
		{Action: waterAction(0.9), Target: domain.LogTargetHydration, LogIDs: []string{"h-1"}},
		{Target: domain.LogTargetPUQE, LogIDs: []string{"p-1"}},
	}}
	controller := h.controller(Config{RetainAudio: true})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if h.clipCount(t) != 1 {
		t.Fatalf("expected the linked artifact to be kept")
	}
	if len(h.linker.links) != 1 || h.linker.links[0] != "hydration/h-1" {
		t.Fatalf("unexpected links %v", h.linker.links)
	}
}

func TestControllerFollowupForUnknownRequests(t *testing.T) {
	t.Parallel()

	h := newHarness(t, speech())
	h.transcriber.text = "how much water did I drink today"
	unknown := domain.CandidateAction{ID: "a-1", Kind: domain.ActionUnknown, Details: domain.ActionDetails{Notes: "water total"}}
	h.executor.outcome = executor.Outcome{Skipped: []domain.SkippedAction{{Action: unknown, Reason: "request not understood"}}}
	controller := h.controller(Config{Followups: true})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	want := []enqueued{{
		kind: domain.TaskVoiceFollowup,
		payload: map[string]string{
			domain.PayloadTranscript: "how much water did I drink today",
			domain.PayloadPrompt:     "water total",
		},
	}}
	if diff := cmp.Diff(want, h.tasks.calls, cmp.AllowUnexported(enqueued{})); diff != "" {
		t.Fatalf("enqueued mismatch (-want +got):\n%s", diff)
	}
	if errs := h.events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("unknown requests are logged only, got errors %+v", errs)
	}
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int

	// entered and release hold Start open when set.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

type fakeTranscriber struct {
	mu        sync.Mutex
	text      string
	err       error
	artifacts []domain.AudioArtifact
	entered   chan struct{}
	release   chan struct{}
}

func (f *fakeTranscriber) Transcribe(_ context.Context, a domain.AudioArtifact) (domain.Transcript, error) {
	f.mu.Lock()
	f.artifacts = append(f.artifacts, a)
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	if f.err != nil {
		return domain.Transcript{}, f.err
	}
	return domain.Transcript{Text: f.text, Duration: a.Duration}, nil
}

func (f *fakeTranscriber) seen() []domain.AudioArtifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AudioArtifact(nil), f.artifacts...)
}

type fakeNormalizer struct {
	transform string
	err       error
}

func (f *fakeNormalizer) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeExtractor struct {
	actions  []domain.CandidateAction
	err      error
	requests []ports.ExtractionRequest
}

func (f *fakeExtractor) Extract(_ context.Context, req ports.ExtractionRequest) ([]domain.CandidateAction, error) {
	f.requests = append(f.requests, req)
	return f.actions, f.err
}

type fakeExecutor struct {
	outcome    executor.Outcome
	confirmErr error
	calls      int
	confirmed  []domain.CandidateAction
}

func (f *fakeExecutor) Execute(_ context.Context, _ []domain.CandidateAction) executor.Outcome {
	f.calls++
	return f.outcome
}

func (f *fakeExecutor) Confirm(_ context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	if f.confirmErr != nil {
		return domain.ExecutedAction{}, f.confirmErr
	}
	f.confirmed = append(f.confirmed, action)
	return domain.ExecutedAction{Action: action, Target: domain.LogTargetHydration, LogIDs: []string{"h-9"}}, nil
}

type enqueued struct {
	kind    domain.TaskKind
	payload map[string]string
}

type fakeTasks struct {
	calls []enqueued
}

func (f *fakeTasks) Enqueue(_ context.Context, kind domain.TaskKind, payload map[string]string) (domain.QueuedTask, error) {
	f.calls = append(f.calls, enqueued{kind: kind, payload: payload})
	return domain.QueuedTask{ID: "t-1", Kind: kind, Payload: payload}, nil
}

type fakeLinker struct {
	links []string
}

func (f *fakeLinker) AttachArtifact(_ context.Context, target domain.LogTarget, logID, _ string) error {
	f.links = append(f.links, string(target)+"/"+logID)
	return nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states      []stateEvent
	transcripts []string
	results     []domain.Result
	errors      []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) TranscriptReady(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, text)
}

func (f *fakeEventSink) ActionsProcessed(result domain.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}
