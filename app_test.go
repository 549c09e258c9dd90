package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voicelog/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonReady:                 "Ready",
		domain.SessionReasonRecordingStarted:      "Listening...",
		domain.SessionReasonRestartStoppedCapture: "Recording stopped; processing previous capture",
		domain.SessionReasonTranscribing:          "Transcribing...",
		domain.SessionReasonAwaitingConfirmation:  "Please confirm",
		domain.SessionReasonNoActions:             "Nothing to log",
		domain.SessionReasonRecordingDiscarded:    "Recording discarded",
		domain.SessionReasonNoTranscript:          "No speech recognised",
		domain.SessionReasonTranscriptionFailed:   "Transcription failed",
		domain.SessionReasonExtractionFailed:      "Could not understand the request",
	}

	for reason, want := range cases {
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:       "Startup failed",
		domain.ErrorCodeAudioStop:     "Audio stop issue",
		domain.ErrorCodeAudioStream:   "Audio streaming issue",
		domain.ErrorCodeTranscription: "Transcription error",
		domain.ErrorCodeExtraction:    "Extraction error",
		domain.ErrorCodeExecution:     "Some actions were not logged",
		domain.ErrorCodeStorage:       "Storage error",
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
	if _, err := app.StartRecording(); !errors.Is(err, bootErr) {
		t.Fatalf("expected StartRecording to report boot error, got %v", err)
	}
	if _, err := app.ListTasks(""); !errors.Is(err, bootErr) {
		t.Fatalf("expected ListTasks to report boot error, got %v", err)
	}
	if info := app.GetRuntimeInfo(); info["error"] != "boot" {
		t.Fatalf("expected boot error in runtime info, got %v", info)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	status := app.GetStatus()
	if status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}

	app.bootErr = errors.New("boot")
	status = app.GetStatus()
	if status.State != domain.SessionStateError || status.Active != false || status.Message != "boot" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
}

type emitted struct {
	name string
	data interface{}
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeEmitter) emit(_ context.Context, name string, data ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{name: name, data: data[0]})
}

func TestEventsAreEmittedWithPayloads(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	app := &App{ctx: context.Background(), emit: em.emit}

	app.SessionStateChanged(domain.SessionStateCompleted, domain.SessionReasonActionsLogged)
	app.TranscriptReady("drank water")
	app.ActionsProcessed(domain.Result{Transcript: domain.Transcript{Text: "drank water"}})
	app.SessionError(domain.ErrorCodeExtraction, "bad json")
	app.Notify("Logged 8 oz of water")

	if len(em.events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(em.events))
	}
	session := em.events[0].data.(map[string]string)
	if em.events[0].name != eventSession || session["state"] != "completed" || session["message"] != "Logged" {
		t.Fatalf("unexpected session event %+v", em.events[0])
	}
	if em.events[1].name != eventTranscript || em.events[1].data.(map[string]string)["text"] != "drank water" {
		t.Fatalf("unexpected transcript event %+v", em.events[1])
	}
	if result, ok := em.events[2].data.(domain.Result); em.events[2].name != eventActions || !ok || result.Transcript.Text != "drank water" {
		t.Fatalf("unexpected actions event %+v", em.events[2])
	}
	errEvent := em.events[3].data.(map[string]string)
	if em.events[3].name != eventError || errEvent["message"] != "Extraction error" || errEvent["detail"] != "bad json" {
		t.Fatalf("unexpected error event %+v", em.events[3])
	}
	if em.events[4].name != eventToast || em.events[4].data.(map[string]string)["message"] != "Logged 8 oz of water" {
		t.Fatalf("unexpected toast event %+v", em.events[4])
	}
}

func TestEventsBeforeStartupAreDropped(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	app := &App{emit: em.emit}
	app.Notify("ignored")
	if len(em.events) != 0 {
		t.Fatalf("expected no events before startup, got %d", len(em.events))
	}
}
