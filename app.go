package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voicelog/internal/bootstrap"
	"voicelog/internal/domain"
	"voicelog/internal/usecase"
)

const (
	eventSession    = "voicelog:session"
	eventTranscript = "voicelog:transcript"
	eventActions    = "voicelog:actions"
	eventError      = "voicelog:error"
	eventToast      = "voicelog:toast"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services *bootstrap.Services
	bootErr  error

	emit func(ctx context.Context, name string, data ...interface{})
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a, a, bootstrap.Options{Watch: true})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	services.Start(ctx)
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(ctx context.Context) {
	if a.services == nil {
		return
	}
	if err := a.services.Close(ctx); err != nil {
		a.services.Logger.Error("shutdown", "error", err)
	}
}

// StartRecording begins capturing a voice command. Calling it while recording processes the current clip first.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Controller.Start(a.ctx); err != nil {
		return a.services.Controller.Status(), err
	}
	return a.services.Controller.Status(), nil
}

// StopRecording ends capture and returns what was logged.
func (a *App) StopRecording() (domain.Result, error) {
	if err := a.requireReady(); err != nil {
		return domain.Result{}, err
	}
	return a.services.Controller.Stop(a.ctx)
}

// AbortRecording discards an in-progress recording.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Controller.Abort(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// ConfirmAction executes a pending low-confidence action.
func (a *App) ConfirmAction(actionID string) (domain.ExecutedAction, error) {
	if err := a.requireReady(); err != nil {
		return domain.ExecutedAction{}, err
	}
	return a.services.Controller.Confirm(a.ctx, actionID)
}

// RejectAction drops a pending action without logging it.
func (a *App) RejectAction(actionID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Controller.Reject(actionID)
}

// Dismiss returns a completed or failed session to idle.
func (a *App) Dismiss() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Controller.Dismiss()
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.services.Controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	info := map[string]string{
		"transcription":       cfg.Transcription.Provider,
		"llm":                 cfg.LLM.Provider,
		"rulesFile":           cfg.Rules.Path,
		"audioInput":          cfg.Audio.InputDevice,
		"audioInputFormat":    cfg.Audio.InputFormat,
		"database":            cfg.Storage.Database,
		"queueStore":          cfg.Queue.Store,
		"confidenceThreshold": fmt.Sprintf("%.2f", a.services.Executor.Policy().Threshold()),
	}
	switch cfg.LLM.Provider {
	case "anthropic":
		info["model"] = cfg.Anthropic.Model
	default:
		info["model"] = cfg.OpenAI.ChatModel
	}
	if cfg.Transcription.Provider == "deepgram" {
		info["transcriptionModel"] = cfg.Deepgram.Model
	} else {
		info["transcriptionModel"] = cfg.OpenAI.TranscriptionModel
	}
	return info
}

// ListTasks returns queued enrichment tasks. An empty status lists all of them.
func (a *App) ListTasks(status string) ([]domain.QueuedTask, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Queue.List(domain.TaskStatus(strings.TrimSpace(status))), nil
}

// RetryFailedTasks re-queues every permanently failed task.
func (a *App) RetryFailedTasks() (int, error) {
	if err := a.requireReady(); err != nil {
		return 0, err
	}
	return a.services.Queue.RetryFailed(a.ctx)
}

// AnalyzeMealPhoto queues an image analysis for a photo on disk.
func (a *App) AnalyzeMealPhoto(path, note string) (domain.QueuedTask, error) {
	if err := a.requireReady(); err != nil {
		return domain.QueuedTask{}, err
	}
	if strings.TrimSpace(path) == "" {
		return domain.QueuedTask{}, fmt.Errorf("photo path is required")
	}
	return a.services.Queue.Enqueue(a.ctx, domain.TaskImageAnalysis, map[string]string{
		domain.PayloadImagePath:   path,
		domain.PayloadDescription: note,
	})
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) send(name string, data interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, data)
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.send(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// TranscriptReady emits the normalised transcript.
func (a *App) TranscriptReady(text string) {
	a.send(eventTranscript, map[string]string{"text": text})
}

// ActionsProcessed emits what a recording logged, queued and skipped.
func (a *App) ActionsProcessed(result domain.Result) {
	a.send(eventActions, result)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// Notify shows a confirmation toast.
func (a *App) Notify(message string) {
	a.send(eventToast, map[string]string{"message": message})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Listening..."
	case domain.SessionReasonRecordingStopped:
		return "Recording stopped"
	case domain.SessionReasonRestartStoppedCapture:
		return "Recording stopped; processing previous capture"
	case domain.SessionReasonTranscribing:
		return "Transcribing..."
	case domain.SessionReasonExtracting:
		return "Understanding..."
	case domain.SessionReasonExecutingActions:
		return "Logging..."
	case domain.SessionReasonActionsLogged:
		return "Logged"
	case domain.SessionReasonAwaitingConfirmation:
		return "Please confirm"
	case domain.SessionReasonNoActions:
		return "Nothing to log"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoAudio:
		return "No audio captured"
	case domain.SessionReasonNoTranscript:
		return "No speech recognised"
	case domain.SessionReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.SessionReasonExtractionFailed:
		return "Could not understand the request"
	case domain.SessionReasonDismissed:
		return "Ready"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeExtraction:
		return "Extraction error"
	case domain.ErrorCodeExecution:
		return "Some actions were not logged"
	case domain.ErrorCodeStorage:
		return "Storage error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
