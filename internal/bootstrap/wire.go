package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"voicelog/internal/artifact"
	"voicelog/internal/audio"
	"voicelog/internal/config"
	"voicelog/internal/domain"
	"voicelog/internal/executor"
	"voicelog/internal/extraction"
	"voicelog/internal/logging"
	"voicelog/internal/normalize"
	"voicelog/internal/ports"
	"voicelog/internal/providers/anthropic"
	"voicelog/internal/providers/deepgram"
	"voicelog/internal/providers/openai"
	"voicelog/internal/queue"
	"voicelog/internal/resilience"
	"voicelog/internal/store/serial"
	"voicelog/internal/store/sqlite"
	"voicelog/internal/telemetry"
	"voicelog/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.Controller
	Executor   *executor.Executor
	Queue      *queue.Queue
	Store      *sqlite.Store
	// Entries is the write path for linking and deleting log entries.
	Entries    serial.Entries
	Artifacts  *artifact.Store
	Registry   *prometheus.Registry
	Config     config.Config
	Logger     *slog.Logger

	closers []func(context.Context) error
}

// Options customise Build. Zero values use the process defaults.
type Options struct {
	// Capture replaces the ffmpeg recorder.
	Capture ports.AudioCapture
	// Fs holds clips, the file task store and meal photos. Defaults to the OS filesystem.
	Fs afero.Fs
	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer
	// Watch reloads the confidence threshold when the config file changes.
	Watch bool
}

// Build loads configuration and wires all backend dependencies for the current runtime.
func Build(ctx context.Context, events ports.EventSink, notifier ports.Notifier, opts Options) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return BuildWithConfig(ctx, cfg, events, notifier, opts)
}

// BuildWithConfig wires the runtime from an already loaded config.
func BuildWithConfig(ctx context.Context, cfg config.Config, events ports.EventSink, notifier ports.Notifier, opts Options) (_ *Services, err error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	s := &Services{Config: cfg}
	defer func() {
		if err != nil {
			_ = s.Close(context.WithoutCancel(ctx))
		}
	}()

	logger, logCloser, err := logging.New(cfg.Log, opts.LogOutput)
	if err != nil {
		return nil, err
	}
	s.Logger = logger
	s.onClose(func(context.Context) error { return logCloser.Close() })

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		s.onClose(shutdown)
	}

	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}

	s.Artifacts, err = artifact.NewStore(opts.Fs, cfg.Audio.ClipDir)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Database != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Database), 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	s.Store, err = sqlite.Open(ctx, cfg.Storage.Database,
		sqlite.WithArtifacts(s.Artifacts),
		sqlite.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	s.onClose(func(context.Context) error { return s.Store.Close() })

	writer := serial.NewWriter(16)
	s.onClose(func(context.Context) error {
		writer.Close()
		return nil
	})
	food := serial.Food{W: writer, Next: s.Store}
	s.Entries = serial.Entries{W: writer, Next: s.Store}

	llm, vision, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}
	transcriber := buildTranscriber(cfg, s.Artifacts)

	hook := resilience.LogHook{Logger: logger}
	policy := func(service string) resilience.Policy {
		p := resilience.DefaultPolicy(service)
		p.MaxAttempts = uint(cfg.Retry.MaxAttempts)
		p.InitialDelay = cfg.Retry.InitialInterval
		p.MaxDelay = cfg.Retry.MaxInterval
		if cfg.Retry.Timeout > 0 {
			p.Timeout = cfg.Retry.Timeout
		}
		p.Hooks = []resilience.RetryHook{hook}
		return p
	}

	extractor := extraction.NewService(llm)
	enricher, err := extraction.NewCachedEnricher(
		resilience.RetryingEnricher{Next: extractor, Policy: policy("enrichment")},
		cfg.Enrichment.CacheSize,
		cfg.Enrichment.CacheTTL,
	)
	if err != nil {
		return nil, err
	}
	s.onClose(func(context.Context) error {
		enricher.Close()
		return nil
	})

	followupLLM := resilience.RetryingCompleter{Next: llm, Policy: policy("enrichment")}
	handlers := map[domain.TaskKind]queue.Handler{
		domain.TaskNutritionMacros:    queue.NutritionHandler{Enricher: enricher, Food: food},
		domain.TaskSymptomSuggestions: queue.SymptomSuggestionHandler{LLM: followupLLM},
		domain.TaskImageAnalysis: queue.ImageAnalysisHandler{
			Vision: resilience.RetryingVision{Next: vision, Policy: policy("vision")},
			Fs:     opts.Fs,
		},
		domain.TaskVoiceFollowup: queue.VoiceFollowupHandler{LLM: followupLLM},
	}

	taskStore, err := buildTaskStore(cfg, s.Store, opts.Fs)
	if err != nil {
		return nil, err
	}
	s.Registry = prometheus.NewRegistry()
	s.Queue, err = queue.Open(ctx, taskStore, handlers,
		queue.Config{
			MaxRetries:     cfg.Queue.MaxRetries,
			BaseDelay:      cfg.Queue.BaseDelay,
			MaxDelay:       cfg.Queue.MaxDelay,
			Retention:      cfg.Queue.Retention,
			Concurrency:    cfg.Queue.Concurrency,
			AttemptTimeout: cfg.Queue.AttemptTimeout,
		},
		queue.WithLogger(logger),
		queue.WithRegistry(s.Registry),
	)
	if err != nil {
		return nil, err
	}
	s.onClose(func(context.Context) error { return s.Queue.Close() })

	threshold, err := executor.NewConfidencePolicy(cfg.Executor.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	s.Executor = executor.New(
		executor.Collaborators{
			Hydration:   serial.Hydration{W: writer, Next: s.Store},
			Food:        food,
			Supplements: serial.Supplements{W: writer, Next: s.Store},
			Symptoms:    serial.Symptoms{W: writer, Next: s.Store},
			PUQE:        serial.PUQE{W: writer, Next: s.Store},
			Markers:     serial.Markers{W: writer, Next: s.Store},
			Notifier:    notifier,
			Tasks:       s.Queue,
		},
		threshold,
		executor.Config{
			DefaultWaterAmount: cfg.Executor.DefaultWaterAmount,
			DefaultWaterUnit:   cfg.Executor.DefaultWaterUnit,
			DefaultFrequency:   cfg.Executor.DefaultFrequency,
			SymptomSuggestions: cfg.Executor.SymptomSuggestions,
		},
		executor.WithLogger(logger),
	)

	normalizer, err := normalize.New(opts.Fs, cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, err
	}

	capture := opts.Capture
	if capture == nil {
		capture = audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)
	}

	s.Controller = usecase.NewController(
		usecase.Services{
			Audio:       capture,
			Artifacts:   s.Artifacts,
			Transcriber: resilience.RetryingTranscriber{Next: transcriber, Policy: policy("transcription")},
			Normalizer:  normalize.BestEffort{Next: normalizer, Logger: logger},
			Extractor:   resilience.RetryingExtractor{Next: extractor, Policy: policy("extraction")},
			Executor:    s.Executor,
			Events:      events,
			Tasks:       s.Queue,
			Linker:      s.Entries,
		},
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize:   cfg.Audio.ChunkSize,
			Location:    loc,
			RetainAudio: cfg.Audio.RetainClips,
			Followups:   cfg.Executor.Followups,
		},
		usecase.WithLogger(logger),
	)
	s.onClose(func(context.Context) error {
		s.Controller.Close()
		return nil
	})

	if opts.Watch && cfg.Path != "" {
		if err := s.watchConfig(ctx, threshold); err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		}
	}

	return s, nil
}

// Start removes orphaned clips, resumes interrupted tasks in the background and
// schedules retention cleanup and orphan sweeps until ctx is done. It does not wait for task attempts.
func (s *Services) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.onClose(func(context.Context) error {
		cancel()
		return nil
	})

	s.SweepOrphans(ctx)

	go func() {
		n, err := s.Queue.ProcessPending(ctx)
		if err != nil && !errors.Is(err, queue.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
			s.Logger.Error("resume queued tasks", "error", err)
			return
		}
		if n > 0 {
			s.Logger.Info("resumed queued tasks", "count", n)
		}
	}()
	go s.Queue.RunCleanup(ctx, s.Config.Queue.CleanupInterval)
	go s.runOrphanSweep(ctx, s.Config.Queue.CleanupInterval)
}

// SweepOrphans deletes clips older than audio.orphan_age that no log entry references.
func (s *Services) SweepOrphans(ctx context.Context) []string {
	referenced, err := s.Store.ReferencedArtifacts(ctx)
	if err != nil {
		s.Logger.Error("orphan sweep skipped", "error", err)
		return nil
	}
	removed, err := s.Artifacts.SweepOrphans(ctx, referenced, s.Config.Audio.OrphanAge)
	if err != nil {
		s.Logger.Error("orphan sweep failed", "removed", len(removed), "error", err)
	}
	if len(removed) > 0 {
		s.Logger.Info("orphaned clips removed", "count", len(removed))
	}
	return removed
}

func (s *Services) runOrphanSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOrphans(ctx)
		}
	}
}

// Close releases everything Build acquired, in reverse order.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Services) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

func (s *Services) watchConfig(ctx context.Context, threshold *executor.ConfidencePolicy) error {
	watcher, err := config.NewWatcher(s.Config.Path, s.Logger)
	if err != nil {
		return err
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := watcher.Watch(watchCtx, func(next config.Config) {
		if err := threshold.SetThreshold(next.Executor.ConfidenceThreshold); err != nil {
			s.Logger.Warn("ignoring confidence threshold", "error", err)
			return
		}
		s.Logger.Info("confidence threshold updated", "threshold", next.Executor.ConfidenceThreshold)
	}); err != nil {
		cancel()
		return err
	}
	s.onClose(func(context.Context) error {
		cancel()
		return watcher.Close()
	})
	return nil
}

func buildLLM(cfg config.Config) (ports.Completer, ports.VisionCompleter, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		p := anthropic.NewProvider(anthropic.Config{
			APIKey:    cfg.Anthropic.APIKey,
			BaseURL:   cfg.Anthropic.BaseURL,
			Model:     cfg.Anthropic.Model,
			MaxTokens: int64(cfg.Anthropic.MaxTokens),
		})
		return p, p, nil
	case "openai":
		p := openai.NewProvider(openAIConfig(cfg), nil)
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func buildTranscriber(cfg config.Config, artifacts ports.ArtifactStore) ports.TranscriptionService {
	if cfg.Transcription.Provider == "deepgram" {
		return deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			ChunkSize:   cfg.Audio.ChunkSize,
		}, artifacts)
	}
	return openai.NewProvider(openAIConfig(cfg), artifacts)
}

func openAIConfig(cfg config.Config) openai.Config {
	return openai.Config{
		APIKey:             cfg.OpenAI.APIKey,
		BaseURL:            cfg.OpenAI.BaseURL,
		ChatModel:          cfg.OpenAI.ChatModel,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
	}
}

func buildTaskStore(cfg config.Config, db *sqlite.Store, fs afero.Fs) (queue.Store, error) {
	if cfg.Queue.Store == "file" {
		return queue.NewFileStore(fs, cfg.Queue.Path)
	}
	return db.TaskStore(), nil
}
