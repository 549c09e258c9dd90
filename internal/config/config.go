package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "VOICELOG_"
	envConfigPath = "VOICELOG_CONFIG"
)

// Config stores runtime configuration.
type Config struct {
	Transcription TranscriptionConfig `koanf:"transcription"`
	LLM           LLMConfig           `koanf:"llm"`
	OpenAI        OpenAIConfig        `koanf:"openai"`
	Anthropic     AnthropicConfig     `koanf:"anthropic"`
	Deepgram      DeepgramConfig      `koanf:"deepgram"`
	Audio         AudioConfig         `koanf:"audio"`
	Rules         RulesConfig         `koanf:"rules"`
	Executor      ExecutorConfig      `koanf:"executor"`
	Retry         RetryConfig         `koanf:"retry"`
	Queue         QueueConfig         `koanf:"queue"`
	Enrichment    EnrichmentConfig    `koanf:"enrichment"`
	Storage       StorageConfig       `koanf:"storage"`
	Log           LogConfig           `koanf:"log"`
	Telemetry     TelemetryConfig     `koanf:"telemetry"`
	// Location is the IANA zone used to resolve spoken times. Empty means the system zone.
	Location string `koanf:"location"`

	// Path is the config file that was read, if any.
	Path string `koanf:"-"`
}

type TranscriptionConfig struct {
	Provider string `koanf:"provider"` // openai, deepgram
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // openai, anthropic
}

type OpenAIConfig struct {
	APIKey             string `koanf:"api_key"`
	BaseURL            string `koanf:"base_url"`
	TranscriptionModel string `koanf:"transcription_model"`
	ChatModel          string `koanf:"chat_model"`
}

type AnthropicConfig struct {
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
}

type DeepgramConfig struct {
	APIKey      string `koanf:"api_key"`
	APIBaseURL  string `koanf:"api_base_url"`
	Model       string `koanf:"model"`
	Language    string `koanf:"language"`
	SmartFormat bool   `koanf:"smart_format"`
}

type AudioConfig struct {
	RecorderCommand string `koanf:"recorder_command"`
	InputFormat     string `koanf:"input_format"`
	InputDevice     string `koanf:"input_device"`
	SampleRate      int    `koanf:"sample_rate"`
	Channels        int    `koanf:"channels"`
	ChunkSize       int    `koanf:"chunk_size"`
	ClipDir         string `koanf:"clip_dir"`
	// RetainClips keeps clips that produced log entries.
	RetainClips bool          `koanf:"retain_clips"`
	OrphanAge   time.Duration `koanf:"orphan_age"`
}

type RulesConfig struct {
	Path           string `koanf:"path"`
	IterationLimit int    `koanf:"iteration_limit"`
}

type ExecutorConfig struct {
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	DefaultWaterAmount  float64 `koanf:"default_water_amount"`
	DefaultWaterUnit    string  `koanf:"default_water_unit"`
	DefaultFrequency    string  `koanf:"default_frequency"`
	SymptomSuggestions  bool    `koanf:"symptom_suggestions"`
	Followups           bool    `koanf:"followups"`
}

type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	Timeout         time.Duration `koanf:"timeout"`
}

type QueueConfig struct {
	Store           string        `koanf:"store"` // file, sqlite
	Path            string        `koanf:"path"`
	MaxRetries      int           `koanf:"max_retries"`
	BaseDelay       time.Duration `koanf:"base_delay"`
	MaxDelay        time.Duration `koanf:"max_delay"`
	Retention       time.Duration `koanf:"retention"`
	Concurrency     int           `koanf:"concurrency"`
	AttemptTimeout  time.Duration `koanf:"attempt_timeout"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

type EnrichmentConfig struct {
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	CacheSize int           `koanf:"cache_size"`
}

type StorageConfig struct {
	DataDir  string `koanf:"data_dir"`
	Database string `koanf:"database"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text, json
	File   string `koanf:"file"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

func defaults() map[string]any {
	return map[string]any{
		"transcription.provider":        "openai",
		"llm.provider":                  "openai",
		"openai.base_url":               "https://api.openai.com/v1/",
		"openai.transcription_model":    "whisper-1",
		"openai.chat_model":             "gpt-4o-mini",
		"anthropic.base_url":            "https://api.anthropic.com/",
		"anthropic.model":               "claude-3-5-haiku-latest",
		"anthropic.max_tokens":          1024,
		"deepgram.api_base_url":         "https://api.deepgram.com/v1",
		"deepgram.model":                "nova-2",
		"deepgram.smart_format":         true,
		"audio.recorder_command":        "ffmpeg",
		"audio.input_format":            "pulse",
		"audio.input_device":            "default",
		"audio.sample_rate":             16000,
		"audio.channels":                1,
		"audio.chunk_size":              4096,
		"audio.orphan_age":              "24h",
		"rules.iteration_limit":         30,
		"executor.confidence_threshold": 0.8,
		"executor.default_water_amount": 8,
		"executor.default_water_unit":   "oz",
		"executor.default_frequency":    "daily",
		"retry.max_attempts":            3,
		"retry.initial_interval":        "500ms",
		"retry.max_interval":            "5s",
		"retry.timeout":                 "60s",
		"queue.store":                   "sqlite",
		"queue.max_retries":             3,
		"queue.base_delay":              "2s",
		"queue.max_delay":               "5m",
		"queue.retention":               "168h",
		"queue.concurrency":             4,
		"queue.attempt_timeout":         "3m",
		"queue.cleanup_interval":        "1h",
		"enrichment.cache_ttl":          "24h",
		"enrichment.cache_size":         1000,
		"log.level":                     "info",
		"log.format":                    "text",
		"telemetry.service_name":        "voicelog",
	}
}

// DefaultPath is the config file read when VOICELOG_CONFIG is unset.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(envConfigPath)); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "voicelog", "config.yaml")
}

// Load resolves configuration from defaults, the config file, .env and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFrom(DefaultPath())
}

// LoadFrom resolves configuration using the given file. A missing file is not an error.
func LoadFrom(path string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	k := koanf.New(".")
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return Config{}, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			path = ""
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = path

	applyLegacyEnv(&cfg)
	resolveSecrets(&cfg)
	resolvePaths(&cfg, home)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyLegacyEnv honours the provider variables most tools already export.
func applyLegacyEnv(cfg *Config) {
	cfg.OpenAI.APIKey = firstNonEmpty(cfg.OpenAI.APIKey, os.Getenv("OPENAI_API_KEY"))
	cfg.Anthropic.APIKey = firstNonEmpty(cfg.Anthropic.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
	cfg.Deepgram.APIKey = firstNonEmpty(cfg.Deepgram.APIKey, os.Getenv("DEEPGRAM_API_KEY"))
	cfg.Deepgram.Language = firstNonEmpty(cfg.Deepgram.Language, os.Getenv("DEEPGRAM_LANGUAGE"))
	if v := strings.TrimSpace(os.Getenv("DEEPGRAM_MODEL")); v != "" && cfg.Deepgram.Model == "nova-2" {
		cfg.Deepgram.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPGRAM_API_BASE")); v != "" && cfg.Deepgram.APIBaseURL == "https://api.deepgram.com/v1" {
		cfg.Deepgram.APIBaseURL = v
	}
	if cfg.Audio.InputDevice == "default" {
		cfg.Audio.InputDevice = firstNonEmpty(os.Getenv("DEEPGRAM_PULSE_SOURCE"), os.Getenv("WHISPER_PULSE_SOURCE"), "default")
	}
}

func resolvePaths(cfg *Config, home string) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = filepath.Join(home, ".local", "share", "voicelog")
	}
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = filepath.Join(cfg.Storage.DataDir, "voicelog.db")
	}
	if cfg.Queue.Path == "" {
		cfg.Queue.Path = filepath.Join(cfg.Storage.DataDir, "queue.json")
	}
	if cfg.Audio.ClipDir == "" {
		cfg.Audio.ClipDir = filepath.Join(cfg.Storage.DataDir, "clips")
	}
	if cfg.Rules.Path == "" {
		cfg.Rules.Path = firstExisting(
			filepath.Join(home, ".config", "voicelog", "substitutions.rules"),
			filepath.Join(home, ".config", "hypr", "whisper-substitutions.rules"),
		)
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.Transcription.Provider {
	case "openai", "deepgram":
	default:
		errs = append(errs, fmt.Errorf("transcription.provider must be openai or deepgram, got %q", c.Transcription.Provider))
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be openai or anthropic, got %q", c.LLM.Provider))
	}
	if c.Executor.ConfidenceThreshold < 0 || c.Executor.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("executor.confidence_threshold must be between 0 and 1, got %v", c.Executor.ConfidenceThreshold))
	}
	if c.Executor.DefaultWaterAmount <= 0 {
		errs = append(errs, fmt.Errorf("executor.default_water_amount must be positive, got %v", c.Executor.DefaultWaterAmount))
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate and audio.channels must be positive"))
	}
	if c.Rules.IterationLimit <= 0 {
		errs = append(errs, fmt.Errorf("rules.iteration_limit must be positive, got %d", c.Rules.IterationLimit))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	switch c.Queue.Store {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("queue.store must be file or sqlite, got %q", c.Queue.Store))
	}
	if c.Queue.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("queue.max_retries must be at least 1, got %d", c.Queue.MaxRetries))
	}
	if c.Queue.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("queue.concurrency must be at least 1, got %d", c.Queue.Concurrency))
	}
	if c.Queue.BaseDelay <= 0 || c.Queue.MaxDelay < c.Queue.BaseDelay {
		errs = append(errs, fmt.Errorf("queue.base_delay must be positive and not above queue.max_delay"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := c.TimeLocation(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %w", errors.Join(errs...))
}

// TimeLocation resolves Location, falling back to the system zone.
func (c Config) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", c.Location, err)
	}
	return loc, nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
