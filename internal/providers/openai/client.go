package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
	"voicelog/internal/providers/httperr"
)

// Config controls the OpenAI adapters.
type Config struct {
	APIKey             string
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
	Language           string
}

// Provider implements ports.Completer, ports.VisionCompleter and ports.TranscriptionService on the OpenAI API.
type Provider struct {
	cfg       Config
	client    openai.Client
	artifacts ports.ArtifactStore
}

func NewProvider(cfg Config, artifacts ports.ArtifactStore) *Provider {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = "whisper-1"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by resilience.Policy.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		cfg:       cfg,
		client:    openai.NewClient(opts...),
		artifacts: artifacts,
	}
}

// Complete runs a JSON-mode chat completion.
func (p *Provider) Complete(ctx context.Context, system, prompt string) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", httperr.NoCredentials("openai", "OPENAI_API_KEY")
	}

	return p.chat(ctx, openai.SystemMessage(system), openai.UserMessage(prompt))
}

// CompleteWithImage attaches the image as a data URL content part.
func (p *Provider) CompleteWithImage(ctx context.Context, system, prompt string, image []byte, mediaType string) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", httperr.NoCredentials("openai", "OPENAI_API_KEY")
	}
	if len(image) == 0 {
		return "", domain.NewServiceError("openai", domain.CodeBadRequest, errors.New("image is empty"))
	}

	dataURL := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image)
	return p.chat(ctx,
		openai.SystemMessage(system),
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		}),
	)
}

func (p *Provider) chat(ctx context.Context, messages ...openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.cfg.ChatModel),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", classify(ctx, "openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewServiceError("openai", domain.CodeInvalidResponse, errors.New("response has no choices"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", domain.NewServiceError("openai", domain.CodeInvalidResponse, errors.New("empty completion"))
	}
	return content, nil
}

// Transcribe uploads a recorded clip to the transcription endpoint.
func (p *Provider) Transcribe(ctx context.Context, artifact domain.AudioArtifact) (domain.Transcript, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return domain.Transcript{}, httperr.NoCredentials("transcription", "OPENAI_API_KEY")
	}

	audio, err := p.artifacts.Open(ctx, artifact)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("open artifact %s: %w", artifact.ID, err)
	}
	defer audio.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  namedAudio{Reader: audio, name: artifact.ID + ".wav"},
		Model: openai.AudioModel(p.cfg.TranscriptionModel),
	}
	if p.cfg.Language != "" {
		params.Language = openai.String(p.cfg.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return domain.Transcript{}, classify(ctx, "transcription", err)
	}

	return domain.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Duration: artifact.Duration,
		Language: p.cfg.Language,
	}, nil
}

type namedAudio struct {
	io.Reader
	name string
}

func (n namedAudio) Name() string        { return n.name }
func (n namedAudio) Filename() string    { return n.name }
func (n namedAudio) ContentType() string { return "audio/wav" }

func classify(ctx context.Context, service string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return httperr.FromStatus(service, apiErr.StatusCode, header, err)
	}
	return httperr.FromTransport(ctx, service, err)
}
