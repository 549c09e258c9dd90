package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"voicelog/internal/domain"
	"voicelog/internal/providers/httperr"
)

// Config controls the Anthropic adapter.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// Provider implements ports.Completer and ports.VisionCompleter with the Messages API.
type Provider struct {
	cfg    Config
	client anthropic.Client
}

func NewProvider(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Provider{cfg: cfg, client: anthropic.NewClient(opts...)}
}

func (p *Provider) Complete(ctx context.Context, system, prompt string) (string, error) {
	return p.send(ctx, system, anthropic.NewTextBlock(prompt))
}

// CompleteWithImage sends the image as a base64 block ahead of the prompt.
func (p *Provider) CompleteWithImage(ctx context.Context, system, prompt string, image []byte, mediaType string) (string, error) {
	if len(image) == 0 {
		return "", domain.NewServiceError("anthropic", domain.CodeBadRequest, errors.New("image is empty"))
	}
	return p.send(ctx, system,
		anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(image)),
		anthropic.NewTextBlock(prompt),
	)
}

func (p *Provider) send(ctx context.Context, system string, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", httperr.NoCredentials("anthropic", "ANTHROPIC_API_KEY")
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.cfg.Model),
		MaxTokens: p.cfg.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			var header http.Header
			if apiErr.Response != nil {
				header = apiErr.Response.Header
			}
			return "", httperr.FromStatus("anthropic", apiErr.StatusCode, header, err)
		}
		return "", httperr.FromTransport(ctx, "anthropic", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", domain.NewServiceError("anthropic", domain.CodeInvalidResponse, errors.New("response has no text content"))
	}
	return text, nil
}
