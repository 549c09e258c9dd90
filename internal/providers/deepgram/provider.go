package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voicelog/internal/artifact"
	"voicelog/internal/domain"
	"voicelog/internal/ports"
	"voicelog/internal/providers/httperr"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	SampleRate  int
	Channels    int
	ChunkSize   int
	// DrainTimeout bounds the wait for final results after the audio is sent.
	DrainTimeout time.Duration
}

// Provider implements ports.TranscriptionService over the Deepgram live listen socket.
type Provider struct {
	cfg       Config
	artifacts ports.ArtifactStore
	dialer    *websocket.Dialer
}

func NewProvider(cfg Config, artifacts ports.ArtifactStore) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	return &Provider{cfg: cfg, artifacts: artifacts, dialer: websocket.DefaultDialer}
}

// Transcribe streams the clip's PCM samples and returns the aggregated final transcript.
func (p *Provider) Transcribe(ctx context.Context, clip domain.AudioArtifact) (domain.Transcript, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return domain.Transcript{}, httperr.NoCredentials("transcription", "DEEPGRAM_API_KEY")
	}

	audio, err := p.artifacts.Open(ctx, clip)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("open artifact %s: %w", clip.ID, err)
	}
	defer audio.Close()

	if _, err := io.CopyN(io.Discard, audio, artifact.HeaderSize); err != nil {
		return domain.Transcript{}, domain.NewStorageError("read artifact header", err)
	}

	session, err := p.dial(ctx)
	if err != nil {
		return domain.Transcript{}, err
	}
	defer session.Close()
	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	aggregator := newTranscriptAggregator()
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for seg := range session.Segments() {
			aggregator.Add(seg)
		}
	}()

	if err := pumpPCM(audio, session, p.cfg.ChunkSize); err != nil {
		_ = session.Close()
		<-consumed
		return domain.Transcript{}, err
	}
	_ = session.CloseSend()

	streamErr := waitForStream(ctx, session, p.cfg.DrainTimeout)
	<-consumed

	text := aggregator.Text()
	if text == "" && streamErr != nil {
		if ctx.Err() != nil {
			return domain.Transcript{}, ctx.Err()
		}
		return domain.Transcript{}, streamErr
	}

	return domain.Transcript{Text: text, Duration: clip.Duration, Language: p.cfg.Language}, nil
}

func (p *Provider) dial(ctx context.Context) (*streamingSession, error) {
	wsURL, err := buildListenURL(p.cfg)
	if err != nil {
		return nil, domain.NewServiceError("transcription", domain.CodeBadRequest, err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, httperr.FromStatus("transcription", resp.StatusCode, resp.Header, fmt.Errorf("connect to Deepgram: %w", err))
		}
		return nil, httperr.FromTransport(ctx, "transcription", fmt.Errorf("connect to Deepgram: %w", err))
	}
	return newStreamingSession(conn), nil
}

func pumpPCM(audio io.Reader, session *streamingSession, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := session.SendAudio(buf[:n]); sendErr != nil {
				return sendErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return domain.NewStorageError("read artifact", err)
		}
	}
}

func waitForStream(ctx context.Context, session *streamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		_ = session.Close()
		if err := <-done; err != nil {
			return err
		}
		return domain.NewServiceError("transcription", domain.CodeNetworkError, errors.New("timed out waiting for final transcript"))
	case <-ctx.Done():
		_ = session.Close()
		<-done
		return ctx.Err()
	}
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", cfg.Channels))
	query.Set("interim_results", "false")
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
