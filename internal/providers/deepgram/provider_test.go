package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voicelog/internal/artifact"
	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{}, nil)
	if p.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2" || p.cfg.SampleRate != 16000 || p.cfg.Channels != 1 {
		t.Fatalf("unexpected defaults: %+v", p.cfg)
	}
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(Config{}, &fakeArtifacts{}).Transcribe(context.Background(), domain.AudioArtifact{ID: "a"})
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != domain.CodeNoCredentials {
		t.Fatalf("expected no_credentials, got %v", err)
	}
}

func TestBuildListenURL(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(Config{APIBaseURL: "http://localhost:8080/v1/", Model: "m", Language: "en-US", SmartFormat: true, SampleRate: 8000, Channels: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"ws://localhost:8080/v1/listen",
		"encoding=linear16",
		"sample_rate=8000",
		"channels=2",
		"language=en-US",
		"smart_format=true",
		"interim_results=false",
	} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in %s", want, url)
		}
	}

	if _, err := buildListenURL(Config{APIBaseURL: ":// bad"}); err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestTranscribeStreamsPCMAndAggregatesFinals(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []byte
		auth     string
	)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				mu.Lock()
				received = append(received, payload...)
				mu.Unlock()
				continue
			}
			if strings.Contains(string(payload), "CloseStream") {
				break
			}
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"I drank 16 ounces"}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"of water"}]}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer server.Close()

	pcm := strings.Repeat("\x01\x02", 3000)
	artifacts := &fakeArtifacts{data: strings.Repeat("H", artifact.HeaderSize) + pcm}
	provider := NewProvider(Config{APIKey: "dg-key", APIBaseURL: server.URL, ChunkSize: 512}, artifacts)

	transcript, err := provider.Transcribe(context.Background(), domain.AudioArtifact{ID: "clip", Duration: 2 * time.Second})
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if transcript.Text != "I drank 16 ounces of water" {
		t.Fatalf("unexpected transcript %q", transcript.Text)
	}
	mu.Lock()
	defer mu.Unlock()
	if auth != "Token dg-key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if string(received) != pcm {
		t.Fatalf("server received %d bytes, want %d PCM bytes without header", len(received), len(pcm))
	}
}

func TestTranscribeProviderErrorMessage(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","message":"bad audio"}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	artifacts := &fakeArtifacts{data: strings.Repeat("H", artifact.HeaderSize) + "pcm"}
	_, err := NewProvider(Config{APIKey: "k", APIBaseURL: server.URL}, artifacts).Transcribe(context.Background(), domain.AudioArtifact{ID: "clip"})
	if !errors.Is(err, domain.ErrTransient) || !strings.Contains(err.Error(), "bad audio") {
		t.Fatalf("expected transient provider error, got %v", err)
	}
}

func TestTranscribeHandshakeUnauthorized(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	artifacts := &fakeArtifacts{data: strings.Repeat("H", artifact.HeaderSize)}
	_, err := NewProvider(Config{APIKey: "k", APIBaseURL: server.URL}, artifacts).Transcribe(context.Background(), domain.AudioArtifact{ID: "clip"})
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != domain.CodeNoCredentials {
		t.Fatalf("expected no_credentials, got %v", err)
	}
}

func TestExtractTranscript(t *testing.T) {
	t.Parallel()

	r1 := deepgramResponse{}
	r1.Channel.Alternatives = append(r1.Channel.Alternatives, struct {
		Transcript string "json:\"transcript\""
	}{Transcript: " channel "})
	if got := extractTranscript(r1); got != "channel" {
		t.Fatalf("unexpected transcript from channel: %q", got)
	}

	if got := extractTranscript(deepgramResponse{}); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestStreamingSessionSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &streamingSession{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.waitErr() != nil {
		t.Fatalf("expected close error to be ignored")
	}

	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.waitErr() == nil || s.waitErr().Error() != "first" {
		t.Fatalf("expected first error to win")
	}
}

func TestStreamingSessionCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &streamingSession{audio: make(chan []byte, 1)}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected closed error")
	}
}

type fakeArtifacts struct {
	data string
}

func (f *fakeArtifacts) Create(context.Context, ports.AudioConfig) (ports.ArtifactWriter, error) {
	return nil, errors.New("not supported")
}

func (f *fakeArtifacts) Open(context.Context, domain.AudioArtifact) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.data)), nil
}

func (f *fakeArtifacts) Delete(context.Context, string) error { return nil }
