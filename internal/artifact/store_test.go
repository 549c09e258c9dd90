package artifact

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := NewStore(fs, "/data/artifacts")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, fs
}

func TestCommitWritesWAV(t *testing.T) {
	t.Parallel()

	store, fs := newTestStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, ports.AudioConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pcm := make([]byte, 32000)
	if _, err := w.Write(pcm); err != nil {
		t.Fatalf("write: %v", err)
	}

	artifact, err := w.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if artifact.Duration != time.Second {
		t.Fatalf("expected 1s duration, got %s", artifact.Duration)
	}

	raw, err := afero.ReadFile(fs, artifact.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(raw) != HeaderSize+len(pcm) {
		t.Fatalf("unexpected file size %d", len(raw))
	}
	if string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		t.Fatalf("missing WAV magic")
	}
	if got := binary.LittleEndian.Uint32(raw[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data chunk size %d, want %d", got, len(pcm))
	}

	rc, err := store.Open(ctx, artifact)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	if n, _ := io.Copy(io.Discard, rc); n != int64(len(raw)) {
		t.Fatalf("open returned %d bytes", n)
	}
}

func TestCommitEmptyRecordingDeletesFile(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, ports.AudioConfig{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := w.Commit(); !errors.Is(err, domain.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("empty recording left %d files", len(list))
	}
}

func TestDiscardRemovesPartialClip(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, ports.AudioConfig{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = w.Write([]byte{1, 2, 3, 4})
	if err := w.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := w.Write([]byte{1}); err == nil {
		t.Fatalf("expected write after discard to fail")
	}

	list, _ := store.List(ctx)
	if len(list) != 0 {
		t.Fatalf("discard left %d files", len(list))
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	if err := store.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Open(context.Background(), domain.AudioArtifact{ID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSweepOrphansKeepsReferencedAndRecent(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	commit := func() domain.AudioArtifact {
		w, err := store.Create(ctx, ports.AudioConfig{})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		_, _ = w.Write([]byte{0, 0})
		a, err := w.Commit()
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		return a
	}

	kept := commit()
	orphan := commit()

	removed, err := store.SweepOrphans(ctx, map[string]struct{}{kept.ID: {}}, 0)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(removed) != 1 || removed[0] != orphan.ID {
		t.Fatalf("unexpected removed set %v", removed)
	}

	recent := commit()
	store.now = func() time.Time { return time.Now().Add(-time.Hour) }
	removed, err = store.SweepOrphans(ctx, nil, time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	for _, id := range removed {
		if id == recent.ID {
			t.Fatalf("recent clip must survive the sweep")
		}
	}
}
