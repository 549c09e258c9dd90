package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

const extension = ".wav"

// Store keeps recorded clips as <id>.wav files in one directory.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, domain.NewStorageError("create artifact dir", err)
	}
	return &Store{fs: fs, dir: dir, now: time.Now}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+extension)
}

func (s *Store) Create(_ context.Context, cfg ports.AudioConfig) (ports.ArtifactWriter, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	id := uuid.NewString()
	file, err := s.fs.OpenFile(s.path(id), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, domain.NewStorageError("create artifact", err)
	}
	if _, err := file.Write(wavHeader(cfg.SampleRate, cfg.Channels, 0)); err != nil {
		_ = file.Close()
		_ = s.fs.Remove(s.path(id))
		return nil, domain.NewStorageError("write artifact header", err)
	}

	return &writer{
		store:     s,
		id:        id,
		file:      file,
		cfg:       cfg,
		createdAt: s.now(),
	}, nil
}

func (s *Store) Open(_ context.Context, artifact domain.AudioArtifact) (io.ReadCloser, error) {
	path := artifact.Path
	if path == "" {
		path = s.path(artifact.ID)
	}
	file, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s: %w", artifact.ID, domain.ErrNotFound)
		}
		return nil, domain.NewStorageError("open artifact", err)
	}
	return file, nil
}

// Delete removes a clip. Missing clips are not an error.
func (s *Store) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.fs.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.NewStorageError("delete artifact", err)
	}
	return nil
}

// List returns every clip on disk.
func (s *Store) List(_ context.Context) ([]domain.AudioArtifact, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, domain.NewStorageError("list artifacts", err)
	}

	out := make([]domain.AudioArtifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), extension) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), extension)
		out = append(out, domain.AudioArtifact{
			ID:        id,
			Path:      s.path(id),
			Bytes:     entry.Size(),
			CreatedAt: entry.ModTime(),
		})
	}
	return out, nil
}

// SweepOrphans deletes clips older than minAge that no log entry references.
func (s *Store) SweepOrphans(ctx context.Context, referenced map[string]struct{}, minAge time.Duration) ([]string, error) {
	artifacts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-minAge)
	var removed []string
	for _, a := range artifacts {
		if _, ok := referenced[a.ID]; ok {
			continue
		}
		if a.CreatedAt.After(cutoff) {
			continue
		}
		if err := s.Delete(ctx, a.ID); err != nil {
			return removed, err
		}
		removed = append(removed, a.ID)
	}
	return removed, nil
}

type writer struct {
	store     *Store
	id        string
	file      afero.File
	cfg       ports.AudioConfig
	createdAt time.Time

	mu     sync.Mutex
	bytes  int64
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, errors.New("artifact writer is closed")
	}
	n, err := w.file.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *writer) Commit() (domain.AudioArtifact, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return domain.AudioArtifact{}, errors.New("artifact writer is closed")
	}
	w.closed = true

	if w.bytes == 0 {
		_ = w.file.Close()
		_ = w.store.fs.Remove(w.store.path(w.id))
		return domain.AudioArtifact{}, domain.ErrNoAudio
	}

	header := wavHeader(w.cfg.SampleRate, w.cfg.Channels, uint32(w.bytes))
	if _, err := w.file.WriteAt(header, 0); err != nil {
		_ = w.file.Close()
		_ = w.store.fs.Remove(w.store.path(w.id))
		return domain.AudioArtifact{}, domain.NewStorageError("finalise artifact", err)
	}
	if err := w.file.Close(); err != nil {
		_ = w.store.fs.Remove(w.store.path(w.id))
		return domain.AudioArtifact{}, domain.NewStorageError("close artifact", err)
	}

	return domain.AudioArtifact{
		ID:        w.id,
		Duration:  pcmDuration(w.bytes, w.cfg.SampleRate, w.cfg.Channels),
		Path:      w.store.path(w.id),
		Bytes:     w.bytes + HeaderSize,
		CreatedAt: w.createdAt,
	}, nil
}

func (w *writer) Discard() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.file.Close()
	return w.store.Delete(context.Background(), w.id)
}
