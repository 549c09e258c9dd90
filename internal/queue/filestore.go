package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"voicelog/internal/domain"
)

// Store persists the full task list as one snapshot.
type Store interface {
	Load(ctx context.Context) ([]domain.QueuedTask, error)
	Save(ctx context.Context, tasks []domain.QueuedTask) error
}

// FileStore keeps the queue snapshot in a single JSON file.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

func NewFileStore(fsys afero.Fs, path string) (*FileStore, error) {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	return &FileStore{fs: fsys, path: path}, nil
}

type snapshot struct {
	Version int                 `json:"version"`
	Tasks   []domain.QueuedTask `json:"tasks"`
}

func (s *FileStore) Load(_ context.Context) ([]domain.QueuedTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("read queue snapshot", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, domain.NewStorageError("decode queue snapshot", err)
	}
	return snap.Tasks, nil
}

// Save writes a temporary file and renames it over the snapshot so a crash leaves either the old or the new list.
func (s *FileStore) Save(_ context.Context, tasks []domain.QueuedTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot{Version: 1, Tasks: tasks}, "", "  ")
	if err != nil {
		return domain.NewStorageError("encode queue snapshot", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return domain.NewStorageError("write queue snapshot", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return domain.NewStorageError("replace queue snapshot", err)
	}
	return nil
}
