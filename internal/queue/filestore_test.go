package queue

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicelog/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store, err := NewFileStore(fs, "/data/queue/tasks.json")
	require.NoError(t, err)

	tasks, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks, "missing snapshot loads as empty")

	created := time.Date(2026, 4, 2, 7, 15, 0, 0, time.UTC)
	want := []domain.QueuedTask{{
		ID:            "t-1",
		Kind:          domain.TaskNutritionMacros,
		Payload:       map[string]string{domain.PayloadDescription: "2 eggs", domain.PayloadLogID: "f-1"},
		Status:        domain.TaskFailed,
		CreatedAt:     created,
		UpdatedAt:     created.Add(time.Minute),
		RetryCount:    1,
		NextAttemptAt: created.Add(2 * time.Minute),
		Error:         "enrichment: rate_limited",
	}}
	require.NoError(t, store.Save(context.Background(), want))

	exists, err := afero.Exists(fs, "/data/queue/tasks.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file is renamed away")

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want[0].Payload, got[0].Payload)
	assert.True(t, want[0].NextAttemptAt.Equal(got[0].NextAttemptAt))
	assert.Equal(t, want[0].RetryCount, got[0].RetryCount)
}

func TestFileStoreCorruptSnapshotIsStorageFailure(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/q.json", []byte("{not json"), 0o600))
	store, err := NewFileStore(fs, "/q.json")
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}

func TestQueueResumesFromFileStore(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store, err := NewFileStore(fs, "/data/tasks.json")
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), []domain.QueuedTask{
		{ID: "crashed", Kind: domain.TaskNutritionMacros, Status: domain.TaskProcessing, Payload: map[string]string{"description": "porridge"}},
	}))

	handler := &countingHandler{}
	q := openTestQueue(t, store, handler)
	n, err := q.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reloaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, domain.TaskCompleted, reloaded[0].Status)
}
