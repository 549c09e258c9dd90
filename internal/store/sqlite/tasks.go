package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"voicelog/internal/domain"
)

// TaskStore persists the background queue in the queue_tasks table.
type TaskStore struct {
	s *Store
}

func (s *Store) TaskStore() *TaskStore {
	return &TaskStore{s: s}
}

func (t *TaskStore) Load(ctx context.Context) ([]domain.QueuedTask, error) {
	rows, err := t.s.query(ctx, t.s.sb.
		Select("id", "kind", "status", "payload", "result", "retry_count", "error",
			"created_at", "updated_at", "next_attempt_at").
		From("queue_tasks").
		OrderBy("position"))
	if err != nil {
		return nil, domain.NewStorageError("load tasks", err)
	}
	defer rows.Close()

	var out []domain.QueuedTask
	for rows.Next() {
		var (
			task                                domain.QueuedTask
			kind, status, payload, result       string
			createdAt, updatedAt, nextAttemptAt string
		)
		if err := rows.Scan(&task.ID, &kind, &status, &payload, &result, &task.RetryCount, &task.Error,
			&createdAt, &updatedAt, &nextAttemptAt); err != nil {
			return nil, domain.NewStorageError("scan task", err)
		}
		task.Kind = domain.TaskKind(kind)
		task.Status = domain.TaskStatus(status)
		if err := json.Unmarshal([]byte(payload), &task.Payload); err != nil {
			return nil, domain.NewStorageError("decode task payload", err)
		}
		if err := json.Unmarshal([]byte(result), &task.Result); err != nil {
			return nil, domain.NewStorageError("decode task result", err)
		}
		if len(task.Result) == 0 {
			task.Result = nil
		}
		if task.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, domain.NewStorageError("scan task", err)
		}
		if task.UpdatedAt, err = decodeTime(updatedAt); err != nil {
			return nil, domain.NewStorageError("scan task", err)
		}
		if task.NextAttemptAt, err = decodeTime(nextAttemptAt); err != nil {
			return nil, domain.NewStorageError("scan task", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("load tasks", err)
	}
	return out, nil
}

// Save replaces the stored list in one transaction.
func (t *TaskStore) Save(ctx context.Context, tasks []domain.QueuedTask) error {
	tx, err := t.s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("save tasks", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := t.s.sb.Delete("queue_tasks").ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return domain.NewStorageError("save tasks", err)
	}

	for i, task := range tasks {
		payload, err := encodeMap(task.Payload)
		if err != nil {
			return domain.NewStorageError("encode task payload", err)
		}
		result, err := encodeMap(task.Result)
		if err != nil {
			return domain.NewStorageError("encode task result", err)
		}
		query, args, err := t.s.sb.Insert("queue_tasks").
			Columns("id", "position", "kind", "status", "payload", "result", "retry_count", "error",
				"created_at", "updated_at", "next_attempt_at").
			Values(task.ID, i, string(task.Kind), string(task.Status), payload, result,
				task.RetryCount, task.Error,
				encodeTime(task.CreatedAt), encodeTime(task.UpdatedAt), encodeTime(task.NextAttemptAt)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return domain.NewStorageError("save tasks", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("save tasks", err)
	}
	return nil
}

func encodeMap(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
