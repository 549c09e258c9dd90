package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"voicelog/internal/domain"
)

// artifactTables lists the entry tables that may reference an audio clip.
var artifactTables = map[domain.LogTarget]string{
	domain.LogTargetHydration: "hydration_entries",
	domain.LogTargetFood:      "food_entries",
	domain.LogTargetSymptom:   "symptom_entries",
}

func entryTable(target domain.LogTarget) (string, error) {
	table, ok := artifactTables[target]
	if !ok {
		return "", fmt.Errorf("entries of target %q cannot reference audio", target)
	}
	return table, nil
}

// AttachArtifact records the clip an entry was dictated from.
func (s *Store) AttachArtifact(ctx context.Context, target domain.LogTarget, logID, artifactID string) error {
	table, err := entryTable(target)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, s.sb.Update(table).
		Set("artifact_id", artifactID).
		Where(squirrel.Eq{"id": logID}))
	if err != nil {
		return domain.NewStorageError("attach artifact", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s entry %s: %w", target, logID, domain.ErrNotFound)
	}
	return nil
}

// DeleteFoodEntry removes a food entry and the clip it references.
func (s *Store) DeleteFoodEntry(ctx context.Context, id string) error {
	return s.DeleteEntry(ctx, domain.LogTargetFood, id)
}

// DeleteEntry removes an entry with its voice marker. A clip no other entry references is deleted too.
func (s *Store) DeleteEntry(ctx context.Context, target domain.LogTarget, id string) error {
	table, err := entryTable(target)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("delete entry", err)
	}
	defer func() { _ = tx.Rollback() }()

	var artifactID string
	query, args, err := s.sb.Select("artifact_id").From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&artifactID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s entry %s: %w", target, id, domain.ErrNotFound)
		}
		return domain.NewStorageError("delete entry", err)
	}

	for _, q := range []squirrel.Sqlizer{
		s.sb.Delete(table).Where(squirrel.Eq{"id": id}),
		s.sb.Delete("voice_markers").Where(squirrel.Eq{"target": string(target), "log_id": id}),
	} {
		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return domain.NewStorageError("delete entry", err)
		}
	}

	shared := false
	if artifactID != "" {
		if shared, err = referenced(ctx, tx, s.sb, artifactID); err != nil {
			return domain.NewStorageError("delete entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("delete entry", err)
	}

	if artifactID == "" || shared || s.artifacts == nil {
		return nil
	}
	// A clip left behind here is picked up by the orphan sweep.
	if err := s.artifacts.Delete(ctx, artifactID); err != nil {
		s.logger.Warn("artifact delete failed", "artifact_id", artifactID, "error", err)
	}
	return nil
}

func referenced(ctx context.Context, tx *sql.Tx, sb squirrel.StatementBuilderType, artifactID string) (bool, error) {
	for _, table := range artifactTables {
		query, args, err := sb.Select("COUNT(*)").From(table).Where(squirrel.Eq{"artifact_id": artifactID}).ToSql()
		if err != nil {
			return false, err
		}
		var n int
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ReferencedArtifacts returns every clip ID an entry still points at.
func (s *Store) ReferencedArtifacts(ctx context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, table := range artifactTables {
		rows, err := s.query(ctx, s.sb.Select("DISTINCT artifact_id").
			From(table).
			Where(squirrel.NotEq{"artifact_id": ""}))
		if err != nil {
			return nil, domain.NewStorageError("list referenced artifacts", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, domain.NewStorageError("list referenced artifacts", err)
			}
			out[id] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, domain.NewStorageError("list referenced artifacts", err)
		}
	}
	return out, nil
}
