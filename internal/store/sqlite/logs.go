package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"voicelog/internal/domain"
)

func (s *Store) AppendHydration(ctx context.Context, amount float64, unit string, source domain.Source, at time.Time) (string, error) {
	id := s.newID()
	_, err := s.exec(ctx, s.sb.Insert("hydration_entries").
		Columns("id", "amount", "unit", "source", "logged_at").
		Values(id, amount, unit, string(source), encodeTime(at)))
	if err != nil {
		return "", domain.NewStorageError("append hydration", err)
	}
	return id, nil
}

// HydrationEntries returns entries logged at or after since, oldest first.
func (s *Store) HydrationEntries(ctx context.Context, since time.Time) ([]domain.HydrationEntry, error) {
	rows, err := s.query(ctx, s.sb.Select("id", "amount", "unit", "source", "logged_at", "artifact_id").
		From("hydration_entries").
		Where(squirrel.GtOrEq{"logged_at": encodeTime(since)}).
		OrderBy("logged_at", "id"))
	if err != nil {
		return nil, domain.NewStorageError("list hydration", err)
	}
	defer rows.Close()

	var out []domain.HydrationEntry
	for rows.Next() {
		var (
			e        domain.HydrationEntry
			source   string
			loggedAt string
		)
		if err := rows.Scan(&e.ID, &e.Amount, &e.Unit, &source, &loggedAt, &e.ArtifactID); err != nil {
			return nil, domain.NewStorageError("scan hydration", err)
		}
		if e.LoggedAt, err = decodeTime(loggedAt); err != nil {
			return nil, domain.NewStorageError("scan hydration", err)
		}
		e.Source = domain.Source(source)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list hydration", err)
	}
	return out, nil
}

func (s *Store) AppendFood(ctx context.Context, description, mealType string, source domain.Source, at time.Time) (string, error) {
	id := s.newID()
	_, err := s.exec(ctx, s.sb.Insert("food_entries").
		Columns("id", "description", "meal_type", "source", "logged_at").
		Values(id, description, mealType, string(source), encodeTime(at)))
	if err != nil {
		return "", domain.NewStorageError("append food", err)
	}
	return id, nil
}

// UpdateMacros overwrites the nutrition estimate of a food entry.
func (s *Store) UpdateMacros(ctx context.Context, logID string, macros domain.Macros) error {
	res, err := s.exec(ctx, s.sb.Update("food_entries").
		SetMap(map[string]any{
			"calories": macros.Calories,
			"protein":  macros.Protein,
			"carbs":    macros.Carbs,
			"fat":      macros.Fat,
		}).
		Where(squirrel.Eq{"id": logID}))
	if err != nil {
		return domain.NewStorageError("update macros", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("update macros", err)
	}
	if n == 0 {
		return fmt.Errorf("food entry %s: %w", logID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) FoodEntry(ctx context.Context, id string) (domain.FoodEntry, error) {
	entries, err := s.foodEntries(ctx, squirrel.Eq{"id": id})
	if err != nil {
		return domain.FoodEntry{}, err
	}
	if len(entries) == 0 {
		return domain.FoodEntry{}, fmt.Errorf("food entry %s: %w", id, domain.ErrNotFound)
	}
	return entries[0], nil
}

// FoodEntries returns entries logged at or after since, oldest first.
func (s *Store) FoodEntries(ctx context.Context, since time.Time) ([]domain.FoodEntry, error) {
	return s.foodEntries(ctx, squirrel.GtOrEq{"logged_at": encodeTime(since)})
}

func (s *Store) foodEntries(ctx context.Context, where squirrel.Sqlizer) ([]domain.FoodEntry, error) {
	rows, err := s.query(ctx, s.sb.
		Select("id", "description", "meal_type", "source", "logged_at",
			"calories", "protein", "carbs", "fat", "artifact_id").
		From("food_entries").
		Where(where).
		OrderBy("logged_at", "id"))
	if err != nil {
		return nil, domain.NewStorageError("list food", err)
	}
	defer rows.Close()

	var out []domain.FoodEntry
	for rows.Next() {
		var (
			e                             domain.FoodEntry
			source, loggedAt              string
			calories, protein, carbs, fat sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.MealType, &source, &loggedAt,
			&calories, &protein, &carbs, &fat, &e.ArtifactID); err != nil {
			return nil, domain.NewStorageError("scan food", err)
		}
		if e.LoggedAt, err = decodeTime(loggedAt); err != nil {
			return nil, domain.NewStorageError("scan food", err)
		}
		e.Source = domain.Source(source)
		if calories.Valid {
			e.Macros = &domain.Macros{
				Calories: int(calories.Int64),
				Protein:  int(protein.Int64),
				Carbs:    int(carbs.Int64),
				Fat:      int(fat.Int64),
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list food", err)
	}
	return out, nil
}

func (s *Store) ListSupplements(ctx context.Context) ([]domain.Supplement, error) {
	rows, err := s.query(ctx, s.sb.
		Select("id", "name", "dosage", "frequency", "times_per_day", "created_at").
		From("supplements").
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, domain.NewStorageError("list supplements", err)
	}
	defer rows.Close()

	var out []domain.Supplement
	for rows.Next() {
		var (
			sup       domain.Supplement
			createdAt string
		)
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Dosage, &sup.Frequency, &sup.TimesPerDay, &createdAt); err != nil {
			return nil, domain.NewStorageError("scan supplement", err)
		}
		if sup.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, domain.NewStorageError("scan supplement", err)
		}
		out = append(out, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list supplements", err)
	}
	return out, nil
}

func (s *Store) CreateSupplement(ctx context.Context, in domain.NewSupplement) (domain.Supplement, error) {
	sup := domain.Supplement{
		ID:          s.newID(),
		Name:        in.Name,
		Dosage:      in.Dosage,
		Frequency:   in.Frequency,
		TimesPerDay: in.TimesPerDay,
		CreatedAt:   s.now(),
	}
	if sup.TimesPerDay <= 0 {
		sup.TimesPerDay = 1
	}

	_, err := s.exec(ctx, s.sb.Insert("supplements").
		Columns("id", "name", "dosage", "frequency", "times_per_day", "created_at").
		Values(sup.ID, sup.Name, sup.Dosage, sup.Frequency, sup.TimesPerDay, encodeTime(sup.CreatedAt)))
	if err != nil {
		return domain.Supplement{}, domain.NewStorageError("create supplement", err)
	}
	return sup, nil
}

// RecordIntake stores one intake. The supplement must exist.
func (s *Store) RecordIntake(ctx context.Context, supplementID string, source domain.Source, at time.Time) (string, error) {
	id := s.newID()
	_, err := s.exec(ctx, s.sb.Insert("supplement_intakes").
		Columns("id", "supplement_id", "source", "taken_at").
		Values(id, supplementID, string(source), encodeTime(at)))
	if err != nil {
		return "", domain.NewStorageError("record intake", err)
	}
	return id, nil
}

func (s *Store) Intakes(ctx context.Context, supplementID string) ([]domain.SupplementIntake, error) {
	rows, err := s.query(ctx, s.sb.Select("id", "supplement_id", "source", "taken_at").
		From("supplement_intakes").
		Where(squirrel.Eq{"supplement_id": supplementID}).
		OrderBy("taken_at", "id"))
	if err != nil {
		return nil, domain.NewStorageError("list intakes", err)
	}
	defer rows.Close()

	var out []domain.SupplementIntake
	for rows.Next() {
		var (
			in              domain.SupplementIntake
			source, takenAt string
		)
		if err := rows.Scan(&in.ID, &in.SupplementID, &source, &takenAt); err != nil {
			return nil, domain.NewStorageError("scan intake", err)
		}
		if in.TakenAt, err = decodeTime(takenAt); err != nil {
			return nil, domain.NewStorageError("scan intake", err)
		}
		in.Source = domain.Source(source)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list intakes", err)
	}
	return out, nil
}

func (s *Store) AppendSymptom(ctx context.Context, description string, severity int, source domain.Source, at time.Time) (string, error) {
	id := s.newID()
	_, err := s.exec(ctx, s.sb.Insert("symptom_entries").
		Columns("id", "description", "severity", "source", "logged_at").
		Values(id, description, severity, string(source), encodeTime(at)))
	if err != nil {
		return "", domain.NewStorageError("append symptom", err)
	}
	return id, nil
}

func (s *Store) SymptomEntries(ctx context.Context, since time.Time) ([]domain.SymptomEntry, error) {
	rows, err := s.query(ctx, s.sb.Select("id", "description", "severity", "source", "logged_at").
		From("symptom_entries").
		Where(squirrel.GtOrEq{"logged_at": encodeTime(since)}).
		OrderBy("logged_at", "id"))
	if err != nil {
		return nil, domain.NewStorageError("list symptoms", err)
	}
	defer rows.Close()

	var out []domain.SymptomEntry
	for rows.Next() {
		var (
			e                domain.SymptomEntry
			source, loggedAt string
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.Severity, &source, &loggedAt); err != nil {
			return nil, domain.NewStorageError("scan symptom", err)
		}
		if e.LoggedAt, err = decodeTime(loggedAt); err != nil {
			return nil, domain.NewStorageError("scan symptom", err)
		}
		e.Source = domain.Source(source)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list symptoms", err)
	}
	return out, nil
}

// SubmitPUQE stores the update. The score is only filled when every input is present.
func (s *Store) SubmitPUQE(ctx context.Context, update domain.PUQEUpdate) (string, error) {
	id := s.newID()
	var score any
	if total, ok := update.Score(); ok {
		score = total
	}
	reportedAt := update.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = s.now()
	}

	_, err := s.exec(ctx, s.sb.Insert("puqe_entries").
		Columns("id", "nausea_hours", "vomiting_episodes", "retching_episodes", "score", "notes", "source", "reported_at").
		Values(id,
			nullableInt(update.NauseaHours),
			nullableInt(update.VomitingEpisodes),
			nullableInt(update.RetchingEpisodes),
			score,
			update.Notes,
			string(update.Source),
			encodeTime(reportedAt),
		))
	if err != nil {
		return "", domain.NewStorageError("submit puqe", err)
	}
	return id, nil
}

func (s *Store) PUQEEntries(ctx context.Context) ([]domain.PUQEEntry, error) {
	rows, err := s.query(ctx, s.sb.
		Select("id", "nausea_hours", "vomiting_episodes", "retching_episodes", "score", "notes", "source", "reported_at").
		From("puqe_entries").
		OrderBy("reported_at", "id"))
	if err != nil {
		return nil, domain.NewStorageError("list puqe", err)
	}
	defer rows.Close()

	var out []domain.PUQEEntry
	for rows.Next() {
		var (
			e                                 domain.PUQEEntry
			nausea, vomiting, retching, score sql.NullInt64
			source, reportedAt                string
		)
		if err := rows.Scan(&e.ID, &nausea, &vomiting, &retching, &score, &e.Update.Notes, &source, &reportedAt); err != nil {
			return nil, domain.NewStorageError("scan puqe", err)
		}
		if e.ReportedAt, err = decodeTime(reportedAt); err != nil {
			return nil, domain.NewStorageError("scan puqe", err)
		}
		e.Update.NauseaHours = intPtr(nausea)
		e.Update.VomitingEpisodes = intPtr(vomiting)
		e.Update.RetchingEpisodes = intPtr(retching)
		e.Update.Source = domain.Source(source)
		e.Update.ReportedAt = e.ReportedAt
		e.Score = intPtr(score)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list puqe", err)
	}
	return out, nil
}

// MarkVoiceSourced flags a record as created by voice. Marking twice is a no-op.
func (s *Store) MarkVoiceSourced(ctx context.Context, target domain.LogTarget, logID string) error {
	_, err := s.exec(ctx, s.sb.Insert("voice_markers").
		Columns("target", "log_id", "created_at").
		Values(string(target), logID, encodeTime(s.now())).
		Suffix("ON CONFLICT (target, log_id) DO NOTHING"))
	if err != nil {
		return domain.NewStorageError("mark voice sourced", err)
	}
	return nil
}

func (s *Store) VoiceSourced(ctx context.Context, target domain.LogTarget, logID string) (bool, error) {
	rows, err := s.query(ctx, s.sb.Select("1").
		From("voice_markers").
		Where(squirrel.Eq{"target": string(target), "log_id": logID}))
	if err != nil {
		return false, domain.NewStorageError("read voice marker", err)
	}
	defer rows.Close()
	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, domain.NewStorageError("read voice marker", err)
	}
	return found, nil
}
