package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voicelog/internal/domain"
)

type fakeLogs struct {
	mu sync.Mutex

	hydration   []domain.HydrationEntry
	food        []domain.FoodEntry
	supplements []domain.Supplement
	intakes     []domain.SupplementIntake
	symptoms    []domain.SymptomEntry
	puqe        []domain.PUQEUpdate
	markers     []domain.VoiceMarker
	notices     []string
	tasks       []domain.QueuedTask

	createCalls int
	failOn      map[string]error
	seq         int
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{failOn: map[string]error{}}
}

func (f *fakeLogs) collaborators() Collaborators {
	return Collaborators{
		Hydration:   f,
		Food:        f,
		Supplements: f,
		Symptoms:    f,
		PUQE:        f,
		Markers:     f,
		Notifier:    f,
		Tasks:       f,
	}
}

func (f *fakeLogs) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeLogs) AppendHydration(_ context.Context, amount float64, unit string, source domain.Source, at time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["hydration"]; err != nil {
		return "", err
	}
	id := f.nextID("h")
	f.hydration = append(f.hydration, domain.HydrationEntry{ID: id, Amount: amount, Unit: unit, Source: source, LoggedAt: at})
	return id, nil
}

func (f *fakeLogs) AppendFood(_ context.Context, desc, mealType string, source domain.Source, at time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["food"]; err != nil {
		return "", err
	}
	id := f.nextID("f")
	f.food = append(f.food, domain.FoodEntry{ID: id, Description: desc, MealType: mealType, Source: source, LoggedAt: at})
	return id, nil
}

func (f *fakeLogs) UpdateMacros(_ context.Context, logID string, macros domain.Macros) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.food {
		if f.food[i].ID == logID {
			m := macros
			f.food[i].Macros = &m
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeLogs) ListSupplements(_ context.Context) ([]domain.Supplement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["list"]; err != nil {
		return nil, err
	}
	return append([]domain.Supplement(nil), f.supplements...), nil
}

func (f *fakeLogs) CreateSupplement(_ context.Context, in domain.NewSupplement) (domain.Supplement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	s := domain.Supplement{ID: f.nextID("s"), Name: in.Name, Dosage: in.Dosage, Frequency: in.Frequency, TimesPerDay: in.TimesPerDay}
	f.supplements = append(f.supplements, s)
	return s, nil
}

func (f *fakeLogs) RecordIntake(_ context.Context, supplementID string, source domain.Source, at time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("i")
	f.intakes = append(f.intakes, domain.SupplementIntake{ID: id, SupplementID: supplementID, Source: source, TakenAt: at})
	return id, nil
}

func (f *fakeLogs) AppendSymptom(_ context.Context, desc string, severity int, source domain.Source, at time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("y")
	f.symptoms = append(f.symptoms, domain.SymptomEntry{ID: id, Description: desc, Severity: severity, Source: source, LoggedAt: at})
	return id, nil
}

func (f *fakeLogs) SubmitPUQE(_ context.Context, update domain.PUQEUpdate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puqe = append(f.puqe, update)
	return f.nextID("p"), nil
}

func (f *fakeLogs) MarkVoiceSourced(_ context.Context, target domain.LogTarget, logID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["marker"]; err != nil {
		return err
	}
	f.markers = append(f.markers, domain.VoiceMarker{Target: target, LogID: logID})
	return nil
}

func (f *fakeLogs) Notify(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
}

func (f *fakeLogs) Enqueue(_ context.Context, kind domain.TaskKind, payload map[string]string) (domain.QueuedTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["enqueue"]; err != nil {
		return domain.QueuedTask{}, err
	}
	task := domain.QueuedTask{ID: f.nextID("t"), Kind: kind, Payload: payload, Status: domain.TaskPending}
	f.tasks = append(f.tasks, task)
	return task, nil
}

var errDiskFull = errors.New("disk full")
