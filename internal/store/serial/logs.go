package serial

import (
	"context"
	"time"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

type Hydration struct {
	W    *Writer
	Next ports.HydrationLog
}

func (h Hydration) AppendHydration(ctx context.Context, amount float64, unit string, source domain.Source, at time.Time) (string, error) {
	return Call(ctx, h.W, func(ctx context.Context) (string, error) {
		return h.Next.AppendHydration(ctx, amount, unit, source, at)
	})
}

type Food struct {
	W    *Writer
	Next ports.FoodLog
}

func (f Food) AppendFood(ctx context.Context, description, mealType string, source domain.Source, at time.Time) (string, error) {
	return Call(ctx, f.W, func(ctx context.Context) (string, error) {
		return f.Next.AppendFood(ctx, description, mealType, source, at)
	})
}

func (f Food) UpdateMacros(ctx context.Context, logID string, macros domain.Macros) error {
	return f.W.Do(ctx, func(ctx context.Context) error {
		return f.Next.UpdateMacros(ctx, logID, macros)
	})
}

// Supplements also routes ListSupplements through the writer because its result decides whether to create.
type Supplements struct {
	W    *Writer
	Next ports.SupplementStore
}

func (s Supplements) ListSupplements(ctx context.Context) ([]domain.Supplement, error) {
	return Call(ctx, s.W, s.Next.ListSupplements)
}

func (s Supplements) CreateSupplement(ctx context.Context, in domain.NewSupplement) (domain.Supplement, error) {
	return Call(ctx, s.W, func(ctx context.Context) (domain.Supplement, error) {
		return s.Next.CreateSupplement(ctx, in)
	})
}

func (s Supplements) RecordIntake(ctx context.Context, supplementID string, source domain.Source, at time.Time) (string, error) {
	return Call(ctx, s.W, func(ctx context.Context) (string, error) {
		return s.Next.RecordIntake(ctx, supplementID, source, at)
	})
}

type Symptoms struct {
	W    *Writer
	Next ports.SymptomLog
}

func (s Symptoms) AppendSymptom(ctx context.Context, description string, severity int, source domain.Source, at time.Time) (string, error) {
	return Call(ctx, s.W, func(ctx context.Context) (string, error) {
		return s.Next.AppendSymptom(ctx, description, severity, source, at)
	})
}

type PUQE struct {
	W    *Writer
	Next ports.PUQESink
}

func (p PUQE) SubmitPUQE(ctx context.Context, update domain.PUQEUpdate) (string, error) {
	return Call(ctx, p.W, func(ctx context.Context) (string, error) {
		return p.Next.SubmitPUQE(ctx, update)
	})
}

type Markers struct {
	W    *Writer
	Next ports.VoiceMarkerLog
}

func (m Markers) MarkVoiceSourced(ctx context.Context, target domain.LogTarget, logID string) error {
	return m.W.Do(ctx, func(ctx context.Context) error {
		return m.Next.MarkVoiceSourced(ctx, target, logID)
	})
}

type Entries struct {
	W    *Writer
	Next ports.EntryStore
}

func (e Entries) AttachArtifact(ctx context.Context, target domain.LogTarget, logID, artifactID string) error {
	return e.W.Do(ctx, func(ctx context.Context) error {
		return e.Next.AttachArtifact(ctx, target, logID, artifactID)
	})
}

func (e Entries) DeleteEntry(ctx context.Context, target domain.LogTarget, id string) error {
	return e.W.Do(ctx, func(ctx context.Context) error {
		return e.Next.DeleteEntry(ctx, target, id)
	})
}
