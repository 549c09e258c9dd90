package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

// Collaborators are the stores an executed action is written to.
type Collaborators struct {
	Hydration   ports.HydrationLog
	Food        ports.FoodLog
	Supplements ports.SupplementStore
	Symptoms    ports.SymptomLog
	PUQE        ports.PUQESink
	Markers     ports.VoiceMarkerLog
	Notifier    ports.Notifier
	Tasks       ports.TaskEnqueuer
}

// Config holds the fallbacks used when a spoken request omits a value.
type Config struct {
	DefaultWaterAmount float64
	DefaultWaterUnit   string
	DefaultFrequency   string
	// SymptomSuggestions queues a self-care suggestion task after symptoms are logged.
	SymptomSuggestions bool
}

func (c Config) withDefaults() Config {
	if c.DefaultWaterAmount <= 0 {
		c.DefaultWaterAmount = 8
	}
	if strings.TrimSpace(c.DefaultWaterUnit) == "" {
		c.DefaultWaterUnit = "oz"
	}
	if strings.TrimSpace(c.DefaultFrequency) == "" {
		c.DefaultFrequency = "daily"
	}
	return c
}

// Outcome is the disposition of every candidate in one batch, in input order per list.
type Outcome struct {
	Executed []domain.ExecutedAction
	Pending  []domain.PendingAction
	Skipped  []domain.SkippedAction
}

type Option func(*Executor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMatcher(m SupplementMatcher) Option {
	return func(e *Executor) { e.matcher = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// Executor applies candidate actions to the log collaborators.
type Executor struct {
	c       Collaborators
	policy  *ConfidencePolicy
	matcher SupplementMatcher
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

func New(c Collaborators, policy *ConfidencePolicy, cfg Config, opts ...Option) *Executor {
	if policy == nil {
		policy, _ = NewConfidencePolicy(DefaultConfidenceThreshold)
	}
	e := &Executor{
		c:       c,
		policy:  policy,
		matcher: DefaultMatcher(),
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "executor")
	return e
}

// Policy exposes the confidence policy so configuration reloads can adjust it.
func (e *Executor) Policy() *ConfidencePolicy {
	return e.policy
}

// Execute processes actions in order. A failing action never stops the rest of the batch.
func (e *Executor) Execute(ctx context.Context, actions []domain.CandidateAction) Outcome {
	var out Outcome
	for _, action := range actions {
		if action.Kind == domain.ActionUnknown {
			e.logger.InfoContext(ctx, "unrecognised request ignored",
				"action_id", action.ID, "confidence", action.Confidence, "notes", action.Details.Notes)
			out.Skipped = append(out.Skipped, domain.SkippedAction{Action: action, Reason: "request not understood"})
			continue
		}
		if err := validate(action); err != nil {
			e.logger.WarnContext(ctx, "skipping malformed action", "action_id", action.ID, "kind", action.Kind, "error", err)
			out.Skipped = append(out.Skipped, domain.SkippedAction{Action: action, Reason: domain.UserMessage(err)})
			continue
		}
		if !e.policy.AutoExecute(action) {
			out.Pending = append(out.Pending, domain.PendingAction{Action: action, Prompt: e.confirmPrompt(action)})
			continue
		}

		executed, err := e.dispatch(ctx, action)
		if err != nil {
			e.logger.ErrorContext(ctx, "action failed", "action_id", action.ID, "kind", action.Kind, "error", err)
			out.Skipped = append(out.Skipped, domain.SkippedAction{Action: action, Reason: domain.UserMessage(err)})
			continue
		}
		out.Executed = append(out.Executed, executed)
	}
	return out
}

// Confirm applies a pending action regardless of its confidence.
func (e *Executor) Confirm(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	if action.Kind == domain.ActionUnknown {
		return domain.ExecutedAction{}, domain.NewInvalidAction(action.Kind, "kind", "is not a loggable request")
	}
	if err := validate(action); err != nil {
		return domain.ExecutedAction{}, err
	}
	return e.dispatch(ctx, action)
}

func validate(action domain.CandidateAction) error {
	d := action.Details
	if action.RequiresTimestamp() && d.Timestamp.IsZero() {
		return domain.NewInvalidAction(action.Kind, "timestamp", "is required")
	}
	switch action.Kind {
	case domain.ActionLogFood:
		if strings.TrimSpace(d.Item) == "" {
			return domain.NewInvalidAction(action.Kind, "item", "is required")
		}
	case domain.ActionLogVitamin:
		if strings.TrimSpace(d.VitaminName) == "" {
			return domain.NewInvalidAction(action.Kind, "vitamin name", "is required")
		}
	case domain.ActionAddNewVitamin:
		if strings.TrimSpace(d.VitaminName) == "" {
			return domain.NewInvalidAction(action.Kind, "vitamin name", "is required")
		}
		if strings.TrimSpace(d.Frequency) == "" {
			return domain.NewInvalidAction(action.Kind, "frequency", "is required")
		}
	case domain.ActionLogSymptom:
		if len(symptomList(d.Symptoms)) == 0 {
			return domain.NewInvalidAction(action.Kind, "symptoms", "are required")
		}
	}
	return nil
}

func (e *Executor) dispatch(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	var (
		executed domain.ExecutedAction
		err      error
	)
	switch action.Kind {
	case domain.ActionLogWater:
		executed, err = e.logWater(ctx, action)
	case domain.ActionLogFood:
		executed, err = e.logFood(ctx, action)
	case domain.ActionLogVitamin:
		executed, err = e.logVitamin(ctx, action)
	case domain.ActionAddNewVitamin:
		executed, err = e.addVitamin(ctx, action)
	case domain.ActionLogSymptom:
		executed, err = e.logSymptoms(ctx, action)
	case domain.ActionLogPUQEScore:
		executed, err = e.submitPUQE(ctx, action)
	default:
		return domain.ExecutedAction{}, domain.NewInvalidAction(action.Kind, "kind", "is not supported")
	}
	if err != nil {
		return domain.ExecutedAction{}, err
	}

	executed.Action = action
	executed.ExecutedAt = e.now()
	e.markVoiceSourced(ctx, executed)
	if e.c.Notifier != nil {
		e.c.Notifier.Notify(executed.Message)
	}
	e.logger.InfoContext(ctx, "action executed",
		"action_id", action.ID, "kind", action.Kind, "target", executed.Target, "log_ids", executed.LogIDs)
	return executed, nil
}

func (e *Executor) markVoiceSourced(ctx context.Context, executed domain.ExecutedAction) {
	if e.c.Markers == nil {
		return
	}
	for _, id := range executed.LogIDs {
		if err := e.c.Markers.MarkVoiceSourced(ctx, executed.Target, id); err != nil {
			e.logger.WarnContext(ctx, "voice marker not recorded", "target", executed.Target, "log_id", id, "error", err)
		}
	}
}

func (e *Executor) logWater(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	d := action.Details
	amount, ok := d.AmountValue()
	if !ok {
		amount = e.cfg.DefaultWaterAmount
	}
	unit := strings.TrimSpace(d.Unit)
	if unit == "" {
		unit = e.cfg.DefaultWaterUnit
	}

	id, err := e.c.Hydration.AppendHydration(ctx, amount, unit, domain.SourceVoice, d.Timestamp)
	if err != nil {
		return domain.ExecutedAction{}, domain.NewStorageError("append hydration", err)
	}
	return domain.ExecutedAction{
		Target:  domain.LogTargetHydration,
		LogIDs:  []string{id},
		Message: fmt.Sprintf("Logged %s %s of water", formatAmount(amount), unit),
	}, nil
}

func (e *Executor) logFood(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	d := action.Details
	description := strings.TrimSpace(d.Item)

	id, err := e.c.Food.AppendFood(ctx, description, d.MealType, domain.SourceVoice, d.Timestamp)
	if err != nil {
		return domain.ExecutedAction{}, domain.NewStorageError("append food", err)
	}

	executed := domain.ExecutedAction{
		Target:  domain.LogTargetFood,
		LogIDs:  []string{id},
		Message: fmt.Sprintf("Logged %s", description),
	}
	if e.c.Tasks == nil {
		return executed, nil
	}
	task, err := e.c.Tasks.Enqueue(ctx, domain.TaskNutritionMacros, map[string]string{
		domain.PayloadDescription: description,
		domain.PayloadLogID:       id,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "nutrition enrichment not queued", "log_id", id, "error", err)
		executed.Message += " (nutrition estimate could not be scheduled)"
		return executed, nil
	}
	executed.TaskID = task.ID
	return executed, nil
}

func (e *Executor) logVitamin(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	d := action.Details
	name := strings.TrimSpace(d.VitaminName)

	known, err := e.c.Supplements.ListSupplements(ctx)
	if err != nil {
		return domain.ExecutedAction{}, domain.NewStorageError("list supplements", err)
	}

	supplement, found := e.matcher.Match(name, known)
	created := false
	if !found {
		supplement, err = e.c.Supplements.CreateSupplement(ctx, e.newSupplement(d))
		if err != nil {
			return domain.ExecutedAction{}, domain.NewStorageError("create supplement", err)
		}
		created = true
		e.logger.InfoContext(ctx, "supplement added on first mention", "supplement_id", supplement.ID, "name", supplement.Name)
	}

	intakeID, err := e.c.Supplements.RecordIntake(ctx, supplement.ID, domain.SourceVoice, d.Timestamp)
	if err != nil {
		return domain.ExecutedAction{}, domain.NewStorageError("record intake", err)
	}

	msg := fmt.Sprintf("Logged %s", supplement.Name)
	if created {
		msg += " (added to your supplements)"
	}
	return domain.ExecutedAction{
		Target:  domain.LogTargetSupplement,
		LogIDs:  []string{intakeID},
		Message: msg,
	}, nil
}

func (e *Executor) addVitamin(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	supplement, err := e.c.Supplements.CreateSupplement(ctx, e.newSupplement(action.Details))
	if err != nil {
		return domain.ExecutedAction{}, domain.NewStorageError("create supplement", err)
	}
	return domain.ExecutedAction{
		Target:  domain.LogTargetSupplement,
		LogIDs:  []string{supplement.ID},
		Message: fmt.Sprintf("Added %s to your supplements", supplement.Name),
	}, nil
}

func (e *Executor) newSupplement(d domain.ActionDetails) domain.NewSupplement {
	in := domain.NewSupplement{
		Name:        strings.TrimSpace(d.VitaminName),
		Dosage:      strings.TrimSpace(d.Dosage),
		Frequency:   strings.TrimSpace(d.Frequency),
		TimesPerDay: 1,
	}
	if in.Frequency == "" {
		in.Frequency = e.cfg.DefaultFrequency
	}
	if d.TimesPerDay != nil && *d.TimesPerDay > 0 {
		in.TimesPerDay = *d.TimesPerDay
	}
	return in
}

func (e *Executor) logSymptoms(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	d := action.Details
	severity := ParseSeverity(d.Severity)
	symptoms := symptomList(d.Symptoms)

	ids := make([]string, 0, len(symptoms))
	for _, symptom := range symptoms {
		id, err := e.c.Symptoms.AppendSymptom(ctx, symptom, severity, domain.SourceVoice, d.Timestamp)
		if err != nil {
			if len(ids) > 0 {
				e.logger.WarnContext(ctx, "symptom batch partially written", "written", ids)
			}
			return domain.ExecutedAction{}, domain.NewStorageError("append symptom", err)
		}
		ids = append(ids, id)
	}
	executed := domain.ExecutedAction{
		Target:  domain.LogTargetSymptom,
		LogIDs:  ids,
		Message: fmt.Sprintf("Logged %s (severity %d)", strings.Join(symptoms, ", "), severity),
	}
	if !e.cfg.SymptomSuggestions || e.c.Tasks == nil {
		return executed, nil
	}
	task, err := e.c.Tasks.Enqueue(ctx, domain.TaskSymptomSuggestions, map[string]string{
		domain.PayloadSymptoms: strings.Join(symptoms, ", "),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "symptom suggestions not queued", "error", err)
		return executed, nil
	}
	executed.TaskID = task.ID
	return executed, nil
}

func (e *Executor) submitPUQE(ctx context.Context, action domain.CandidateAction) (domain.ExecutedAction, error) {
	d := action.Details
	update := domain.PUQEUpdate{
		NauseaHours:      d.NauseaHours,
		VomitingEpisodes: d.VomitingEpisodes,
		RetchingEpisodes: d.RetchingEpisodes,
		Notes:            strings.TrimSpace(d.Notes),
		Source:           domain.SourceVoice,
		ReportedAt:       d.Timestamp,
	}
	id, err := e.c.PUQE.SubmitPUQE(ctx, update)
	if err != nil {
		return domain.ExecutedAction{}, domain.NewStorageError("submit puqe", err)
	}

	msg := "Recorded PUQE details"
	if score, ok := update.Score(); ok {
		msg = fmt.Sprintf("Recorded PUQE score %d", score)
	}
	return domain.ExecutedAction{
		Target:  domain.LogTargetPUQE,
		LogIDs:  []string{id},
		Message: msg,
	}, nil
}

func (e *Executor) confirmPrompt(action domain.CandidateAction) string {
	d := action.Details
	switch action.Kind {
	case domain.ActionLogWater:
		amount, ok := d.AmountValue()
		if !ok {
			amount = e.cfg.DefaultWaterAmount
		}
		unit := strings.TrimSpace(d.Unit)
		if unit == "" {
			unit = e.cfg.DefaultWaterUnit
		}
		return fmt.Sprintf("Log %s %s of water?", formatAmount(amount), unit)
	case domain.ActionLogFood:
		return fmt.Sprintf("Log %s?", strings.TrimSpace(d.Item))
	case domain.ActionLogVitamin:
		return fmt.Sprintf("Log %s?", strings.TrimSpace(d.VitaminName))
	case domain.ActionAddNewVitamin:
		return fmt.Sprintf("Add %s to your supplements?", strings.TrimSpace(d.VitaminName))
	case domain.ActionLogSymptom:
		return fmt.Sprintf("Log %s?", strings.Join(symptomList(d.Symptoms), ", "))
	case domain.ActionLogPUQEScore:
		return "Record PUQE details?"
	default:
		return "Log this?"
	}
}

func symptomList(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
