// Package queue runs durable background enrichment tasks with retries.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"voicelog/internal/domain"
)

var ErrQueueClosed = errors.New("queue closed")

// Handler performs the work of one task kind.
type Handler interface {
	Handle(ctx context.Context, task domain.QueuedTask) (map[string]string, error)
}

type HandlerFunc func(ctx context.Context, task domain.QueuedTask) (map[string]string, error)

func (f HandlerFunc) Handle(ctx context.Context, task domain.QueuedTask) (map[string]string, error) {
	return f(ctx, task)
}

// Config controls retry, retention and concurrency.
type Config struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Retention      time.Duration
	Concurrency    int
	AttemptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 3 * time.Minute
	}
	return c
}

type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(q *Queue) { q.registry = registry }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(q *Queue) {
		if tracer != nil {
			q.tracer = tracer
		}
	}
}

type attempt struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Queue owns every task in memory and writes the whole list to its Store after each transition.
type Queue struct {
	store    Store
	handlers map[domain.TaskKind]Handler
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	registry prometheus.Registerer
	metrics  *metrics
	tracer   trace.Tracer

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	tasks    []domain.QueuedTask
	inflight map[string]*attempt
	timers   map[string]*time.Timer
	gen      uint64
	closed   bool
}

// Open loads the persisted task list. Call ProcessPending afterwards to resume interrupted work.
func Open(ctx context.Context, store Store, handlers map[domain.TaskKind]Handler, cfg Config, opts ...Option) (*Queue, error) {
	q := &Queue{
		store:    store,
		handlers: maps.Clone(handlers),
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		now:      time.Now,
		tracer:   otel.Tracer("voicelog/queue"),
		inflight: make(map[string]*attempt),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "queue")
	q.metrics = newMetrics(q.registry)
	q.baseCtx, q.stop = context.WithCancel(context.Background())

	tasks, err := store.Load(ctx)
	if err != nil {
		q.stop()
		return nil, fmt.Errorf("load queue: %w", err)
	}
	q.tasks = tasks
	return q, nil
}

// Enqueue records a pending task, persists the queue and starts processing it.
// A task with the same kind and payload that can still run is restarted instead of duplicated;
// its retry count is kept. A task that failed permanently is left alone and a new one is created.
func (q *Queue) Enqueue(ctx context.Context, kind domain.TaskKind, payload map[string]string) (domain.QueuedTask, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.QueuedTask{}, ErrQueueClosed
	}

	if i := q.findDuplicateLocked(kind, payload); i >= 0 {
		task := q.tasks[i].Clone()
		q.mu.Unlock()

		q.logger.InfoContext(ctx, "task already queued, restarting", "task_id", task.ID, "kind", kind, "retries", task.RetryCount)
		q.start(task.ID)
		return task, nil
	}

	now := q.now()
	task := domain.QueuedTask{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   maps.Clone(payload),
		Status:    domain.TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.tasks = append(q.tasks, task)
	if err := q.persistLocked(ctx); err != nil {
		q.tasks = q.tasks[:len(q.tasks)-1]
		q.mu.Unlock()
		return domain.QueuedTask{}, err
	}
	q.mu.Unlock()

	q.metrics.incEnqueued(string(kind))
	q.logger.InfoContext(ctx, "task enqueued", "task_id", task.ID, "kind", kind)
	q.start(task.ID)
	return task.Clone(), nil
}

// ProcessPending resumes every pending task and every failed task still under the retry limit.
// Tasks left in processing by a previous run are treated as pending. It waits for one attempt per task.
func (q *Queue) ProcessPending(ctx context.Context) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrQueueClosed
	}

	reset := 0
	for i := range q.tasks {
		if q.tasks[i].Status == domain.TaskProcessing && q.inflight[q.tasks[i].ID] == nil {
			q.tasks[i].Status = domain.TaskPending
			q.tasks[i].UpdatedAt = q.now()
			reset++
		}
	}
	if reset > 0 {
		if err := q.persistLocked(ctx); err != nil {
			q.mu.Unlock()
			return 0, err
		}
		q.logger.InfoContext(ctx, "reset interrupted tasks", slog.Int("count", reset))
	}

	now := q.now()
	var ready []string
	for _, task := range q.tasks {
		if !task.CanAutoRetry(q.cfg.MaxRetries) || q.inflight[task.ID] != nil {
			continue
		}
		if task.NextAttemptAt.After(now) {
			q.scheduleLocked(task.ID, task.NextAttemptAt.Sub(now))
			continue
		}
		ready = append(ready, task.ID)
	}
	q.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.Concurrency)
	for _, id := range ready {
		g.Go(func() error {
			done := q.start(id)
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return len(ready), err
	}
	return len(ready), nil
}

// Retrigger restarts a task immediately, cancelling an attempt that is already running.
func (q *Queue) Retrigger(ctx context.Context, id string) error {
	q.mu.Lock()
	i := q.indexLocked(id)
	if i < 0 {
		q.mu.Unlock()
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if q.tasks[i].Status == domain.TaskCompleted {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	q.logger.InfoContext(ctx, "task retriggered", "task_id", id)
	q.start(id)
	return nil
}

// start launches an attempt for id and returns a channel closed when it finishes.
// A running attempt for the same id is cancelled and the new one waits for it to exit.
func (q *Queue) start(id string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	done := make(chan struct{})
	if q.closed {
		close(done)
		return done
	}
	if timer := q.timers[id]; timer != nil {
		timer.Stop()
		delete(q.timers, id)
	}

	var prevDone chan struct{}
	if prev := q.inflight[id]; prev != nil {
		prev.cancel()
		prevDone = prev.done
	}

	q.gen++
	ctx, cancel := context.WithCancel(q.baseCtx)
	a := &attempt{gen: q.gen, cancel: cancel, done: done}
	q.inflight[id] = a

	q.wg.Add(1)
	go q.run(ctx, id, a, prevDone)
	return done
}

func (q *Queue) run(ctx context.Context, id string, a *attempt, prevDone chan struct{}) {
	defer q.wg.Done()
	defer close(a.done)
	defer a.cancel()

	if prevDone != nil {
		<-prevDone
	}

	q.mu.Lock()
	if !q.currentLocked(id, a) {
		q.mu.Unlock()
		return
	}
	i := q.indexLocked(id)
	if i < 0 || !q.runnable(q.tasks[i]) {
		delete(q.inflight, id)
		q.mu.Unlock()
		return
	}
	q.tasks[i].Status = domain.TaskProcessing
	q.tasks[i].NextAttemptAt = time.Time{}
	q.tasks[i].UpdatedAt = q.now()
	q.persistBackground(ctx)
	task := q.tasks[i].Clone()
	handler := q.handlers[task.Kind]
	q.mu.Unlock()

	q.metrics.addInFlight(1)
	result, err := q.invoke(ctx, handler, task)
	q.metrics.addInFlight(-1)

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.currentLocked(id, a) {
		return
	}
	delete(q.inflight, id)
	i = q.indexLocked(id)
	if i < 0 {
		return
	}

	switch {
	case err == nil:
		q.tasks[i].Status = domain.TaskCompleted
		q.tasks[i].Result = result
		q.tasks[i].Error = ""
		q.tasks[i].UpdatedAt = q.now()
		q.persistBackground(ctx)
		q.metrics.incCompleted(string(task.Kind))
		q.logger.Info("task completed", "task_id", id, "kind", task.Kind)

	case q.baseCtx.Err() != nil:
		// Interrupted by Close; the attempt does not count.
		q.tasks[i].Status = domain.TaskPending
		q.tasks[i].UpdatedAt = q.now()
		q.persistBackground(ctx)

	default:
		q.recordFailureLocked(ctx, i, err)
	}
}

func (q *Queue) invoke(ctx context.Context, handler Handler, task domain.QueuedTask) (map[string]string, error) {
	ctx, span := q.tracer.Start(ctx, "queue.attempt", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.kind", string(task.Kind)),
		attribute.Int("task.retry_count", task.RetryCount),
	))
	defer span.End()

	if handler == nil {
		err := domain.NewInvalidAction(domain.ActionUnknown, "task kind", fmt.Sprintf("%q has no handler", task.Kind))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, q.cfg.AttemptTimeout)
	defer cancel()

	result, err := handler.Handle(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (q *Queue) recordFailureLocked(ctx context.Context, i int, err error) {
	task := &q.tasks[i]
	task.RetryCount++
	if permanent(err) {
		task.RetryCount = q.cfg.MaxRetries
	}
	if task.RetryCount > q.cfg.MaxRetries {
		task.RetryCount = q.cfg.MaxRetries
	}
	task.Status = domain.TaskFailed
	task.Error = err.Error()
	task.UpdatedAt = q.now()

	if task.RetryCount >= q.cfg.MaxRetries {
		task.NextAttemptAt = time.Time{}
		q.persistBackground(ctx)
		q.metrics.incFailed(string(task.Kind))
		q.logger.Error("task failed permanently", "task_id", task.ID, "kind", task.Kind, "retries", task.RetryCount, "error", err)
		return
	}

	delay := q.backoff(task.RetryCount)
	task.NextAttemptAt = task.UpdatedAt.Add(delay)
	q.persistBackground(ctx)
	q.metrics.incRetries(string(task.Kind))
	q.logger.Warn("task attempt failed, retry scheduled",
		"task_id", task.ID, "kind", task.Kind, "retry", task.RetryCount, "delay", delay, "error", err)
	q.scheduleLocked(task.ID, delay)
}

// backoff is BaseDelay × 2^attempt where attempt counts from zero, capped at MaxDelay.
func (q *Queue) backoff(retryCount int) time.Duration {
	delay := q.cfg.BaseDelay
	for n := 1; n < retryCount; n++ {
		delay *= 2
		if delay >= q.cfg.MaxDelay {
			return q.cfg.MaxDelay
		}
	}
	return min(delay, q.cfg.MaxDelay)
}

func (q *Queue) scheduleLocked(id string, delay time.Duration) {
	if q.closed {
		return
	}
	if timer := q.timers[id]; timer != nil {
		timer.Stop()
	}
	q.timers[id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, id)
		q.mu.Unlock()
		q.start(id)
	})
}

// permanent failures skip the remaining retries. Exhausted transient retries stay retryable.
func permanent(err error) bool {
	if errors.Is(err, domain.ErrTransient) {
		return false
	}
	return errors.Is(err, domain.ErrMalformedResponse) ||
		errors.Is(err, domain.ErrInvalidAction) ||
		errors.Is(err, domain.ErrServiceUnavailable)
}

func (q *Queue) runnable(task domain.QueuedTask) bool {
	switch task.Status {
	case domain.TaskPending, domain.TaskProcessing:
		return true
	case domain.TaskFailed:
		return task.RetryCount < q.cfg.MaxRetries
	default:
		return false
	}
}

func (q *Queue) currentLocked(id string, a *attempt) bool {
	cur := q.inflight[id]
	return cur != nil && cur.gen == a.gen
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.tasks, func(t domain.QueuedTask) bool { return t.ID == id })
}

func (q *Queue) findDuplicateLocked(kind domain.TaskKind, payload map[string]string) int {
	return slices.IndexFunc(q.tasks, func(t domain.QueuedTask) bool {
		return t.Kind == kind && q.runnable(t) && maps.Equal(t.Payload, payload)
	})
}

func (q *Queue) persistLocked(ctx context.Context) error {
	snapshot := make([]domain.QueuedTask, len(q.tasks))
	for i, t := range q.tasks {
		snapshot[i] = t.Clone()
	}
	if err := q.store.Save(ctx, snapshot); err != nil {
		q.metrics.incPersistFailures()
		return domain.NewStorageError("persist queue", err)
	}
	return nil
}

// persistBackground is used off the request path, where the only caller is the queue itself.
func (q *Queue) persistBackground(ctx context.Context) {
	if err := q.persistLocked(context.WithoutCancel(ctx)); err != nil {
		q.logger.Error("queue snapshot not saved", "error", err)
	}
}

// Cleanup removes completed tasks older than the retention window. Failed tasks are kept.
func (q *Queue) Cleanup(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-q.cfg.Retention)
	before := len(q.tasks)
	kept := slices.DeleteFunc(slices.Clone(q.tasks), func(t domain.QueuedTask) bool {
		return t.Status == domain.TaskCompleted && t.UpdatedAt.Before(cutoff)
	})
	removed := before - len(kept)
	if removed == 0 {
		return 0, nil
	}

	prev := q.tasks
	q.tasks = kept
	if err := q.persistLocked(ctx); err != nil {
		q.tasks = prev
		return 0, err
	}
	q.logger.InfoContext(ctx, "completed tasks cleaned up", slog.Int("count", removed))
	return removed, nil
}

// RunCleanup sweeps on every tick until ctx is done.
func (q *Queue) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.Cleanup(ctx); err != nil {
				q.logger.ErrorContext(ctx, "queue cleanup failed", "error", err)
			}
		}
	}
}

// List returns tasks in creation order, optionally filtered by status.
func (q *Queue) List(status domain.TaskStatus) []domain.QueuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.QueuedTask, 0, len(q.tasks))
	for _, t := range q.tasks {
		if status == "" || t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (q *Queue) Get(id string) (domain.QueuedTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return domain.QueuedTask{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return q.tasks[i].Clone(), nil
}

func (q *Queue) Stats() domain.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stats domain.QueueStats
	for _, t := range q.tasks {
		switch t.Status {
		case domain.TaskPending:
			stats.Pending++
		case domain.TaskProcessing:
			stats.Processing++
		case domain.TaskCompleted:
			stats.Completed++
		case domain.TaskFailed:
			stats.Failed++
		}
	}
	return stats
}

// RetryFailed gives every failed task a fresh retry budget and starts it.
func (q *Queue) RetryFailed(ctx context.Context) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrQueueClosed
	}
	var ids []string
	for i := range q.tasks {
		if q.tasks[i].Status != domain.TaskFailed {
			continue
		}
		q.tasks[i].Status = domain.TaskPending
		q.tasks[i].RetryCount = 0
		q.tasks[i].NextAttemptAt = time.Time{}
		q.tasks[i].UpdatedAt = q.now()
		ids = append(ids, q.tasks[i].ID)
	}
	if len(ids) == 0 {
		q.mu.Unlock()
		return 0, nil
	}
	if err := q.persistLocked(ctx); err != nil {
		q.mu.Unlock()
		return 0, err
	}
	q.mu.Unlock()

	q.logger.InfoContext(ctx, "retried all failed tasks", slog.Int("count", len(ids)))
	for _, id := range ids {
		q.start(id)
	}
	return len(ids), nil
}

// ClearFailed deletes failed tasks that are not waiting on a scheduled retry.
func (q *Queue) ClearFailed(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	prev := q.tasks
	kept := slices.DeleteFunc(slices.Clone(q.tasks), func(t domain.QueuedTask) bool {
		return t.Status == domain.TaskFailed && q.timers[t.ID] == nil && q.inflight[t.ID] == nil
	})
	removed := len(prev) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	q.tasks = kept
	if err := q.persistLocked(ctx); err != nil {
		q.tasks = prev
		return 0, err
	}
	q.logger.InfoContext(ctx, "failed tasks cleared", slog.Int("count", removed))
	return removed, nil
}

// Close stops timers, cancels running attempts and waits for them to exit.
// Interrupted tasks are saved as pending and resume on the next ProcessPending.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.stop()
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
