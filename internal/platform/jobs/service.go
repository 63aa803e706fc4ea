package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pmds/internal/platform/config"
)

const (
	JobReviewReminders  = "review_reminders"
	JobIdempotencyPurge = "idempotency_purge"

	purgeInterval = 6 * time.Hour
	queueSize     = 128
)

// ReminderRunner sends due-date reminders for one tenant.
type ReminderRunner interface {
	SendDueReminders(ctx context.Context, tenantID string, now time.Time, lookahead time.Duration) (any, error)
}

// KeyPurger drops expired idempotency keys.
type KeyPurger interface {
	Purge(ctx context.Context) (int64, error)
}

type Task = func(context.Context) (any, error)

type job struct {
	kind     string
	tenantID string
	task     Task
}

// Service runs background work on a single worker goroutine and records
// every run in the RunLog.
type Service struct {
	Log       RunLog
	Reminders ReminderRunner
	Keys      KeyPurger

	interval  time.Duration
	lookahead time.Duration
	now       func() time.Time
	queue     chan job
}

func New(db *pgxpool.Pool, cfg config.Config, reminders ReminderRunner) *Service {
	return &Service{
		Log:       pgRunLog{db: db},
		Reminders: reminders,
		interval:  cfg.ReminderInterval,
		lookahead: cfg.ReminderLookahead,
		now:       time.Now,
		queue:     make(chan job, queueSize),
	}
}

// Start launches the worker and the periodic schedules. Everything stops
// when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Reminders != nil && s.interval > 0 {
		go every(ctx, s.interval, s.enqueueReminders)
	}
	if s.Keys != nil {
		go every(ctx, purgeInterval, func(ctx context.Context) {
			s.Enqueue(JobIdempotencyPurge, "", s.purgeTask())
		})
	}
}

// Enqueue hands a task to the worker. A full queue drops the task.
func (s *Service) Enqueue(kind, tenantID string, task Task) bool {
	select {
	case s.queue <- job{kind: kind, tenantID: tenantID, task: task}:
		return true
	default:
		slog.Warn("job queue full", "jobType", kind, "tenantId", tenantID)
		return false
	}
}

// RunReminders runs the reminder sweep for one tenant synchronously.
func (s *Service) RunReminders(ctx context.Context, tenantID string) (any, error) {
	return s.run(ctx, job{kind: JobReviewReminders, tenantID: tenantID, task: s.reminderTask(tenantID)})
}

func (s *Service) reminderTask(tenantID string) Task {
	return func(ctx context.Context) (any, error) {
		return s.Reminders.SendDueReminders(ctx, tenantID, s.now(), s.lookahead)
	}
}

func (s *Service) purgeTask() Task {
	return func(ctx context.Context) (any, error) {
		removed, err := s.Keys.Purge(ctx)
		return map[string]int64{"removed": removed}, err
	}
}

func (s *Service) enqueueReminders(ctx context.Context) {
	tenants, err := s.Log.ActiveTenants(ctx)
	if err != nil {
		slog.Warn("reminder scheduler tenant lookup failed", "err", err)
		return
	}
	for _, tenantID := range tenants {
		s.Enqueue(JobReviewReminders, tenantID, s.reminderTask(tenantID))
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.run(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.kind, "tenantId", j.tenantID, "err", err)
			}
		}
	}
}

// run executes one job. Failing to write the run log never fails the job.
func (s *Service) run(ctx context.Context, j job) (any, error) {
	runID, err := s.Log.Begin(ctx, j.tenantID, j.kind)
	if err != nil {
		slog.Warn("job run insert failed", "jobType", j.kind, "err", err)
	}

	started := s.now()
	details, err := j.task(ctx)
	status := statusCompleted
	if err != nil {
		status = statusFailed
	}
	if runID != "" {
		if logErr := s.Log.Finish(ctx, runID, status, details); logErr != nil {
			slog.Warn("job run update failed", "runId", runID, "err", logErr)
		}
	}
	slog.Info("job run finished", "jobType", j.kind, "tenantId", j.tenantID, "status", status, "duration", s.now().Sub(started))
	return details, err
}

func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
