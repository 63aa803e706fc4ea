package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type finished struct {
	status  string
	details any
}

type memoryLog struct {
	mu       sync.Mutex
	begun    []string
	finished map[string]finished
	tenants  []string
	beginErr error
}

func newMemoryLog(tenants ...string) *memoryLog {
	return &memoryLog{finished: map[string]finished{}, tenants: tenants}
}

func (l *memoryLog) Begin(_ context.Context, tenantID, jobType string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.beginErr != nil {
		return "", l.beginErr
	}
	l.begun = append(l.begun, jobType+":"+tenantID)
	return jobType + "-" + tenantID, nil
}

func (l *memoryLog) Finish(_ context.Context, runID, status string, details any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished[runID] = finished{status: status, details: details}
	return nil
}

func (l *memoryLog) ActiveTenants(context.Context) ([]string, error) {
	return l.tenants, nil
}

func (l *memoryLog) result(runID string) (finished, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.finished[runID]
	return f, ok
}

type reminderStub struct {
	mu        sync.Mutex
	tenants   []string
	lookahead time.Duration
	err       error
}

func (r *reminderStub) SendDueReminders(_ context.Context, tenantID string, _ time.Time, lookahead time.Duration) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = append(r.tenants, tenantID)
	r.lookahead = lookahead
	return map[string]int{"sent": 2}, r.err
}

type purgeStub struct{ removed int64 }

func (p purgeStub) Purge(context.Context) (int64, error) { return p.removed, nil }

func newTestService(log RunLog, reminders ReminderRunner) *Service {
	return &Service{
		Log:       log,
		Reminders: reminders,
		lookahead: 72 * time.Hour,
		now:       time.Now,
		queue:     make(chan job, 2),
	}
}

func TestRunRemindersRecordsRun(t *testing.T) {
	log := newMemoryLog()
	reminders := &reminderStub{}
	svc := newTestService(log, reminders)

	details, err := svc.RunReminders(context.Background(), "t1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := details.(map[string]int)["sent"]; got != 2 {
		t.Fatalf("unexpected details %v", details)
	}
	if reminders.lookahead != 72*time.Hour {
		t.Fatalf("lookahead not passed through: %v", reminders.lookahead)
	}
	if f, ok := log.result("review_reminders-t1"); !ok || f.status != statusCompleted {
		t.Fatalf("expected completed run, got %+v", f)
	}
}

func TestFailedJobIsRecorded(t *testing.T) {
	log := newMemoryLog()
	svc := newTestService(log, &reminderStub{err: errors.New("smtp down")})

	if _, err := svc.RunReminders(context.Background(), "t1"); err == nil {
		t.Fatal("expected error")
	}
	if f, _ := log.result("review_reminders-t1"); f.status != statusFailed {
		t.Fatalf("expected failed status, got %q", f.status)
	}
}

func TestRunLogFailureDoesNotFailJob(t *testing.T) {
	log := newMemoryLog()
	log.beginErr = errors.New("db down")
	svc := newTestService(log, &reminderStub{})

	if _, err := svc.RunReminders(context.Background(), "t1"); err != nil {
		t.Fatalf("expected job to succeed without run log, got %v", err)
	}
	if len(log.finished) != 0 {
		t.Fatalf("nothing should be finished without a run id")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	svc := newTestService(newMemoryLog(), &reminderStub{})
	noop := func(context.Context) (any, error) { return nil, nil }
	if !svc.Enqueue("a", "t1", noop) || !svc.Enqueue("b", "t1", noop) {
		t.Fatal("expected queue to accept two jobs")
	}
	if svc.Enqueue("c", "t1", noop) {
		t.Fatal("expected full queue to drop the job")
	}
}

func TestWorkerDrainsScheduledReminders(t *testing.T) {
	log := newMemoryLog("t1", "t2")
	reminders := &reminderStub{}
	svc := newTestService(log, reminders)
	svc.Keys = purgeStub{removed: 3}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.enqueueReminders(ctx)
	go svc.worker(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, one := log.result("review_reminders-t1")
		_, two := log.result("review_reminders-t2")
		if one && two {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker did not run both tenants")
		}
		time.Sleep(10 * time.Millisecond)
	}

	details, err := svc.run(ctx, job{kind: JobIdempotencyPurge, task: svc.purgeTask()})
	if err != nil || details.(map[string]int64)["removed"] != 3 {
		t.Fatalf("unexpected purge result %v %v", details, err)
	}
}
