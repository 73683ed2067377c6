package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"cpis/internal/domain/performance"
)

type execCall struct {
	sql  string
	args []any
}

type recordingExecer struct {
	mu    sync.Mutex
	calls []execCall
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (r *recordingExecer) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		switch {
		case strings.Contains(c.sql, "INSERT INTO job_runs"):
			out = append(out, c.args[3].(string))
		case strings.Contains(c.sql, "UPDATE job_runs"):
			out = append(out, c.args[0].(string))
		}
	}
	return out
}

type fakeRecomputer struct {
	mu      sync.Mutex
	tenants []string
	calls   []string
	err     error
	done    chan string
}

func (f *fakeRecomputer) ListTenants(ctx context.Context) ([]string, error) {
	return f.tenants, nil
}

func (f *fakeRecomputer) Recompute(ctx context.Context, tenantID string, window performance.Window) (performance.RecomputeSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tenantID)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- tenantID
	}
	return performance.RecomputeSummary{TenantID: tenantID, Subjects: 3, Scored: 3}, f.err
}

type countingRuns struct {
	mu     sync.Mutex
	runs   int
	failed int
}

func (c *countingRuns) RecordRecompute(failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	if failed {
		c.failed++
	}
}

func TestRunRecomputeNowRecordsRun(t *testing.T) {
	db := &recordingExecer{}
	rec := &fakeRecomputer{}
	runs := &countingRuns{}
	svc := New(db, 0, rec).WithRecorder(runs)

	summary, err := svc.RunRecomputeNow(context.Background(), "t1", performance.MonthWindow(time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TenantID != "t1" || summary.Scored != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	got := strings.Join(db.statuses(), ",")
	if got != "running,running,completed" {
		t.Fatalf("unexpected job run statuses: %s", got)
	}
	if runs.runs != 1 || runs.failed != 0 {
		t.Fatalf("unexpected run counts: %d/%d", runs.runs, runs.failed)
	}
}

func TestRunRecomputeNowMarksFailure(t *testing.T) {
	db := &recordingExecer{}
	rec := &fakeRecomputer{err: errors.New("list employees: boom")}
	runs := &countingRuns{}
	svc := New(db, 0, rec).WithRecorder(runs)

	if _, err := svc.RunRecomputeNow(context.Background(), "t1", performance.MonthWindow(time.Now())); err == nil {
		t.Fatal("expected error")
	}
	statuses := db.statuses()
	if statuses[len(statuses)-1] != StatusFailed {
		t.Fatalf("expected failed final status, got %v", statuses)
	}
	if runs.failed != 1 {
		t.Fatalf("expected one failed run, got %d", runs.failed)
	}
}

func TestEnqueueRecomputeRunsOnWorker(t *testing.T) {
	db := &recordingExecer{}
	rec := &fakeRecomputer{done: make(chan string, 1)}
	svc := New(db, 0, rec)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	id, err := svc.EnqueueRecompute(ctx, "t9", performance.MonthWindow(time.Now()))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("expected run id")
	}
	select {
	case tenant := <-rec.done:
		if tenant != "t9" {
			t.Fatalf("unexpected tenant %s", tenant)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recompute was not run")
	}
	cancel()
	svc.Wait()

	if statuses := db.statuses(); statuses[0] != StatusQueued {
		t.Fatalf("expected queued first, got %v", statuses)
	}
}

func TestEnqueueRecomputeQueueFull(t *testing.T) {
	svc := New(nil, 0, &fakeRecomputer{})
	for i := 0; i < queueSize; i++ {
		if _, err := svc.EnqueueRecompute(context.Background(), "t1", performance.Window{}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if _, err := svc.EnqueueRecompute(context.Background(), "t1", performance.Window{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full error, got %v", err)
	}
}

func TestSchedulerEnqueuesEveryTenant(t *testing.T) {
	rec := &fakeRecomputer{tenants: []string{"a", "b"}}
	svc := New(nil, time.Hour, rec)
	svc.now = func() time.Time { return time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC) }

	svc.enqueueAllTenants(context.Background())
	if len(svc.queue) != 2 {
		t.Fatalf("expected two queued jobs, got %d", len(svc.queue))
	}
	first := <-svc.queue
	if first.TenantID != "a" || first.Type != JobCPISRecompute {
		t.Fatalf("unexpected job: %+v", first)
	}
}
