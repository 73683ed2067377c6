package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"cpis/internal/domain/performance"
)

const (
	JobCPISRecompute = "cpis_recompute"

	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	queueSize = 128
)

var ErrQueueFull = errors.New("job queue full")

// Execer is the slice of the pool the job bookkeeping needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Recomputer interface {
	ListTenants(ctx context.Context) ([]string, error)
	Recompute(ctx context.Context, tenantID string, window performance.Window) (performance.RecomputeSummary, error)
}

type RunRecorder interface {
	RecordRecompute(failed bool)
}

type Service struct {
	DB         Execer
	Interval   time.Duration
	recomputer Recomputer
	recorder   RunRecorder
	runs       *RunStore
	queue      chan job
	now        func() time.Time
	wg         sync.WaitGroup
}

type job struct {
	ID       string
	Type     string
	TenantID string
	Run      func(context.Context) (any, error)
}

func New(db Execer, interval time.Duration, recomputer Recomputer) *Service {
	return &Service{
		DB:         db,
		Interval:   interval,
		recomputer: recomputer,
		queue:      make(chan job, queueSize),
		now:        time.Now,
	}
}

func (s *Service) WithRecorder(recorder RunRecorder) *Service {
	s.recorder = recorder
	return s
}

func (s *Service) WithRuns(runs *RunStore) *Service {
	s.runs = runs
	return s
}

func (s *Service) ListRuns(ctx context.Context, tenantID string, filter RunFilter, limit, offset int) ([]Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, tenantID, filter, limit, offset)
}

func (s *Service) RunByID(ctx context.Context, tenantID, runID string) (Run, error) {
	if s.runs == nil {
		return Run{}, ErrRunNotFound
	}
	return s.runs.RunByID(ctx, tenantID, runID)
}

// Start runs the queue worker and, when Interval is positive, the periodic
// recompute scheduler. Both stop when ctx is done; Wait blocks until they have.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
	if s.Interval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.scheduleRecompute(ctx, s.Interval)
		}()
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// EnqueueRecompute queues a recompute of the tenant for window and returns
// the run id the job will be recorded under.
func (s *Service) EnqueueRecompute(ctx context.Context, tenantID string, window performance.Window) (string, error) {
	j := s.recomputeJob(tenantID, window)
	s.insertRun(ctx, j, StatusQueued)
	select {
	case s.queue <- j:
		return j.ID, nil
	default:
		slog.Warn("job queue full", "jobType", j.Type, "tenantId", tenantID)
		s.updateRun(ctx, j.ID, StatusFailed, []byte(`{"error":"queue full"}`), true)
		return "", ErrQueueFull
	}
}

// RunRecomputeNow recomputes synchronously, still recording a job run.
func (s *Service) RunRecomputeNow(ctx context.Context, tenantID string, window performance.Window) (performance.RecomputeSummary, error) {
	j := s.recomputeJob(tenantID, window)
	s.insertRun(ctx, j, StatusRunning)
	details, err := s.runJob(ctx, j)
	summary, _ := details.(performance.RecomputeSummary)
	return summary, err
}

func (s *Service) recomputeJob(tenantID string, window performance.Window) job {
	return job{
		ID:       uuid.NewString(),
		Type:     JobCPISRecompute,
		TenantID: tenantID,
		Run: func(ctx context.Context) (any, error) {
			return s.recomputer.Recompute(ctx, tenantID, window)
		},
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "runId", j.ID, "err", err)
			}
		}
	}
}

func (s *Service) insertRun(ctx context.Context, j job, status string) {
	if s.DB == nil {
		return
	}
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO job_runs (id, tenant_id, job_type, status)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (id) DO NOTHING
  `, j.ID, j.TenantID, j.Type, status); err != nil {
		slog.Warn("job run insert failed", "runId", j.ID, "err", err)
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	s.updateRun(ctx, j.ID, StatusRunning, nil, false)
	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	if s.recorder != nil && j.Type == JobCPISRecompute {
		s.recorder.RecordRecompute(err != nil)
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	s.updateRun(ctx, j.ID, status, detailsJSON, true)
	return details, err
}

func (s *Service) updateRun(ctx context.Context, runID, status string, details []byte, done bool) {
	if s.DB == nil {
		return
	}
	var err error
	if done {
		_, err = s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, details, runID)
	} else {
		_, err = s.DB.Exec(ctx, `UPDATE job_runs SET status = $1, started_at = now() WHERE id = $2`, status, runID)
	}
	if err != nil {
		slog.Warn("job run update failed", "runId", runID, "err", err)
	}
}

func (s *Service) scheduleRecompute(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueAllTenants(ctx)
		}
	}
}

func (s *Service) enqueueAllTenants(ctx context.Context) {
	tenants, err := s.recomputer.ListTenants(ctx)
	if err != nil {
		slog.Warn("recompute scheduler tenant lookup failed", "err", err)
		return
	}
	window := performance.MonthWindow(s.now())
	for _, tenantID := range tenants {
		if _, err := s.EnqueueRecompute(ctx, tenantID, window); err != nil {
			slog.Warn("recompute enqueue failed", "tenantId", tenantID, "err", err)
		}
	}
}
