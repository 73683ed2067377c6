package performance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cpis/internal/domain/cpis"
)

const maxReportedErrors = 20

func (s *Service) EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error) {
	return s.store.EmployeeIDByUserID(ctx, tenantID, userID)
}

func (s *Service) ListScores(ctx context.Context, tenantID, employeeID string, limit int) ([]StoredScore, error) {
	return s.store.ListScores(ctx, tenantID, employeeID, limit)
}

func (s *Service) PeriodScores(ctx context.Context, tenantID string, periodIndex int) ([]StoredScore, error) {
	return s.store.ListPeriodScores(ctx, tenantID, periodIndex)
}

func (s *Service) ListTenants(ctx context.Context) ([]string, error) {
	return s.store.ListTenants(ctx)
}

// Score computes a live result for one employee without persisting it.
func (s *Service) Score(ctx context.Context, tenantID, employeeID string, window Window) (cpis.Result, error) {
	in, err := s.loadInput(ctx, tenantID, employeeID, window)
	if err != nil {
		return cpis.Result{}, err
	}
	return s.compute(in)
}

// ScoreSnapshot scores evidence supplied directly by the caller.
func (s *Service) ScoreSnapshot(in cpis.Input) (cpis.Result, error) {
	return s.compute(in)
}

func (s *Service) compute(in cpis.Input) (cpis.Result, error) {
	start := time.Now()
	result, err := s.engine.Compute(in)
	s.record(time.Since(start), err, result.Dropped)
	return result, err
}

func (s *Service) record(d time.Duration, err error, dropped int) {
	if s.recorder != nil {
		s.recorder.RecordScore(d, err != nil, dropped)
	}
}

func (s *Service) loadInput(ctx context.Context, tenantID, employeeID string, window Window) (cpis.Input, error) {
	records, err := s.store.EvidenceRecords(ctx, tenantID, employeeID, window)
	if err != nil {
		return cpis.Input{}, fmt.Errorf("load evidence for %s: %w", employeeID, err)
	}
	history, err := s.store.History(ctx, tenantID, employeeID, PeriodIndex(window.To), s.historyLimit)
	if err != nil {
		return cpis.Input{}, fmt.Errorf("load history for %s: %w", employeeID, err)
	}
	return cpis.Input{SubjectID: employeeID, Records: records, History: history}, nil
}

// Recompute scores every active employee of a tenant for the window and
// stores the results. A failing employee is reported in the summary and
// does not stop the others.
func (s *Service) Recompute(ctx context.Context, tenantID string, window Window) (RecomputeSummary, error) {
	period := PeriodIndex(window.To)
	summary := RecomputeSummary{TenantID: tenantID, PeriodIndex: period}

	ids, err := s.store.ListActiveEmployeeIDs(ctx, tenantID)
	if err != nil {
		return summary, fmt.Errorf("list employees: %w", err)
	}
	summary.Subjects = len(ids)

	inputs := make([]cpis.Input, 0, len(ids))
	for _, id := range ids {
		in, err := s.loadInput(ctx, tenantID, id, window)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			summary.fail(id, err)
			continue
		}
		inputs = append(inputs, in)
	}

	start := time.Now()
	outcomes := s.engine.ComputeBatch(ctx, inputs, s.workers)
	perSubject := time.Since(start)
	if len(outcomes) > 0 {
		perSubject /= time.Duration(len(outcomes))
	}
	for _, o := range outcomes {
		s.record(perSubject, o.Err, o.Result.Dropped)
		if o.Err != nil {
			summary.fail(o.SubjectID, o.Err)
			continue
		}
		if err := s.store.SaveResult(ctx, tenantID, period, window, o.Result); err != nil {
			summary.fail(o.SubjectID, fmt.Errorf("save result: %w", err))
			continue
		}
		summary.Scored++
		summary.Dropped += o.Result.Dropped
	}

	slog.Info("cpis recompute finished",
		"tenantId", tenantID,
		"periodIndex", period,
		"subjects", summary.Subjects,
		"scored", summary.Scored,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (r *RecomputeSummary) fail(employeeID string, err error) {
	r.Failed++
	slog.Warn("cpis subject failed", "tenantId", r.TenantID, "employeeId", employeeID, "err", err)
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, SubjectError{EmployeeID: employeeID, Error: err.Error()})
	}
}
