package performance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"cpis/internal/domain/cpis"
)

func (s *Store) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListActiveEmployeeIDs(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id
    FROM employees
    WHERE tenant_id = $1 AND status = $2
    ORDER BY id
  `, tenantID, EmployeeStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error) {
	var employeeID string
	if err := s.DB.QueryRow(ctx, "SELECT id FROM employees WHERE tenant_id = $1 AND user_id = $2", tenantID, userID).Scan(&employeeID); err != nil {
		return "", err
	}
	return employeeID, nil
}

// EvidenceRecords collects raw evidence for one employee from goals, review
// responses and the generic evidence feed.
func (s *Store) EvidenceRecords(ctx context.Context, tenantID, employeeID string, window Window) ([]cpis.RawRecord, error) {
	goals, err := s.goalRecords(ctx, tenantID, employeeID, window)
	if err != nil {
		return nil, err
	}
	reviews, err := s.reviewRecords(ctx, tenantID, employeeID, window)
	if err != nil {
		return nil, err
	}
	feed, err := s.feedRecords(ctx, tenantID, employeeID, window)
	if err != nil {
		return nil, err
	}
	records := make([]cpis.RawRecord, 0, len(goals)+len(reviews)+len(feed))
	records = append(records, goals...)
	records = append(records, reviews...)
	records = append(records, feed...)
	return records, nil
}

func (s *Store) goalRecords(ctx context.Context, tenantID, employeeID string, window Window) ([]cpis.RawRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT weight, status, progress, created_at
    FROM goals
    WHERE tenant_id = $1 AND employee_id = $2
      AND created_at <= $4
      AND COALESCE(due_date, created_at::date) >= $3::date
    ORDER BY created_at
  `, tenantID, employeeID, window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cpis.RawRecord
	for rows.Next() {
		var (
			weight    *float64
			status    string
			progress  *float64
			createdAt time.Time
		)
		if err := rows.Scan(&weight, &status, &progress, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, goalRecord(employeeID, weight, status, progress, createdAt))
	}
	return out, rows.Err()
}

func goalRecord(employeeID string, weight *float64, status string, progress *float64, at time.Time) cpis.RawRecord {
	rec := cpis.RawRecord{
		SubjectID: employeeID,
		Dimension: string(cpis.CodeGoalAttainment),
		Timestamp: at,
		Source:    SourceGoals,
	}
	if weight != nil && *weight > 0 {
		w := *weight
		rec.Weight = &w
	}
	switch {
	case status == GoalStatusCompleted:
		rec.Magnitude = 100.0
	case progress != nil:
		rec.Magnitude = *progress
	}
	return rec
}

func (s *Store) reviewRecords(ctx context.Context, tenantID, employeeID string, window Window) ([]cpis.RawRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT rr.role, rr.rating, rr.submitted_at
    FROM review_responses rr
    JOIN review_tasks rt ON rt.id = rr.task_id
    WHERE rr.tenant_id = $1 AND rt.employee_id = $2
      AND rr.submitted_at BETWEEN $3 AND $4
    ORDER BY rr.submitted_at
  `, tenantID, employeeID, window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cpis.RawRecord
	for rows.Next() {
		var (
			role        string
			rating      *float64
			submittedAt time.Time
		)
		if err := rows.Scan(&role, &rating, &submittedAt); err != nil {
			return nil, err
		}
		out = append(out, reviewRecord(employeeID, role, rating, submittedAt))
	}
	return out, rows.Err()
}

func reviewRecord(employeeID, role string, rating *float64, at time.Time) cpis.RawRecord {
	weight := 1.0
	if role == ReviewRoleSelf {
		weight = selfReviewWeight
	}
	rec := cpis.RawRecord{
		SubjectID: employeeID,
		Dimension: string(cpis.CodeReviewQuality),
		Timestamp: at,
		Weight:    &weight,
		Source:    SourceReviews,
	}
	if rating != nil {
		rec.Magnitude = (*rating - reviewRatingMin) / (reviewRatingMax - reviewRatingMin) * 100
	}
	return rec
}

func (s *Store) feedRecords(ctx context.Context, tenantID, employeeID string, window Window) ([]cpis.RawRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT dimension_code, magnitude, weight, source, observed_at
    FROM cpis_evidence
    WHERE tenant_id = $1 AND employee_id = $2
      AND observed_at BETWEEN $3 AND $4
    ORDER BY observed_at, id
  `, tenantID, employeeID, window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cpis.RawRecord
	for rows.Next() {
		var (
			rec       cpis.RawRecord
			magnitude *string
		)
		if err := rows.Scan(&rec.Dimension, &magnitude, &rec.Weight, &rec.Source, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.SubjectID = employeeID
		if magnitude != nil {
			rec.Magnitude = *magnitude
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// History returns up to limit stored composites before beforePeriod, oldest first.
func (s *Store) History(ctx context.Context, tenantID, employeeID string, beforePeriod, limit int) (cpis.HistoricalSeries, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.DB.Query(ctx, `
    SELECT period_index, score
    FROM cpis_scores
    WHERE tenant_id = $1 AND employee_id = $2 AND period_index < $3
    ORDER BY period_index DESC
    LIMIT $4
  `, tenantID, employeeID, beforePeriod, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series cpis.HistoricalSeries
	for rows.Next() {
		var point cpis.HistoryPoint
		if err := rows.Scan(&point.PeriodIndex, &point.Score); err != nil {
			return nil, err
		}
		series = append(series, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}
	return series, nil
}

func (s *Store) ListScores(ctx context.Context, tenantID, employeeID string, limit int) ([]StoredScore, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, period_index, score, grade, star_rating, confidence, direction, computed_at
    FROM cpis_scores
    WHERE tenant_id = $1 AND employee_id = $2
    ORDER BY period_index DESC
    LIMIT $3
  `, tenantID, employeeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScores(rows)
}

func scanScores(rows pgx.Rows) ([]StoredScore, error) {
	var scores []StoredScore
	for rows.Next() {
		var sc StoredScore
		if err := rows.Scan(&sc.EmployeeID, &sc.PeriodIndex, &sc.Score, &sc.Grade, &sc.StarRating, &sc.Confidence, &sc.Direction, &sc.ComputedAt); err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// ListPeriodScores returns every stored score of one period, best first.
func (s *Store) ListPeriodScores(ctx context.Context, tenantID string, periodIndex int) ([]StoredScore, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, period_index, score, grade, star_rating, confidence, direction, computed_at
    FROM cpis_scores
    WHERE tenant_id = $1 AND period_index = $2
    ORDER BY score DESC, employee_id
  `, tenantID, periodIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScores(rows)
}

func (s *Store) SaveResult(ctx context.Context, tenantID string, periodIndex int, window Window, result cpis.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO cpis_scores (tenant_id, employee_id, period_index, window_from, window_to, score, grade, star_rating, confidence, direction, result_json, computed_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
    ON CONFLICT (tenant_id, employee_id, period_index) DO UPDATE
    SET window_from = EXCLUDED.window_from,
        window_to = EXCLUDED.window_to,
        score = EXCLUDED.score,
        grade = EXCLUDED.grade,
        star_rating = EXCLUDED.star_rating,
        confidence = EXCLUDED.confidence,
        direction = EXCLUDED.direction,
        result_json = EXCLUDED.result_json,
        computed_at = now()
  `, tenantID, result.SubjectID, periodIndex, window.From, window.To, result.Score, result.Grade, result.StarRating, result.Confidence.Level, result.Trajectory.Direction, resultJSON)
	return err
}
