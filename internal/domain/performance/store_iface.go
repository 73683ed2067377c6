package performance

import (
	"context"

	"cpis/internal/domain/cpis"
)

type StoreAPI interface {
	ListTenants(ctx context.Context) ([]string, error)
	ListActiveEmployeeIDs(ctx context.Context, tenantID string) ([]string, error)
	EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error)
	EvidenceRecords(ctx context.Context, tenantID, employeeID string, window Window) ([]cpis.RawRecord, error)
	History(ctx context.Context, tenantID, employeeID string, beforePeriod, limit int) (cpis.HistoricalSeries, error)
	ListScores(ctx context.Context, tenantID, employeeID string, limit int) ([]StoredScore, error)
	ListPeriodScores(ctx context.Context, tenantID string, periodIndex int) ([]StoredScore, error)
	SaveResult(ctx context.Context, tenantID string, periodIndex int, window Window, result cpis.Result) error
}
