package performance

import (
	"fmt"
	"time"
)

// Window is a closed evaluation interval.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("evaluation window requires from and to")
	}
	if w.To.Before(w.From) {
		return fmt.Errorf("evaluation window ends before it starts")
	}
	return nil
}

// MonthWindow returns the calendar month containing t.
func MonthWindow(t time.Time) Window {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// PeriodIndex numbers monthly evaluation periods so that consecutive months
// differ by one.
func PeriodIndex(t time.Time) int {
	t = t.UTC()
	return t.Year()*12 + int(t.Month()) - 1
}

// PeriodWindow returns the calendar month with the given period index.
func PeriodWindow(index int) Window {
	return MonthWindow(time.Date(index/12, time.Month(index%12+1), 1, 0, 0, 0, 0, time.UTC))
}

// PeriodLabel renders a period as YYYY-MM.
func PeriodLabel(index int) string {
	return PeriodWindow(index).From.Format("2006-01")
}

// ParsePeriod reads a YYYY-MM label back into a period index.
func ParsePeriod(label string) (int, error) {
	t, err := time.Parse("2006-01", label)
	if err != nil {
		return 0, fmt.Errorf("period must be YYYY-MM: %w", err)
	}
	return PeriodIndex(t), nil
}

type StoredScore struct {
	EmployeeID  string    `json:"employeeId"`
	PeriodIndex int       `json:"periodIndex"`
	Score       float64   `json:"score"`
	Grade       string    `json:"grade"`
	StarRating  int       `json:"starRating"`
	Confidence  float64   `json:"confidence"`
	Direction   string    `json:"direction"`
	ComputedAt  time.Time `json:"computedAt"`
}

type SubjectError struct {
	EmployeeID string `json:"employeeId"`
	Error      string `json:"error"`
}

type RecomputeSummary struct {
	TenantID    string         `json:"tenantId"`
	PeriodIndex int            `json:"periodIndex"`
	Subjects    int            `json:"subjects"`
	Scored      int            `json:"scored"`
	Failed      int            `json:"failed"`
	Dropped     int            `json:"droppedRecords"`
	Errors      []SubjectError `json:"errors,omitempty"`
}
