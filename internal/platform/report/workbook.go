package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"cpis/internal/domain/performance"
)

var workbookHeaders = []string{"Employee", "Score", "Grade", "Stars", "Confidence", "Trend", "Computed"}

// ScoresWorkbook lays out one period's stored scores as an XLSX workbook:
// a "Scores" sheet with one row per employee and a "Grades" sheet counting
// employees per grade in the policy's grade order.
func ScoresWorkbook(periodIndex int, grades []string, scores []performance.StoredScore) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Scores"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := f.SetCellValue(sheet, "A1", "CPIS scores "+performance.PeriodLabel(periodIndex)); err != nil {
		return nil, err
	}
	if err := setRow(f, sheet, 3, toAny(workbookHeaders)); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A3", "G3", bold); err != nil {
		return nil, err
	}
	for i, sc := range scores {
		row := []any{
			sc.EmployeeID,
			sc.Score,
			sc.Grade,
			sc.StarRating,
			sc.Confidence,
			sc.Direction,
			sc.ComputedAt.UTC().Format("2006-01-02 15:04"),
		}
		if err := setRow(f, sheet, i+4, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 40); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet("Grades"); err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, sc := range scores {
		counts[sc.Grade]++
	}
	if err := setRow(f, "Grades", 1, []any{"Grade", "Employees"}); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle("Grades", "A1", "B1", bold); err != nil {
		return nil, err
	}
	for i, g := range grades {
		if err := setRow(f, "Grades", i+2, []any{g, counts[g]}); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
