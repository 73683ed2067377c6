package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jung-kurt/gofpdf"

	"cpis/internal/domain/cpis"
	cryptoutil "cpis/internal/platform/crypto"
)

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Scorecard is what gets printed; Result carries all the numbers.
type Scorecard struct {
	TenantID    string
	EmployeeID  string
	PeriodIndex int
	From        time.Time
	To          time.Time
	Result      cpis.Result
}

type Service struct {
	Dir    string
	DB     Execer
	crypto *cryptoutil.Service
}

func NewService(dir string, db Execer, crypto *cryptoutil.Service) *Service {
	return &Service{Dir: dir, DB: db, crypto: crypto}
}

// Render lays out a one-page A4 scorecard.
func Render(card Scorecard) ([]byte, error) {
	res := card.Result
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("CPIS scorecard "+card.EmployeeID, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Composite Performance Index")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", card.EmployeeID))
	pdf.Ln(6)
	if !card.From.IsZero() {
		pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", card.From.Format("2006-01-02"), card.To.Format("2006-01-02")))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Score %.1f  Grade %s  %s  (%s)", res.Score, res.Grade, stars(res.StarRating), res.RankLabel))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Confidence %.0f%%, range %.1f to %.1f", res.Confidence.Level*100, res.Confidence.LowerBound, res.Confidence.UpperBound))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Trajectory: %s (slope %.2f per period)", res.Trajectory.Direction, res.Trajectory.Slope))
	pdf.Ln(10)

	widths := []float64{20, 70, 25, 25, 25, 20}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Code", "Dimension", "Raw", "Smoothed", "Evidence", "Weight"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, d := range res.Dimensions {
		pdf.CellFormat(widths[0], 6, string(d.Code), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, d.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, fmt.Sprintf("%.1f", d.RawScore), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, fmt.Sprintf("%.1f", d.SmoothedScore), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, fmt.Sprintf("%d", d.ObservationCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, fmt.Sprintf("%.0f%%", d.Weight*100), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	if res.Dropped > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, fmt.Sprintf("%d evidence records without a usable value were left out.", res.Dropped))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stars(n int) string {
	out := make([]byte, 0, 5)
	for i := 0; i < 5; i++ {
		if i < n {
			out = append(out, '*')
		} else {
			out = append(out, '-')
		}
	}
	return string(out)
}

// Archive stores a rendered scorecard under Dir, encrypted when a key is
// configured, and records it in cpis_scorecards. It returns the file path.
func (s *Service) Archive(ctx context.Context, card Scorecard, pdf []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	id := uuid.NewString()
	filePath := filepath.Join(s.Dir, id+".pdf")
	data := pdf
	encrypted := false
	if s.crypto.Configured() {
		sealed, err := s.crypto.Encrypt(pdf)
		if err != nil {
			return "", err
		}
		data = sealed
		filePath += ".enc"
		encrypted = true
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return "", err
	}
	if s.DB != nil {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO cpis_scorecards (id, tenant_id, employee_id, period_index, file_path, encrypted)
      VALUES ($1,$2,$3,$4,$5,$6)
    `, id, card.TenantID, card.EmployeeID, card.PeriodIndex, filePath, encrypted); err != nil {
			_ = os.Remove(filePath)
			return "", err
		}
	}
	return filePath, nil
}

// Open reads an archived scorecard back, decrypting .enc files.
func (s *Service) Open(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(filePath) == ".enc" {
		return s.crypto.Decrypt(data)
	}
	return data, nil
}
