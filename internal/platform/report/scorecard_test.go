package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"cpis/internal/domain/cpis"
	cryptoutil "cpis/internal/platform/crypto"
)

type countingExecer struct {
	calls int
}

func (c *countingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.calls++
	return pgconn.CommandTag{}, nil
}

func sampleCard(t *testing.T) Scorecard {
	t.Helper()
	engine, err := cpis.NewEngine(cpis.DefaultPolicy())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	ev := cpis.Evidence{}
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range cpis.Codes {
		ev[code] = []cpis.Observation{{SubjectID: "e1", Code: code, Timestamp: at, Magnitude: float64(60 + 4*i), Weight: 1}}
	}
	result := engine.Score("e1", ev, cpis.HistoricalSeries{{PeriodIndex: 1, Score: 60}, {PeriodIndex: 2, Score: 64}})
	return Scorecard{
		TenantID:    "t1",
		EmployeeID:  "e1",
		PeriodIndex: 3,
		From:        at,
		To:          at.AddDate(0, 1, -1),
		Result:      result,
	}
}

func TestRenderProducesPDF(t *testing.T) {
	pdf, err := Render(sampleCard(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", pdf[:8])
	}
}

func TestArchiveEncryptsWhenConfigured(t *testing.T) {
	crypto, err := cryptoutil.New(strings.Repeat("cd", 32))
	if err != nil {
		t.Fatalf("crypto: %v", err)
	}
	db := &countingExecer{}
	svc := NewService(t.TempDir(), db, crypto)
	card := sampleCard(t)
	pdf, err := Render(card)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	path, err := svc.Archive(context.Background(), card, pdf)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if filepath.Ext(path) != ".enc" {
		t.Fatalf("expected encrypted file, got %s", path)
	}
	if db.calls != 1 {
		t.Fatalf("expected one scorecard row, got %d", db.calls)
	}
	opened, err := svc.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, pdf) {
		t.Fatal("archived scorecard does not round trip")
	}
}

func TestArchivePlainWithoutKey(t *testing.T) {
	crypto, _ := cryptoutil.New("")
	svc := NewService(t.TempDir(), nil, crypto)
	path, err := svc.Archive(context.Background(), sampleCard(t), []byte("%PDF-1.3"))
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if filepath.Ext(path) != ".pdf" {
		t.Fatalf("expected plain pdf, got %s", path)
	}
}

func TestStars(t *testing.T) {
	if got := stars(3); got != "***--" {
		t.Fatalf("unexpected stars %q", got)
	}
}
