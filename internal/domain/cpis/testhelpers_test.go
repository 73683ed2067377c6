package cpis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func obsOf(code Code, magnitudes ...float64) []Observation {
	out := make([]Observation, len(magnitudes))
	for i, m := range magnitudes {
		out[i] = Observation{
			SubjectID: "emp-1",
			Code:      code,
			Timestamp: baseTime.AddDate(0, 0, i),
			Magnitude: m,
			Weight:    1,
		}
	}
	return out
}

func repeat(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)
	return engine
}
