package cpis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorersEmptyInputUsesNeutralPrior(t *testing.T) {
	scorers := NewScorers(DefaultPolicy())
	assert.Len(t, scorers, DimensionCount)
	for _, code := range Codes {
		raw, count := scorers[code].Score(nil)
		assert.Equal(t, 50.0, raw, code)
		assert.Equal(t, 0, count, code)
	}
}

func TestScorersReproduceConstantEvidence(t *testing.T) {
	scorers := NewScorers(DefaultPolicy())
	for _, code := range Codes {
		raw, count := scorers[code].Score(obsOf(code, repeat(72, 12)...))
		assert.InDelta(t, 72.0, raw, 1e-9, code)
		assert.Equal(t, 12, count, code)
	}
}

func TestDimensionReductions(t *testing.T) {
	scorers := NewScorers(DefaultPolicy())

	weighted := obsOf(CodeGoalAttainment, 80, 40)
	weighted[0].Weight = 3

	feedback := obsOf(CodeFeedbackSentiment, 0, 100)
	feedback[1].Timestamp = feedback[0].Timestamp.AddDate(0, 0, 90)

	tests := []struct {
		name string
		code Code
		obs  []Observation
		want float64
	}{
		{"goal completion bonus", CodeGoalAttainment, obsOf(CodeGoalAttainment, 100, 100, 50, 50), 77.5},
		{"goal priority weighting", CodeGoalAttainment, weighted, 70},
		{"goal bonus is capped", CodeGoalAttainment, obsOf(CodeGoalAttainment, 100), 100},
		{"review mean", CodeReviewQuality, obsOf(CodeReviewQuality, 60, 80, 100), 80},
		{"feedback recency", CodeFeedbackSentiment, feedback, 100 / 1.5},
		{"consistency penalty", CodeConsistency, obsOf(CodeConsistency, 40, 60), 100 - math.Sqrt(2600)},
		{"collaboration trimmed", CodeCollaboration, obsOf(CodeCollaboration, 0, 50, 50, 50, 50, 50, 50, 50, 50, 100), 50},
		{"growth rewards improvement", CodeGrowthTrajectory, obsOf(CodeGrowthTrajectory, 40, 40, 60, 60), 940.0 / 18},
		{"growth penalizes decline", CodeGrowthTrajectory, obsOf(CodeGrowthTrajectory, 60, 60, 40, 40), 860.0 / 18},
		{"engagement median", CodeEngagementQuality, obsOf(CodeEngagementQuality, 10, 20, 90), 20},
		{"innovation top k", CodeInnovationImpact, obsOf(CodeInnovationImpact, 10, 20, 30, 40, 50, 60, 70), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, count := scorers[tt.code].Score(tt.obs)
			assert.InDelta(t, tt.want, raw, 1e-9)
			assert.Equal(t, len(tt.obs), count)
		})
	}
}

func TestScorersAreMonotonicUnderUniformImprovement(t *testing.T) {
	scorers := NewScorers(DefaultPolicy())
	base := []float64{35, 80, 55, 62, 91, 20, 47}
	for _, code := range Codes {
		prev, _ := scorers[code].Score(obsOf(code, base...))
		for shift := 5.0; shift <= 60; shift += 5 {
			shifted := make([]float64, len(base))
			for i, v := range base {
				shifted[i] = clamp(v+shift, 0, 100)
			}
			next, _ := scorers[code].Score(obsOf(code, shifted...))
			assert.GreaterOrEqual(t, next, prev, "%s shift %v", code, shift)
			assert.LessOrEqual(t, next, 100.0)
			prev = next
		}
	}
}

func TestScorersNeverDropWhenOneObservationRises(t *testing.T) {
	scorers := NewScorers(DefaultPolicy())
	bases := [][]float64{
		{50, 60},
		{50, 50, 50, 50, 50, 50},
		{35, 80, 55, 62, 91, 20, 47},
		{100, 0, 100, 0, 100},
	}
	for _, code := range Codes {
		for _, base := range bases {
			before, _ := scorers[code].Score(obsOf(code, base...))
			for i := range base {
				for _, bump := range []float64{1, 10, 40} {
					raised := append([]float64(nil), base...)
					raised[i] = clamp(raised[i]+bump, 0, 100)
					after, _ := scorers[code].Score(obsOf(code, raised...))
					assert.GreaterOrEqual(t, after, before-1e-9, "%s %v index %d +%v", code, base, i, bump)
				}
			}
		}
	}
}

func TestGrowthFavorsRecentEvidence(t *testing.T) {
	scorers := NewScorers(DefaultPolicy())
	improving, _ := scorers[CodeGrowthTrajectory].Score(obsOf(CodeGrowthTrajectory, 50, 60))
	declining, _ := scorers[CodeGrowthTrajectory].Score(obsOf(CodeGrowthTrajectory, 60, 50))
	assert.Greater(t, improving, declining)
	assert.InDelta(t, 170.0/3, improving, 1e-9)
}

func TestConsistencyPrefersSteadyEvidence(t *testing.T) {
	scorers := NewScorers(DefaultPolicy())
	steady, _ := scorers[CodeConsistency].Score(obsOf(CodeConsistency, 60, 60, 60, 60))
	erratic, _ := scorers[CodeConsistency].Score(obsOf(CodeConsistency, 30, 90, 30, 90))
	assert.InDelta(t, 60.0, steady, 1e-9)
	assert.Less(t, erratic, steady)
}

func TestScorersDoNotMutateInput(t *testing.T) {
	scorers := NewScorers(DefaultPolicy())
	obs := obsOf(CodeInnovationImpact, 30, 10, 20)
	obs[0].Timestamp, obs[2].Timestamp = obs[2].Timestamp, obs[0].Timestamp
	snapshot := append([]Observation(nil), obs...)
	for _, code := range Codes {
		scorers[code].Score(obs)
	}
	assert.Equal(t, snapshot, obs)
}
