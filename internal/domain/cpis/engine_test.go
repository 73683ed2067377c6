package cpis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineSaturatedScenario(t *testing.T) {
	engine := newTestEngine(t)
	raw := [DimensionCount]float64{90, 85, 70, 60, 75, 65, 80, 70}

	evidence := Evidence{}
	for i, code := range Codes {
		evidence[code] = obsOf(code, repeat(raw[i], 30)...)
	}

	res := engine.Score("emp-1", evidence, nil)

	arithmetic := 0.0
	for i, d := range res.Dimensions {
		assert.Equal(t, Codes[i], d.Code)
		assert.InDelta(t, raw[i], d.RawScore, 1e-9)
		assert.Equal(t, 30, d.ObservationCount)
		arithmetic += d.Weight * d.SmoothedScore
	}

	assert.GreaterOrEqual(t, res.Score, 75.0)
	assert.Less(t, res.Score, 80.0)
	assert.Less(t, res.Score, arithmetic)
	assert.Contains(t, []string{GradeCPlus, GradeB}, res.Grade)
	assert.Equal(t, 3, res.StarRating)
	assert.Greater(t, res.Confidence.Level, 0.9)
	assert.Less(t, res.Score-res.Confidence.LowerBound, 5.0)
	assert.Less(t, res.Confidence.UpperBound-res.Score, 5.0)
	assert.Equal(t, DirectionStable, res.Trajectory.Direction)
}

func TestEngineWithoutEvidenceIsNeutral(t *testing.T) {
	engine := newTestEngine(t)
	res := engine.Score("emp-1", nil, nil)

	for _, d := range res.Dimensions {
		assert.Equal(t, 50.0, d.RawScore)
		assert.Equal(t, 50.0, d.SmoothedScore)
		assert.Equal(t, 0, d.ObservationCount)
	}
	assert.Equal(t, 0.0, res.Confidence.Level)
	assert.InDelta(t, 50.0, res.Score, 1e-9)
	assert.InDelta(t, 30.0, res.Confidence.LowerBound, 1e-9)
	assert.InDelta(t, 70.0, res.Confidence.UpperBound, 1e-9)
	assert.Equal(t, GradeF, res.Grade)
}

func TestEngineComputeIsIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	in := Input{
		SubjectID: "emp-1",
		Records: []RawRecord{
			{SubjectID: "emp-1", Dimension: "GAI", Timestamp: baseTime, Magnitude: 88.0},
			{SubjectID: "emp-1", Dimension: "FSI", Timestamp: baseTime.AddDate(0, 1, 0), Magnitude: "73"},
			{SubjectID: "emp-1", Dimension: "FSI", Timestamp: baseTime, Magnitude: 41.0},
			{SubjectID: "emp-1", Dimension: "CIS", Timestamp: baseTime, Magnitude: 64.0},
			{SubjectID: "emp-1", Dimension: "CIS", Timestamp: baseTime, Magnitude: nil},
		},
		History: series(61, 66, 70),
	}

	first, err := engine.Compute(in)
	require.NoError(t, err)
	second, err := engine.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.Dropped)
	assert.Equal(t, DirectionImproving, first.Trajectory.Direction)

	fsi, ok := first.Dimension(CodeFeedbackSentiment)
	require.True(t, ok)
	assert.Equal(t, 2, fsi.ObservationCount)
}

func TestEngineComputeRejectsMalformedEvidence(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.Compute(Input{
		SubjectID: "emp-1",
		Records: []RawRecord{
			{SubjectID: "emp-1", Dimension: "GAI", Magnitude: 50.0},
			{SubjectID: "emp-1", Dimension: "???", Magnitude: 50.0},
		},
	})
	require.Error(t, err)
	var malformed *MalformedEvidenceError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 1, malformed.Index)

	_, err = engine.Compute(Input{SubjectID: "  "})
	assert.True(t, errors.As(err, &malformed))
}

func TestEngineLowEvidenceDimensionCannotDominate(t *testing.T) {
	engine := newTestEngine(t)
	evidence := Evidence{}
	for _, code := range Codes {
		evidence[code] = obsOf(code, repeat(85, 20)...)
	}
	evidence[CodeInnovationImpact] = obsOf(CodeInnovationImpact, 2)

	res := engine.Score("emp-1", evidence, nil)
	iii, _ := res.Dimension(CodeInnovationImpact)
	assert.Equal(t, 2.0, iii.RawScore)
	assert.InDelta(t, 26.0, iii.SmoothedScore, 1e-9)
	assert.Greater(t, res.Score, 60.0)
}
