package cpis

import "time"

// Observation is one normalized evidence unit for a single dimension.
type Observation struct {
	SubjectID string    `json:"subjectId"`
	Code      Code      `json:"dimensionCode"`
	Timestamp time.Time `json:"timestamp"`
	Magnitude float64   `json:"magnitude"`
	Weight    float64   `json:"weight"`
}

// Evidence holds a subject's observations grouped by dimension.
type Evidence map[Code][]Observation

// Count returns the number of observations across all dimensions.
func (e Evidence) Count() int {
	total := 0
	for _, obs := range e {
		total += len(obs)
	}
	return total
}

// DimensionResult is one dimension's contribution to a composite.
type DimensionResult struct {
	Code             Code    `json:"code"`
	Name             string  `json:"name"`
	RawScore         float64 `json:"rawScore"`
	ObservationCount int     `json:"observationCount"`
	SmoothedScore    float64 `json:"smoothedScore"`
	Weight           float64 `json:"weight"`
}

// Confidence carries the confidence level and the score bounds it implies.
type Confidence struct {
	Level      float64 `json:"level"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
}

// Trajectory is the trend fitted over a subject's composite history.
type Trajectory struct {
	Direction string  `json:"direction"`
	Slope     float64 `json:"slope"`
	Points    int     `json:"points"`
	Projected float64 `json:"projected"`
}

// HistoryPoint is one prior composite score for a subject.
type HistoryPoint struct {
	PeriodIndex int     `json:"periodIndex"`
	Score       float64 `json:"score"`
}

// HistoricalSeries is read-only input to the trajectory analysis.
type HistoricalSeries []HistoryPoint

// Result is the full CPIS outcome for one subject and evaluation window.
type Result struct {
	SubjectID  string                          `json:"subjectId"`
	Score      float64                         `json:"score"`
	Grade      string                          `json:"grade"`
	StarRating int                             `json:"starRating"`
	RankLabel  string                          `json:"rankLabel"`
	Dimensions [DimensionCount]DimensionResult `json:"dimensions"`
	Confidence Confidence                      `json:"confidence"`
	Trajectory Trajectory                      `json:"trajectory"`
	Dropped    int                             `json:"droppedRecords"`
}

// Dimension returns the result row for code.
func (r Result) Dimension(code Code) (DimensionResult, bool) {
	idx := codeIndex(code)
	if idx < 0 {
		return DimensionResult{}, false
	}
	return r.Dimensions[idx], true
}

// Input is everything needed to score one subject. Records are adapted
// before scoring; Evidence is used as-is when Records is empty.
type Input struct {
	SubjectID string
	Records   []RawRecord
	Evidence  Evidence
	History   HistoricalSeries
}
