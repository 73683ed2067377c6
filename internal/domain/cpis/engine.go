package cpis

import (
	"errors"
	"strings"
)

// Engine runs the CPIS pipeline under one validated policy. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	policy  Policy
	scorers map[Code]Scorer
}

// NewEngine validates p once and returns an engine bound to a private copy.
func NewEngine(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.clone()
	return &Engine{policy: p, scorers: NewScorers(p)}, nil
}

// Policy returns a copy of the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy.clone()
}

// Compute scores one subject. Raw records are adapted first; any malformed
// record fails the subject with the joined MalformedEvidenceErrors.
func (e *Engine) Compute(in Input) (Result, error) {
	subjectID := strings.TrimSpace(in.SubjectID)
	if subjectID == "" {
		return Result{}, &MalformedEvidenceError{Index: -1, Reason: "missing subject id"}
	}
	if len(in.Records) == 0 {
		return e.Score(subjectID, in.Evidence, in.History), nil
	}

	evidence, report := AdaptSubject(subjectID, in.Records)
	if len(report.Rejected) > 0 {
		errs := make([]error, len(report.Rejected))
		for i, rej := range report.Rejected {
			errs[i] = rej
		}
		return Result{}, errors.Join(errs...)
	}
	for code, obs := range in.Evidence {
		evidence[code] = append(evidence[code], obs...)
	}
	result := e.Score(subjectID, evidence, in.History)
	result.Dropped = report.Dropped
	return result, nil
}

// Score runs the pipeline over already adapted evidence.
func (e *Engine) Score(subjectID string, evidence Evidence, history HistoricalSeries) Result {
	var dims [DimensionCount]DimensionResult
	for i, code := range Codes {
		raw, count := e.scorers[code].Score(evidence[code])
		dims[i] = DimensionResult{
			Code:             code,
			Name:             code.Name(),
			RawScore:         raw,
			ObservationCount: count,
			Weight:           e.policy.Weights[code],
		}
	}
	level := Estimate(&dims, e.policy)

	var smoothed [DimensionCount]float64
	for i := range dims {
		smoothed[i] = dims[i].SmoothedScore
	}
	composite := Aggregate(smoothed, e.policy.Weights, e.policy.Epsilon)
	class := Classify(composite, level, e.policy)

	return Result{
		SubjectID:  subjectID,
		Score:      composite,
		Grade:      class.Grade,
		StarRating: class.StarRating,
		RankLabel:  class.RankLabel,
		Dimensions: dims,
		Confidence: class.Confidence,
		Trajectory: AnalyzeTrajectory(history, e.policy.TrajectoryDeadBand, e.policy.TrajectoryWindow),
	}
}
