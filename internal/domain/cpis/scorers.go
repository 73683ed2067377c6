package cpis

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Scorer reduces one dimension's observations to a raw 0..100 score.
// With no observations it returns the neutral prior and a zero count.
type Scorer interface {
	Score(observations []Observation) (raw float64, count int)
}

type reduceFunc func(observations []Observation) float64

type dimensionScorer struct {
	prior  float64
	reduce reduceFunc
}

func (s dimensionScorer) Score(observations []Observation) (float64, int) {
	if len(observations) == 0 {
		return s.prior, 0
	}
	raw := s.reduce(observations)
	if math.IsNaN(raw) {
		return s.prior, len(observations)
	}
	return clamp(raw, 0, 100), len(observations)
}

// NewScorers builds the code to scorer dispatch table for a policy.
func NewScorers(p Policy) map[Code]Scorer {
	t := p.Scorers
	table := map[Code]reduceFunc{
		CodeGoalAttainment:    goalAttainment(t.GoalCompletionBonus),
		CodeReviewQuality:     weightedMean,
		CodeFeedbackSentiment: feedbackSentiment(t.FeedbackHalfLifeDays),
		CodeConsistency:       consistency(t.ConsistencyPenalty),
		CodeCollaboration:     collaboration(t.CollaborationTrim),
		CodeGrowthTrajectory:  growth(t.GrowthWeight),
		CodeEngagementQuality: engagement,
		CodeInnovationImpact:  innovation(t.InnovationTopK),
	}
	out := make(map[Code]Scorer, len(table))
	for code, fn := range table {
		out[code] = dimensionScorer{prior: p.PriorMean, reduce: fn}
	}
	return out
}

// goalAttainment is the priority-weighted mean progress plus a bonus
// proportional to the share of fully completed goals.
func goalAttainment(bonus float64) reduceFunc {
	return func(obs []Observation) float64 {
		completed := 0
		for _, o := range obs {
			if o.Magnitude >= 100 {
				completed++
			}
		}
		return weightedMean(obs) + bonus*float64(completed)/float64(len(obs))
	}
}

func weightedMean(obs []Observation) float64 {
	var sum, weights float64
	for _, o := range obs {
		sum += o.Weight * o.Magnitude
		weights += o.Weight
	}
	if weights == 0 {
		return plainMean(obs)
	}
	return sum / weights
}

func plainMean(obs []Observation) float64 {
	mean, err := stats.Mean(magnitudes(obs))
	if err != nil {
		return math.NaN()
	}
	return mean
}

// feedbackSentiment decays each observation by its age relative to the
// newest one in the set, so the result does not depend on the wall clock.
func feedbackSentiment(halfLifeDays float64) reduceFunc {
	tau := halfLifeDays / math.Ln2
	return func(obs []Observation) float64 {
		newest := obs[0].Timestamp
		for _, o := range obs[1:] {
			if o.Timestamp.After(newest) {
				newest = o.Timestamp
			}
		}
		var sum, weights float64
		for _, o := range obs {
			ageDays := newest.Sub(o.Timestamp).Hours() / 24
			w := o.Weight * DecayWeight(ageDays, tau)
			sum += w * o.Magnitude
			weights += w
		}
		if weights == 0 {
			return plainMean(obs)
		}
		return sum / weights
	}
}

// consistency is 100 minus the root of the squared shortfall of the mean
// from a perfect record plus the penalized variance. With penalty <= 1 it
// never drops when a single observation rises.
func consistency(penalty float64) reduceFunc {
	return func(obs []Observation) float64 {
		values := magnitudes(obs)
		mean, err := stats.Mean(values)
		if err != nil {
			return math.NaN()
		}
		sd, err := stats.StandardDeviationPopulation(values)
		if err != nil {
			return math.NaN()
		}
		shortfall := 100 - mean
		return 100 - math.Sqrt(shortfall*shortfall+penalty*sd*sd)
	}
}

func collaboration(trim float64) reduceFunc {
	return func(obs []Observation) float64 {
		values := magnitudes(obs)
		sort.Float64s(values)
		cut := int(math.Floor(float64(len(values)) * trim))
		if len(values)-2*cut < 1 {
			cut = 0
		}
		mean, err := stats.Mean(values[cut : len(values)-cut])
		if err != nil {
			return math.NaN()
		}
		return mean
	}
}

// growth is a recency-weighted mean over the observations in time order.
// Weights ramp linearly from 1 on the oldest to 1+2*weight on the newest.
func growth(weight float64) reduceFunc {
	return func(obs []Observation) float64 {
		ordered := append([]Observation(nil), obs...)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		})
		if len(ordered) == 1 {
			return ordered[0].Magnitude
		}
		last := float64(len(ordered) - 1)
		var sum, weights float64
		for i, o := range ordered {
			w := 1 + 2*weight*float64(i)/last
			sum += w * o.Magnitude
			weights += w
		}
		return sum / weights
	}
}

func engagement(obs []Observation) float64 {
	median, err := stats.Median(magnitudes(obs))
	if err != nil {
		return math.NaN()
	}
	return median
}

func innovation(topK int) reduceFunc {
	return func(obs []Observation) float64 {
		values := magnitudes(obs)
		sort.Sort(sort.Reverse(sort.Float64Slice(values)))
		if len(values) > topK {
			values = values[:topK]
		}
		mean, err := stats.Mean(values)
		if err != nil {
			return math.NaN()
		}
		return mean
	}
}

func magnitudes(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Magnitude
	}
	return out
}
