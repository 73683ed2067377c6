package cpis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// AnalyzeTrajectory fits score = a + b*periodIndex by ordinary least squares
// and classifies the slope against the dead band. window limits the fit to
// the most recent periods; 0 uses the whole series.
func AnalyzeTrajectory(series HistoricalSeries, deadBand float64, window int) Trajectory {
	points := append(HistoricalSeries(nil), series...)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].PeriodIndex < points[j].PeriodIndex
	})
	if window > 0 && len(points) > window {
		points = points[len(points)-window:]
	}

	switch len(points) {
	case 0:
		return Trajectory{Direction: DirectionStable}
	case 1:
		return Trajectory{Direction: DirectionStable, Points: 1, Projected: clamp(points[0].Score, 0, 100)}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.PeriodIndex)
		ys[i] = p.Score
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return Trajectory{Direction: DirectionStable, Points: len(points), Projected: clamp(ys[len(ys)-1], 0, 100)}
	}

	direction := DirectionStable
	switch {
	case beta > deadBand:
		direction = DirectionImproving
	case beta < -deadBand:
		direction = DirectionDeclining
	}
	next := xs[len(xs)-1] + 1
	return Trajectory{
		Direction: direction,
		Slope:     beta,
		Points:    len(points),
		Projected: clamp(alpha+beta*next, 0, 100),
	}
}
