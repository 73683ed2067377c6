package cpis

// ConfidenceLevel maps the total observation count to [0,1). It is 0 with no
// evidence and approaches 1 as evidence accumulates.
func ConfidenceLevel(totalCount int, k float64) float64 {
	if totalCount <= 0 {
		return 0
	}
	n := float64(totalCount)
	return n / (n + k)
}

// Smooth pulls a dimension's raw score toward the prior in proportion to how
// little evidence backs it.
func Smooth(raw float64, count int, prior, k float64) float64 {
	if count <= 0 {
		return prior
	}
	n := float64(count)
	return raw*(n/(n+k)) + prior*(k/(n+k))
}

// Estimate fills SmoothedScore on every dimension and returns the overall
// confidence level.
func Estimate(dims *[DimensionCount]DimensionResult, p Policy) float64 {
	total := 0
	for i := range dims {
		d := &dims[i]
		d.SmoothedScore = clamp(Smooth(d.RawScore, d.ObservationCount, p.PriorMean, p.SmoothingK), 0, 100)
		total += d.ObservationCount
	}
	return ConfidenceLevel(total, p.ConfidenceK)
}
