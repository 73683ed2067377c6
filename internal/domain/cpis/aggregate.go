package cpis

// Aggregate combines dimension scores with a weighted harmonic mean. Scores
// below epsilon are floored to epsilon, never skipped, so a failing
// dimension keeps dragging the composite down.
func Aggregate(scores [DimensionCount]float64, weights map[Code]float64, epsilon float64) float64 {
	var weightSum, inverse float64
	for i, code := range Codes {
		w := weights[code]
		if w == 0 {
			continue
		}
		s := scores[i]
		if s < epsilon {
			s = epsilon
		}
		weightSum += w
		inverse += w / s
	}
	if inverse == 0 {
		return 0
	}
	return clamp(weightSum/inverse, 0, 100)
}
