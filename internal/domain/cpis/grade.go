package cpis

// Classification is the presentation-facing reading of a composite score.
type Classification struct {
	Grade      string
	StarRating int
	RankLabel  string
	Confidence Confidence
}

// Classify maps a composite score and confidence level onto the policy's
// grade and star tables and derives the confidence bounds.
func Classify(composite, level float64, p Policy) Classification {
	out := Classification{StarRating: 1}
	for _, band := range p.Grades {
		if composite >= band.Min {
			out.Grade = band.Grade
			out.RankLabel = band.Label
			break
		}
	}
	// A NaN composite matches no band; it reads as the lowest grade.
	if out.Grade == "" && len(p.Grades) > 0 {
		last := p.Grades[len(p.Grades)-1]
		out.Grade, out.RankLabel = last.Grade, last.Label
	}
	for _, band := range p.Stars {
		if composite >= band.Min {
			out.StarRating = band.Stars
			break
		}
	}
	spread := (1 - clamp(level, 0, 1)) * p.MaxSpread
	out.Confidence = Confidence{
		Level:      level,
		LowerBound: clamp(composite-spread, 0, 100),
		UpperBound: clamp(composite+spread, 0, 100),
	}
	return out
}
