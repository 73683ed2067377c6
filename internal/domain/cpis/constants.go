package cpis

import (
	"fmt"
	"strings"
)

// Code identifies one of the eight CPIS dimensions.
type Code string

const (
	CodeGoalAttainment    Code = "GAI"
	CodeReviewQuality     Code = "RQS"
	CodeFeedbackSentiment Code = "FSI"
	CodeConsistency       Code = "CIS"
	CodeCollaboration     Code = "CRI"
	CodeGrowthTrajectory  Code = "GTS"
	CodeEngagementQuality Code = "EQS"
	CodeInnovationImpact  Code = "III"
)

// DimensionCount is the fixed number of dimensions in every result.
const DimensionCount = 8

// Codes lists the dimensions in their canonical result order.
var Codes = [DimensionCount]Code{
	CodeGoalAttainment,
	CodeReviewQuality,
	CodeFeedbackSentiment,
	CodeConsistency,
	CodeCollaboration,
	CodeGrowthTrajectory,
	CodeEngagementQuality,
	CodeInnovationImpact,
}

var dimensionNames = map[Code]string{
	CodeGoalAttainment:    "Goal Attainment Index",
	CodeReviewQuality:     "Review Quality Score",
	CodeFeedbackSentiment: "Feedback Sentiment Index",
	CodeConsistency:       "Consistency Index Score",
	CodeCollaboration:     "Collaboration Rating Index",
	CodeGrowthTrajectory:  "Growth Trajectory Score",
	CodeEngagementQuality: "Engagement Quality Score",
	CodeInnovationImpact:  "Innovation Impact Index",
}

const (
	DirectionImproving = "improving"
	DirectionDeclining = "declining"
	DirectionStable    = "stable"
)

const (
	GradeAPlus = "A+"
	GradeA     = "A"
	GradeBPlus = "B+"
	GradeB     = "B"
	GradeCPlus = "C+"
	GradeC     = "C"
	GradeD     = "D"
	GradeF     = "F"
)

// ParseCode normalizes raw to a known dimension code.
func ParseCode(raw string) (Code, error) {
	code := Code(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := dimensionNames[code]; !ok {
		return "", fmt.Errorf("unknown dimension code %q", raw)
	}
	return code, nil
}

// Valid reports whether c is one of the eight dimension codes.
func (c Code) Valid() bool {
	_, ok := dimensionNames[c]
	return ok
}

// Name returns the human readable dimension name.
func (c Code) Name() string {
	return dimensionNames[c]
}

func codeIndex(c Code) int {
	for i, code := range Codes {
		if code == c {
			return i
		}
	}
	return -1
}
