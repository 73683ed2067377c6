package cpis

import (
	"embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed policy/default.yaml
var policyFS embed.FS

const weightTolerance = 1e-6

// GradeBand maps every composite at or above Min to Grade.
type GradeBand struct {
	Grade string  `yaml:"grade" json:"grade"`
	Min   float64 `yaml:"min" json:"min"`
	Label string  `yaml:"label" json:"label"`
}

// StarBand maps every composite at or above Min to a 1..5 star rating.
type StarBand struct {
	Stars int     `yaml:"stars" json:"stars"`
	Min   float64 `yaml:"min" json:"min"`
}

// ScorerTuning carries the per-dimension reduction constants.
type ScorerTuning struct {
	GoalCompletionBonus  float64 `yaml:"goal_completion_bonus" json:"goalCompletionBonus"`
	FeedbackHalfLifeDays float64 `yaml:"feedback_half_life_days" json:"feedbackHalfLifeDays"`
	ConsistencyPenalty   float64 `yaml:"consistency_penalty" json:"consistencyPenalty"`
	CollaborationTrim    float64 `yaml:"collaboration_trim" json:"collaborationTrim"`
	GrowthWeight         float64 `yaml:"growth_weight" json:"growthWeight"`
	InnovationTopK       int     `yaml:"innovation_top_k" json:"innovationTopK"`
}

// Policy is the evaluation configuration. It is validated once when an
// Engine is built and never changes afterwards.
type Policy struct {
	Weights            map[Code]float64 `yaml:"weights" json:"weights"`
	PriorMean          float64          `yaml:"prior_mean" json:"priorMean"`
	SmoothingK         float64          `yaml:"smoothing_k" json:"smoothingK"`
	ConfidenceK        float64          `yaml:"confidence_k" json:"confidenceK"`
	Epsilon            float64          `yaml:"epsilon" json:"epsilon"`
	MaxSpread          float64          `yaml:"max_spread" json:"maxSpread"`
	TrajectoryDeadBand float64          `yaml:"trajectory_dead_band" json:"trajectoryDeadBand"`
	TrajectoryWindow   int              `yaml:"trajectory_window" json:"trajectoryWindow"`
	Grades             []GradeBand      `yaml:"grades" json:"grades"`
	Stars              []StarBand       `yaml:"stars" json:"stars"`
	Scorers            ScorerTuning     `yaml:"scorers" json:"scorers"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	data, err := policyFS.ReadFile("policy/default.yaml")
	if err != nil {
		panic(fmt.Sprintf("cpis: embedded policy missing: %v", err))
	}
	p, err := ParsePolicy(data)
	if err != nil {
		panic(fmt.Sprintf("cpis: embedded policy invalid: %v", err))
	}
	return p
}

// ParsePolicy decodes a full YAML policy document.
func ParsePolicy(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("cpis.ParsePolicy: %w", err)
	}
	return p, nil
}

// LoadPolicyFile overlays the YAML file at path on DefaultPolicy. Weights
// given in the file replace the default weight table as a whole.
func LoadPolicyFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("cpis.LoadPolicyFile: %w", err)
	}
	var probe struct {
		Weights map[Code]float64 `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Policy{}, fmt.Errorf("cpis.LoadPolicyFile: parse %q: %w", path, err)
	}
	p := DefaultPolicy()
	if len(probe.Weights) > 0 {
		p.Weights = nil
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("cpis.LoadPolicyFile: parse %q: %w", path, err)
	}
	return p, nil
}

// Validate checks the policy and returns an error wrapping ErrInvalidPolicy.
func (p Policy) Validate() error {
	if len(p.Weights) != DimensionCount {
		return policyError("weight table defines %d dimensions, want %d", len(p.Weights), DimensionCount)
	}
	sum := 0.0
	for code, w := range p.Weights {
		if !code.Valid() {
			return policyError("weight table has unknown dimension %q", code)
		}
		if math.IsNaN(w) || w < 0 || w > 1 {
			return policyError("weight for %s must be within [0,1], got %v", code, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return policyError("weights sum to %.8f, must sum to 1", sum)
	}
	if p.PriorMean < 0 || p.PriorMean > 100 {
		return policyError("prior_mean must be within [0,100]")
	}
	if p.SmoothingK <= 0 {
		return policyError("smoothing_k must be positive")
	}
	if p.ConfidenceK <= 0 {
		return policyError("confidence_k must be positive")
	}
	if p.Epsilon <= 0 {
		return policyError("epsilon must be positive")
	}
	if p.MaxSpread < 0 || p.MaxSpread > 100 {
		return policyError("max_spread must be within [0,100]")
	}
	if p.TrajectoryDeadBand < 0 {
		return policyError("trajectory_dead_band must not be negative")
	}
	if p.TrajectoryWindow < 0 {
		return policyError("trajectory_window must not be negative")
	}
	if err := validateGrades(p.Grades); err != nil {
		return err
	}
	if err := validateStars(p.Stars); err != nil {
		return err
	}
	return p.Scorers.validate()
}

func validateGrades(bands []GradeBand) error {
	if len(bands) == 0 {
		return policyError("grade table is empty")
	}
	known := map[string]bool{
		GradeAPlus: true, GradeA: true, GradeBPlus: true, GradeB: true,
		GradeCPlus: true, GradeC: true, GradeD: true, GradeF: true,
	}
	seen := map[string]bool{}
	for i, band := range bands {
		if !known[band.Grade] {
			return policyError("unknown grade %q", band.Grade)
		}
		if seen[band.Grade] {
			return policyError("grade %q listed twice", band.Grade)
		}
		seen[band.Grade] = true
		if i > 0 && band.Min >= bands[i-1].Min {
			return policyError("grade thresholds must be strictly descending at %q", band.Grade)
		}
	}
	if bands[len(bands)-1].Min > 0 {
		return policyError("lowest grade threshold must be 0 so every score is graded")
	}
	return nil
}

func validateStars(bands []StarBand) error {
	if len(bands) == 0 {
		return policyError("star table is empty")
	}
	for i, band := range bands {
		if band.Stars < 1 || band.Stars > 5 {
			return policyError("star rating %d outside 1..5", band.Stars)
		}
		if i > 0 && (band.Min >= bands[i-1].Min || band.Stars >= bands[i-1].Stars) {
			return policyError("star thresholds must be strictly descending")
		}
	}
	if bands[len(bands)-1].Min > 0 {
		return policyError("lowest star threshold must be 0")
	}
	return nil
}

func (t ScorerTuning) validate() error {
	switch {
	case t.GoalCompletionBonus < 0:
		return policyError("goal_completion_bonus must not be negative")
	case t.FeedbackHalfLifeDays <= 0:
		return policyError("feedback_half_life_days must be positive")
	case t.ConsistencyPenalty < 0 || t.ConsistencyPenalty > 1:
		return policyError("consistency_penalty must be within [0,1]")
	case t.CollaborationTrim < 0 || t.CollaborationTrim >= 0.5:
		return policyError("collaboration_trim must be within [0,0.5)")
	case t.GrowthWeight < 0:
		return policyError("growth_weight must not be negative")
	case t.InnovationTopK < 1:
		return policyError("innovation_top_k must be at least 1")
	}
	return nil
}

func (p Policy) clone() Policy {
	out := p
	out.Weights = make(map[Code]float64, len(p.Weights))
	for code, w := range p.Weights {
		out.Weights[code] = w
	}
	out.Grades = append([]GradeBand(nil), p.Grades...)
	out.Stars = append([]StarBand(nil), p.Stars...)
	return out
}
