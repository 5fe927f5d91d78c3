// internal/diagnosis/engine/config.go
package engine

import (
	"fmt"
	"math"

	"diagnosis-workers/internal/common/config"
)

// AnswerPolicy decides what happens to clarifying answers on resubmission.
type AnswerPolicy string

const (
	// AnswerPolicyContextOnly carries answers through for display only.
	AnswerPolicyContextOnly AnswerPolicy = "context_only"
	// AnswerPolicyRefine adds affirmed symptoms to the report before scoring.
	AnswerPolicyRefine AnswerPolicy = "refine"
)

// scoreEpsilon absorbs float noise at the threshold and range boundaries,
// so 0.55-0.50 still counts as a gap of exactly 0.05.
const scoreEpsilon = 1e-9

// Config holds the tunable constants of the pipeline.
type Config struct {
	TextWeight          float64
	OverlapWeight       float64
	MinimumRelevance    float64
	ConfidenceThreshold float64
	DifferentialRange   float64

	// DifferentialOnLowConfidence also builds a differential when the
	// primary is below threshold and a second candidate exists.
	DifferentialOnLowConfidence bool

	// MaxResults caps the ranking returned to callers; 0 returns all.
	MaxResults               int
	// The two question caps must be at least 1.
	MaxClarificationSymptoms int
	MaxConfirmQuestions      int
	IncludeIntakeQuestions   bool

	// ChronicShortFactor scales DurationMin to the point below which a
	// chronic condition still gets an "unusually early" warning.
	ChronicShortFactor float64

	AnswerPolicy AnswerPolicy
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		TextWeight:                  0.60,
		OverlapWeight:               0.40,
		MinimumRelevance:            0.10,
		ConfidenceThreshold:         0.50,
		DifferentialRange:           0.05,
		DifferentialOnLowConfidence: true,
		MaxResults:                  5,
		MaxClarificationSymptoms:    4,
		MaxConfirmQuestions:         3,
		IncludeIntakeQuestions:      true,
		ChronicShortFactor:          0.25,
		AnswerPolicy:                AnswerPolicyContextOnly,
	}
}

// FromScoring maps the scoring section of the application config.
func FromScoring(s config.ScoringConfig) Config {
	return Config{
		TextWeight:                  s.TextWeight,
		OverlapWeight:               s.OverlapWeight,
		MinimumRelevance:            s.MinimumRelevance,
		ConfidenceThreshold:         s.ConfidenceThreshold,
		DifferentialRange:           s.DifferentialRange,
		DifferentialOnLowConfidence: s.DifferentialOnLowConfidence,
		MaxResults:                  s.MaxResults,
		MaxClarificationSymptoms:    s.MaxClarificationSymptoms,
		MaxConfirmQuestions:         s.MaxConfirmQuestions,
		IncludeIntakeQuestions:      s.IncludeIntakeQuestions,
		ChronicShortFactor:          s.ChronicShortFactor,
		AnswerPolicy:                AnswerPolicy(s.AnswerPolicy),
	}
}

// Validate checks weights sum to 1 and every ratio lies in [0,1].
func (c Config) Validate() error {
	ratios := []struct {
		name string
		val  float64
	}{
		{"text weight", c.TextWeight},
		{"overlap weight", c.OverlapWeight},
		{"minimum relevance", c.MinimumRelevance},
		{"confidence threshold", c.ConfidenceThreshold},
		{"differential range", c.DifferentialRange},
		{"chronic short factor", c.ChronicShortFactor},
	}
	for _, r := range ratios {
		if math.IsNaN(r.val) || r.val < 0 || r.val > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", r.name, r.val)
		}
	}
	if math.Abs(c.TextWeight+c.OverlapWeight-1) > scoreEpsilon {
		return fmt.Errorf("text and overlap weights must sum to 1, got %v", c.TextWeight+c.OverlapWeight)
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("max results must not be negative, got %d", c.MaxResults)
	}
	if c.MaxClarificationSymptoms < 1 || c.MaxConfirmQuestions < 1 {
		return fmt.Errorf("clarification and confirm question caps must be positive, got %d and %d",
			c.MaxClarificationSymptoms, c.MaxConfirmQuestions)
	}
	switch c.AnswerPolicy {
	case AnswerPolicyContextOnly, AnswerPolicyRefine:
	default:
		return fmt.Errorf("unknown answer policy %q", c.AnswerPolicy)
	}
	return nil
}
