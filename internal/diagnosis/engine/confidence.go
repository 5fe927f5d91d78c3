// internal/diagnosis/engine/confidence.go
package engine

// Advisory next steps per outcome.
const (
	nextStepBelowThreshold = "Answer the clarifying questions or report additional symptoms before relying on this result."
	nextStepClose          = "Several conditions fit similarly well. Answer the clarifying questions to tell them apart."
	nextStepNone           = "Review the primary candidate with a healthcare professional."
)

// decide evaluates the confidence state machine over a ranking. Questions
// are attached later.
func decide(r *Ranking, cfg Config) ConfidenceOutcome {
	primary := r.Primary()
	out := ConfidenceOutcome{
		Primary:      primary,
		Alternatives: alternatives(r, cfg.DifferentialRange),
		Reason:       ReasonNone,
		NextStep:     nextStepNone,
	}

	if primary.FinalScore < cfg.ConfidenceThreshold-scoreEpsilon {
		out.NeedsClarification = true
		out.Reason = ReasonBelowThreshold
		out.NextStep = nextStepBelowThreshold
		return out
	}
	if gap, ok := r.ScoreGap(1); ok && gap <= cfg.DifferentialRange+scoreEpsilon {
		out.NeedsClarification = true
		out.Reason = ReasonCloseAlternatives
		out.NextStep = nextStepClose
	}
	return out
}

// alternatives returns every non-primary score within rng of the primary.
func alternatives(r *Ranking, rng float64) []ConditionScore {
	top := r.Primary().FinalScore
	out := []ConditionScore{}
	for _, s := range r.Scores[1:] {
		if top-s.FinalScore > rng+scoreEpsilon {
			break
		}
		out = append(out, s)
	}
	return out
}
