// internal/diagnosis/engine/differential.go
package engine

import (
	"sort"

	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

// wantsDifferential reports whether the outcome calls for a differential
// between rank 1 and rank 2.
func wantsDifferential(o ConfidenceOutcome, r *Ranking, cfg Config) bool {
	if _, ok := r.At(2); !ok {
		return false
	}
	switch o.Reason {
	case ReasonCloseAlternatives:
		return true
	case ReasonBelowThreshold:
		return cfg.DifferentialOnLowConfidence
	}
	return false
}

// buildDifferential contrasts primary p with alternative a. input is the
// normalized symptom set.
func buildDifferential(p, a ConditionScore, pc, ac knowledgebase.Condition, input []string, maxClarify int) *DifferentialResult {
	reported := make(map[string]bool, len(input))
	for _, s := range input {
		reported[s] = true
	}

	d := &DifferentialResult{
		PrimaryID:                    p.ConditionID,
		PrimaryName:                  p.Name,
		AlternativeID:                a.ConditionID,
		AlternativeName:              a.Name,
		PrimaryScore:                 p.FinalScore,
		AlternativeScore:             a.FinalScore,
		ScoreGap:                     p.FinalScore - a.FinalScore,
		SharedSymptoms:               []string{},
		DistinguishingForPrimary:     []string{},
		DistinguishingForAlternative: []string{},
	}

	for _, s := range pc.Symptoms {
		if ac.HasSymptom(s) {
			d.SharedSymptoms = append(d.SharedSymptoms, s)
		} else if reported[s] {
			d.DistinguishingForPrimary = append(d.DistinguishingForPrimary, s)
		}
	}
	for _, s := range ac.Symptoms {
		if !pc.HasSymptom(s) && reported[s] {
			d.DistinguishingForAlternative = append(d.DistinguishingForAlternative, s)
		}
	}

	d.ClarificationSymptoms = clarificationSymptoms(pc, ac, reported, maxClarify)
	d.Explanation = RenderDifferential(d)
	return d
}

type clarifyCandidate struct {
	symptom        string
	discriminating bool
	shift          float64
}

// clarificationSymptoms lists unreported symptoms of either condition.
// Symptoms in exactly one set come first, then those whose confirmation
// would move an overlap ratio the most, then by name.
func clarificationSymptoms(pc, ac knowledgebase.Condition, reported map[string]bool, limit int) []string {
	var cands []clarifyCandidate
	seen := map[string]bool{}

	consider := func(s string) {
		if reported[s] || seen[s] {
			return
		}
		seen[s] = true
		inP, inA := pc.HasSymptom(s), ac.HasSymptom(s)
		c := clarifyCandidate{symptom: s, discriminating: inP != inA}
		if inP {
			c.shift = 1 / float64(len(pc.Symptoms))
		}
		if inA {
			if shift := 1 / float64(len(ac.Symptoms)); shift > c.shift {
				c.shift = shift
			}
		}
		cands = append(cands, c)
	}
	for _, s := range pc.Symptoms {
		consider(s)
	}
	for _, s := range ac.Symptoms {
		consider(s)
	}

	sortClarifyCandidates(cands)

	out := make([]string, 0, len(cands))
	for _, c := range cands {
		if len(out) == limit {
			break
		}
		out = append(out, c.symptom)
	}
	return out
}

func sortClarifyCandidates(cands []clarifyCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.discriminating != b.discriminating {
			return a.discriminating
		}
		if a.shift != b.shift {
			return a.shift > b.shift
		}
		return a.symptom < b.symptom
	})
}
