// internal/diagnosis/engine/explainer.go
package engine

import (
	"math"
	"sort"
)

// Contribution tiers for feature importance.
const (
	TierHigh   = "High"
	TierMedium = "Medium"
	TierLow    = "Low"
)

// ConfidenceLevel buckets a final score.
func ConfidenceLevel(score float64) string {
	switch {
	case score >= 0.8:
		return "Very High"
	case score >= 0.6:
		return "High"
	case score >= 0.4:
		return "Moderate"
	case score >= 0.2:
		return "Low"
	default:
		return "Very Low"
	}
}

// explain builds one Explanation per score. It never writes to scores.
// describe returns the catalog explanation text for a condition id.
func explain(scores []ConditionScore, describe func(id string) string) []Explanation {
	out := make([]Explanation, len(scores))
	for i, s := range scores {
		e := explainOne(s)
		e.MainReason = RenderMainReason(s)
		e.TextExplanation = RenderTextSimilarity(s.TextSimilarity)
		e.OverlapExplanation = RenderOverlap(s)
		e.Summary = RenderSummary(s, describe(s.ConditionID))
		if i > 0 {
			e.ComparedToPrevious = RenderScoreDifference(s, scores[i-1])
		}
		out[i] = e
	}
	return out
}

func explainOne(s ConditionScore) Explanation {
	total := len(s.MatchedSymptoms) + len(s.UnmatchedSymptoms)
	var coverage float64
	if total > 0 {
		coverage = round1(float64(len(s.MatchedSymptoms)) / float64(total) * 100)
	}

	return Explanation{
		ConditionID:       s.ConditionID,
		ConditionName:     s.Name,
		Rank:              s.Rank,
		ConfidencePercent: round1(s.FinalScore * 100),
		ConfidenceLevel:   ConfidenceLevel(s.FinalScore),
		TextComponent:     s.TextComponent(),
		OverlapComponent:  s.OverlapComponent(),
		CoveragePercent:   coverage,
		FeatureImportance: featureImportance(s.Contributions),
		MatchedSymptoms:   append([]string{}, s.MatchedSymptoms...),
		UnmatchedSymptoms: append([]string{}, s.UnmatchedSymptoms...),
	}
}

// featureImportance orders symptoms by contribution and tiers them by
// position: the top third is High, the next third Medium, the rest Low.
func featureImportance(contribs []SymptomContribution) []FeatureImportance {
	if len(contribs) == 0 {
		return []FeatureImportance{}
	}

	sorted := append([]SymptomContribution(nil), contribs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Total != sorted[j].Total {
			return sorted[i].Total > sorted[j].Total
		}
		return sorted[i].Symptom < sorted[j].Symptom
	})

	var sum float64
	for _, c := range sorted {
		sum += c.Total
	}

	n := len(sorted)
	highCut := int(math.Ceil(float64(n) / 3))
	mediumCut := int(math.Ceil(2 * float64(n) / 3))

	out := make([]FeatureImportance, n)
	for i, c := range sorted {
		tier := TierLow
		switch {
		case i < highCut:
			tier = TierHigh
		case i < mediumCut:
			tier = TierMedium
		}
		var importance float64
		if sum > 0 {
			importance = c.Total / sum
		}
		out[i] = FeatureImportance{Symptom: c.Symptom, Importance: importance, Contribution: tier}
	}
	return out
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
