// internal/diagnosis/engine/render.go
package engine

import (
	"fmt"
	"strings"
)

// Rendering turns computed values into display text. Nothing here feeds
// back into scoring.

// RenderMainReason summarizes why a condition scored as it did.
func RenderMainReason(s ConditionScore) string {
	matched := len(s.MatchedSymptoms)
	total := matched + len(s.UnmatchedSymptoms)

	var reasons []string
	switch {
	case s.TextSimilarity > 0.6:
		reasons = append(reasons, "Strong semantic match (your symptoms closely match the description of this condition)")
	case s.TextSimilarity > 0.3:
		reasons = append(reasons, "Moderate semantic match (your symptoms are somewhat similar to this condition)")
	}
	switch {
	case total > 0 && float64(matched) >= float64(total)*0.7:
		reasons = append(reasons, fmt.Sprintf("Most of the key symptoms match (%d/%d)", matched, total))
	case total > 0 && float64(matched) >= float64(total)*0.4:
		reasons = append(reasons, fmt.Sprintf("Several key symptoms match (%d/%d)", matched, total))
	}

	if len(reasons) == 0 {
		return "Symptoms show similarity to this condition"
	}
	return strings.Join(reasons, " and ")
}

// RenderTextSimilarity describes the text component.
func RenderTextSimilarity(sim float64) string {
	switch {
	case sim > 0.7:
		return "Your symptom description closely matches the terms used for this condition"
	case sim > 0.4:
		return "Your symptom description is moderately similar to how this condition is typically described"
	default:
		return "Your symptom description has some similarity to this condition"
	}
}

// RenderOverlap describes the overlap component.
func RenderOverlap(s ConditionScore) string {
	matched := len(s.MatchedSymptoms)
	total := matched + len(s.UnmatchedSymptoms)
	switch {
	case s.OverlapRatio > 0.7:
		return fmt.Sprintf("Most symptoms match: %d out of %d key symptoms are present in your report", matched, total)
	case s.OverlapRatio > 0.4:
		return fmt.Sprintf("Good overlap: %d out of %d key symptoms match your symptoms", matched, total)
	default:
		return fmt.Sprintf("Partial match: %d out of %d key symptoms are present", matched, total)
	}
}

// RenderSummary is the plain-language summary of one condition.
func RenderSummary(s ConditionScore, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s appears to match your symptoms with %.0f%% confidence (text %.2f, overlap %.2f).",
		s.Name, s.FinalScore*100, s.TextComponent(), s.OverlapComponent())

	if n := len(s.MatchedSymptoms); n > 0 {
		fmt.Fprintf(&b, " You reported %d symptoms typical of %s: %s", n, s.Name, joinFirst(s.MatchedSymptoms, 3))
		b.WriteString(".")
	}
	if n := len(s.UnmatchedSymptoms); n > 0 {
		fmt.Fprintf(&b, " Not reported: %s.", joinFirst(s.UnmatchedSymptoms, 3))
	}
	if description != "" {
		b.WriteString(" ")
		b.WriteString(description)
	}
	return b.String()
}

// RenderScoreDifference compares a condition with the one ranked above it.
func RenderScoreDifference(s, above ConditionScore) string {
	return fmt.Sprintf("%s scored %.1f%% higher than %s", above.Name, (above.FinalScore-s.FinalScore)*100, s.Name)
}

// RenderDifferential explains a differential result.
func RenderDifferential(d *DifferentialResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%.0f%%) scores %.1f percentage points above %s (%.0f%%).",
		d.PrimaryName, d.PrimaryScore*100, d.ScoreGap*100, d.AlternativeName, d.AlternativeScore*100)

	if len(d.SharedSymptoms) > 0 {
		fmt.Fprintf(&b, " Both share %s.", strings.Join(d.SharedSymptoms, ", "))
	}
	if len(d.DistinguishingForPrimary) > 0 {
		fmt.Fprintf(&b, " You reported %s, which points to %s.", strings.Join(d.DistinguishingForPrimary, ", "), d.PrimaryName)
	}
	if len(d.DistinguishingForAlternative) > 0 {
		fmt.Fprintf(&b, " You reported %s, which points to %s.", strings.Join(d.DistinguishingForAlternative, ", "), d.AlternativeName)
	}
	if len(d.ClarificationSymptoms) > 0 {
		fmt.Fprintf(&b, " Confirming whether you have %s would help tell them apart.", strings.Join(d.ClarificationSymptoms, ", "))
	}
	return b.String()
}

func joinFirst(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s, and %d more", strings.Join(items[:n], ", "), len(items)-n)
}
