// internal/diagnosis/engine/questions.go
package engine

import (
	"fmt"

	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

// intakeField is a structured free-text field the caller may capture.
type intakeField struct {
	name   string
	prompt string
}

var intakeFields = []intakeField{
	{"last_meal_time", "When did you last eat?"},
	{"last_meal_type", "What did you eat at your last meal?"},
	{"water_intake", "How much water have you had today?"},
	{"age", "What is your age in years?"},
	{"weight", "What is your weight in kilograms?"},
	{"past_conditions", "List any past medical conditions."},
	{"allergies", "List any known allergies."},
}

// questionInput gathers what the generator reads.
type questionInput struct {
	outcome      ConfidenceOutcome
	differential *DifferentialResult
	symptoms     []string
	hasDuration  bool
	duration     *DurationCheck
	lookup       func(id string) (knowledgebase.Condition, bool)
}

// generateQuestions builds the ordered clarifying questions. It returns nil
// when the outcome does not need clarification.
func generateQuestions(in questionInput, cfg Config) []ClarifyingQuestion {
	if !in.outcome.NeedsClarification {
		return nil
	}

	var qs []ClarifyingQuestion
	primary := in.outcome.Primary

	for _, s := range confirmSymptoms(in, cfg.MaxConfirmQuestions) {
		qs = append(qs, ClarifyingQuestion{
			Kind:            QuestionConfirmSymptom,
			Prompt:          fmt.Sprintf("Do you have %s?", s),
			RelatedSymptoms: []string{s},
			Required:        true,
		})
	}

	if s := severitySymptom(primary, in.symptoms); s != "" {
		qs = append(qs, ClarifyingQuestion{
			Kind:            QuestionSeverity,
			Prompt:          fmt.Sprintf("How severe is your %s: mild, moderate or severe?", s),
			RelatedSymptoms: []string{s},
			ConditionID:     primary.ConditionID,
			Required:        true,
		})
	}

	if !in.hasDuration || in.duration != nil || in.outcome.Reason == ReasonBelowThreshold {
		qs = append(qs, ClarifyingQuestion{
			Kind:     QuestionTimeline,
			Prompt:   "How many days have you had these symptoms, and did they start suddenly or gradually?",
			Required: true,
		})
	}

	pc, pok := in.lookup(primary.ConditionID)
	for _, alt := range in.outcome.Alternatives {
		ac, ok := in.lookup(alt.ConditionID)
		if !ok || !pok {
			continue
		}
		s := distinguishingSymptom(pc, ac, in.symptoms)
		if s == "" {
			continue
		}
		qs = append(qs, ClarifyingQuestion{
			Kind:            QuestionDifferential,
			Prompt:          fmt.Sprintf("Do you have %s? It points towards %s rather than %s.", s, ac.Name, pc.Name),
			RelatedSymptoms: []string{s},
			ConditionID:     ac.ID,
			Required:        true,
		})
	}

	if cfg.IncludeIntakeQuestions {
		for _, f := range intakeFields {
			qs = append(qs, ClarifyingQuestion{
				Kind:      QuestionFreeText,
				Prompt:    f.prompt,
				FieldName: f.name,
			})
		}
	}
	return qs
}

// confirmSymptoms picks the symptoms to confirm: the differential's
// clarification list when there is one, else the primary's unmatched ones.
func confirmSymptoms(in questionInput, limit int) []string {
	var pool []string
	if in.differential != nil {
		pool = in.differential.ClarificationSymptoms
	} else {
		cands := make([]clarifyCandidate, 0, len(in.outcome.Primary.UnmatchedSymptoms))
		size := float64(len(in.outcome.Primary.MatchedSymptoms) + len(in.outcome.Primary.UnmatchedSymptoms))
		for _, s := range in.outcome.Primary.UnmatchedSymptoms {
			cands = append(cands, clarifyCandidate{symptom: s, shift: 1 / size})
		}
		sortClarifyCandidates(cands)
		for _, c := range cands {
			pool = append(pool, c.symptom)
		}
	}
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

// severitySymptom is the matched symptom contributing most to the primary's
// score, or the first reported symptom when nothing matched.
func severitySymptom(primary ConditionScore, symptoms []string) string {
	best := -1.0
	var out string
	for _, c := range primary.Contributions {
		if c.Total > best {
			best = c.Total
			out = c.Symptom
		}
	}
	if out == "" && len(symptoms) > 0 {
		out = symptoms[0]
	}
	return out
}

// distinguishingSymptom returns the first symptom of alt absent from
// primary that the patient has not reported yet, falling back to the first
// such symptom even if reported.
func distinguishingSymptom(primary, alt knowledgebase.Condition, symptoms []string) string {
	reported := make(map[string]bool, len(symptoms))
	for _, s := range symptoms {
		reported[s] = true
	}
	var first string
	for _, s := range alt.Symptoms {
		if primary.HasSymptom(s) {
			continue
		}
		if first == "" {
			first = s
		}
		if !reported[s] {
			return s
		}
	}
	return first
}
