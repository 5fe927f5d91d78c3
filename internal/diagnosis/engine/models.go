// internal/diagnosis/engine/models.go
package engine

import (
	"encoding/json"
	"fmt"
)

// SymptomInput is the raw symptom report. In JSON it is either a delimited
// string ("fever, cough") or an array of phrases.
type SymptomInput []string

func (s *SymptomInput) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = SplitSymptoms(text)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("symptoms must be a string or an array of strings")
	}
	*s = list
	return nil
}

// PatientContext is intake data carried through to the response. The
// pipeline never reads it.
type PatientContext struct {
	AgeYears       *int     `json:"age,omitempty"`
	WeightKg       *float64 `json:"weight,omitempty"`
	PastConditions []string `json:"past_conditions,omitempty"`
	Allergies      []string `json:"allergies,omitempty"`
	LastMealTime   string   `json:"last_meal_time,omitempty"`
	LastMealType   string   `json:"last_meal_type,omitempty"`
	WaterIntake    string   `json:"water_intake,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Answer is a reply to a clarifying question.
type Answer struct {
	Kind      QuestionKind `json:"kind"`
	Symptom   string       `json:"symptom,omitempty"`
	FieldName string       `json:"field_name,omitempty"`
	Value     string       `json:"value"`
}

// Request is one diagnosis request. DurationDays nil means the duration was
// not reported.
type Request struct {
	Symptoms       SymptomInput    `json:"symptoms"`
	DurationDays   *int            `json:"duration_days,omitempty"`
	Region         string          `json:"region,omitempty"`
	PatientContext *PatientContext `json:"patient_context,omitempty"`
	Answers        []Answer        `json:"answers,omitempty"`
}

// SymptomContribution is one matched symptom's share of a final score.
type SymptomContribution struct {
	Symptom string  `json:"symptom"`
	Text    float64 `json:"text"`
	Overlap float64 `json:"overlap"`
	Total   float64 `json:"total"`
}

// ConditionScore is the scored match of the report against one condition.
type ConditionScore struct {
	ConditionID       string                `json:"condition_id"`
	Name              string                `json:"name"`
	TextSimilarity    float64               `json:"text_similarity"`
	TextWeight        float64               `json:"text_weight"`
	OverlapRatio      float64               `json:"overlap_ratio"`
	OverlapWeight     float64               `json:"overlap_weight"`
	FinalScore        float64               `json:"final_score"`
	MatchedSymptoms   []string              `json:"matched_symptoms"`
	UnmatchedSymptoms []string              `json:"unmatched_symptoms"`
	Contributions     []SymptomContribution `json:"contributions,omitempty"`
	Rank              int                   `json:"rank"`
}

func (s ConditionScore) TextComponent() float64    { return s.TextWeight * s.TextSimilarity }
func (s ConditionScore) OverlapComponent() float64 { return s.OverlapWeight * s.OverlapRatio }

// Reason explains a confidence outcome.
type Reason string

const (
	ReasonBelowThreshold    Reason = "BELOW_THRESHOLD"
	ReasonCloseAlternatives Reason = "CLOSE_ALTERNATIVES"
	ReasonNone              Reason = "NONE"
)

// QuestionKind classifies a clarifying question.
type QuestionKind string

const (
	QuestionConfirmSymptom QuestionKind = "CONFIRM_SYMPTOM"
	QuestionSeverity       QuestionKind = "SEVERITY"
	QuestionTimeline       QuestionKind = "TIMELINE"
	QuestionDifferential   QuestionKind = "DIFFERENTIAL"
	QuestionFreeText       QuestionKind = "FREE_TEXT"
)

// ClarifyingQuestion is a structured follow-up prompt.
type ClarifyingQuestion struct {
	Kind            QuestionKind `json:"kind"`
	Prompt          string       `json:"prompt"`
	RelatedSymptoms []string     `json:"related_symptoms,omitempty"`
	ConditionID     string       `json:"condition_id,omitempty"`
	FieldName       string       `json:"field_name,omitempty"`
	Required        bool         `json:"required"`
}

// ConfidenceOutcome is the decision taken over a ranking.
type ConfidenceOutcome struct {
	NeedsClarification  bool                 `json:"needs_clarification"`
	Reason              Reason               `json:"reason"`
	Primary             ConditionScore       `json:"primary_candidate"`
	Alternatives        []ConditionScore     `json:"alternatives"`
	ClarifyingQuestions []ClarifyingQuestion `json:"clarifying_questions,omitempty"`
	NextStep            string               `json:"next_step"`
}

// DifferentialSet returns the primary followed by every alternative.
func (o ConfidenceOutcome) DifferentialSet() []ConditionScore {
	out := make([]ConditionScore, 0, len(o.Alternatives)+1)
	out = append(out, o.Primary)
	return append(out, o.Alternatives...)
}

// DifferentialResult contrasts the primary with its closest alternative.
type DifferentialResult struct {
	PrimaryID                    string   `json:"primary_id"`
	PrimaryName                  string   `json:"primary_name"`
	AlternativeID                string   `json:"alternative_id"`
	AlternativeName              string   `json:"alternative_name"`
	PrimaryScore                 float64  `json:"primary_score"`
	AlternativeScore             float64  `json:"alternative_score"`
	ScoreGap                     float64  `json:"score_gap"`
	SharedSymptoms               []string `json:"shared_symptoms"`
	DistinguishingForPrimary     []string `json:"distinguishing_for_primary"`
	DistinguishingForAlternative []string `json:"distinguishing_for_alternative"`
	ClarificationSymptoms        []string `json:"clarification_symptoms"`
	Explanation                  string   `json:"explanation"`
}

// DurationFlag marks which bound a reported duration fell outside.
type DurationFlag string

const (
	DurationEarly     DurationFlag = "EARLY"
	DurationProlonged DurationFlag = "PROLONGED"
)

// FeatureImportance ranks one matched symptom within a condition.
type FeatureImportance struct {
	Symptom      string  `json:"symptom"`
	Importance   float64 `json:"importance"`
	Contribution string  `json:"contribution"`
}

// Explanation is the per-condition XAI view of a score.
type Explanation struct {
	ConditionID        string              `json:"condition_id"`
	ConditionName      string              `json:"condition_name"`
	Rank               int                 `json:"rank"`
	ConfidencePercent  float64             `json:"confidence_percent"`
	ConfidenceLevel    string              `json:"confidence_level"`
	TextComponent      float64             `json:"text_component"`
	OverlapComponent   float64             `json:"overlap_component"`
	CoveragePercent    float64             `json:"coverage_percent"`
	FeatureImportance  []FeatureImportance `json:"feature_importance"`
	MatchedSymptoms    []string            `json:"matched_symptoms"`
	UnmatchedSymptoms  []string            `json:"unmatched_symptoms"`
	MainReason         string              `json:"main_reason"`
	TextExplanation    string              `json:"text_explanation"`
	OverlapExplanation string              `json:"overlap_explanation"`
	ComparedToPrevious string              `json:"compared_to_previous,omitempty"`
	Summary            string              `json:"summary"`
}

// Result is the full response of one diagnosis.
type Result struct {
	NormalizedSymptoms   []string            `json:"normalized_symptoms"`
	UnrecognizedSymptoms []string            `json:"unrecognized_symptoms,omitempty"`
	Ranking              []ConditionScore    `json:"ranking"`
	TotalCandidates      int                 `json:"total_candidates"`
	Confidence           ConfidenceOutcome   `json:"confidence"`
	Differential         *DifferentialResult `json:"differential,omitempty"`
	DurationDays         *int                `json:"duration_days,omitempty"`
	DurationWarning      string              `json:"duration_warning,omitempty"`
	DurationFlag         DurationFlag        `json:"duration_flag,omitempty"`
	Explanations         []Explanation       `json:"explanations"`
	Region               string              `json:"region,omitempty"`
	PatientContext       *PatientContext     `json:"patient_context,omitempty"`
	Answers              []Answer            `json:"answers,omitempty"`
}

// Analysis types reported to callers.
const (
	AnalysisStandard            = "standard"
	AnalysisClarificationNeeded = "clarification_needed"
)

// AnalysisType is "standard" or "clarification_needed".
func (r *Result) AnalysisType() string {
	if r.Confidence.NeedsClarification {
		return AnalysisClarificationNeeded
	}
	return AnalysisStandard
}
