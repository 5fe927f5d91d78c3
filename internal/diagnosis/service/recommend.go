package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

// Urgency grades how soon a patient should seek care.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
)

// urgentKeywords escalate a report regardless of its score.
var urgentKeywords = []string{"fever", "chest pain", "difficulty breathing", "severe", "emergency"}

const (
	defaultSpecialist       = "General Practitioner"
	defaultSpecialistReason = "Consult with your primary care physician"
	noMatchRecommendation   = "No matching conditions found. Please consult a healthcare provider."
)

type specialistAdvice struct {
	Specialist string
	Reason     string
}

// specialistsByCondition backs catalogs that carry no specialist list.
var specialistsByCondition = map[string]specialistAdvice{
	"common_cold":             {"General Practitioner", "No specialist visit usually needed"},
	"flu":                     {"General Practitioner", "Consult for severe cases"},
	"covid_19":                {"Infectious Disease Specialist", "COVID-19 management and monitoring"},
	"allergies":               {"Allergist/Immunologist", "Allergy testing and management"},
	"asthma":                  {"Pulmonologist", "Respiratory function testing and management"},
	"bronchitis":              {"Pulmonologist", "Airways inflammation treatment"},
	"pneumonia":               {"Pulmonologist", "Chest imaging and antibiotics"},
	"migraine":                {"Neurologist", "Headache management and prevention"},
	"hypertension":            {"Cardiologist", "Blood pressure control and cardiovascular health"},
	"diabetes":                {"Endocrinologist", "Blood glucose management and complications"},
	"gastroenteritis":         {"Gastroenterologist", "GI infection treatment"},
	"urinary_tract_infection": {"Urologist", "Urinary system infection treatment"},
	"anxiety":                 {"Psychiatrist/Psychologist", "Mental health evaluation and therapy"},
	"depression":              {"Psychiatrist/Psychologist", "Mental health evaluation and therapy"},
	"dermatitis":              {"Dermatologist", "Skin condition diagnosis and treatment"},
	"thyroiditis":             {"Endocrinologist", "Thyroid function testing and management"},
}

// Recommendation is the care advice derived from the top-ranked condition.
type Recommendation struct {
	DiagnosisID        string              `json:"diagnosis_id,omitempty"`
	ConditionID        string              `json:"condition_id,omitempty"`
	TopCondition       string              `json:"top_condition,omitempty"`
	Confidence         string              `json:"confidence,omitempty"`
	ConfidenceScore    float64             `json:"confidence_score"`
	Explanation        string              `json:"explanation,omitempty"`
	Urgency            Urgency             `json:"urgency"`
	MatchedSymptoms    []string            `json:"matched_symptoms,omitempty"`
	Specialist         string              `json:"specialist,omitempty"`
	SpecialistReason   string              `json:"specialist_reason,omitempty"`
	Recommendation     string              `json:"recommendation"`
	NeedsClarification bool                `json:"needs_clarification"`
	DurationFlag       engine.DurationFlag `json:"duration_flag,omitempty"`
	DurationWarning    string              `json:"duration_warning,omitempty"`
}

// Escalate reports whether the recommendation warrants notifying on-call
// staff: high urgency or a duration well past the condition's typical course.
func (r *Recommendation) Escalate() bool {
	return r.Urgency == UrgencyHigh || r.DurationFlag == engine.DurationProlonged
}

// Recommend diagnoses req and turns the top condition into care advice.
// A report matching no condition yields a "consult a provider" answer
// rather than an error.
func (s *Service) Recommend(ctx context.Context, req engine.Request) (*Recommendation, error) {
	e, err := s.provider.Engine()
	if err != nil {
		return nil, err
	}

	d, err := s.diagnose(ctx, req)
	if apperrors.HasCode(err, apperrors.ErrCodeEmptyResult) {
		return &Recommendation{Urgency: UrgencyNormal, Recommendation: noMatchRecommendation}, nil
	}
	if err != nil {
		return nil, err
	}

	return buildRecommendation(d, req, e.KnowledgeBase()), nil
}

func buildRecommendation(d *Diagnosis, req engine.Request, kb *knowledgebase.KnowledgeBase) *Recommendation {
	top := d.Confidence.Primary
	cond, _ := kb.Condition(top.ConditionID)
	advice := specialistFor(cond)

	rec := &Recommendation{
		DiagnosisID:        d.DiagnosisID,
		ConditionID:        top.ConditionID,
		TopCondition:       top.Name,
		Confidence:         fmt.Sprintf("%.1f%%", top.FinalScore*100),
		ConfidenceScore:    top.FinalScore,
		Explanation:        cond.Explanation,
		Urgency:            urgencyFor(rawText(req), top.FinalScore),
		MatchedSymptoms:    top.MatchedSymptoms,
		Specialist:         advice.Specialist,
		SpecialistReason:   advice.Reason,
		NeedsClarification: d.Confidence.NeedsClarification,
		DurationFlag:       d.DurationFlag,
		DurationWarning:    d.DurationWarning,
	}
	rec.Recommendation = strings.TrimSpace(
		fmt.Sprintf("Based on your symptoms, %s is likely. %s", top.Name, cond.Explanation))
	return rec
}

func urgencyFor(text string, confidence float64) Urgency {
	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			return UrgencyHigh
		}
	}
	if confidence > 0.5 {
		return UrgencyMedium
	}
	return UrgencyLow
}

func specialistFor(c knowledgebase.Condition) specialistAdvice {
	known, hasKnown := specialistsByCondition[c.ID]
	if len(c.Specialists) > 0 {
		reason := defaultSpecialistReason
		if hasKnown && known.Specialist == c.Specialists[0] {
			reason = known.Reason
		}
		return specialistAdvice{Specialist: c.Specialists[0], Reason: reason}
	}
	if hasKnown {
		return known
	}
	return specialistAdvice{Specialist: defaultSpecialist, Reason: defaultSpecialistReason}
}
