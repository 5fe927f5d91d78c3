package diagnosesymptoms

import (
	"diagnosis-workers/internal/common/validation"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/service"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

// inputSchema accepts either a fresh report or a sessionId with answers.
var inputSchema = validation.MustCompile(`{
	"type": "object",
	"anyOf": [
		{"required": ["symptoms"]},
		{"required": ["sessionId", "answers"]}
	],
	"properties": {
		"symptoms": {"type": ["string", "array"], "items": {"type": "string"}},
		"durationDays": {"type": ["integer", "null"]},
		"sessionId": {"type": "string"},
		"answers": {"type": "array", "items": {"type": "object", "required": ["kind", "value"]}}
	}
}`)

var requestSchema = validation.MustCompile(jobvars.RequestSchema)

type Input struct {
	jobvars.Request
	SessionID string `json:"sessionId,omitempty"`
}

// Resubmission reports whether the job answers an open clarification
// session rather than starting a new diagnosis.
func (i *Input) Resubmission() bool {
	return i.SessionID != "" && len(i.Answers) > 0
}

type Output struct {
	DiagnosisID          string                      `json:"diagnosisId"`
	AnalysisType         string                      `json:"analysisType"`
	SessionID            string                      `json:"sessionId,omitempty"`
	NeedsClarification   bool                        `json:"needsClarification"`
	ConfidenceReason     engine.Reason               `json:"confidenceReason"`
	PrimaryConditionID   string                      `json:"primaryConditionId"`
	PrimaryConditionName string                      `json:"primaryConditionName"`
	PrimaryScore         float64                     `json:"primaryScore"`
	ClarifyingQuestions  []engine.ClarifyingQuestion `json:"clarifyingQuestions,omitempty"`
	UnrecognizedSymptoms []string                    `json:"unrecognizedSymptoms,omitempty"`
	DurationFlag         engine.DurationFlag         `json:"durationFlag,omitempty"`
	Diagnosis            *service.Diagnosis          `json:"diagnosis"`
}

func newOutput(d *service.Diagnosis) *Output {
	primary := d.Confidence.Primary
	return &Output{
		DiagnosisID:          d.DiagnosisID,
		AnalysisType:         d.AnalysisType,
		SessionID:            d.SessionID,
		NeedsClarification:   d.Confidence.NeedsClarification,
		ConfidenceReason:     d.Confidence.Reason,
		PrimaryConditionID:   primary.ConditionID,
		PrimaryConditionName: primary.Name,
		PrimaryScore:         primary.FinalScore,
		ClarifyingQuestions:  d.Confidence.ClarifyingQuestions,
		UnrecognizedSymptoms: d.UnrecognizedSymptoms,
		DurationFlag:         d.DurationFlag,
		Diagnosis:            d,
	}
}
