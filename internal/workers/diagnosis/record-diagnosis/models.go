package recorddiagnosis

import (
	"encoding/json"

	"diagnosis-workers/internal/common/validation"
	"diagnosis-workers/internal/diagnosis/engine"
)

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["diagnosisId", "primaryConditionId"],
	"properties": {
		"diagnosisId": {"type": "string", "minLength": 1},
		"primaryConditionId": {"type": "string", "minLength": 1},
		"primaryScore": {"type": "number", "minimum": 0, "maximum": 1},
		"confidenceReason": {"type": "string"},
		"needsClarification": {"type": "boolean"},
		"symptoms": {"type": ["string", "array"], "items": {"type": "string"}},
		"durationDays": {"type": ["integer", "null"]},
		"urgency": {"type": "string"},
		"diagnosis": {"type": "object"}
	}
}`)

// Input is the output of diagnose-symptoms, optionally merged with the
// urgency from recommend-care.
type Input struct {
	DiagnosisID        string              `json:"diagnosisId"`
	PrimaryConditionID string              `json:"primaryConditionId"`
	PrimaryScore       float64             `json:"primaryScore"`
	ConfidenceReason   string              `json:"confidenceReason"`
	NeedsClarification bool                `json:"needsClarification"`
	Symptoms           engine.SymptomInput `json:"symptoms"`
	DurationDays       *int                `json:"durationDays,omitempty"`
	Urgency            string              `json:"urgency,omitempty"`
	Diagnosis          json.RawMessage     `json:"diagnosis,omitempty"`
}

type Output struct {
	RecordID string `json:"recordId"`
	Recorded bool   `json:"recorded"`
}
