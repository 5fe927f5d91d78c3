package recommendcare

import (
	"diagnosis-workers/internal/common/validation"
	"diagnosis-workers/internal/diagnosis/service"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

var inputSchema = validation.MustCompile(jobvars.RequestSchema)

type Input struct {
	jobvars.Request
}

// Output flattens the fields the process model routes on next to the full
// recommendation.
type Output struct {
	DiagnosisID    string                  `json:"diagnosisId,omitempty"`
	ConditionID    string                  `json:"conditionId,omitempty"`
	TopCondition   string                  `json:"topCondition,omitempty"`
	Urgency        service.Urgency         `json:"urgency"`
	Specialist     string                  `json:"specialist,omitempty"`
	Escalate       bool                    `json:"escalate"`
	Recommendation *service.Recommendation `json:"recommendation"`
}

func newOutput(r *service.Recommendation) *Output {
	return &Output{
		DiagnosisID:    r.DiagnosisID,
		ConditionID:    r.ConditionID,
		TopCondition:   r.TopCondition,
		Urgency:        r.Urgency,
		Specialist:     r.Specialist,
		Escalate:       r.Escalate(),
		Recommendation: r,
	}
}
