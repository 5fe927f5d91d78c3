package compareconditions

import (
	"diagnosis-workers/internal/common/validation"
	"diagnosis-workers/internal/diagnosis/service"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

var inputSchema = validation.MustCompile(jobvars.RequestSchema)

type Input struct {
	jobvars.Request
}

type Output struct {
	DiagnosisID       string              `json:"diagnosisId"`
	TopConditionID    string              `json:"topConditionId"`
	AlternativeCount  int                 `json:"alternativeCount"`
	HasCounterfactual bool                `json:"hasCounterfactual"`
	Comparison        *service.Comparison `json:"comparison"`
}
