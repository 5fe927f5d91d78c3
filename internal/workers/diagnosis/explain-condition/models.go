package explaincondition

import (
	"diagnosis-workers/internal/common/validation"
	"diagnosis-workers/internal/diagnosis/service"
)

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["conditionId"],
	"properties": {
		"conditionId": {"type": "string", "minLength": 1}
	}
}`)

type Input struct {
	ConditionID string `json:"conditionId"`
}

type Output struct {
	Condition *service.ConditionDetail `json:"condition"`
}
