// Package jobvars decodes and encodes the process variables shared by the
// diagnosis workers.
package jobvars

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"

	"diagnosis-workers/internal/common/config"
	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/validation"
	"diagnosis-workers/internal/diagnosis/engine"
)

// RequestSchema validates a symptom report in process variables.
const RequestSchema = `{
	"type": "object",
	"required": ["symptoms"],
	"properties": {
		"symptoms": {
			"type": ["string", "array"],
			"items": {"type": "string"}
		},
		"durationDays": {"type": ["integer", "null"]},
		"region": {"type": "string"},
		"patientContext": {"type": ["object", "null"]},
		"answers": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["kind", "value"],
				"properties": {
					"kind": {"enum": ["CONFIRM_SYMPTOM", "SEVERITY", "TIMELINE", "DIFFERENTIAL", "FREE_TEXT"]},
					"symptom": {"type": "string"},
					"field_name": {"type": "string"},
					"value": {"type": "string"}
				}
			}
		}
	}
}`

// Request is a symptom report as carried by a process instance.
type Request struct {
	Symptoms       engine.SymptomInput    `json:"symptoms"`
	DurationDays   *int                   `json:"durationDays,omitempty"`
	Region         string                 `json:"region,omitempty"`
	PatientContext *engine.PatientContext `json:"patientContext,omitempty"`
	Answers        []engine.Answer        `json:"answers,omitempty"`
}

func (r Request) EngineRequest() engine.Request {
	return engine.Request{
		Symptoms:       r.Symptoms,
		DurationDays:   r.DurationDays,
		Region:         r.Region,
		PatientContext: r.PatientContext,
		Answers:        r.Answers,
	}
}

// Decode validates the job's variables against schema and unmarshals them
// into out.
func Decode(job entities.Job, schema *validation.Schema, out interface{}) error {
	raw := job.GetVariables()
	if raw == "" {
		raw = "{}"
	}
	if err := schema.ValidateJSON(raw).Err(); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return apperrors.NewInputValidationError(fmt.Sprintf("decode job variables: %v", err))
	}
	return nil
}

// ToMap converts v into process variables through its json tags.
func ToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode job variables: %w", err)
	}
	vars := map[string]interface{}{}
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("encode job variables: %w", err)
	}
	return vars, nil
}

// Timeout is the per-job deadline configured for taskType.
func Timeout(app *config.Config, taskType string) time.Duration {
	if app == nil {
		return 30 * time.Second
	}
	wc := config.GetWorkerConfig(app, taskType)
	if wc.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(wc.Timeout) * time.Millisecond
}
