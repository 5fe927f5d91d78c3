package diagnosesymptoms

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/service/servicetest"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "symptom-diagnosis",
		ElementId:          "Activity_DiagnoseSymptoms",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, withSessions bool) *Handler {
	svc, _ := servicetest.New(t, withSessions)
	return NewHandler(HandlerOptions{Service: svc, Logger: logger.NewTestLogger(t)})
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, false)

	tests := []struct {
		name       string
		variables  map[string]interface{}
		wantErr    bool
		resubmit   bool
		wantSymCnt int
	}{
		{
			name:       "delimited string",
			variables:  map[string]interface{}{"symptoms": "fever, cough; headache", "durationDays": 3},
			wantSymCnt: 3,
		},
		{
			name:       "array of phrases",
			variables:  map[string]interface{}{"symptoms": []string{"rash", "itchy skin"}},
			wantSymCnt: 2,
		},
		{
			name: "session resubmission",
			variables: map[string]interface{}{
				"sessionId": "abc",
				"answers":   []map[string]interface{}{{"kind": "FREE_TEXT", "value": "since monday"}},
			},
			resubmit: true,
		},
		{
			name:      "missing symptoms",
			variables: map[string]interface{}{"region": "EU"},
			wantErr:   true,
		},
		{
			name:      "symptoms of wrong type",
			variables: map[string]interface{}{"symptoms": 12},
			wantErr:   true,
		},
		{
			name:      "duration not an integer",
			variables: map[string]interface{}{"symptoms": "cough", "durationDays": "two weeks"},
			wantErr:   true,
		},
		{
			name: "answer with unknown kind",
			variables: map[string]interface{}{
				"symptoms": "cough",
				"answers":  []map[string]interface{}{{"kind": "GUESS", "value": "x"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.resubmit, input.Resubmission())
			if !tt.resubmit {
				assert.Len(t, input.Symptoms, tt.wantSymCnt)
			}
		})
	}
}

// ==========================
// Execution Tests
// ==========================

func TestHandler_Execute_ConfidentDiagnosis(t *testing.T) {
	h := newTestHandler(t, true)
	days := 10

	out, err := h.Execute(context.Background(), &Input{Request: jobvars.Request{
		Symptoms:     engine.SymptomInput{"itchy skin", "rash", "redness", "dry skin"},
		DurationDays: &days,
	}})
	require.NoError(t, err)

	assert.NotEmpty(t, out.DiagnosisID)
	assert.Equal(t, engine.AnalysisStandard, out.AnalysisType)
	assert.Equal(t, "dermatitis", out.PrimaryConditionID)
	assert.Equal(t, engine.ReasonNone, out.ConfidenceReason)
	assert.False(t, out.NeedsClarification)
	assert.Empty(t, out.SessionID)

	vars, err := jobvars.ToMap(out)
	require.NoError(t, err)
	assert.Equal(t, "dermatitis", vars["primaryConditionId"])
	assert.Contains(t, vars, "diagnosis")
	assert.NotContains(t, vars, "sessionId")
}

func TestHandler_Execute_ClarificationRoundTrip(t *testing.T) {
	h := newTestHandler(t, true)
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{Request: jobvars.Request{Symptoms: engine.SymptomInput{"fatigue"}}})
	require.NoError(t, err)
	require.True(t, first.NeedsClarification)
	require.NotEmpty(t, first.SessionID)
	assert.NotEmpty(t, first.ClarifyingQuestions)

	second, err := h.Execute(ctx, &Input{
		SessionID: first.SessionID,
		Request: jobvars.Request{Answers: []engine.Answer{
			{Kind: engine.QuestionFreeText, FieldName: "notes", Value: "tired for a week"},
		}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.DiagnosisID, second.DiagnosisID)
	assert.Len(t, second.Diagnosis.Answers, 1)
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := newTestHandler(t, false)
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{Request: jobvars.Request{Symptoms: engine.SymptomInput{"  "}}})
	assert.Equal(t, apperrors.ErrCodeEmptyInput, apperrors.CodeOf(err))

	_, err = h.Execute(ctx, &Input{Request: jobvars.Request{Symptoms: engine.SymptomInput{"glowing toenails"}}})
	assert.Equal(t, apperrors.ErrCodeEmptyResult, apperrors.CodeOf(err))

	_, err = h.Execute(ctx, &Input{
		SessionID: "abc",
		Request:   jobvars.Request{Answers: []engine.Answer{{Kind: engine.QuestionFreeText, Value: "x"}}},
	})
	assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.CodeOf(err), "sessions disabled")
}
