package recorddiagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/diagnosis/records"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

func setupHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	return NewHandler(HandlerOptions{Repository: records.NewRepository(db, log), Logger: log}), mock
}

func createMockJob(variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key: 11, Type: TaskType, ProcessInstanceKey: 2251799813685249, Retries: 3, Variables: string(variablesJSON),
	}}
}

func TestDecodeInput(t *testing.T) {
	input := &Input{}
	err := jobvars.Decode(createMockJob(map[string]interface{}{
		"diagnosisId":        "d-1",
		"primaryConditionId": "flu",
		"primaryScore":       0.62,
		"confidenceReason":   "NONE",
		"symptoms":           "cough, fever",
		"durationDays":       3,
		"urgency":            "high",
		"diagnosis":          map[string]interface{}{"diagnosis_id": "d-1"},
		"unrelated":          true,
	}), inputSchema, input)
	require.NoError(t, err)
	assert.Equal(t, []string{"cough", "fever"}, []string(input.Symptoms))
	assert.JSONEq(t, `{"diagnosis_id":"d-1"}`, string(input.Diagnosis))

	err = jobvars.Decode(createMockJob(map[string]interface{}{
		"diagnosisId":        "d-1",
		"primaryConditionId": "flu",
		"primaryScore":       1.5,
	}), inputSchema, &Input{})
	assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.CodeOf(err))
}

func TestHandler_Execute(t *testing.T) {
	input := &Input{
		DiagnosisID:        "d-1",
		PrimaryConditionID: "flu",
		PrimaryScore:       0.62,
		ConfidenceReason:   "NONE",
		Symptoms:           []string{"cough", "fever"},
		Urgency:            "high",
		Diagnosis:          json.RawMessage(`{"diagnosis_id":"d-1"}`),
	}

	t.Run("first write", func(t *testing.T) {
		h, mock := setupHandler(t)
		mock.ExpectExec(`INSERT INTO diagnosis_records`).
			WithArgs("d-1", int64(42), "flu", 0.62, "NONE", false,
				pq.Array([]string{"cough", "fever"}), sqlmock.AnyArg(), "high", []byte(`{"diagnosis_id":"d-1"}`), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(1, 1))

		out, err := h.Execute(context.Background(), 42, input)
		require.NoError(t, err)
		assert.Equal(t, &Output{RecordID: "d-1", Recorded: true}, out)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retried job", func(t *testing.T) {
		h, mock := setupHandler(t)
		mock.ExpectExec(`INSERT INTO diagnosis_records`).WillReturnResult(sqlmock.NewResult(0, 0))

		out, err := h.Execute(context.Background(), 42, input)
		require.NoError(t, err)
		assert.False(t, out.Recorded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down", func(t *testing.T) {
		h, mock := setupHandler(t)
		mock.ExpectExec(`INSERT INTO diagnosis_records`).WillReturnError(errors.New("connection refused"))

		_, err := h.Execute(context.Background(), 42, input)
		assert.Equal(t, apperrors.ErrCodeDatabaseError, apperrors.CodeOf(err))
		assert.True(t, apperrors.Normalize(err).Retryable)
	})
}
