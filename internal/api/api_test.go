package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/records"
	"diagnosis-workers/internal/diagnosis/service"
	"diagnosis-workers/internal/diagnosis/service/servicetest"
)

// ==========================
// Test Helpers
// ==========================

func newTestRouter(t *testing.T, withSessions bool) http.Handler {
	t.Helper()
	svc, _ := servicetest.New(t, withSessions)
	return NewRouter(Options{Service: svc, Logger: logger.NewTestLogger(t)})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	detail, ok := body["error"].(map[string]interface{})
	require.True(t, ok, rec.Body.String())
	return detail["code"].(string)
}

// ==========================
// Health / Readiness
// ==========================

func TestHealthAndReady(t *testing.T) {
	h := newTestRouter(t, false)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["engine_ready"])

	rec = do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(16), decode(t, rec)["conditions"])
}

func TestReady_EngineNotBuilt(t *testing.T) {
	h := NewRouter(Options{Service: service.New(service.Options{Provider: engine.NewProvider()})})

	rec := do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ENGINE_NOT_READY", errorCode(t, rec))

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["engine_ready"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "probe"}))
	svc, _ := servicetest.New(t, false)
	h := NewRouter(Options{Service: svc, Gatherer: reg})

	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "probe_total")
}

// ==========================
// Diagnose
// ==========================

func TestDiagnose(t *testing.T) {
	h := newTestRouter(t, false)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"string symptoms with days alias", `{"symptoms": "itchy skin, rash, redness, dry skin", "days": 10}`, http.StatusOK, ""},
		{"array symptoms", `{"symptoms": ["fever", "cough", "sore throat", "fatigue"]}`, http.StatusOK, ""},
		{"missing symptoms", `{"days": 3}`, http.StatusBadRequest, "INPUT_VALIDATION_FAILED"},
		{"malformed json", `{"symptoms":`, http.StatusBadRequest, "INPUT_VALIDATION_FAILED"},
		{"blank symptoms", `{"symptoms": "  "}`, http.StatusBadRequest, "EMPTY_INPUT"},
		{"negative duration", `{"symptoms": "cough", "duration_days": -1}`, http.StatusBadRequest, "INVALID_DURATION"},
		{"no match", `{"symptoms": "glowing toenails"}`, http.StatusNotFound, "NO_MATCHING_CONDITION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/diagnose", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
				return
			}
			body := decode(t, rec)
			assert.NotEmpty(t, body["diagnosis_id"])
			assert.Contains(t, body, "ranking")
			assert.Contains(t, body, "explanations")
		})
	}
}

func TestDiagnose_DaysAliasFeedsDurationCheck(t *testing.T) {
	h := newTestRouter(t, false)

	rec := do(t, h, http.MethodPost, "/diagnose", `{"symptoms": "itchy skin, rash, redness, dry skin", "days": 200}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(200), body["duration_days"])
	assert.Equal(t, string(engine.DurationProlonged), body["duration_flag"])
}

func TestDiagnose_ClarificationSession(t *testing.T) {
	h := newTestRouter(t, true)

	rec := do(t, h, http.MethodPost, "/diagnose", `{"symptoms": "fatigue"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, engine.AnalysisClarificationNeeded, body["analysis_type"])
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)

	rec = do(t, h, http.MethodPost, "/diagnose/"+sessionID+"/answers",
		`{"answers": [{"kind": "FREE_TEXT", "field_name": "notes", "value": "tired for a week"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["answers"], 1)

	rec = do(t, h, http.MethodPost, "/diagnose/missing/answers", `{"answers": [{"kind": "FREE_TEXT", "value": "x"}]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/diagnose/"+sessionID+"/answers", `{"answers": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Recommend / XAI / Catalog
// ==========================

func TestRecommend(t *testing.T) {
	h := newTestRouter(t, false)

	rec := do(t, h, http.MethodPost, "/recommend", `{"symptoms": "Fever, cough, sore throat, fatigue"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "high", body["urgency"])
	assert.Equal(t, "Influenza", body["top_condition"])

	rec = do(t, h, http.MethodPost, "/recommend", `{"symptoms": "glowing toenails"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "normal", decode(t, rec)["urgency"])
}

func TestCompare(t *testing.T) {
	h := newTestRouter(t, false)

	rec := do(t, h, http.MethodPost, "/xai/compare", `{"symptoms": ["fever", "cough", "sore throat", "fatigue"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	top := body["top_choice"].(map[string]interface{})
	assert.Equal(t, "flu", top["condition_id"])
	assert.Contains(t, body, "counterfactual")
}

func TestExplain(t *testing.T) {
	h := newTestRouter(t, false)

	for _, path := range []string{"/xai/diagnosis/asthma", "/explain/asthma"} {
		rec := do(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "J45", decode(t, rec)["code"])
	}

	rec := do(t, h, http.MethodGet, "/explain/gout", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CONDITION_NOT_FOUND", errorCode(t, rec))
}

func TestCatalog(t *testing.T) {
	h := newTestRouter(t, false)

	rec := do(t, h, http.MethodGet, "/diseases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(16), body["total_diseases"])
	first := body["diseases"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Acute Bronchitis", first["name"])

	rec = do(t, h, http.MethodGet, "/symptoms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.NotZero(t, body["total_symptoms"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newTestRouter(t, false)

	rec := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = do(t, h, http.MethodGet, "/diagnose", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ==========================
// Records
// ==========================

func TestDiagnosisRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc, _ := servicetest.New(t, false)
	h := NewRouter(Options{Service: svc, Records: records.NewRepository(db, nil)})

	columns := []string{"id", "process_instance_key", "primary_condition_id", "primary_score", "reason",
		"needs_clarification", "symptoms", "duration_days", "urgency", "result", "created_at"}
	mock.ExpectQuery(`SELECT (.+) FROM diagnosis_records`).WithArgs("d-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("d-1", int64(7), "flu", 0.62, "NONE", false,
			"{cough,fever}", nil, "high", []byte(`{"diagnosis_id":"d-1"}`), time.Now()))
	mock.ExpectQuery(`SELECT (.+) FROM diagnosis_records`).WithArgs("d-2").
		WillReturnRows(sqlmock.NewRows(columns))

	rec := do(t, h, http.MethodGet, "/diagnoses/d-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "flu", decode(t, rec)["primary_condition_id"])

	rec = do(t, h, http.MethodGet, "/diagnoses/d-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeRecordNotFound), errorCode(t, rec))
	assert.Contains(t, rec.Body.String(), "diagnosisId: d-2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiagnosisRecord_DisabledWithoutRepository(t *testing.T) {
	h := newTestRouter(t, false)
	rec := do(t, h, http.MethodGet, "/diagnoses/d-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
