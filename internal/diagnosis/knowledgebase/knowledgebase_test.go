// internal/diagnosis/knowledgebase/knowledgebase_test.go
package knowledgebase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diagnosis-workers/internal/common/errors"
)

// ==========================
// New
// ==========================

func TestNew_OrdersAndCanonicalizes(t *testing.T) {
	kb, err := New([]Condition{
		{ID: "flu", Name: "Influenza", Symptoms: []string{"Fever", " fever ", "Muscle   Aches"}},
		{ID: "common_cold", Name: "Common Cold", Symptoms: []string{"cough"}, DurationMin: 3, DurationMax: 10},
	}, map[string][]string{
		"Fever": {"feverish", "FEVER", ""},
		"cough": {"coughing"},
	})
	require.NoError(t, err)

	require.Equal(t, 2, kb.Len())
	assert.Equal(t, "common_cold", kb.Conditions()[0].ID)
	assert.Equal(t, "flu", kb.Conditions()[1].ID)

	flu, ok := kb.Condition("flu")
	require.True(t, ok)
	assert.Equal(t, []string{"fever", "muscle aches"}, flu.Symptoms)
	assert.Equal(t, DefaultDurationMin, flu.DurationMin)
	assert.Equal(t, DefaultDurationMax, flu.DurationMax)
	assert.True(t, flu.HasSymptom("fever"))
	assert.False(t, flu.HasSymptom("cough"))

	require.Len(t, kb.Keywords(), 2)
	assert.Equal(t, "cough", kb.Keywords()[0].Symptom)
	assert.Equal(t, SymptomKeywords{Symptom: "fever", Keywords: []string{"fever", "feverish"}}, kb.Keywords()[1])

	assert.Equal(t, []string{"cough", "fever", "muscle aches"}, kb.Symptoms())

	_, ok = kb.Condition("unknown")
	assert.False(t, ok)
}

func TestNew_RejectsMalformedCatalog(t *testing.T) {
	tests := []struct {
		name       string
		conditions []Condition
	}{
		{"empty catalog", nil},
		{"missing id", []Condition{{Name: "x", Symptoms: []string{"a"}}}},
		{"no symptoms", []Condition{{ID: "x", Symptoms: []string{" "}}}},
		{"duplicate id", []Condition{{ID: "x", Symptoms: []string{"a"}}, {ID: "x", Symptoms: []string{"b"}}}},
		{"inverted duration", []Condition{{ID: "x", Symptoms: []string{"a"}, DurationMin: 9, DurationMax: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.conditions, nil)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeKnowledgeBaseInvalid, apperrors.CodeOf(err))
		})
	}
}

// ==========================
// File source
// ==========================

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not an object", `[]`},
		{"no diseases", `{"symptom_keywords": {}}`},
		{"empty diseases", `{"diseases": {}}`},
		{"symptoms not strings", `{"diseases": {"x": {"symptoms": [1, 2]}}}`},
		{"negative duration", `{"diseases": {"x": {"symptoms": ["a"], "typical_duration_min": -1}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeKnowledgeBaseInvalid, apperrors.CodeOf(err))
		})
	}
}

func TestParse_UsesMapKeysAsIDs(t *testing.T) {
	kb, err := Parse([]byte(`{
		"diseases": {
			"migraine": {"name": "Migraine", "symptoms": ["headache", "nausea"], "typical_duration_min": 1, "typical_duration_max": 3}
		},
		"symptom_keywords": {"headache": ["head pain"]}
	}`))
	require.NoError(t, err)

	c, ok := kb.Condition("migraine")
	require.True(t, ok)
	assert.Equal(t, "Migraine", c.Name)
	assert.Equal(t, 3, c.DurationMax)
}

func TestFileSource_BundledKnowledgeBase(t *testing.T) {
	kb, err := FileSource{Path: filepath.Join("..", "..", "..", "data", "knowledge_base.json")}.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 16, kb.Len())
	cold, ok := kb.Condition("common_cold")
	require.True(t, ok)
	assert.Equal(t, []string{"cough", "runny nose", "sore throat", "sneezing", "congestion", "headache", "fatigue"}, cold.Symptoms)
	assert.Equal(t, []string{"General Practitioner"}, cold.Specialists)

	for _, c := range kb.Conditions() {
		assert.NotEmpty(t, c.Specialists, c.ID)
		assert.NotEmpty(t, c.Code, c.ID)
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "absent.json")}.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ==========================
// Postgres source
// ==========================

func TestPostgresSource_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM conditions").
		WithArgs(1000).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "symptoms", "explanation", "duration_min", "duration_max", "is_chronic", "specialists", "code",
		}).
			AddRow("common_cold", "Common Cold", `{cough,"sore throat"}`, "A viral infection.", int64(3), int64(10), false, `{"General Practitioner"}`, "J00").
			AddRow("asthma", "Asthma", `{wheezing,cough}`, nil, nil, nil, true, `{}`, nil))

	mock.ExpectQuery("FROM symptom_keywords").
		WillReturnRows(sqlmock.NewRows([]string{"symptom", "keywords"}).
			AddRow("cough", `{coughing}`).
			AddRow("sore throat", `{"throat pain","scratchy throat"}`))

	kb, err := PostgresSource{DB: db}.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	cold, ok := kb.Condition("common_cold")
	require.True(t, ok)
	assert.Equal(t, []string{"cough", "sore throat"}, cold.Symptoms)
	assert.Equal(t, []string{"General Practitioner"}, cold.Specialists)
	assert.Equal(t, 10, cold.DurationMax)

	asthma, ok := kb.Condition("asthma")
	require.True(t, ok)
	assert.True(t, asthma.IsChronic)
	assert.Equal(t, DefaultDurationMax, asthma.DurationMax)
	assert.Empty(t, asthma.Explanation)

	require.Len(t, kb.Keywords(), 2)
	assert.Equal(t, []string{"scratchy throat", "throat pain"}, kb.Keywords()[1].Keywords)
}

func TestPostgresSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM conditions").WillReturnError(assert.AnError)

	_, err = PostgresSource{DB: db, MaxConditions: 10}.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseError, apperrors.CodeOf(err))
}

// ==========================
// Elasticsearch source
// ==========================

func newTestES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es
}

func TestElasticsearchSource_Load(t *testing.T) {
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/conditions/_search"):
			_, _ = w.Write([]byte(`{"hits": {"hits": [
				{"_id": "flu", "_source": {"name": "Influenza", "symptoms": ["fever", "cough"], "typical_duration_min": 3, "typical_duration_max": 14}},
				{"_id": "ignored", "_source": {"id": "migraine", "name": "Migraine", "symptoms": ["headache"]}}
			]}}`))
		case strings.HasPrefix(r.URL.Path, "/symptom_keywords/_search"):
			_, _ = w.Write([]byte(`{"hits": {"hits": [
				{"_id": "fever", "_source": {"keywords": ["feverish"]}}
			]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "not found"}`))
		}
	})

	kb, err := ElasticsearchSource{Client: es, ConditionIndex: "conditions", KeywordIndex: "symptom_keywords"}.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, kb.Len())
	_, ok := kb.Condition("migraine")
	assert.True(t, ok)
	flu, ok := kb.Condition("flu")
	require.True(t, ok)
	assert.Equal(t, 14, flu.DurationMax)
	require.Len(t, kb.Keywords(), 1)
	assert.Equal(t, "fever", kb.Keywords()[0].Symptom)
}

func TestElasticsearchSource_IndexMissing(t *testing.T) {
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "index_not_found_exception"}, "status": 404}`))
	})

	_, err := ElasticsearchSource{Client: es, ConditionIndex: "conditions"}.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSearchError, apperrors.CodeOf(err))
}
