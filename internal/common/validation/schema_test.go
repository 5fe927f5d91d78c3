package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diagnosis-workers/internal/common/errors"
)

const testSchema = `{
  "type": "object",
  "required": ["symptoms"],
  "properties": {
    "symptoms": {"type": ["string", "array"], "minLength": 1, "minItems": 1},
    "durationDays": {"type": "integer", "minimum": 1}
  }
}`

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile(testSchema)

	tests := []struct {
		name      string
		doc       string
		valid     bool
		badField  string
		errorCode string
	}{
		{"string symptoms", `{"symptoms": "fever, cough"}`, true, "", ""},
		{"array symptoms with extra process variables", `{"symptoms": ["fever"], "patientId": "p-1"}`, true, "", ""},
		{"missing symptoms", `{"durationDays": 3}`, false, "symptoms", "REQUIRED"},
		{"wrong type", `{"symptoms": 42}`, false, "symptoms", "INVALID_TYPE"},
		{"non positive duration", `{"symptoms": "rash", "durationDays": 0}`, false, "durationDays", "NUMBER_GTE"},
		{"malformed json", `{"symptoms":`, false, "(root)", "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ValidateJSON(tt.doc)
			assert.Equal(t, tt.valid, res.Valid, res.GetErrorMessages())
			if tt.valid {
				assert.NoError(t, res.Err())
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.errorCode, res.Errors[0].Code)
			assert.True(t, res.HasErrors(tt.badField), res.Errors)
			assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.CodeOf(res.Err()))
		})
	}
}

func TestSchema_ValidateInput(t *testing.T) {
	s := MustCompile(testSchema)
	assert.True(t, s.ValidateInput(map[string]interface{}{"symptoms": []string{"rash"}}).Valid)
	assert.False(t, s.ValidateInput(map[string]interface{}{"symptoms": ""}).Valid)
}

func TestCompile_RejectsBadSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`not json`) })
}
