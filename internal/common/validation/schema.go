// Package validation checks job variables and request bodies against JSON
// schemas.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "diagnosis-workers/internal/common/errors"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document.
func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON validates a raw JSON document, such as Zeebe job variables.
func (s *Schema) ValidateJSON(doc string) *ValidationResult {
	return s.validate(gojsonschema.NewStringLoader(doc))
}

// ValidateInput validates an already decoded value.
func (s *Schema) ValidateInput(input interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(input))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) *ValidationResult {
	res, err := s.schema.Validate(loader)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_JSON",
		}}}
	}

	out := &ValidationResult{Valid: res.Valid()}
	for _, e := range res.Errors() {
		field := e.Field()
		// required errors are reported on the parent object
		if p, ok := e.Details()["property"].(string); ok && e.Type() == "required" {
			if field == gojsonschema.STRING_CONTEXT_ROOT {
				field = p
			} else {
				field += "." + p
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Err converts a failed result into INPUT_VALIDATION_FAILED, or nil.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	return apperrors.NewInputValidationError(strings.Join(vr.GetErrorMessages(), "; "))
}
