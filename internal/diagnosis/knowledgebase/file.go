// internal/diagnosis/knowledgebase/file.go
package knowledgebase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "diagnosis-workers/internal/common/errors"
)

// documentSchema describes the JSON knowledge base file:
//
//	{"diseases": {"<id>": {...}}, "symptom_keywords": {"<symptom>": ["..."]}}
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["diseases"],
  "properties": {
    "diseases": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["symptoms"],
        "properties": {
          "name": {"type": "string"},
          "symptoms": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "explanation": {"type": "string"},
          "typical_duration_min": {"type": "integer", "minimum": 0},
          "typical_duration_max": {"type": "integer", "minimum": 0},
          "is_chronic": {"type": "boolean"},
          "specialists": {"type": "array", "items": {"type": "string"}},
          "code": {"type": "string"}
        }
      }
    },
    "symptom_keywords": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string"}
      }
    }
  }
}`

type document struct {
	Diseases        map[string]Condition `json:"diseases"`
	SymptomKeywords map[string][]string  `json:"symptom_keywords"`
}

// Parse validates data against the knowledge base schema and builds a
// KnowledgeBase from it. Map keys become condition ids.
func Parse(data []byte) (*KnowledgeBase, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, apperrors.NewKnowledgeBaseInvalidError(fmt.Sprintf("schema validation error: %v", err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, apperrors.NewKnowledgeBaseInvalidError(strings.Join(msgs, "; "))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewKnowledgeBaseInvalidError(err.Error())
	}

	conditions := make([]Condition, 0, len(doc.Diseases))
	for id, c := range doc.Diseases {
		c.ID = id
		conditions = append(conditions, c)
	}
	return New(conditions, doc.SymptomKeywords)
}

// FileSource reads the knowledge base from a JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) Load(_ context.Context) (*KnowledgeBase, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base %s: %w", s.Path, err)
	}
	kb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse knowledge base %s: %w", s.Path, err)
	}
	return kb, nil
}
