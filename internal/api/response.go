package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/validation"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.log.Error("request error", map[string]interface{}{
			"path":    r.URL.Path,
			"code":    string(stdErr.Code),
			"details": stdErr.Details,
		})
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
	}})
}

// decodeBody validates the request body against schema and decodes it.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *validation.Schema, out interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewInputValidationError(fmt.Sprintf("read body: %v", err))
	}
	if err := schema.ValidateJSON(string(body)).Err(); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.NewInputValidationError(fmt.Sprintf("decode body: %v", err))
	}
	return nil
}
