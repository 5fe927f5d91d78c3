// Package errors provides the error model shared by the diagnosis engine,
// the Zeebe workers and the HTTP API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, machine-readable error kind.
type ErrorCode string

// Diagnosis pipeline errors.
const (
	ErrCodeEmptyInput      ErrorCode = "EMPTY_INPUT"
	ErrCodeEmptyResult     ErrorCode = "NO_MATCHING_CONDITION"
	ErrCodeNotReady        ErrorCode = "ENGINE_NOT_READY"
	ErrCodeInvalidDuration ErrorCode = "INVALID_DURATION"
)

// Knowledge base and catalog errors.
const (
	ErrCodeKnowledgeBaseInvalid ErrorCode = "KNOWLEDGE_BASE_INVALID"
	ErrCodeConditionNotFound    ErrorCode = "CONDITION_NOT_FOUND"
	ErrCodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeRecordNotFound       ErrorCode = "RECORD_NOT_FOUND"
)

// Infrastructure and validation errors.
const (
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeDatabaseError         ErrorCode = "DATABASE_ERROR"
	ErrCodeRedisError            ErrorCode = "REDIS_ERROR"
	ErrCodeSearchError           ErrorCode = "SEARCH_ERROR"
	ErrCodeNotificationFailed    ErrorCode = "NOTIFICATION_FAILED"
	ErrCodeTimeout               ErrorCode = "TIMEOUT"
	ErrCodeWorkflowEngine        ErrorCode = "WORKFLOW_ENGINE_ERROR"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so callers can write
// errors.Is(err, &StandardError{Code: ErrCodeEmptyInput}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first StandardError in err's chain, or ""
// when there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewEmptyInputError reports a request whose symptoms are blank after trimming.
func NewEmptyInputError() *StandardError {
	return newError(ErrCodeEmptyInput, "No symptoms provided", "symptoms were empty after trimming", false)
}

// NewEmptyResultError reports that no condition reached the minimum relevance.
func NewEmptyResultError(minimumRelevance float64) *StandardError {
	return newError(ErrCodeEmptyResult, "No matching condition found for the reported symptoms",
		fmt.Sprintf("no condition scored at or above %.2f", minimumRelevance), false)
}

// NewNotReadyError reports a request that arrived before the engine was built.
func NewNotReadyError() *StandardError {
	return newError(ErrCodeNotReady, "Diagnosis engine is not ready", "knowledge base is still loading", true)
}

// NewInvalidDurationError reports a non-positive symptom duration.
func NewInvalidDurationError(days int) *StandardError {
	return newError(ErrCodeInvalidDuration, "Symptom duration must be a positive number of days",
		fmt.Sprintf("durationDays: %d", days), false)
}

func NewKnowledgeBaseInvalidError(details string) *StandardError {
	return newError(ErrCodeKnowledgeBaseInvalid, "Knowledge base is malformed", details, false)
}

func NewConditionNotFoundError(conditionID string) *StandardError {
	return newError(ErrCodeConditionNotFound, "Condition not found",
		fmt.Sprintf("conditionId: %s", conditionID), false)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Clarification session not found or expired",
		fmt.Sprintf("sessionId: %s", sessionID), false)
}

func NewRecordNotFoundError(diagnosisID string) *StandardError {
	return newError(ErrCodeRecordNotFound, "Diagnosis record not found",
		fmt.Sprintf("diagnosisId: %s", diagnosisID), false)
}

func NewInputValidationError(details string) *StandardError {
	return newError(ErrCodeInputValidationFailed, "Input validation failed", details, false)
}

// NewDatabaseError creates a retryable database error.
func NewDatabaseError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseError, "Database operation failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true)
}

// NewRedisError creates a retryable session store error.
func NewRedisError(operation string, err error) *StandardError {
	return newError(ErrCodeRedisError, "Session store operation failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true)
}

// NewSearchError creates a retryable Elasticsearch error.
func NewSearchError(index string, err error) *StandardError {
	return newError(ErrCodeSearchError, "Elasticsearch query failed",
		fmt.Sprintf("index: %s, error: %v", index, err), true)
}

// NewNotificationFailedError creates a retryable notification error.
func NewNotificationFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true)
}

func NewTimeoutError(operation string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Operation '%s' timed out", operation), fmt.Sprint(err), true)
}

// NewWorkflowEngineError wraps a failed Zeebe gateway call.
func NewWorkflowEngineError(operation string, err error, retryable bool) *StandardError {
	return newError(ErrCodeWorkflowEngine, fmt.Sprintf("Zeebe operation '%s' failed", operation), fmt.Sprint(err), retryable)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes modelled on BPMN
// boundary events. Codes missing here are thrown unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeEmptyInput:            "DIAGNOSIS_EMPTY_INPUT",
	ErrCodeEmptyResult:           "DIAGNOSIS_NO_MATCH",
	ErrCodeNotReady:              "DIAGNOSIS_NOT_READY",
	ErrCodeInvalidDuration:       "DIAGNOSIS_INVALID_DURATION",
	ErrCodeConditionNotFound:     "CONDITION_NOT_FOUND",
	ErrCodeSessionNotFound:       "SESSION_NOT_FOUND",
	ErrCodeInputValidationFailed: "INPUT_VALIDATION_FAILED",
	ErrCodeDatabaseError:         "DATABASE_ERROR",
	ErrCodeRedisError:            "SESSION_STORE_ERROR",
	ErrCodeNotificationFailed:    "NOTIFICATION_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseError,
		ErrCodeRedisError,
		ErrCodeSearchError,
		ErrCodeNotificationFailed,
		ErrCodeWorkflowEngine:
		return 3

	case ErrCodeTimeout:
		return 2

	case ErrCodeNotReady:
		// the engine may finish loading before the next activation
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeEmptyInput, ErrCodeEmptyResult, ErrCodeInvalidDuration, ErrCodeNotReady:
		return "DIAGNOSIS"
	case ErrCodeKnowledgeBaseInvalid, ErrCodeConditionNotFound:
		return "KNOWLEDGE_BASE"
	case ErrCodeSessionNotFound:
		return "SESSION"
	case ErrCodeRecordNotFound:
		return "DATABASE"
	}

	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "REDIS"):
		return "SESSION"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeEmptyInput, ErrCodeInvalidDuration, ErrCodeInputValidationFailed:
		return http.StatusBadRequest
	case ErrCodeEmptyResult, ErrCodeConditionNotFound, ErrCodeSessionNotFound, ErrCodeRecordNotFound:
		return http.StatusNotFound
	case ErrCodeNotReady, ErrCodeWorkflowEngine:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
