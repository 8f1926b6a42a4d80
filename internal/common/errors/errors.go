// Package errors provides standardized error handling for generation use cases,
// shared by the Zeebe job workers and the HTTP boundary.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"

	"vibe-workers/internal/common/genai"
	"vibe-workers/internal/common/structured"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeTemplateNotFound    ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeGenerationExhausted ErrorCode = "GENERATION_EXHAUSTED"
	ErrCodeGenerationTransport ErrorCode = "GENERATION_TRANSPORT"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid generation input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Prompt template not registered",
		Details:   fmt.Sprintf("template: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationExhaustedError is returned when every attempt failed and the
// use case has no fallback value. A later job retry may succeed.
func NewGenerationExhaustedError(useCase string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationExhausted,
		Message:   fmt.Sprintf("Generation for '%s' exhausted all attempts", useCase),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewGenerationTransportError reports an upstream failure that happened
// outside the retry loop, such as a rejected image before any attempt.
func NewGenerationTransportError(useCase string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTransport,
		Message:   fmt.Sprintf("Generation for '%s' could not reach the model", useCase),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// FromGeneration maps an error returned by the generation layer to its
// StandardError. StandardErrors pass through unchanged.
func FromGeneration(useCase string, err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, structured.ErrGenerationExhausted) {
		return NewGenerationExhaustedError(useCase, err)
	}
	var te *genai.TransportError
	if stderrors.As(err, &te) {
		if te.Kind == genai.KindInvalidRequest {
			return NewInvalidInputError(te.Error())
		}
		return NewGenerationTransportError(useCase, err)
	}
	return NewInternalError(err)
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ConvertToBPMNError maps a StandardError to its workflow representation.
func ConvertToBPMNError(e *StandardError) *BPMNError {
	return &BPMNError{
		Code:           string(e.Code),
		Message:        e.Message,
		Details:        e.Details,
		Retryable:      e.Retryable,
		Retries:        GetRetryCount(e.Code),
		ErrorVariables: e.Metadata,
	}
}

// GetRetryCount returns how many job retries a code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeGenerationExhausted, ErrCodeGenerationTransport:
		return 2
	default:
		return 0
	}
}

// GetErrorCategory groups codes for dashboards.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidInput, ErrCodeTemplateNotFound:
		return "client"
	case ErrCodeGenerationExhausted, ErrCodeGenerationTransport:
		return "upstream"
	default:
		return "internal"
	}
}
