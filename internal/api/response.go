package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vibe-workers/internal/common/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes err as an error envelope with the status its code maps
// to. Errors that are not StandardErrors are reported as internal.
func RespondError(c *gin.Context, err error) {
	stdErr := errors.Normalize(err)
	msg := stdErr.Message
	if stdErr.Details != "" && stdErr.Code == errors.ErrCodeInvalidInput {
		msg = stdErr.Details
	}
	c.AbortWithStatusJSON(StatusFor(stdErr.Code), ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    string(stdErr.Code),
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeGenerationExhausted, errors.ErrCodeGenerationTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
