package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/logger"
)

// Error codes carried in the error envelope.
const (
	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"
	codeQuotaExceeded  = "quota_exceeded"
	codeUnavailable    = "provider_unavailable"
	codeInternal       = "internal_error"
)

// APIError is the body of a failed request.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ErrorEnvelope wraps every error response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case domain.IsQuotaError(err):
		return http.StatusPaymentRequired, codeQuotaExceeded
	case errors.Is(err, domain.ErrCompletionUnavailable), errors.Is(err, domain.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	respondErrorCode(c, status, code, err.Error())
}

func respondErrorCode(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: code},
	})
}
