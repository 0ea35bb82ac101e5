package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matchpulse/vote-engine/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeNotFound        ErrorCode = "not_found"
	errCodeValidationError ErrorCode = "validation_error"
	errCodeVotingClosed    ErrorCode = "voting_closed"
	errCodeChangeLimit     ErrorCode = "change_limit_exceeded"
	errCodeCooldownActive  ErrorCode = "cooldown_active"
	errCodeRateLimited     ErrorCode = "rate_limited"

	// Server errors (5xx)
	errCodeStoreError ErrorCode = "store_error"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details map[string]any) {
	c.JSON(statusCode, errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string) {
	respondWithError(c, http.StatusNotFound, errCodeNotFound, message, nil)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationError, "Validation failed", map[string]any{
		"reason": details,
	})
}

// respondStoreError sends a 503 Service Unavailable response and logs the error
func respondStoreError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.ErrorCtx(c.Request.Context(), err, fields...)
	respondWithError(c, http.StatusServiceUnavailable, errCodeStoreError, message, nil)
}
