package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden           ErrorType = "FORBIDDEN"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeQuotaExceeded       ErrorType = "QUOTA_EXCEEDED"
	ErrorTypeUpstreamService     ErrorType = "UPSTREAM_SERVICE_ERROR"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
)

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
	// LimitingTier names which quota tier rejected the request, for 429 payloads.
	LimitingTier string
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error() *CustomError {
	return newError(ErrorTypeUnauthorized, "Unauthorized access", http.StatusUnauthorized, nil)
}

// New403Error creates a new forbidden error
func New403Error(message string) *CustomError {
	return newError(ErrorTypeForbidden, message, http.StatusForbidden, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

// New429Error creates a quota exceeded error naming the tier that rejected
// the request ("org_tokens", "org_requests" or "user_daily").
func New429Error(limitingTier string) *CustomError {
	err := newError(ErrorTypeQuotaExceeded, "AI usage quota exceeded", http.StatusTooManyRequests, nil)
	err.LimitingTier = limitingTier
	return err
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// NewUpstreamError wraps a failure from the external AI service. Callers in
// the alternatives pipeline never surface this to the client; it exists so
// the reranker's failure mode has a distinct type for logging and tests.
func NewUpstreamError(internal error) *CustomError {
	return newError(ErrorTypeUpstreamService, "Upstream AI service unavailable", http.StatusBadGateway, internal)
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	var customErr *CustomError
	var ok bool

	if customErr, ok = err.(*CustomError); !ok {
		customErr = New500Error(err)
	}

	// Log internal server errors
	if customErr.Type == ErrorTypeInternalServerError {
		log.Error().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Msg("Internal Server Error")
	}

	body := gin.H{
		"type":    customErr.Type,
		"message": customErr.Message,
	}
	if customErr.LimitingTier != "" {
		body["limiting_tier"] = customErr.LimitingTier
	}

	c.JSON(customErr.StatusCode, gin.H{"error": body})
}
