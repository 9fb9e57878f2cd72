package respond

import (
	"github.com/gin-gonic/gin"

	"policy-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Debug   string      `json:"_debug,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	ErrorWithDebug(c, status, code, message, details, "")
}

// ErrorWithDebug sends a standardized error response carrying an internal
// debug string. Only 5xx handlers should populate debug.
func ErrorWithDebug(c *gin.Context, status int, code, message string, details interface{}, debug string) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if debug != "" {
		fields["debug"] = debug
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
			Debug:   debug,
		},
	})
}
