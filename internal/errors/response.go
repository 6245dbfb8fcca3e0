package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope shared by every endpoint
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"` // error code, see codes.go
}

func Success(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// RespondWithError writes a failure envelope.
// errorCode: a constant from codes.go
// message: human readable, never an internal error string
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Error:   errorCode,
	})
}

// RespondWithErrorData is RespondWithError with extra data the client can act on
func RespondWithErrorData(c *gin.Context, statusCode int, errorCode string, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: false,
		Data:    data,
		Message: message,
		Error:   errorCode,
	})
}

// Shorthands for common responses

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func Conflict(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusConflict, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Something went wrong. Please try again later"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}
