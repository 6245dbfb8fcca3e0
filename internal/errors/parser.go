package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

type ErrorInfo struct {
	Code    string
	Message string
}

// ParseError maps storage and driver errors to a code and a message that is
// safe to show. context names the resource or action, e.g. "cart" or
// "create user".
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "Something went wrong",
		}
	}

	errLower := strings.ToLower(err.Error())

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: getNotFoundMessage(context),
		}
	}

	// postgres: 23505, sqlite: UNIQUE constraint failed
	if strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint") {
		return parseDuplicateKeyError(errLower)
	}

	// postgres: 23503
	if strings.Contains(errLower, "foreign key constraint") {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: "Referenced data does not exist",
		}
	}

	// postgres: 23502, sqlite: NOT NULL constraint failed
	if strings.Contains(errLower, "not-null constraint") || strings.Contains(errLower, "not null constraint") {
		return ErrorInfo{
			Code:    ValidationRequired,
			Message: "A required field is missing",
		}
	}

	if strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "timeout") {
		return ErrorInfo{
			Code:    InternalDatabaseError,
			Message: "Service temporarily unavailable. Please try again later",
		}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
	}
}

func parseDuplicateKeyError(errLower string) ErrorInfo {
	if strings.Contains(errLower, "email") {
		return ErrorInfo{
			Code:    AuthEmailAlreadyExists,
			Message: "Email is already registered",
		}
	}
	if strings.Contains(errLower, "carts.user_id") || strings.Contains(errLower, "idx_carts_user_id") {
		return ErrorInfo{
			Code:    CartConflict,
			Message: "Cart was modified by another request. Please retry",
		}
	}
	if strings.Contains(errLower, "idx_cart_lines_cart_medication") || strings.Contains(errLower, "cart_lines.cart_id") {
		return ErrorInfo{
			Code:    CartConflict,
			Message: "Cart was modified by another request. Please retry",
		}
	}

	return ErrorInfo{
		Code:    ResourceAlreadyExists,
		Message: "This record already exists",
	}
}

func getNotFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "cart"):
		return "Cart not found"
	case strings.Contains(contextLower, "medication"):
		return "Medication not found"
	case strings.Contains(contextLower, "category"):
		return "Category not found"
	case strings.Contains(contextLower, "user"):
		return "User not found"
	}
	return "The requested resource was not found"
}

func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "create"), strings.Contains(contextLower, "register"):
		return "Failed to create. Please try again later"
	case strings.Contains(contextLower, "update"):
		return "Failed to update. Please try again later"
	case strings.Contains(contextLower, "delete"), strings.Contains(contextLower, "remove"):
		return "Failed to delete. Please try again later"
	}
	return "Something went wrong. Please try again later"
}

// ParseAndRespond writes a failure envelope for err
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	errorInfo := ParseError(err, context)
	c.JSON(statusCode, Response{
		Success: false,
		Message: errorInfo.Message,
		Error:   errorInfo.Code,
	})
}
