package errors

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// field errors are reported under their JSON names
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

// ValidationError carries per-field binding failures
type ValidationError struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func RespondWithValidationError(c *gin.Context, message string, fields map[string]string) {
	if message == "" {
		message = "Invalid input"
	}
	c.JSON(http.StatusBadRequest, ValidationError{
		Success: false,
		Message: message,
		Error:   ValidationInvalidInput,
		Fields:  fields,
	})
}

// RespondWithBindingError answers a failed ShouldBind call. Validation
// failures list the offending fields; malformed bodies get message only.
func RespondWithBindingError(c *gin.Context, err error, message string) {
	RespondWithValidationError(c, message, FieldErrors(err))
}

// FieldErrors maps validator failures to field -> reason, or nil when err is
// not a validation error
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeFieldError(fe)
	}
	return fields
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return "is invalid"
	}
}
