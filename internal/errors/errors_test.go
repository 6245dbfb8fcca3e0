package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		context  string
		wantCode string
	}{
		{name: "Nil error", err: nil, wantCode: InternalServerError},
		{name: "Record not found", err: gorm.ErrRecordNotFound, context: "medication", wantCode: ResourceNotFound},
		{name: "Postgres duplicate email", err: errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email"`), wantCode: AuthEmailAlreadyExists},
		{name: "SQLite duplicate cart line", err: errors.New("UNIQUE constraint failed: cart_lines.cart_id, cart_lines.medication_id"), wantCode: CartConflict},
		{name: "Foreign key", err: errors.New("violates foreign key constraint"), wantCode: ResourceNotFound},
		{name: "Not null", err: errors.New("NOT NULL constraint failed: users.email"), wantCode: ValidationRequired},
		{name: "Connection refused", err: errors.New("dial tcp: connection refused"), wantCode: InternalDatabaseError},
		{name: "Unknown", err: errors.New("boom"), wantCode: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseError(tt.err, tt.context)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.NotEmpty(t, info.Message)
			if tt.err != nil {
				assert.NotContains(t, info.Message, tt.err.Error())
			}
		})
	}

	assert.Equal(t, "Medication not found", ParseError(gorm.ErrRecordNotFound, "get medication").Message)
}

func TestResponseEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondWithErrorData(c, http.StatusBadRequest, CartStockExceeded, "Not enough stock", gin.H{"maxQuantity": 0})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, CartStockExceeded, body["error"])
	assert.Equal(t, "Not enough stock", body["message"])
	assert.Equal(t, map[string]interface{}{"maxQuantity": float64(0)}, body["data"])

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	Success(c, http.StatusOK, "ok", nil)

	body = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "error")
	assert.NotContains(t, body, "data")
}

type stockBody struct {
	Stock     *int   `json:"stock" binding:"required,min=0"`
	Operation string `json:"operation" binding:"omitempty,oneof=set add subtract"`
}

func bindStockBody(t *testing.T, raw string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/stock", bytes.NewBufferString(raw))
	c.Request.Header.Set("Content-Type", "application/json")

	var req stockBody
	err := c.ShouldBindJSON(&req)
	require.Error(t, err)
	RespondWithBindingError(c, err, "Stock must be a non-negative integer")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondWithBindingError_ListsFields(t *testing.T) {
	w, body := bindStockBody(t, `{"operation":"multiply"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, ValidationInvalidInput, body["error"])
	assert.Equal(t, "Stock must be a non-negative integer", body["message"])
	assert.Equal(t, map[string]interface{}{
		"stock":     "is required",
		"operation": "must be one of: set, add, subtract",
	}, body["fields"])

	_, body = bindStockBody(t, `{"stock":-3}`)
	assert.Equal(t, map[string]interface{}{"stock": "must be at least 0"}, body["fields"])
}

func TestRespondWithBindingError_MalformedBody(t *testing.T) {
	w, body := bindStockBody(t, `{"stock":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ValidationInvalidInput, body["error"])
	assert.NotContains(t, body, "fields")
}

func TestFieldErrors_NotValidation(t *testing.T) {
	assert.Nil(t, FieldErrors(errors.New("boom")))
	assert.Nil(t, FieldErrors(nil))
}
