package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/internal/app/repository"
	"github.com/pharmacare/pharmacy-backend/internal/app/service"
	"github.com/pharmacare/pharmacy-backend/internal/db"
	apperrors "github.com/pharmacare/pharmacy-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type cartResponse struct {
	ID          string  `json:"id"`
	TotalItems  int     `json:"totalItems"`
	TotalAmount float64 `json:"totalAmount"`
	Items       []struct {
		MedicationID uint    `json:"medicationId"`
		Quantity     int     `json:"quantity"`
		UnitPrice    float64 `json:"unitPrice"`
		Medication   *struct {
			Name  string `json:"name"`
			Stock int    `json:"stock"`
		} `json:"medication"`
	} `json:"items"`
	Sync *service.SyncResult `json:"sync"`
}

func setupCartControllerTest(t *testing.T) (*gin.Engine, *gorm.DB, *model.User, *model.Medication) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	cartService := service.NewCartService(
		repository.NewCartRepository(testDB),
		repository.NewMedicationRepository(testDB),
		3,
	)
	ctrl := NewCartController(cartService)

	user := &model.User{Email: "patient@example.com", PasswordHash: "hash", Name: "Patient"}
	require.NoError(t, testDB.Create(user).Error)

	category := &model.Category{Name: "Pain Relief", Slug: "pain-relief", IsActive: true}
	require.NoError(t, testDB.Create(category).Error)

	medication := &model.Medication{
		Name:       "Ibuprofen",
		CategoryID: category.ID,
		SKU:        "IBU-200",
		Price:      9.99,
		Stock:      10,
		IsActive:   true,
	}
	require.NoError(t, testDB.Create(medication).Error)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	cart := router.Group("/cart", setUserIDInContext(user.ID))
	cart.GET("", ctrl.GetCart)
	cart.GET("/count", ctrl.GetCartCount)
	cart.POST("/add", ctrl.AddToCart)
	cart.POST("/sync", ctrl.SyncCart)
	cart.POST("/cleanup", ctrl.CleanupCart)
	cart.PUT("/item/:medicationId", ctrl.UpdateCartItem)
	cart.DELETE("/item/:medicationId", ctrl.RemoveCartItem)
	cart.DELETE("", ctrl.ClearCart)

	anonymous := router.Group("/anonymous")
	anonymous.GET("/cart", ctrl.GetCart)

	return router, testDB, user, medication
}

func decodeCart(t *testing.T, env envelope) cartResponse {
	t.Helper()
	var cart cartResponse
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	return cart
}

func TestCartController_GetCart(t *testing.T) {
	router, _, _, _ := setupCartControllerTest(t)

	w, env := performJSON(t, router, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Cart retrieved successfully", env.Message)

	cart := decodeCart(t, env)
	assert.NotEmpty(t, cart.ID)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
}

func TestCartController_RequiresUser(t *testing.T) {
	router, _, _, _ := setupCartControllerTest(t)

	w, env := performJSON(t, router, http.MethodGet, "/anonymous/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, apperrors.AuthUnauthorized, env.Error)
}

func TestCartController_AddToCart(t *testing.T) {
	router, _, _, medication := setupCartControllerTest(t)

	w, env := performJSON(t, router, http.MethodPost, "/cart/add", gin.H{"medicationId": medication.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	cart := decodeCart(t, env)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 19.98, cart.TotalAmount)
	require.NotNil(t, cart.Items[0].Medication)
	assert.Equal(t, "Ibuprofen", cart.Items[0].Medication.Name)

	// quantity defaults to one
	w, env = performJSON(t, router, http.MethodPost, "/cart/add", gin.H{"medicationId": medication.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodeCart(t, env).TotalItems)

	w, env = performJSON(t, router, http.MethodGet, "/cart/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":3}`, string(env.Data))
}

func TestCartController_AddToCartErrors(t *testing.T) {
	router, _, _, medication := setupCartControllerTest(t)

	tests := []struct {
		name       string
		body       gin.H
		wantStatus int
		wantCode   string
	}{
		{name: "Missing medication id", body: gin.H{"quantity": 1}, wantStatus: http.StatusBadRequest, wantCode: apperrors.ValidationInvalidInput},
		{name: "Zero quantity", body: gin.H{"medicationId": medication.ID, "quantity": 0}, wantStatus: http.StatusBadRequest, wantCode: apperrors.CartInvalidQuantity},
		{name: "Unknown medication", body: gin.H{"medicationId": 9999, "quantity": 1}, wantStatus: http.StatusNotFound, wantCode: apperrors.MedicationNotFound},
		{name: "Over stock", body: gin.H{"medicationId": medication.ID, "quantity": 11}, wantStatus: http.StatusBadRequest, wantCode: apperrors.CartStockExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := performJSON(t, router, http.MethodPost, "/cart/add", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Error)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestCartController_AddToCartListsInvalidFields(t *testing.T) {
	router, _, _, _ := setupCartControllerTest(t)

	w, _ := performJSON(t, router, http.MethodPost, "/cart/add", gin.H{"quantity": 2})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"medicationId": "is required"}, body.Fields)
}

func TestCartController_StockExceededReportsMaxQuantity(t *testing.T) {
	router, _, _, medication := setupCartControllerTest(t)

	w, _ := performJSON(t, router, http.MethodPost, "/cart/add", gin.H{"medicationId": medication.ID, "quantity": 7})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := performJSON(t, router, http.MethodPost, "/cart/add", gin.H{"medicationId": medication.ID, "quantity": 4})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CartStockExceeded, env.Error)
	assert.Equal(t, "Cannot add 4 items. Maximum available: 3", env.Message)
	assert.JSONEq(t, `{"maxQuantity":3,"available":10,"inCart":7}`, string(env.Data))
}

func TestCartController_UpdateAndRemove(t *testing.T) {
	router, _, _, medication := setupCartControllerTest(t)
	itemPath := "/cart/item/" + jsonNumber(medication.ID)

	w, env := performJSON(t, router, http.MethodPut, itemPath, gin.H{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CartNotFound, env.Error)

	w, _ = performJSON(t, router, http.MethodPost, "/cart/add", gin.H{"medicationId": medication.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = performJSON(t, router, http.MethodPut, itemPath, gin.H{"quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decodeCart(t, env).TotalItems)

	w, env = performJSON(t, router, http.MethodPut, itemPath, gin.H{"quantity": 20})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only 10 items available in stock", env.Message)

	w, env = performJSON(t, router, http.MethodPut, itemPath, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationInvalidInput, env.Error)

	w, env = performJSON(t, router, http.MethodPut, "/cart/item/abc", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationInvalidID, env.Error)

	w, env = performJSON(t, router, http.MethodPut, "/cart/item/9999", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CartItemNotFound, env.Error)

	w, env = performJSON(t, router, http.MethodPut, itemPath, gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeCart(t, env).Items)

	for i := 0; i < 2; i++ {
		w, env = performJSON(t, router, http.MethodDelete, "/cart/item/99", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.Success)
	}
}

func TestCartController_ClearCart(t *testing.T) {
	router, _, _, medication := setupCartControllerTest(t)

	w, env := performJSON(t, router, http.MethodDelete, "/cart", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CartNotFound, env.Error)

	performJSON(t, router, http.MethodPost, "/cart/add", gin.H{"medicationId": medication.ID, "quantity": 2})

	w, env = performJSON(t, router, http.MethodDelete, "/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decodeCart(t, env)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0.0, cart.TotalAmount)
}

func TestCartController_SyncCart(t *testing.T) {
	router, testDB, _, medication := setupCartControllerTest(t)

	inactive := &model.Medication{Name: "Retired", CategoryID: medication.CategoryID, SKU: "RET-1", Price: 1, Stock: 5, IsActive: true}
	require.NoError(t, testDB.Create(inactive).Error)
	require.NoError(t, testDB.Model(inactive).Update("is_active", false).Error)

	w, env := performJSON(t, router, http.MethodPost, "/cart/sync", gin.H{
		"items": []gin.H{
			{"medicationId": medication.ID, "quantity": 2},
			{"medicationId": inactive.ID, "quantity": 4},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.True(t, env.Success)

	cart := decodeCart(t, env)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.TotalItems)
	require.NotNil(t, cart.Sync)
	assert.Equal(t, service.SyncPartial, cart.Sync.Status)
	require.Len(t, cart.Sync.Skipped, 1)
	assert.Equal(t, inactive.ID, cart.Sync.Skipped[0].MedicationID)

	w, env = performJSON(t, router, http.MethodPost, "/cart/sync", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationInvalidInput, env.Error)
}

type failingSaveCartRepo struct {
	repository.CartRepository
}

func (failingSaveCartRepo) Save(*model.Cart) error {
	return errors.New("connection reset by peer")
}

func TestCartController_SyncCartStorageFailure(t *testing.T) {
	_, testDB, user, medication := setupCartControllerTest(t)

	cartRepo := repository.NewCartRepository(testDB)
	medicationRepo := repository.NewMedicationRepository(testDB)
	working := service.NewCartService(cartRepo, medicationRepo, 3)
	_, err := working.AddItem(user.ID, medication.ID, 1)
	require.NoError(t, err)

	failing := service.NewCartService(failingSaveCartRepo{CartRepository: cartRepo}, medicationRepo, 3)
	ctrl := NewCartController(failing)
	router := gin.New()
	router.POST("/cart/sync", setUserIDInContext(user.ID), ctrl.SyncCart)

	w, env := performJSON(t, router, http.MethodPost, "/cart/sync", gin.H{
		"items": []gin.H{{"medicationId": medication.ID, "quantity": 3}},
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, apperrors.CartSyncFailed, env.Error)
	assert.NotContains(t, env.Message, "connection reset")

	var result service.SyncResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, service.SyncFailed, result.Status)

	stored, err := working.GetOrCreate(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalItems)
}

func TestCartController_CleanupCart(t *testing.T) {
	router, testDB, _, medication := setupCartControllerTest(t)

	performJSON(t, router, http.MethodPost, "/cart/add", gin.H{"medicationId": medication.ID, "quantity": 2})
	require.NoError(t, testDB.Model(medication).Update("stock", 0).Error)

	w, env := performJSON(t, router, http.MethodPost, "/cart/cleanup", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Removed int          `json:"removed"`
		Cart    cartResponse `json:"cart"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1, data.Removed)
	assert.Empty(t, data.Cart.Items)
}

func jsonNumber(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
