package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/internal/app/service"
	apperrors "github.com/pharmacare/pharmacy-backend/internal/errors"
	"github.com/pharmacare/pharmacy-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	MedicationID uint `json:"medicationId" binding:"required"`
	Quantity     *int `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type SyncCartRequest struct {
	Items []service.SyncItem `json:"items" binding:"required"`
}

// SyncCartResponse is the reconciled cart plus what happened to each line
type SyncCartResponse struct {
	*model.Cart
	Sync *service.SyncResult `json:"sync"`
}

// GetCart returns the user's cart, creating it on first access
// GET /api/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.GetOrCreate(userID)
	if err != nil {
		ctrl.respondCartError(c, err, "Error retrieving cart")
		return
	}

	apperrors.Success(c, http.StatusOK, "Cart retrieved successfully", cart)
}

// GetCartCount returns the total number of units in the cart
// GET /api/cart/count
func (ctrl *CartController) GetCartCount(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	count, err := ctrl.cartService.Count(userID)
	if err != nil {
		ctrl.respondCartError(c, err, "Error retrieving cart count")
		return
	}

	apperrors.Success(c, http.StatusOK, "Cart count retrieved successfully", gin.H{"count": count})
}

// AddToCart adds a medication or increases its quantity
// POST /api/cart/add
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.RespondWithBindingError(c, err, "Medication ID is required")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := ctrl.cartService.AddItem(userID, req.MedicationID, quantity)
	if err != nil {
		var stockErr *service.StockExceededError
		if errors.As(err, &stockErr) {
			msg := fmt.Sprintf("Only %d items available in stock", stockErr.Available)
			if stockErr.InCart > 0 {
				msg = fmt.Sprintf("Cannot add %d items. Maximum available: %d", stockErr.Requested, stockErr.MaxAddable)
			}
			respondStockExceeded(c, stockErr, msg)
			return
		}
		ctrl.respondCartError(c, err, "Error adding item to cart")
		return
	}

	apperrors.Success(c, http.StatusOK, "Item added to cart successfully", cart)
}

// UpdateCartItem sets the quantity of a line. Zero or less removes it.
// PUT /api/cart/item/:medicationId
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	medicationID, ok := parseMedicationID(c)
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update cart item request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.RespondWithBindingError(c, err, "Quantity is required")
		return
	}

	cart, err := ctrl.cartService.UpdateItem(userID, medicationID, *req.Quantity)
	if err != nil {
		var stockErr *service.StockExceededError
		if errors.As(err, &stockErr) {
			respondStockExceeded(c, stockErr, fmt.Sprintf("Only %d items available in stock", stockErr.Available))
			return
		}
		ctrl.respondCartError(c, err, "Error updating cart item")
		return
	}

	apperrors.Success(c, http.StatusOK, "Cart updated successfully", cart)
}

// RemoveCartItem removes a line. Removing an absent line succeeds.
// DELETE /api/cart/item/:medicationId
func (ctrl *CartController) RemoveCartItem(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	medicationID, ok := parseMedicationID(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.RemoveItem(userID, medicationID)
	if err != nil {
		ctrl.respondCartError(c, err, "Error removing item from cart")
		return
	}

	apperrors.Success(c, http.StatusOK, "Item removed from cart successfully", cart)
}

// ClearCart empties the cart
// DELETE /api/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.Clear(userID)
	if err != nil {
		ctrl.respondCartError(c, err, "Error clearing cart")
		return
	}

	apperrors.Success(c, http.StatusOK, "Cart cleared successfully", cart)
}

// SyncCart replaces the server cart with a guest cart after login
// POST /api/cart/sync
func (ctrl *CartController) SyncCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req SyncCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid sync cart request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.RespondWithBindingError(c, err, "Items must be an array")
		return
	}

	cart, result, err := ctrl.cartService.Sync(userID, req.Items)
	if err != nil {
		if errors.Is(err, service.ErrCartConflict) {
			apperrors.Conflict(c, apperrors.CartConflict, "Cart was modified by another request. Please retry")
			return
		}
		log.Error("Failed to sync cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.RespondWithErrorData(c, http.StatusInternalServerError, apperrors.CartSyncFailed, "Error syncing cart", result)
		return
	}

	message := "Cart synced successfully"
	if result.Status == service.SyncPartial {
		message = fmt.Sprintf("Cart synced, %d item(s) could not be added", len(result.Skipped))
	}
	apperrors.Success(c, http.StatusOK, message, SyncCartResponse{Cart: cart, Sync: result})
}

// CleanupCart removes lines for medications that are no longer sold
// POST /api/cart/cleanup
func (ctrl *CartController) CleanupCart(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	removed, err := ctrl.cartService.CleanupInactive(userID)
	if err != nil {
		ctrl.respondCartError(c, err, "Error cleaning up cart")
		return
	}

	cart, err := ctrl.cartService.GetOrCreate(userID)
	if err != nil {
		ctrl.respondCartError(c, err, "Error retrieving cart")
		return
	}

	apperrors.Success(c, http.StatusOK, fmt.Sprintf("Removed %d unavailable item(s)", removed), gin.H{
		"cart":    cart,
		"removed": removed,
	})
}

func (ctrl *CartController) respondCartError(c *gin.Context, err error, fallback string) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		apperrors.BadRequest(c, apperrors.CartInvalidQuantity, "Quantity must be at least 1")
	case errors.Is(err, service.ErrInvalidMedicationID):
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Medication ID is required")
	case errors.Is(err, service.ErrMedicationUnavailable):
		apperrors.BadRequest(c, apperrors.MedicationUnavailable, "Medication is not available")
	case errors.Is(err, service.ErrMedicationNotFound):
		apperrors.NotFound(c, apperrors.MedicationNotFound, "Medication not found")
	case errors.Is(err, service.ErrCartNotFound):
		apperrors.NotFound(c, apperrors.CartNotFound, "Cart not found")
	case errors.Is(err, service.ErrCartItemNotFound):
		apperrors.NotFound(c, apperrors.CartItemNotFound, "Item not found in cart")
	case errors.Is(err, service.ErrCartConflict):
		apperrors.Conflict(c, apperrors.CartConflict, "Cart was modified by another request. Please retry")
	default:
		log.Error(fallback, err)
		apperrors.InternalError(c, fallback)
	}
}

func respondStockExceeded(c *gin.Context, stockErr *service.StockExceededError, message string) {
	apperrors.RespondWithErrorData(c, http.StatusBadRequest, apperrors.CartStockExceeded, message, gin.H{
		"maxQuantity": stockErr.MaxAddable,
		"available":   stockErr.Available,
		"inCart":      stockErr.InCart,
	})
}

func requireUserID(c *gin.Context) (uint, bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		middleware.GetLoggerFromContext(c).Warn("Unauthorized access", map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		apperrors.Unauthorized(c, "")
		return 0, false
	}
	return userID, true
}

func parseMedicationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("medicationId"), 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid medication ID")
		return 0, false
	}
	return uint(id), true
}
