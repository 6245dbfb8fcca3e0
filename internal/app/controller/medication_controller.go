package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/internal/app/repository"
	"github.com/pharmacare/pharmacy-backend/internal/app/service"
	apperrors "github.com/pharmacare/pharmacy-backend/internal/errors"
	"github.com/pharmacare/pharmacy-backend/internal/middleware"
)

type MedicationController struct {
	medicationService service.MedicationService
}

func NewMedicationController(medicationService service.MedicationService) *MedicationController {
	return &MedicationController{
		medicationService: medicationService,
	}
}

// ListMedications returns active medications with filters and paging
// GET /api/medications?category=&search=&dosageForm=&requiresPrescription=&minPrice=&maxPrice=&inStock=&sortBy=&sortOrder=&page=&limit=
func (ctrl *MedicationController) ListMedications(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	opts, err := parseMedicationListOptions(c)
	if err != nil {
		log.Warn("Invalid medication list query", map[string]interface{}{
			"query": c.Request.URL.RawQuery,
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
		return
	}

	page, err := ctrl.medicationService.ListMedications(opts)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPriceRange) {
			apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "minPrice must not exceed maxPrice")
			return
		}
		if errors.Is(err, service.ErrInvalidPage) {
			apperrors.BadRequest(c, apperrors.ValidationInvalidRange, fmt.Sprintf("page must not exceed %d", service.MaxPage))
			return
		}
		log.Error("Failed to list medications", err)
		apperrors.InternalError(c, "Error fetching medications")
		return
	}

	apperrors.Success(c, http.StatusOK, "Medications retrieved successfully", page)
}

// GetMedication returns a single medication
// GET /api/medications/:id
func (ctrl *MedicationController) GetMedication(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "Invalid medication ID")
	if !ok {
		return
	}

	medication, err := ctrl.medicationService.GetMedication(id)
	if err != nil {
		if errors.Is(err, service.ErrMedicationNotFound) {
			apperrors.NotFound(c, apperrors.MedicationNotFound, "Medication not found")
			return
		}
		log.Error("Failed to fetch medication", err, map[string]interface{}{
			"medication_id": id,
		})
		apperrors.InternalError(c, "Error fetching medication")
		return
	}

	apperrors.Success(c, http.StatusOK, "Medication retrieved successfully", medication)
}

// ListFeatured returns up to 12 featured medications
// GET /api/medications/special/featured
func (ctrl *MedicationController) ListFeatured(c *gin.Context) {
	medications, err := ctrl.medicationService.ListFeatured()
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list featured medications", err)
		apperrors.InternalError(c, "Error fetching featured medications")
		return
	}

	apperrors.Success(c, http.StatusOK, "Featured medications retrieved successfully", medications)
}

// ListOnSale returns up to 20 medications on sale
// GET /api/medications/special/on-sale
func (ctrl *MedicationController) ListOnSale(c *gin.Context) {
	medications, err := ctrl.medicationService.ListOnSale()
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list medications on sale", err)
		apperrors.InternalError(c, "Error fetching medications on sale")
		return
	}

	apperrors.Success(c, http.StatusOK, "Medications on sale retrieved successfully", medications)
}

type UpdateStockRequest struct {
	Stock     *int   `json:"stock" binding:"required,min=0"`
	Operation string `json:"operation" binding:"omitempty,oneof=set add subtract"`
}

// UpdateStock sets, adds to or subtracts from a medication's stock
// PUT /api/medications/:id/stock
func (ctrl *MedicationController) UpdateStock(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "Invalid medication ID")
	if !ok {
		return
	}

	var req UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid stock update request", map[string]interface{}{
			"medication_id": id,
			"error":         err.Error(),
		})
		apperrors.RespondWithBindingError(c, err, "Stock must be a non-negative integer")
		return
	}

	medication, err := ctrl.medicationService.UpdateStock(id, req.Operation, *req.Stock)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMedicationNotFound):
			apperrors.NotFound(c, apperrors.MedicationNotFound, "Medication not found")
		case errors.Is(err, service.ErrInvalidStockOp):
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "operation must be one of set, add, subtract")
		case errors.Is(err, service.ErrInvalidStockAmount):
			apperrors.BadRequest(c, apperrors.ValidationInvalidRange, fmt.Sprintf("stock must not exceed %d", service.MaxStockAmount))
		default:
			log.Error("Failed to update stock", err, map[string]interface{}{
				"medication_id": id,
			})
			apperrors.InternalError(c, "Error updating stock")
		}
		return
	}

	log.Info("Medication stock updated", map[string]interface{}{
		"medication_id": medication.ID,
		"operation":     req.Operation,
		"stock":         medication.Stock,
	})
	apperrors.Success(c, http.StatusOK, "Stock updated successfully", gin.H{
		"id":    medication.ID,
		"stock": medication.Stock,
	})
}

// ListLowStock returns active medications at or below their minimum stock level
// GET /api/medications/alerts/low-stock
func (ctrl *MedicationController) ListLowStock(c *gin.Context) {
	medications, err := ctrl.medicationService.ListLowStock()
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list low stock medications", err)
		apperrors.InternalError(c, "Error fetching low stock medications")
		return
	}

	apperrors.Success(c, http.StatusOK, "Low stock medications retrieved successfully", medications)
}

// ListExpiring returns medications expiring within the given number of days
// GET /api/medications/alerts/expiring?days=30
func (ctrl *MedicationController) ListExpiring(c *gin.Context) {
	days := service.DefaultExpiryDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "days must be a positive integer")
			return
		}
		days = parsed
	}

	medications, err := ctrl.medicationService.ListExpiringSoon(days)
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list expiring medications", err)
		apperrors.InternalError(c, "Error fetching expiring medications")
		return
	}

	apperrors.Success(c, http.StatusOK, "Expiring medications retrieved successfully", medications)
}

// ListCategories returns active categories sorted by name
// GET /api/categories
func (ctrl *MedicationController) ListCategories(c *gin.Context) {
	categories, err := ctrl.medicationService.ListCategories()
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list categories", err)
		apperrors.InternalError(c, "Error fetching categories")
		return
	}

	apperrors.Success(c, http.StatusOK, "Categories retrieved successfully", categories)
}

// GetCategory returns a category by ID, active or not
// GET /api/categories/:id
func (ctrl *MedicationController) GetCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "Invalid category ID")
	if !ok {
		return
	}

	category, err := ctrl.medicationService.GetCategory(id)
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
			return
		}
		middleware.GetLoggerFromContext(c).Error("Failed to fetch category", err)
		apperrors.InternalError(c, "Error fetching category")
		return
	}

	apperrors.Success(c, http.StatusOK, "Category retrieved successfully", category)
}

// GetCategoryBySlug returns one active category
// GET /api/categories/slug/:slug
func (ctrl *MedicationController) GetCategoryBySlug(c *gin.Context) {
	category, err := ctrl.medicationService.GetCategoryBySlug(c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
			return
		}
		middleware.GetLoggerFromContext(c).Error("Failed to fetch category", err)
		apperrors.InternalError(c, "Error fetching category")
		return
	}

	apperrors.Success(c, http.StatusOK, "Category retrieved successfully", category)
}

func parseMedicationListOptions(c *gin.Context) (service.MedicationListOptions, error) {
	search := c.Query("search")
	if search == "" {
		search = c.Query("q")
	}
	opts := service.MedicationListOptions{
		Search:        strings.TrimSpace(search),
		Sort:          repository.MedicationSortName,
		SortAscending: !strings.EqualFold(c.Query("sortOrder"), "desc"),
		InStockOnly:   c.Query("inStock") == "true",
	}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		if id, err := strconv.ParseUint(category, 10, 32); err == nil {
			categoryID := uint(id)
			opts.CategoryID = &categoryID
		} else {
			opts.CategorySlug = category
		}
	}

	switch strings.ToLower(c.Query("sortBy")) {
	case "", "name":
	case "price":
		opts.Sort = repository.MedicationSortPrice
	case "created_at", "createdat":
		opts.Sort = repository.MedicationSortCreatedAt
	default:
		return opts, errors.New("sortBy must be one of name, price, createdAt")
	}

	if raw := strings.TrimSpace(c.Query("dosageForm")); raw != "" {
		form, ok := model.ParseDosageForm(raw)
		if !ok {
			return opts, errors.New("dosageForm is not a known dosage form")
		}
		opts.DosageForm = form
	}

	if raw := c.Query("requiresPrescription"); raw != "" {
		value := raw == "true"
		opts.RequiresPrescription = &value
	}

	var err error
	if opts.MinPrice, err = parseOptionalFloat(c.Query("minPrice"), "minPrice"); err != nil {
		return opts, err
	}
	if opts.MaxPrice, err = parseOptionalFloat(c.Query("maxPrice"), "maxPrice"); err != nil {
		return opts, err
	}
	if opts.Page, err = parseOptionalInt(c.Query("page"), "page"); err != nil {
		return opts, err
	}
	if opts.Limit, err = parseOptionalInt(c.Query("limit"), "limit"); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseOptionalFloat(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return nil, errors.New(name + " must be a non-negative number")
	}
	return &value, nil
}

func parseOptionalInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return value, nil
}

func parseIDParam(c *gin.Context, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, message)
		return 0, false
	}
	return uint(id), true
}
