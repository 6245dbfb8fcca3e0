package service

import (
	"errors"
	"strings"
	"time"

	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/internal/app/repository"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrMedicationNotFound = errors.New("medication not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrInvalidPriceRange  = errors.New("minimum price is greater than maximum price")
	ErrInvalidPage        = errors.New("page is out of range")
	ErrInvalidStockOp     = errors.New("stock operation must be set, add or subtract")
	ErrInvalidStockAmount = errors.New("stock amount is out of range")
)

const (
	DefaultPageSize    = 10
	MaxPageSize        = 100
	MaxPage            = 100000
	DefaultExpiryDays  = 30
	maxExpiryLookahead = 365
	featuredLimit      = 12
	onSaleLimit        = 20
	// MaxStockAmount bounds a single stock adjustment
	MaxStockAmount = 1000000
)

type MedicationListOptions struct {
	CategoryID           *uint
	CategorySlug         string
	Search               string
	DosageForm           model.DosageForm
	RequiresPrescription *bool
	MinPrice             *float64
	MaxPrice             *float64
	InStockOnly          bool
	Sort                 repository.MedicationSort
	SortAscending        bool
	Page                 int
	Limit                int
}

type MedicationPage struct {
	Items      []model.Medication `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"totalPages"`
}

type MedicationService interface {
	ListMedications(opts MedicationListOptions) (*MedicationPage, error)
	GetMedication(id uint) (*model.Medication, error)
	ListFeatured() ([]model.Medication, error)
	ListOnSale() ([]model.Medication, error)
	UpdateStock(id uint, operation string, amount int) (*model.Medication, error)
	ListCategories() ([]model.Category, error)
	GetCategory(id uint) (*model.Category, error)
	GetCategoryBySlug(slug string) (*model.Category, error)
	ListLowStock() ([]model.Medication, error)
	ListExpiringSoon(days int) ([]model.Medication, error)
}

type medicationService struct {
	medicationRepo repository.MedicationRepository
	now            func() time.Time
}

func NewMedicationService(medicationRepo repository.MedicationRepository) MedicationService {
	return &medicationService{
		medicationRepo: medicationRepo,
		now:            time.Now,
	}
}

func (s *medicationService) ListMedications(opts MedicationListOptions) (*MedicationPage, error) {
	if opts.MinPrice != nil && opts.MaxPrice != nil && *opts.MinPrice > *opts.MaxPrice {
		return nil, ErrInvalidPriceRange
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		return nil, ErrInvalidPage
	}
	limit := opts.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	logger.Debug("Listing medications", map[string]interface{}{
		"category_id":   opts.CategoryID,
		"category_slug": opts.CategorySlug,
		"search":        opts.Search,
		"sort":          opts.Sort,
		"page":          page,
		"limit":         limit,
	})

	medications, total, err := s.medicationRepo.FindWithFilter(repository.MedicationFilter{
		CategoryID:           opts.CategoryID,
		CategorySlug:         strings.TrimSpace(opts.CategorySlug),
		Search:               opts.Search,
		DosageForm:           opts.DosageForm,
		RequiresPrescription: opts.RequiresPrescription,
		MinPrice:             opts.MinPrice,
		MaxPrice:             opts.MaxPrice,
		InStockOnly:          opts.InStockOnly,
		SortBy:               opts.Sort,
		SortAscending:        opts.SortAscending,
		Limit:                limit,
		Offset:               (page - 1) * limit,
	})
	if err != nil {
		logger.Error("Failed to list medications", err)
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &MedicationPage{
		Items:      medications,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (s *medicationService) GetMedication(id uint) (*model.Medication, error) {
	medication, err := s.medicationRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Medication not found", map[string]interface{}{
				"medication_id": id,
			})
			return nil, ErrMedicationNotFound
		}
		logger.Error("Failed to fetch medication", err, map[string]interface{}{
			"medication_id": id,
		})
		return nil, err
	}
	return medication, nil
}

func (s *medicationService) ListFeatured() ([]model.Medication, error) {
	medications, err := s.medicationRepo.FindFeatured(featuredLimit)
	if err != nil {
		logger.Error("Failed to list featured medications", err)
		return nil, err
	}
	return medications, nil
}

func (s *medicationService) ListOnSale() ([]model.Medication, error) {
	medications, err := s.medicationRepo.FindOnSale(onSaleLimit)
	if err != nil {
		logger.Error("Failed to list medications on sale", err)
		return nil, err
	}
	return medications, nil
}

// UpdateStock adjusts stock with operation "set" (the default), "add" or
// "subtract". Carts are not touched; lines above the new stock are rejected on
// their next change and dropped by cleanup once stock reaches zero.
func (s *medicationService) UpdateStock(id uint, operation string, amount int) (*model.Medication, error) {
	op := repository.StockOperation(strings.ToLower(strings.TrimSpace(operation)))
	switch op {
	case "":
		op = repository.StockSet
	case repository.StockSet, repository.StockAdd, repository.StockSubtract:
	default:
		return nil, ErrInvalidStockOp
	}
	if amount < 0 || amount > MaxStockAmount {
		return nil, ErrInvalidStockAmount
	}

	medication, err := s.medicationRepo.UpdateStock(id, op, amount)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicationNotFound
		}
		logger.Error("Failed to update medication stock", err, map[string]interface{}{
			"medication_id": id,
		})
		return nil, err
	}

	if medication.IsLowStock() {
		logger.Warn("Medication stock at or below minimum level", map[string]interface{}{
			"medication_id":   medication.ID,
			"stock":           medication.Stock,
			"min_stock_level": medication.MinStockLevel,
		})
	}
	return medication, nil
}

func (s *medicationService) ListCategories() ([]model.Category, error) {
	categories, err := s.medicationRepo.FindActiveCategories()
	if err != nil {
		logger.Error("Failed to list categories", err)
		return nil, err
	}
	return categories, nil
}

func (s *medicationService) GetCategory(id uint) (*model.Category, error) {
	category, err := s.medicationRepo.FindCategoryByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		logger.Error("Failed to fetch category", err, map[string]interface{}{
			"category_id": id,
		})
		return nil, err
	}
	return category, nil
}

func (s *medicationService) GetCategoryBySlug(slug string) (*model.Category, error) {
	category, err := s.medicationRepo.FindCategoryBySlug(strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		logger.Error("Failed to fetch category", err, map[string]interface{}{
			"slug": slug,
		})
		return nil, err
	}
	return category, nil
}

func (s *medicationService) ListLowStock() ([]model.Medication, error) {
	medications, err := s.medicationRepo.FindLowStock()
	if err != nil {
		logger.Error("Failed to list low stock medications", err)
		return nil, err
	}

	if len(medications) > 0 {
		logger.Info("Low stock medications found", map[string]interface{}{
			"count": len(medications),
		})
	}
	return medications, nil
}

// ListExpiringSoon returns medications expiring within days, including ones
// already past their expiry date.
func (s *medicationService) ListExpiringSoon(days int) ([]model.Medication, error) {
	if days < 1 {
		days = DefaultExpiryDays
	}
	if days > maxExpiryLookahead {
		days = maxExpiryLookahead
	}

	cutoff := s.now().AddDate(0, 0, days)
	medications, err := s.medicationRepo.FindExpiringBefore(cutoff)
	if err != nil {
		logger.Error("Failed to list expiring medications", err, map[string]interface{}{
			"days": days,
		})
		return nil, err
	}
	return medications, nil
}
