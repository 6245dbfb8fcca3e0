package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	"gorm.io/gorm"
)

type MedicationSort string

const (
	MedicationSortName      MedicationSort = "name"
	MedicationSortPrice     MedicationSort = "price"
	MedicationSortCreatedAt MedicationSort = "created_at"
)

type StockOperation string

const (
	StockSet      StockOperation = "set"
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
)

type MedicationFilter struct {
	CategoryID           *uint
	CategorySlug         string
	Search               string
	DosageForm           model.DosageForm
	RequiresPrescription *bool
	MinPrice             *float64
	MaxPrice             *float64
	InStockOnly          bool
	SortBy               MedicationSort
	SortAscending        bool
	Limit                int
	Offset               int
}

type MedicationRepository interface {
	FindByID(id uint) (*model.Medication, error)
	FindWithFilter(filter MedicationFilter) ([]model.Medication, int64, error)
	FindFeatured(limit int) ([]model.Medication, error)
	FindOnSale(limit int) ([]model.Medication, error)
	FindLowStock() ([]model.Medication, error)
	FindExpiringBefore(cutoff time.Time) ([]model.Medication, error)
	UpdateStock(id uint, op StockOperation, amount int) (*model.Medication, error)
	FindActiveCategories() ([]model.Category, error)
	FindCategoryByID(id uint) (*model.Category, error)
	FindCategoryBySlug(slug string) (*model.Category, error)
}

type medicationRepository struct {
	db *gorm.DB
}

func NewMedicationRepository(db *gorm.DB) MedicationRepository {
	return &medicationRepository{db: db}
}

// FindByID returns the medication regardless of IsActive so carts can still
// show lines for products that were switched off.
func (r *medicationRepository) FindByID(id uint) (*model.Medication, error) {
	logger.Debug("Finding medication by ID in database", map[string]interface{}{
		"medication_id": id,
	})

	var medication model.Medication
	if err := r.db.Preload("Category").First(&medication, id).Error; err != nil {
		logLookupFailure("Failed to find medication by ID in database", err, map[string]interface{}{
			"medication_id": id,
		})
		return nil, err
	}

	logger.Debug("Medication found by ID in database", map[string]interface{}{
		"medication_id": medication.ID,
		"stock":         medication.Stock,
		"is_active":     medication.IsActive,
	})
	return &medication, nil
}

func (r *medicationRepository) FindWithFilter(filter MedicationFilter) ([]model.Medication, int64, error) {
	logger.Debug("Finding medications with filter", map[string]interface{}{
		"category_id":   filter.CategoryID,
		"category_slug": filter.CategorySlug,
		"search":        filter.Search,
		"sort_by":       filter.SortBy,
		"ascending":     filter.SortAscending,
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	})

	query := r.db.Model(&model.Medication{}).Where("medications.is_active = ?", true)

	if filter.CategoryID != nil {
		query = query.Where("medications.category_id = ?", *filter.CategoryID)
	}
	if filter.CategorySlug != "" {
		query = query.Joins("JOIN categories ON categories.id = medications.category_id").
			Where("categories.slug = ?", filter.CategorySlug)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := fmt.Sprintf("%%%s%%", strings.ToLower(search))
		query = query.Where(
			"LOWER(medications.name) LIKE ? OR LOWER(medications.generic_name) LIKE ? OR LOWER(medications.brand_name) LIKE ? OR LOWER(medications.description) LIKE ?",
			like, like, like, like,
		)
	}
	if filter.DosageForm != "" {
		query = query.Where("medications.dosage_form = ?", filter.DosageForm)
	}
	if filter.RequiresPrescription != nil {
		query = query.Where("medications.requires_prescription = ?", *filter.RequiresPrescription)
	}
	if filter.MinPrice != nil {
		query = query.Where("medications.price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("medications.price <= ?", *filter.MaxPrice)
	}
	if filter.InStockOnly {
		query = query.Where("medications.stock > ?", 0)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count medications with filter", err)
		return nil, 0, err
	}

	direction := "DESC"
	if filter.SortAscending {
		direction = "ASC"
	}
	switch filter.SortBy {
	case MedicationSortName:
		query = query.Order("medications.name " + direction)
	case MedicationSortPrice:
		query = query.Order("medications.price " + direction)
	default:
		query = query.Order("medications.created_at " + direction)
	}
	query = query.Order("medications.id ASC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var medications []model.Medication
	if err := query.Preload("Category").Find(&medications).Error; err != nil {
		logger.Error("Failed to find medications with filter", err)
		return nil, 0, err
	}

	logger.Debug("Medications found with filter", map[string]interface{}{
		"count": len(medications),
		"total": total,
	})
	return medications, total, nil
}

func (r *medicationRepository) FindFeatured(limit int) ([]model.Medication, error) {
	return r.findFlagged("is_featured", limit)
}

func (r *medicationRepository) FindOnSale(limit int) ([]model.Medication, error) {
	return r.findFlagged("is_on_sale", limit)
}

// findFlagged lists active medications with a boolean flag column set
func (r *medicationRepository) findFlagged(column string, limit int) ([]model.Medication, error) {
	logger.Debug("Finding flagged medications in database", map[string]interface{}{
		"flag":  column,
		"limit": limit,
	})

	var medications []model.Medication
	err := r.db.Preload("Category").
		Where("is_active = ? AND "+column+" = ?", true, true).
		Order("name ASC").
		Order("id ASC").
		Limit(limit).
		Find(&medications).Error
	if err != nil {
		logger.Error("Failed to find flagged medications in database", err, map[string]interface{}{
			"flag": column,
		})
		return nil, err
	}

	logger.Debug("Flagged medications found in database", map[string]interface{}{
		"flag":  column,
		"count": len(medications),
	})
	return medications, nil
}

func (r *medicationRepository) FindLowStock() ([]model.Medication, error) {
	logger.Debug("Finding low stock medications in database")

	var medications []model.Medication
	err := r.db.Where("is_active = ? AND stock <= min_stock_level", true).
		Order("stock ASC").
		Order("id ASC").
		Find(&medications).Error
	if err != nil {
		logger.Error("Failed to find low stock medications in database", err)
		return nil, err
	}

	logger.Debug("Low stock medications found in database", map[string]interface{}{
		"count": len(medications),
	})
	return medications, nil
}

func (r *medicationRepository) FindExpiringBefore(cutoff time.Time) ([]model.Medication, error) {
	logger.Debug("Finding expiring medications in database", map[string]interface{}{
		"cutoff": cutoff,
	})

	var medications []model.Medication
	err := r.db.Where("is_active = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", true, cutoff).
		Order("expiry_date ASC").
		Find(&medications).Error
	if err != nil {
		logger.Error("Failed to find expiring medications in database", err, map[string]interface{}{
			"cutoff": cutoff,
		})
		return nil, err
	}

	logger.Debug("Expiring medications found in database", map[string]interface{}{
		"count": len(medications),
	})
	return medications, nil
}

// UpdateStock applies op in a single UPDATE so concurrent adjustments do not
// overwrite each other. Subtract floors at zero.
func (r *medicationRepository) UpdateStock(id uint, op StockOperation, amount int) (*model.Medication, error) {
	logger.Info("Updating medication stock in database", map[string]interface{}{
		"medication_id": id,
		"operation":     op,
		"amount":        amount,
	})

	var value interface{}
	switch op {
	case StockAdd:
		value = gorm.Expr("stock + ?", amount)
	case StockSubtract:
		value = gorm.Expr("CASE WHEN stock > ? THEN stock - ? ELSE 0 END", amount, amount)
	default:
		value = amount
	}

	var medication model.Medication
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Medication{}).Where("id = ?", id).Update("stock", value)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Preload("Category").First(&medication, id).Error
	})
	if err != nil {
		logLookupFailure("Failed to update medication stock in database", err, map[string]interface{}{
			"medication_id": id,
			"operation":     op,
		})
		return nil, err
	}

	logger.Info("Medication stock updated in database", map[string]interface{}{
		"medication_id": id,
		"stock":         medication.Stock,
	})
	return &medication, nil
}

func (r *medicationRepository) FindActiveCategories() ([]model.Category, error) {
	logger.Debug("Finding active categories in database")

	var categories []model.Category
	if err := r.db.Where("is_active = ?", true).Order("name ASC").Find(&categories).Error; err != nil {
		logger.Error("Failed to find active categories in database", err)
		return nil, err
	}
	return categories, nil
}

func (r *medicationRepository) FindCategoryBySlug(slug string) (*model.Category, error) {
	logger.Debug("Finding category by slug in database", map[string]interface{}{
		"slug": slug,
	})

	var category model.Category
	if err := r.db.Where("slug = ? AND is_active = ?", slug, true).First(&category).Error; err != nil {
		logLookupFailure("Failed to find category by slug in database", err, map[string]interface{}{
			"slug": slug,
		})
		return nil, err
	}
	return &category, nil
}

// FindCategoryByID returns the category whether or not it is active
func (r *medicationRepository) FindCategoryByID(id uint) (*model.Category, error) {
	logger.Debug("Finding category by ID in database", map[string]interface{}{
		"category_id": id,
	})

	var category model.Category
	if err := r.db.First(&category, id).Error; err != nil {
		logLookupFailure("Failed to find category by ID in database", err, map[string]interface{}{
			"category_id": id,
		})
		return nil, err
	}
	return &category, nil
}
