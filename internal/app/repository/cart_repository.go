package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCartVersionConflict means the cart changed since it was read
var ErrCartVersionConflict = errors.New("cart version conflict")

type CartRepository interface {
	FindByUserID(userID uint) (*model.Cart, error)
	CreateIfAbsent(userID uint) error
	Save(cart *model.Cart) error
	FindUserIDsWithLines() ([]uint, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) FindByUserID(userID uint) (*model.Cart, error) {
	logger.Debug("Finding cart by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var cart model.Cart
	err := r.db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_lines.added_at ASC").Order("cart_lines.id ASC")
		}).
		Preload("Lines.Medication").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		logLookupFailure("Failed to find cart by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	if cart.Lines == nil {
		cart.Lines = []model.CartLine{}
	}

	logger.Debug("Cart found by user ID in database", map[string]interface{}{
		"cart_id": cart.ID,
		"user_id": userID,
		"lines":   len(cart.Lines),
		"version": cart.Version,
	})
	return &cart, nil
}

// CreateIfAbsent inserts an empty cart for userID. An existing cart is left
// untouched, so concurrent callers all end up reading the same row.
func (r *cartRepository) CreateIfAbsent(userID uint) error {
	logger.Debug("Creating cart if absent in database", map[string]interface{}{
		"user_id": userID,
	})

	cart := &model.Cart{
		ID:     uuid.NewString(),
		UserID: userID,
	}
	cart.Recalculate(time.Now())

	result := r.db.
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(cart)
	if result.Error != nil {
		logger.Error("Failed to create cart in database", result.Error, map[string]interface{}{
			"user_id": userID,
		})
		return result.Error
	}

	logger.Debug("Cart create if absent finished", map[string]interface{}{
		"user_id": userID,
		"created": result.RowsAffected > 0,
	})
	return nil
}

// Save writes totals and replaces all lines in one transaction, provided the
// stored version still matches cart.Version. On success cart.Version is
// advanced to the stored value.
func (r *cartRepository) Save(cart *model.Cart) error {
	logger.Debug("Saving cart in database", map[string]interface{}{
		"cart_id":      cart.ID,
		"user_id":      cart.UserID,
		"lines":        len(cart.Lines),
		"total_items":  cart.TotalItems,
		"total_amount": cart.TotalAmount,
		"version":      cart.Version,
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Cart{}).
			Where("id = ? AND version = ?", cart.ID, cart.Version).
			Updates(map[string]interface{}{
				"total_items":  cart.TotalItems,
				"total_amount": cart.TotalAmount,
				"last_updated": cart.LastUpdated,
				"version":      gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCartVersionConflict
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartLine{}).Error; err != nil {
			return err
		}
		if len(cart.Lines) == 0 {
			return nil
		}

		for i := range cart.Lines {
			cart.Lines[i].CartID = cart.ID
			if cart.Lines[i].ID == "" {
				cart.Lines[i].ID = uuid.NewString()
			}
		}
		return tx.Omit(clause.Associations).Create(&cart.Lines).Error
	})
	if err != nil {
		if errors.Is(err, ErrCartVersionConflict) {
			logger.Warn("Cart version conflict while saving", map[string]interface{}{
				"cart_id": cart.ID,
				"user_id": cart.UserID,
				"version": cart.Version,
			})
			return err
		}
		logger.Error("Failed to save cart in database", err, map[string]interface{}{
			"cart_id": cart.ID,
			"user_id": cart.UserID,
		})
		return err
	}

	cart.Version++
	logger.Debug("Cart saved in database", map[string]interface{}{
		"cart_id": cart.ID,
		"version": cart.Version,
	})
	return nil
}

func (r *cartRepository) FindUserIDsWithLines() ([]uint, error) {
	logger.Debug("Finding users with non-empty carts in database")

	var userIDs []uint
	err := r.db.Model(&model.Cart{}).
		Where("EXISTS (SELECT 1 FROM cart_lines WHERE cart_lines.cart_id = carts.id)").
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		logger.Error("Failed to find users with non-empty carts in database", err)
		return nil, err
	}

	logger.Debug("Users with non-empty carts found in database", map[string]interface{}{
		"count": len(userIDs),
	})
	return userIDs, nil
}
