package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/internal/app/repository"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCartNotFound          = errors.New("cart not found")
	ErrCartItemNotFound      = errors.New("cart item not found")
	ErrCartConflict          = errors.New("cart was modified concurrently")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrInvalidMedicationID   = errors.New("invalid medication id")
	ErrMedicationUnavailable = errors.New("medication is not available")
	ErrInsufficientStock     = errors.New("insufficient stock")
)

// errNoChange lets a mutation finish without writing the cart
var errNoChange = errors.New("no change")

// StockExceededError rejects a quantity above the current stock. MaxAddable is
// how many more units the caller could still ask for.
type StockExceededError struct {
	MedicationID uint
	Requested    int
	Available    int
	InCart       int
	MaxAddable   int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("insufficient stock for medication %d: requested %d, available %d, in cart %d",
		e.MedicationID, e.Requested, e.Available, e.InCart)
}

func (e *StockExceededError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type SyncItem struct {
	MedicationID uint `json:"medicationId"`
	Quantity     int  `json:"quantity"`
}

type SyncStatus string

const (
	SyncApplied SyncStatus = "applied"
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
)

const (
	SkipInvalidMedication  = "invalid medication id"
	SkipInvalidQuantity    = "invalid quantity"
	SkipMedicationNotFound = "medication not found"
	SkipUnavailable        = "medication not available"
	SkipInsufficientStock  = "insufficient stock"
)

type SkippedLine struct {
	MedicationID uint   `json:"medicationId"`
	Quantity     int    `json:"quantity"`
	Reason       string `json:"reason"`
}

// SyncResult describes how a guest cart merge went
type SyncResult struct {
	Status  SyncStatus    `json:"status"`
	Applied []SyncItem    `json:"applied"`
	Skipped []SkippedLine `json:"skipped"`
}

type CartService interface {
	GetOrCreate(userID uint) (*model.Cart, error)
	Count(userID uint) (int, error)
	AddItem(userID, medicationID uint, quantity int) (*model.Cart, error)
	UpdateItem(userID, medicationID uint, quantity int) (*model.Cart, error)
	RemoveItem(userID, medicationID uint) (*model.Cart, error)
	Clear(userID uint) (*model.Cart, error)
	Sync(userID uint, items []SyncItem) (*model.Cart, *SyncResult, error)
	CleanupInactive(userID uint) (int, error)
	CleanupAllInactive() (int, error)
}

type cartService struct {
	cartRepo       repository.CartRepository
	medicationRepo repository.MedicationRepository
	maxRetries     int
	now            func() time.Time
}

func NewCartService(
	cartRepo repository.CartRepository,
	medicationRepo repository.MedicationRepository,
	maxRetries int,
) CartService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &cartService{
		cartRepo:       cartRepo,
		medicationRepo: medicationRepo,
		maxRetries:     maxRetries,
		now:            time.Now,
	}
}

func (s *cartService) GetOrCreate(userID uint) (*model.Cart, error) {
	logger.Debug("Fetching user cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.loadCart(userID, true)
	if err != nil {
		return nil, err
	}

	logger.Debug("User cart fetched successfully", map[string]interface{}{
		"user_id":     userID,
		"cart_id":     cart.ID,
		"lines":       len(cart.Lines),
		"total_items": cart.TotalItems,
	})
	return cart, nil
}

func (s *cartService) Count(userID uint) (int, error) {
	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return 0, err
	}
	return cart.TotalItems, nil
}

func (s *cartService) AddItem(userID, medicationID uint, quantity int) (*model.Cart, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":       userID,
		"medication_id": medicationID,
		"quantity":      quantity,
	})

	if medicationID == 0 {
		return nil, ErrInvalidMedicationID
	}
	if quantity < 1 {
		logger.Warn("Cannot add to cart: invalid quantity", map[string]interface{}{
			"user_id":  userID,
			"quantity": quantity,
		})
		return nil, ErrInvalidQuantity
	}

	// rejected adds must not leave an empty cart behind
	medication, err := s.findMedication(medicationID)
	if err == nil && !medication.IsActive {
		err = ErrMedicationUnavailable
	}
	if err != nil {
		s.logRejection("Cannot add to cart", err, userID, medicationID)
		return nil, err
	}

	fresh := true
	cart, err := s.mutate(userID, true, func(cart *model.Cart) error {
		if !fresh {
			if medication, err = s.findMedication(medicationID); err != nil {
				return err
			}
		}
		fresh = false
		return s.stageAdd(cart, medication, quantity)
	})
	if err != nil {
		s.logRejection("Cannot add to cart", err, userID, medicationID)
		return nil, err
	}

	logger.Info("Item added to cart successfully", map[string]interface{}{
		"user_id":       userID,
		"medication_id": medicationID,
		"quantity":      cart.QuantityOf(medicationID),
		"total_items":   cart.TotalItems,
		"total_amount":  cart.TotalAmount,
	})
	return cart, nil
}

func (s *cartService) UpdateItem(userID, medicationID uint, quantity int) (*model.Cart, error) {
	logger.Info("Updating cart item", map[string]interface{}{
		"user_id":       userID,
		"medication_id": medicationID,
		"quantity":      quantity,
	})

	if medicationID == 0 {
		return nil, ErrInvalidMedicationID
	}
	if quantity <= 0 {
		return s.RemoveItem(userID, medicationID)
	}

	cart, err := s.mutate(userID, false, func(cart *model.Cart) error {
		line := cart.LineFor(medicationID)
		if line == nil {
			return ErrCartItemNotFound
		}

		medication, err := s.findMedication(medicationID)
		if err != nil {
			return err
		}
		if quantity > medication.Stock {
			return &StockExceededError{
				MedicationID: medicationID,
				Requested:    quantity,
				Available:    medication.Stock,
				InCart:       line.Quantity,
				MaxAddable:   medication.Stock,
			}
		}

		line.Quantity = quantity
		line.UnitPrice = medication.Price
		line.Medication = medication
		return nil
	})
	if err != nil {
		s.logRejection("Cannot update cart item", err, userID, medicationID)
		return nil, err
	}

	logger.Info("Cart item updated successfully", map[string]interface{}{
		"user_id":       userID,
		"medication_id": medicationID,
		"quantity":      quantity,
		"total_items":   cart.TotalItems,
	})
	return cart, nil
}

func (s *cartService) RemoveItem(userID, medicationID uint) (*model.Cart, error) {
	logger.Info("Removing item from cart", map[string]interface{}{
		"user_id":       userID,
		"medication_id": medicationID,
	})

	removed := false
	cart, err := s.mutate(userID, false, func(cart *model.Cart) error {
		removed = cart.RemoveLine(medicationID)
		return nil
	})
	if err != nil {
		s.logRejection("Cannot remove cart item", err, userID, medicationID)
		return nil, err
	}

	logger.Info("Cart item removed", map[string]interface{}{
		"user_id":       userID,
		"medication_id": medicationID,
		"was_present":   removed,
		"total_items":   cart.TotalItems,
	})
	return cart, nil
}

func (s *cartService) Clear(userID uint) (*model.Cart, error) {
	logger.Info("Clearing cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.mutate(userID, false, func(cart *model.Cart) error {
		cart.ClearLines()
		return nil
	})
	if err != nil {
		s.logRejection("Cannot clear cart", err, userID, 0)
		return nil, err
	}

	logger.Info("Cart cleared successfully", map[string]interface{}{
		"user_id": userID,
	})
	return cart, nil
}

// Sync replaces the stored cart with the valid subset of items. The new line
// set is built in memory and written once, so a failed sync leaves the
// previous cart in place.
func (s *cartService) Sync(userID uint, items []SyncItem) (*model.Cart, *SyncResult, error) {
	logger.Info("Syncing guest cart", map[string]interface{}{
		"user_id": userID,
		"items":   len(items),
	})

	var skipped []SkippedLine
	cart, err := s.mutate(userID, true, func(cart *model.Cart) error {
		skipped = []SkippedLine{}
		cart.ClearLines()

		medications := make(map[uint]*model.Medication)
		for _, item := range items {
			reason, err := s.stageSyncItem(cart, item, medications)
			if err != nil {
				return err
			}
			if reason != "" {
				logger.Warn("Skipping guest cart line", map[string]interface{}{
					"user_id":       userID,
					"medication_id": item.MedicationID,
					"quantity":      item.Quantity,
					"reason":        reason,
				})
				skipped = append(skipped, SkippedLine{
					MedicationID: item.MedicationID,
					Quantity:     item.Quantity,
					Reason:       reason,
				})
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to sync guest cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, &SyncResult{Status: SyncFailed, Applied: []SyncItem{}, Skipped: []SkippedLine{}}, err
	}

	result := &SyncResult{
		Status:  SyncApplied,
		Applied: make([]SyncItem, 0, len(cart.Lines)),
		Skipped: skipped,
	}
	for _, line := range cart.Lines {
		result.Applied = append(result.Applied, SyncItem{MedicationID: line.MedicationID, Quantity: line.Quantity})
	}
	if len(skipped) > 0 {
		result.Status = SyncPartial
	}

	logger.Info("Guest cart synced", map[string]interface{}{
		"user_id": userID,
		"status":  result.Status,
		"applied": len(result.Applied),
		"skipped": len(result.Skipped),
	})
	return cart, result, nil
}

// CleanupInactive drops lines whose medication was deleted, deactivated or
// ran out of stock. A user without a cart has nothing to clean.
func (s *cartService) CleanupInactive(userID uint) (int, error) {
	logger.Debug("Cleaning up unavailable cart lines", map[string]interface{}{
		"user_id": userID,
	})

	removed := 0
	_, err := s.mutate(userID, false, func(cart *model.Cart) error {
		removed = 0
		kept := make([]model.CartLine, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			if line.Medication == nil || !line.Medication.Available() {
				removed++
				continue
			}
			kept = append(kept, line)
		}
		if removed == 0 {
			return errNoChange
		}
		cart.Lines = kept
		return nil
	})
	if errors.Is(err, ErrCartNotFound) {
		return 0, nil
	}
	if err != nil {
		logger.Error("Failed to clean up cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return 0, err
	}

	if removed > 0 {
		logger.Info("Removed unavailable cart lines", map[string]interface{}{
			"user_id": userID,
			"removed": removed,
		})
	}
	return removed, nil
}

func (s *cartService) CleanupAllInactive() (int, error) {
	userIDs, err := s.cartRepo.FindUserIDsWithLines()
	if err != nil {
		logger.Error("Failed to list carts for cleanup", err)
		return 0, err
	}

	total := 0
	var errs []error
	for _, userID := range userIDs {
		removed, err := s.CleanupInactive(userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			continue
		}
		total += removed
	}

	logger.Info("Cart cleanup finished", map[string]interface{}{
		"carts":   len(userIDs),
		"removed": total,
		"failed":  len(errs),
	})
	return total, errors.Join(errs...)
}

// mutate runs apply against a freshly loaded cart and saves the result,
// retrying the whole read-modify-write when another writer got there first.
func (s *cartService) mutate(userID uint, create bool, apply func(cart *model.Cart) error) (*model.Cart, error) {
	for attempt := 1; ; attempt++ {
		cart, err := s.loadCart(userID, create)
		if err != nil {
			return nil, err
		}

		if err := apply(cart); err != nil {
			if errors.Is(err, errNoChange) {
				return cart, nil
			}
			return nil, err
		}

		cart.Recalculate(s.now())
		err = s.cartRepo.Save(cart)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, repository.ErrCartVersionConflict) {
			logger.Error("Failed to save cart", err, map[string]interface{}{
				"user_id": userID,
				"cart_id": cart.ID,
			})
			return nil, err
		}
		if attempt >= s.maxRetries {
			logger.Warn("Giving up on cart update after repeated conflicts", map[string]interface{}{
				"user_id":  userID,
				"attempts": attempt,
			})
			return nil, ErrCartConflict
		}

		logger.Debug("Retrying cart update after version conflict", map[string]interface{}{
			"user_id": userID,
			"attempt": attempt,
		})
	}
}

func (s *cartService) loadCart(userID uint, create bool) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByUserID(userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to fetch cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	if !create {
		return nil, ErrCartNotFound
	}

	if err := s.cartRepo.CreateIfAbsent(userID); err != nil {
		return nil, err
	}
	logger.Info("Cart created for user", map[string]interface{}{
		"user_id": userID,
	})

	cart, err = s.cartRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch newly created cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return cart, nil
}

func (s *cartService) findMedication(medicationID uint) (*model.Medication, error) {
	medication, err := s.medicationRepo.FindByID(medicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicationNotFound
		}
		logger.Error("Failed to fetch medication", err, map[string]interface{}{
			"medication_id": medicationID,
		})
		return nil, err
	}
	return medication, nil
}

// stageAdd merges quantity into the cart in memory. Existing lines are
// re-priced at the current catalog price.
func (s *cartService) stageAdd(cart *model.Cart, medication *model.Medication, quantity int) error {
	if !medication.IsActive {
		return ErrMedicationUnavailable
	}

	inCart := cart.QuantityOf(medication.ID)
	if quantity > medication.Stock-inCart {
		maxAddable := medication.Stock - inCart
		if maxAddable < 0 {
			maxAddable = 0
		}
		return &StockExceededError{
			MedicationID: medication.ID,
			Requested:    quantity,
			Available:    medication.Stock,
			InCart:       inCart,
			MaxAddable:   maxAddable,
		}
	}

	if line := cart.LineFor(medication.ID); line != nil {
		line.Quantity += quantity
		line.UnitPrice = medication.Price
		line.Medication = medication
		return nil
	}

	cart.Lines = append(cart.Lines, model.CartLine{
		MedicationID: medication.ID,
		Quantity:     quantity,
		UnitPrice:    medication.Price,
		AddedAt:      s.now(),
		Medication:   medication,
	})
	return nil
}

// stageSyncItem returns a skip reason for lines that fail validation. Only
// storage failures come back as errors.
func (s *cartService) stageSyncItem(cart *model.Cart, item SyncItem, cache map[uint]*model.Medication) (string, error) {
	if item.MedicationID == 0 {
		return SkipInvalidMedication, nil
	}
	if item.Quantity < 1 {
		return SkipInvalidQuantity, nil
	}

	medication, ok := cache[item.MedicationID]
	if !ok {
		var err error
		medication, err = s.findMedication(item.MedicationID)
		if errors.Is(err, ErrMedicationNotFound) {
			return SkipMedicationNotFound, nil
		}
		if err != nil {
			return "", err
		}
		cache[item.MedicationID] = medication
	}

	err := s.stageAdd(cart, medication, item.Quantity)
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, ErrMedicationUnavailable):
		return SkipUnavailable, nil
	case errors.Is(err, ErrInsufficientStock):
		return SkipInsufficientStock, nil
	default:
		return "", err
	}
}

func (s *cartService) logRejection(msg string, err error, userID, medicationID uint) {
	fields := map[string]interface{}{
		"user_id":       userID,
		"medication_id": medicationID,
	}

	var stockErr *StockExceededError
	if errors.As(err, &stockErr) {
		fields["requested"] = stockErr.Requested
		fields["available"] = stockErr.Available
		fields["in_cart"] = stockErr.InCart
		logger.Warn(msg+": insufficient stock", fields)
		return
	}

	switch {
	case errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrCartItemNotFound),
		errors.Is(err, ErrMedicationNotFound),
		errors.Is(err, ErrMedicationUnavailable),
		errors.Is(err, ErrCartConflict):
		fields["reason"] = err.Error()
		logger.Warn(msg, fields)
	}
}
