package model

import (
	"math"
	"time"
)

// Cart is the single active cart owned by a user. Totals are derived from
// Lines and recomputed by Recalculate before every save.
type Cart struct {
	ID          string     `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID      uint       `gorm:"not null;uniqueIndex" json:"user"`
	Lines       []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	TotalItems  int        `gorm:"not null;default:0" json:"totalItems"`
	TotalAmount float64    `gorm:"not null;default:0" json:"totalAmount"`
	Version     int        `gorm:"not null;default:0" json:"-"`
	LastUpdated time.Time  `json:"lastUpdated"`
	CreatedAt   time.Time  `json:"createdAt"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Cart) TableName() string {
	return "carts"
}

// CartLine holds one medication in a cart. UnitPrice is the snapshot taken
// when the line was last touched; Medication.Price is the live catalog price.
type CartLine struct {
	ID           string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	CartID       string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_cart_lines_cart_medication" json:"-"`
	MedicationID uint      `gorm:"not null;index;uniqueIndex:idx_cart_lines_cart_medication" json:"medicationId"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	UnitPrice    float64   `gorm:"not null" json:"unitPrice"`
	AddedAt      time.Time `gorm:"not null" json:"addedAt"`

	Medication *Medication `gorm:"foreignKey:MedicationID" json:"medication"`
}

func (CartLine) TableName() string {
	return "cart_lines"
}

// LineFor returns the line for medicationID, or nil
func (c *Cart) LineFor(medicationID uint) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].MedicationID == medicationID {
			return &c.Lines[i]
		}
	}
	return nil
}

// QuantityOf returns how many units of medicationID are already in the cart
func (c *Cart) QuantityOf(medicationID uint) int {
	if line := c.LineFor(medicationID); line != nil {
		return line.Quantity
	}
	return 0
}

// RemoveLine drops the line for medicationID and reports whether one existed
func (c *Cart) RemoveLine(medicationID uint) bool {
	for i := range c.Lines {
		if c.Lines[i].MedicationID == medicationID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// ClearLines empties the cart but keeps the record
func (c *Cart) ClearLines() {
	c.Lines = []CartLine{}
}

// Recalculate drops non-positive lines, recomputes totals and stamps
// LastUpdated.
func (c *Cart) Recalculate(now time.Time) {
	kept := make([]CartLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	c.Lines = kept

	totalItems := 0
	totalAmount := 0.0
	for _, line := range c.Lines {
		totalItems += line.Quantity
		totalAmount += line.UnitPrice * float64(line.Quantity)
	}

	c.TotalItems = totalItems
	c.TotalAmount = RoundCents(totalAmount)
	c.LastUpdated = now
}

// RoundCents rounds a currency amount to two decimals
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
