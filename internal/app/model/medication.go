package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DosageForm string

const (
	DosageTablet  DosageForm = "Tablet"
	DosageCapsule DosageForm = "Capsule"
	DosageLiquid  DosageForm = "Liquid"
	DosageSyrup   DosageForm = "Syrup"
	DosageCream   DosageForm = "Cream"
	DosageGel     DosageForm = "Gel"
	DosageDrops   DosageForm = "Drops"
	DosageSpray   DosageForm = "Spray"
	DosagePowder  DosageForm = "Powder"
)

var dosageForms = []DosageForm{
	DosageTablet, DosageCapsule, DosageLiquid, DosageSyrup, DosageCream,
	DosageGel, DosageDrops, DosageSpray, DosagePowder,
}

// ParseDosageForm matches raw against the known forms, ignoring case
func ParseDosageForm(raw string) (DosageForm, bool) {
	for _, form := range dosageForms {
		if strings.EqualFold(string(form), raw) {
			return form, true
		}
	}
	return "", false
}

type Category struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	IsActive    bool      `gorm:"not null" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Category) TableName() string {
	return "categories"
}

type MedicationImage struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	IsPrimary bool   `json:"isPrimary"`
}

// Medication is a catalog product. The cart only reads Price, Stock and IsActive.
type Medication struct {
	ID                   uint                                `gorm:"primarykey" json:"id"`
	Name                 string                              `gorm:"not null;index" json:"name"`
	GenericName          string                              `gorm:"index" json:"genericName"`
	BrandName            string                              `json:"brandName"`
	Description          string                              `gorm:"type:text" json:"description"`
	CategoryID           uint                                `gorm:"not null;index" json:"categoryId"`
	DosageForm           DosageForm                          `gorm:"type:varchar(30)" json:"dosageForm"`
	Strength             string                              `json:"strength"`
	PackageSize          string                              `json:"packageSize"`
	SKU                  string                              `gorm:"uniqueIndex;not null" json:"sku"`
	Price                float64                             `gorm:"not null" json:"price"`
	Stock                int                                 `gorm:"not null;default:0;index" json:"stock"`
	MinStockLevel        int                                 `gorm:"not null;default:10" json:"minStockLevel"`
	RequiresPrescription bool                                `gorm:"not null;default:false;index" json:"requiresPrescription"`
	IsActive             bool                                `gorm:"not null" json:"isActive"`
	IsFeatured           bool                                `gorm:"not null;default:false;index" json:"isFeatured"`
	IsOnSale             bool                                `gorm:"not null;default:false;index" json:"isOnSale"`
	SalePrice            *float64                            `json:"salePrice,omitempty"`
	Images               datatypes.JSONSlice[MedicationImage] `json:"images"`
	ExpiryDate           *time.Time                          `gorm:"index" json:"expiryDate,omitempty"`
	CreatedAt            time.Time                           `json:"createdAt"`
	UpdatedAt            time.Time                           `json:"updatedAt"`
	DeletedAt            gorm.DeletedAt                      `gorm:"index" json:"-"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Medication) TableName() string {
	return "medications"
}

// IsExpired reports whether the expiry date is before now. Medications
// without an expiry date never expire.
func (m *Medication) IsExpired(now time.Time) bool {
	return m.ExpiryDate != nil && m.ExpiryDate.Before(now)
}

func (m *Medication) IsLowStock() bool {
	return m.Stock <= m.MinStockLevel
}

// Available reports whether the medication can currently be sold at all
func (m *Medication) Available() bool {
	return m.IsActive && m.Stock > 0
}
