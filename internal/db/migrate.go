package db

import (
	"time"

	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Models lists every table owned by the application, in dependency order
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Category{},
		&model.Medication{},
		&model.Cart{},
		&model.CartLine{},
	}
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// Seed inserts the fixed categories and a starter catalog when the tables are empty
func Seed(db *gorm.DB) error {
	logger.Info("Seeding initial data...")

	if err := seedCategories(db); err != nil {
		logger.Error("Failed to seed categories", err)
		return err
	}
	if err := seedMedications(db); err != nil {
		logger.Error("Failed to seed medications", err)
		return err
	}

	logger.Info("Initial data seeded successfully")
	return nil
}

var seedCategoryList = []model.Category{
	{Name: "Pain Relief", Slug: "pain-relief", Description: "Analgesics and anti-inflammatories", Icon: "pill", IsActive: true},
	{Name: "Cold and Flu", Slug: "cold-and-flu", Description: "Decongestants, cough and flu remedies", Icon: "thermometer", IsActive: true},
	{Name: "Vitamins and Supplements", Slug: "vitamins-and-supplements", Description: "Daily vitamins and minerals", Icon: "leaf", IsActive: true},
	{Name: "Skin Care", Slug: "skin-care", Description: "Creams, ointments and gels", Icon: "droplet", IsActive: true},
}

func seedCategories(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Categories already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	categories := make([]model.Category, len(seedCategoryList))
	copy(categories, seedCategoryList)
	if err := db.Create(&categories).Error; err != nil {
		return err
	}

	logger.Info("Categories seeded successfully", map[string]interface{}{
		"total_categories": len(categories),
	})
	return nil
}

type seedMedication struct {
	categorySlug string
	medication   model.Medication
}

func seedMedications(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Medication{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Medications already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	var categories []model.Category
	if err := db.Find(&categories).Error; err != nil {
		return err
	}
	bySlug := make(map[string]uint, len(categories))
	for _, c := range categories {
		bySlug[c.Slug] = c.ID
	}

	expiry := time.Now().AddDate(2, 0, 0)
	vitaminDSalePrice := 7.99
	seeds := []seedMedication{
		{"pain-relief", model.Medication{
			Name: "Paracetamol", GenericName: "Acetaminophen", BrandName: "Panadol",
			Description: "Relief of mild to moderate pain and fever.",
			DosageForm: model.DosageTablet, Strength: "500mg", PackageSize: "24 tablets",
			SKU: "PAR-500-24", Price: 4.99, Stock: 200, MinStockLevel: 20,
			IsFeatured: true,
		}},
		{"pain-relief", model.Medication{
			Name: "Ibuprofen", GenericName: "Ibuprofen", BrandName: "Nurofen",
			Description: "Anti-inflammatory pain relief.",
			DosageForm: model.DosageTablet, Strength: "200mg", PackageSize: "16 tablets",
			SKU: "IBU-200-16", Price: 5.49, Stock: 150, MinStockLevel: 20,
		}},
		{"cold-and-flu", model.Medication{
			Name: "Day Nurse", GenericName: "Paracetamol/Pholcodine/Pseudoephedrine",
			Description: "Non-drowsy relief from cold and flu symptoms.",
			DosageForm: model.DosageCapsule, Strength: "500mg", PackageSize: "20 capsules",
			SKU: "DAY-NRS-20", Price: 8.99, Stock: 60, MinStockLevel: 10,
		}},
		{"vitamins-and-supplements", model.Medication{
			Name: "Vitamin D3", GenericName: "Cholecalciferol",
			Description: "Supports normal bone and immune function.",
			DosageForm: model.DosageTablet, Strength: "1000IU", PackageSize: "90 tablets",
			SKU: "VIT-D3-90", Price: 9.99, Stock: 120, MinStockLevel: 15,
			IsFeatured: true, IsOnSale: true, SalePrice: &vitaminDSalePrice,
		}},
		{"skin-care", model.Medication{
			Name: "Hydrocortisone Cream", GenericName: "Hydrocortisone",
			Description: "Relief of skin irritation and inflammation.",
			DosageForm: model.DosageCream, Strength: "1%", PackageSize: "15g tube",
			SKU: "HYD-1-15", Price: 6.25, Stock: 40, MinStockLevel: 10,
			RequiresPrescription: false,
		}},
	}

	medications := make([]model.Medication, 0, len(seeds))
	for _, s := range seeds {
		med := s.medication
		med.CategoryID = bySlug[s.categorySlug]
		med.IsActive = true
		med.ExpiryDate = &expiry
		med.Images = datatypes.JSONSlice[model.MedicationImage]{
			{URL: "/images/" + med.SKU + ".jpg", Alt: med.Name, IsPrimary: true},
		}
		medications = append(medications, med)
	}

	if err := db.Create(&medications).Error; err != nil {
		return err
	}

	logger.Info("Medications seeded successfully", map[string]interface{}{
		"total_medications": len(medications),
	})
	return nil
}
