package database

import (
	"fmt"
	"log"
	"os"

	"enrollment-app/internal/domain/billing"
	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/products"
	"enrollment-app/internal/domain/schedule"
	"enrollment-app/internal/domain/tenants"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	DB = db

	if err := DB.AutoMigrate(
		&tenants.Tenant{},
		&products.Product{},
		&plans.PlanTemplate{},
		&enrollment.Enrollment{},
		&schedule.PaymentObligation{},
		&billing.Payment{},
	); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}

	fmt.Println("Connected and migrated successfully")
}
