package database

import (
	"fmt"
	"os"

	"gymstack_go_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the Postgres connection and migrates the schema. The handle
// is returned to the caller and injected into every service; nothing in this
// package holds a global.
func Connect() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Exercise{},
		&models.EquipmentInventory{},
		&models.AIUsageRecord{},
		&models.UserAIUsageRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return db, nil
}
