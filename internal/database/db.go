package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"facilicore-system/internal/database/models"
)

func NewConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		log.Fatal("DSN is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func MigrateInventoryDB(db *gorm.DB) error {
	db.AutoMigrate(&models.Item{})
	db.AutoMigrate(&models.StockTransaction{})
	db.AutoMigrate(&models.Reservation{})
	db.AutoMigrate(&models.ItemRequest{})
	db.AutoMigrate(&models.LowStockAlert{})
	db.AutoMigrate(&models.MaintenanceTask{})
	return nil
}
