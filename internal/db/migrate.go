package db

import (
	"etherstake/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(&domain.User{}, &domain.Stake{}); err != nil {
		return err // Let the caller decide how to fail
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
