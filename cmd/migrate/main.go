package main

import (
	"etherstake/internal/config"  // Custom import path (Config)
	"etherstake/internal/db"      // Custom import path (Database)
	"etherstake/internal/logging" // Custom import path (Logger setup)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	logging.Setup(cfg.AppEnv)  // Setup logger

	conn, err := db.Open(cfg) // Connect to MySQL
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	defer db.Close(conn)

	if err := db.Migrate(conn); err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
}
