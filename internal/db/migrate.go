package db

import (
	"fmt"

	"github.com/pedroavv1914/zappi-chatbot/internal/config"
	"github.com/pedroavv1914/zappi-chatbot/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model that makes up the schema.
func AllModels() []interface{} {
	return []interface{}{
		&models.Session{},
		&models.Cooldown{},
		&models.Order{},
	}
}

// AutoMigrate creates or updates the sessions, cooldowns and orders tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Open connects and migrates in one step, the usual entry point for
// commands that need a ready store.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gdb, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gdb); err != nil {
		Close(gdb)
		return nil, err
	}
	return gdb, nil
}
