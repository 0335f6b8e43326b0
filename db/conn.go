// Package db contains things related to the database connection
package db

import (
	"bitwise74/audio-api/model"
	"fmt"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New opens the configured database and runs the schema migration.
// Migration runs exactly once here, at process startup, instead of
// being attached to metadata hooks
func New() (*gorm.DB, error) {
	dsn := viper.GetString("database.dsn")

	var dialector gorm.Dialector

	switch viper.GetString("database.driver") {
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	err = db.AutoMigrate(model.Asset{}, model.Migration{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
