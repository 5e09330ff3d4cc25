package storage

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

// OpenAndMigrate opens the code database and keeps its schema current. The
// default DSN is an in-memory database, so codes do not outlive the process.
func OpenAndMigrate(dataSourceName string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dataSourceName, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps a private
	// in-memory database alive between calls.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&game.AccessCode{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
