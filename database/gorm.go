package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/storyreel/backend/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a GORM connection to the given Postgres URL and applies
// pool settings. Migration is a separate step so operators can run it
// out of band.
func Connect(dbURL string) (*gorm.DB, error) {
	if dbURL == "" {
		return nil, errors.New("database URL cannot be empty")
	}

	// Configure GORM logger
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	// Get and configure the underlying SQL DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %v", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Models returns every model the relational schema carries, in
// dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.Story{},
		&models.Scenario{},
		&models.Prompt{},
		&models.VideoGeneration{},
	}
}

// Migrate applies the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %v", err)
	}
	return nil
}
