package database

import (
	"fmt"
	"log"

	"github.com/storyreel/backend/models"
	"gorm.io/gorm"
)

// DBConnection pairs a named connection with its URL for migration
// tooling.
type DBConnection struct {
	DB    *gorm.DB
	Name  string
	DbURL string
}

// NewDBConnection connects to a database for migration tooling.
func NewDBConnection(name, dbURL string) (*DBConnection, error) {
	db, err := Connect(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %v", name, err)
	}
	log.Printf("✅ Connected to %s database", name)
	return &DBConnection{DB: db, Name: name, DbURL: dbURL}, nil
}

// Migrate migrates the database schema
func (c *DBConnection) Migrate() error {
	log.Printf("Migrating %s database schema...", c.Name)
	if err := Migrate(c.DB); err != nil {
		return fmt.Errorf("failed to migrate %s database: %v", c.Name, err)
	}
	log.Printf("✅ %s database schema migrated", c.Name)
	return nil
}

// MigrateDataBetweenDatabases copies all rows from source to target in
// foreign-key order. Intended for one-off moves between Postgres
// instances; both schemas must already be migrated.
func MigrateDataBetweenDatabases(source, target *DBConnection) error {
	log.Println("Starting data migration from source to target...")

	var users []models.User
	if err := source.DB.Find(&users).Error; err != nil {
		return fmt.Errorf("failed to fetch users: %v", err)
	}
	log.Printf("Found %d users to migrate", len(users))
	if len(users) > 0 {
		if err := target.DB.Create(&users).Error; err != nil {
			return fmt.Errorf("failed to migrate users: %v", err)
		}
	}

	var projects []models.Project
	if err := source.DB.Find(&projects).Error; err != nil {
		return fmt.Errorf("failed to fetch projects: %v", err)
	}
	log.Printf("Found %d projects to migrate", len(projects))
	if len(projects) > 0 {
		if err := target.DB.Create(&projects).Error; err != nil {
			return fmt.Errorf("failed to migrate projects: %v", err)
		}
	}

	var stories []models.Story
	if err := source.DB.Find(&stories).Error; err != nil {
		return fmt.Errorf("failed to fetch stories: %v", err)
	}
	log.Printf("Found %d stories to migrate", len(stories))
	if len(stories) > 0 {
		if err := target.DB.Create(&stories).Error; err != nil {
			return fmt.Errorf("failed to migrate stories: %v", err)
		}
	}

	var scenarios []models.Scenario
	if err := source.DB.Find(&scenarios).Error; err != nil {
		return fmt.Errorf("failed to fetch scenarios: %v", err)
	}
	log.Printf("Found %d scenarios to migrate", len(scenarios))
	if len(scenarios) > 0 {
		if err := target.DB.Create(&scenarios).Error; err != nil {
			return fmt.Errorf("failed to migrate scenarios: %v", err)
		}
	}

	var prompts []models.Prompt
	if err := source.DB.Find(&prompts).Error; err != nil {
		return fmt.Errorf("failed to fetch prompts: %v", err)
	}
	log.Printf("Found %d prompts to migrate", len(prompts))
	if len(prompts) > 0 {
		if err := target.DB.Create(&prompts).Error; err != nil {
			return fmt.Errorf("failed to migrate prompts: %v", err)
		}
	}

	var videos []models.VideoGeneration
	if err := source.DB.Find(&videos).Error; err != nil {
		return fmt.Errorf("failed to fetch video generations: %v", err)
	}
	log.Printf("Found %d video generations to migrate", len(videos))
	if len(videos) > 0 {
		if err := target.DB.Create(&videos).Error; err != nil {
			return fmt.Errorf("failed to migrate video generations: %v", err)
		}
	}

	log.Println("✅ Data migration completed successfully!")
	return nil
}
