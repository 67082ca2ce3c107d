package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storyreel/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPrimaryStore implements PrimaryStore on a postgres connection.
type GormPrimaryStore struct {
	db *gorm.DB
}

// NewGormPrimaryStore creates a primary store over an existing connection.
func NewGormPrimaryStore(db *gorm.DB) *GormPrimaryStore {
	return &GormPrimaryStore{db: db}
}

// Upsert writes the item's record keyed by id, inserting or updating all
// columns on conflict.
func (s *GormPrimaryStore) Upsert(ctx context.Context, item Item) error {
	db := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	})

	switch item.Kind {
	case KindStory:
		return db.Create(item.Story).Error
	case KindScenario:
		return db.Create(item.Scenario).Error
	case KindPrompt:
		return db.Create(item.Prompt).Error
	case KindVideo:
		return db.Create(item.Video).Error
	case KindProject:
		return db.Create(item.Project).Error
	default:
		return fmt.Errorf("unknown entity kind %q", item.Kind)
	}
}

// Delete removes a record by id. Used both for cascading deletes and for
// compensating rollback, so it must be idempotent: deleting a missing row
// is not an error.
func (s *GormPrimaryStore) Delete(ctx context.Context, kind EntityKind, id string) error {
	db := s.db.WithContext(ctx)
	switch kind {
	case KindStory:
		return db.Unscoped().Delete(&models.Story{}, "id = ?", id).Error
	case KindScenario:
		return db.Unscoped().Delete(&models.Scenario{}, "id = ?", id).Error
	case KindPrompt:
		return db.Unscoped().Delete(&models.Prompt{}, "id = ?", id).Error
	case KindVideo:
		return db.Unscoped().Delete(&models.VideoGeneration{}, "id = ?", id).Error
	case KindProject:
		return db.Unscoped().Delete(&models.Project{}, "id = ?", id).Error
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
}

func (s *GormPrimaryStore) FindProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	result := s.db.WithContext(ctx).First(&project, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &project, result.Error
}

func (s *GormPrimaryStore) FindStory(ctx context.Context, id string) (*models.Story, error) {
	var story models.Story
	result := s.db.WithContext(ctx).First(&story, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &story, result.Error
}

func (s *GormPrimaryStore) FindScenario(ctx context.Context, id string) (*models.Scenario, error) {
	var scenario models.Scenario
	result := s.db.WithContext(ctx).First(&scenario, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &scenario, result.Error
}

func (s *GormPrimaryStore) FindPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	var prompt models.Prompt
	result := s.db.WithContext(ctx).First(&prompt, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &prompt, result.Error
}

func (s *GormPrimaryStore) FindVideo(ctx context.Context, id string) (*models.VideoGeneration, error) {
	var video models.VideoGeneration
	result := s.db.WithContext(ctx).First(&video, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &video, result.Error
}

// ListProjects retrieves projects with pagination, filtering and sorting.
// Sort columns are whitelisted so user input never reaches the ORDER BY.
func (s *GormPrimaryStore) ListProjects(ctx context.Context, q ProjectQuery) ([]models.Project, int64, error) {
	validSortColumns := map[string]string{
		"created_at":       "created_at",
		"updated_at":       "updated_at",
		"updatedAt":        "updated_at",
		"title":            "title",
		"last_accessed_at": "last_accessed_at",
	}
	sortBy, ok := validSortColumns[q.SortBy]
	if !ok {
		sortBy = "updated_at"
	}
	sortOrder := strings.ToLower(q.SortOrder)
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	query := s.db.WithContext(ctx).Model(&models.Project{}).Where("user_id = ?", q.UserID)
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Search != "" {
		term := "%" + q.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []models.Project
	err := query.Order(sortBy + " " + sortOrder).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&projects).Error

	return projects, total, err
}

// CountProjectsByTitle counts a user's projects with an exact title, used
// for duplicate-name detection.
func (s *GormPrimaryStore) CountProjectsByTitle(ctx context.Context, userID, title string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("user_id = ? AND title = ?", userID, title).
		Count(&count).Error
	return count, err
}

// TouchLastAccessed stamps the read timestamp without bumping updated_at.
func (s *GormPrimaryStore) TouchLastAccessed(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", id).
		UpdateColumn("last_accessed_at", at).Error
}
