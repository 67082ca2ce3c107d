package models

import (
	"time"

	"gorm.io/gorm"
)

// ProjectStatus represents the lifecycle status of a project
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusArchived   ProjectStatus = "archived"
)

// Project is the aggregate root for a video planning workspace.
// IDs are generated by the repository layer, not by the database.
type Project struct {
	ID          string        `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string        `json:"title" gorm:"not null"`
	Description string        `json:"description" gorm:"default:null"`
	UserID      string        `json:"userId" gorm:"type:uuid;not null;index"`
	Status      ProjectStatus `json:"status" gorm:"type:varchar(20);default:'draft'"`

	// Metadata carries the evolving pipeline content (story text, genre,
	// scenes, final prompt, video url) the secondary documents derive from.
	Metadata JSONMap `json:"metadata" gorm:"type:jsonb;default:'{}'"`

	// Tags records which pipeline entity types were ever persisted.
	// The set is monotonically non-decreasing: a tag is never removed,
	// even when the entity it marks is later deleted.
	Tags StringSlice `json:"tags" gorm:"type:jsonb;default:'[]'"`

	Pipeline      PipelineStages `json:"pipeline" gorm:"type:jsonb"`
	Collaborators Collaborators  `json:"collaborators" gorm:"type:jsonb;default:'[]'"`
	Versions      Versions       `json:"versions" gorm:"type:jsonb;default:'[]'"`
	ShareLinks    ShareLinks     `json:"shareLinks" gorm:"type:jsonb;default:'[]'"`

	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	LastAccessedAt *time.Time     `json:"lastAccessedAt" gorm:"default:null"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Stories     []Story           `json:"stories,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	Scenarios   []Scenario        `json:"scenarios,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	Prompts     []Prompt          `json:"prompts,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	Generations []VideoGeneration `json:"generations,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for Project model
func (Project) TableName() string {
	return "projects"
}

// AddTag records a pipeline entity type on the tag set. Adding is the only
// mutation: tags survive entity deletion.
func (p *Project) AddTag(tag string) {
	if !p.Tags.Contains(tag) {
		p.Tags = append(p.Tags, tag)
	}
}

// Owner returns the collaborator holding the owner role.
func (p *Project) Owner() (Collaborator, bool) {
	for _, c := range p.Collaborators {
		if c.Role == RoleOwner {
			return c, true
		}
	}
	return Collaborator{}, false
}

// MetaString reads a string field from project metadata, falling back to
// def when the field is absent or not a string.
func (p *Project) MetaString(key, def string) string {
	if p.Metadata == nil {
		return def
	}
	if v, ok := p.Metadata[key].(string); ok && v != "" {
		return v
	}
	return def
}
