package models

import (
	"time"
)

// Pipeline entity type tags, recorded on the project tag set and used as
// secondary store collection names.
const (
	EntityTagStory    = "story"
	EntityTagScenario = "scenario"
	EntityTagPrompt   = "prompt"
	EntityTagVideo    = "video"
)

// StageStatus represents the status of a story/scenario/prompt stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusCompleted StageStatus = "completed"
)

// VideoStatus represents the status of a video generation job
type VideoStatus string

const (
	VideoStatusQueued     VideoStatus = "queued"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

// Story is the first pipeline stage: the narrative text for a project
type Story struct {
	ID        string      `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID string      `json:"projectId" gorm:"type:uuid;not null;index"`
	Title     string      `json:"title" gorm:"not null"`
	Content   string      `json:"content" gorm:"type:text"`
	Genre     string      `json:"genre" gorm:"default:null"`
	Tone      string      `json:"tone" gorm:"default:null"`
	Status    StageStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	Project Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for Story model
func (Story) TableName() string {
	return "stories"
}

// Scenario is the second pipeline stage: the story broken into scenes
type Scenario struct {
	ID        string      `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID string      `json:"projectId" gorm:"type:uuid;not null;index"`
	Title     string      `json:"title" gorm:"not null"`
	Scenes    JSONMap     `json:"scenes" gorm:"type:jsonb;default:'{}'"`
	Setting   string      `json:"setting" gorm:"default:null"`
	Duration  int         `json:"duration" gorm:"default:0"` // seconds
	Status    StageStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	Project Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for Scenario model
func (Scenario) TableName() string {
	return "scenarios"
}

// Prompt is the third pipeline stage: the generation prompt built from the scenario
type Prompt struct {
	ID          string      `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID   string      `json:"projectId" gorm:"type:uuid;not null;index"`
	Title       string      `json:"title" gorm:"not null"`
	FinalPrompt string      `json:"finalPrompt" gorm:"type:text"`
	Style       string      `json:"style" gorm:"default:null"`
	Fragments   JSONMap     `json:"fragments" gorm:"type:jsonb;default:'{}'"`
	Status      StageStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`

	Project Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for Prompt model
func (Prompt) TableName() string {
	return "prompts"
}

// VideoGeneration is the final pipeline stage: a provider-side render job
type VideoGeneration struct {
	ID           string      `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID    string      `json:"projectId" gorm:"type:uuid;not null;index"`
	PromptID     string      `json:"promptId" gorm:"type:uuid;default:null"`
	JobID        string      `json:"jobId" gorm:"default:null"` // provider-side job reference
	Provider     string      `json:"provider" gorm:"default:null"`
	VideoURL     string      `json:"videoUrl" gorm:"default:null"`
	ThumbnailURL string      `json:"thumbnailUrl" gorm:"default:null"`
	Duration     int         `json:"duration" gorm:"default:0"` // seconds
	Status       VideoStatus `json:"status" gorm:"type:varchar(20);default:'queued'"`
	ErrorMessage string      `json:"errorMessage" gorm:"default:null"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	Project Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for VideoGeneration model
func (VideoGeneration) TableName() string {
	return "video_generations"
}
