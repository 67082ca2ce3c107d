package dto

import (
	"time"

	"github.com/storyreel/backend/models"
)

// ProjectListOptions filters and paginates a user's project listing.
// The full option set keys the short-TTL list cache, so every field must
// participate in serialization.
type ProjectListOptions struct {
	Page      int    `form:"page" json:"page"`
	Limit     int    `form:"limit" json:"limit"`
	SortBy    string `form:"sortBy" json:"sortBy"`
	SortOrder string `form:"sortOrder" json:"sortOrder"`
	Status    string `form:"status" json:"status,omitempty"`
	Search    string `form:"search" json:"search,omitempty"`
}

// ProjectListResult is the paginated project listing response.
type ProjectListResult struct {
	Projects []models.Project `json:"projects"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Title       string                 `json:"title" binding:"required"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// UpdateProjectRequest is the patch payload for a project workspace.
// Nil pointers leave the field untouched; Metadata entries merge into the
// existing map.
type UpdateProjectRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *string                `json:"status"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// SaveEntityAck is the minimal acknowledgment a pipeline save returns.
// Callers re-fetch the project workspace for full state.
type SaveEntityAck struct {
	EntityID  string `json:"entityId"`
	ProjectID string `json:"projectId"`
	Saved     bool   `json:"saved"`
}

// SaveStoryRequest carries the story stage payload.
type SaveStoryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content" binding:"required"`
	Genre   string `json:"genre"`
	Tone    string `json:"tone"`
}

// SaveScenarioRequest carries the scenario stage payload.
type SaveScenarioRequest struct {
	Title    string                 `json:"title"`
	Scenes   map[string]interface{} `json:"scenes" binding:"required"`
	Setting  string                 `json:"setting"`
	Duration int                    `json:"duration"`
}

// SavePromptRequest carries the prompt stage payload.
type SavePromptRequest struct {
	Title       string                 `json:"title"`
	FinalPrompt string                 `json:"finalPrompt" binding:"required"`
	Style       string                 `json:"style"`
	Fragments   map[string]interface{} `json:"fragments"`
}

// SaveVideoRequest carries the video generation payload.
type SaveVideoRequest struct {
	PromptID string `json:"promptId"`
	JobID    string `json:"jobId"`
	Provider string `json:"provider"`
	VideoURL string `json:"videoUrl"`
	Duration int    `json:"duration"`
}

// PipelineBundle groups the optional stage payloads of one pipeline
// transaction. Nil entries are skipped.
type PipelineBundle struct {
	Story    *SaveStoryRequest    `json:"story"`
	Scenario *SaveScenarioRequest `json:"scenario"`
	Prompt   *SavePromptRequest   `json:"prompt"`
	Video    *SaveVideoRequest    `json:"video"`
}

// TransactionResult reports a pipeline transaction outcome.
type TransactionResult struct {
	TransactionID string            `json:"transactionId"`
	Success       bool              `json:"success"`
	EntityIDs     map[string]string `json:"entityIds"` // kind -> id for entities that were written
	RolledBack    bool              `json:"rolledBack"`
	Error         string            `json:"error,omitempty"`
}

// RecoveryResult is the never-failing shape recoverPartialTransaction
// returns for reconciliation tooling.
type RecoveryResult struct {
	Recovered   bool                   `json:"recovered"`
	PartialData map[string]interface{} `json:"partialData"`
}

// VideoStatusUpdate transitions a video generation job.
type VideoStatusUpdate struct {
	Status   string `json:"status" binding:"required"`
	JobID    string `json:"jobId"`
	VideoURL string `json:"videoUrl"`
	Error    string `json:"error"`
}

// AddCollaboratorRequest adds a user to a project.
type AddCollaboratorRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// CreateVersionRequest snapshots a project version.
type CreateVersionRequest struct {
	Description string                 `json:"description"`
	Changes     map[string]interface{} `json:"changes"`
}

// CreateShareLinkRequest issues a scoped, expiring share token.
type CreateShareLinkRequest struct {
	Role      string `json:"role"`
	ExpiresIn int    `json:"expiresInHours"`
}

// ShareLinkResponse returns the issued link.
type ShareLinkResponse struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// OperationResult is the uniform failure shape the repository boundary
// returns; raw store errors never escape it.
type OperationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
