package storage

import (
	"context"
	"time"

	"github.com/storyreel/backend/models"
)

// EntityKind discriminates the payload carried by an Item.
type EntityKind string

const (
	KindProject  EntityKind = "project"
	KindStory    EntityKind = models.EntityTagStory
	KindScenario EntityKind = models.EntityTagScenario
	KindPrompt   EntityKind = models.EntityTagPrompt
	KindVideo    EntityKind = models.EntityTagVideo
)

// Collection returns the secondary store collection for a pipeline entity
// kind. Projects fan out to the collections of their tagged stages instead.
func (k EntityKind) Collection() string {
	switch k {
	case KindStory:
		return "stories"
	case KindScenario:
		return "scenarios"
	case KindPrompt:
		return "prompts"
	case KindVideo:
		return "videos"
	}
	return ""
}

// Item is one logical write: a tagged union over the project aggregate and
// the four pipeline entities. Project is always the canonical aggregate the
// secondary documents derive from; exactly one of the entity pointers is
// set for pipeline kinds, all are nil for KindProject.
type Item struct {
	Kind    EntityKind
	Project *models.Project

	Story    *models.Story
	Scenario *models.Scenario
	Prompt   *models.Prompt
	Video    *models.VideoGeneration
}

// ID returns the primary key the write is anchored on.
func (i Item) ID() string {
	switch i.Kind {
	case KindStory:
		return i.Story.ID
	case KindScenario:
		return i.Scenario.ID
	case KindPrompt:
		return i.Prompt.ID
	case KindVideo:
		return i.Video.ID
	default:
		return i.Project.ID
	}
}

// Actor identifies the caller of a write for ownership stamping.
type Actor struct {
	ID   string
	Role string
}

// StoreOutcome reports the per-store result of one dual write.
type StoreOutcome struct {
	Attempted   bool            `json:"attempted"`
	Saved       bool            `json:"saved"`
	ID          string          `json:"id,omitempty"`
	Collections map[string]bool `json:"collections,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// DualWriteResult is the outcome of one logical write against both stores.
type DualWriteResult struct {
	Success          bool         `json:"success"`
	Primary          StoreOutcome `json:"primary"`
	Secondary        StoreOutcome `json:"secondary"`
	RollbackExecuted bool         `json:"rollbackExecuted"`
	Timestamp        time.Time    `json:"timestamp"`
	LatencyMS        int64        `json:"latencyMs"`
}

// ProjectQuery filters and paginates primary store project listings.
type ProjectQuery struct {
	UserID    string
	Status    string
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// PrimaryStore is the relational source of truth. Writes here anchor every
// dual write; the engine aborts immediately when the anchor fails.
type PrimaryStore interface {
	Upsert(ctx context.Context, item Item) error
	Delete(ctx context.Context, kind EntityKind, id string) error
	FindProject(ctx context.Context, id string) (*models.Project, error)
	FindStory(ctx context.Context, id string) (*models.Story, error)
	FindScenario(ctx context.Context, id string) (*models.Scenario, error)
	FindPrompt(ctx context.Context, id string) (*models.Prompt, error)
	FindVideo(ctx context.Context, id string) (*models.VideoGeneration, error)
	ListProjects(ctx context.Context, q ProjectQuery) ([]models.Project, int64, error)
	CountProjectsByTitle(ctx context.Context, userID, title string) (int64, error)
	TouchLastAccessed(ctx context.Context, id string, at time.Time) error
}

// SecondaryStore is the mirrored document store. Collections succeed or
// fail independently; availability is policy-checked per write.
type SecondaryStore interface {
	// Enabled reports administrative availability (config present and the
	// store not switched off).
	Enabled() bool
	// Configured reports full configuration, the stricter bar the fallback
	// strategy requires.
	Configured() bool
	Upsert(ctx context.Context, collection, id string, doc interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string, dest interface{}) error
}
