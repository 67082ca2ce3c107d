package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storyreel/backend/cache"
	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/storage"
	"github.com/storyreel/backend/transform"
)

// Domain-level errors surfaced to users instead of raw storage failures.
var (
	ErrProjectNotFound       = errors.New("project not found")
	ErrDuplicateProjectTitle = errors.New("a project with this title already exists")
	ErrInvalidRole           = errors.New("role must be one of owner, editor, viewer")
)

// Cache lifetimes. Workspace reads live longer than listings, which change
// on every write anywhere in the account.
const (
	workspaceTTL = 5 * time.Minute
	listTTL      = 30 * time.Second
)

// ProjectRepository is the orchestration facade the rest of the
// application talks to. It composes the cache, the dual-storage engine and
// retry with linear backoff into project lifecycle operations.
type ProjectRepository struct {
	engine      *storage.Engine
	primary     storage.PrimaryStore
	cache       *cache.Cache
	transformer *transform.Transformer
	logger      *slog.Logger

	now   func() time.Time
	newID func() string

	retryAttempts int
	retryDelay    time.Duration

	// journal tracks in-flight pipeline transactions for compensation and
	// recovery. Process-local: intents are not persisted, so recovery
	// across restarts relies on consistency checks instead.
	txMu    sync.Mutex
	journal map[string]*txJournal
}

type txJournal struct {
	projectID string
	startedAt time.Time
	saved     []txEntry // in write order; rolled back in reverse
	completed bool
}

type txEntry struct {
	kind storage.EntityKind
	id   string
}

// Option configures a ProjectRepository.
type Option func(*ProjectRepository)

// WithClock injects the clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *ProjectRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator injects the id generator for deterministic tests.
func WithIDGenerator(gen func() string) Option {
	return func(r *ProjectRepository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithRetry overrides retry attempts and base backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(r *ProjectRepository) {
		if attempts > 0 {
			r.retryAttempts = attempts
		}
		if delay >= 0 {
			r.retryDelay = delay
		}
	}
}

// NewProjectRepository creates the repository facade.
func NewProjectRepository(engine *storage.Engine, primary storage.PrimaryStore, c *cache.Cache, logger *slog.Logger, opts ...Option) *ProjectRepository {
	r := &ProjectRepository{
		engine:        engine,
		primary:       primary,
		cache:         c,
		transformer:   transform.NewTransformer(),
		logger:        logger,
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
		retryAttempts: engine.Strategy().RetryAttempts,
		retryDelay:    200 * time.Millisecond,
		journal:       make(map[string]*txJournal),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func workspaceKey(projectID string) string {
	return "projects/" + projectID
}

func listKeyPrefix(userID string) string {
	return "projects/user/" + userID + "/list"
}

// invalidateProject drops the workspace entry and every listing that could
// contain it. Called on every mutating path before returning, success or
// not, so readers never observe a write that was later rolled back.
func (r *ProjectRepository) invalidateProject(projectID, userID string) {
	r.cache.Invalidate("^" + workspaceKey(projectID) + "$")
	if userID != "" {
		r.cache.Invalidate("^" + listKeyPrefix(userID))
	}
}

// CreateProject generates the project aggregate with default pipeline
// stage flags and the owner collaborator, writes it through the engine
// under retry, and caches the result.
func (r *ProjectRepository) CreateProject(ctx context.Context, req dto.CreateProjectRequest, actor storage.Actor) (*models.Project, error) {
	count, err := r.primary.CountProjectsByTitle(ctx, actor.ID, req.Title)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate title: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateProjectTitle
	}

	now := r.now()
	metadata := models.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	project := &models.Project{
		ID:          r.newID(),
		Title:       req.Title,
		Description: req.Description,
		UserID:      actor.ID,
		Status:      models.ProjectStatusDraft,
		Metadata:    metadata,
		Tags:        models.StringSlice{},
		Pipeline:    models.PipelineStages{},
		Collaborators: models.Collaborators{{
			UserID:      actor.ID,
			Role:        models.RoleOwner,
			Permissions: permissionsFor(models.RoleOwner),
			AddedAt:     now,
		}},
		Versions:   models.Versions{},
		ShareLinks: models.ShareLinks{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	item := storage.Item{Kind: storage.KindProject, Project: project}
	if err := r.retryOperation(ctx, func() error {
		_, err := r.engine.Save(ctx, item, actor)
		return err
	}); err != nil {
		r.invalidateProject(project.ID, actor.ID)
		return nil, err
	}

	r.cache.Set(workspaceKey(project.ID), project, workspaceTTL)
	r.cache.Invalidate("^" + listKeyPrefix(actor.ID))
	return project, nil
}

// GetProjectWorkspace reads cache-first. A hit triggers a non-blocking
// lastAccessed touch whose failure only logs; a miss reads through, stamps
// lastAccessed synchronously and caches.
func (r *ProjectRepository) GetProjectWorkspace(ctx context.Context, projectID string) (*models.Project, error) {
	if cached := r.cache.Get(workspaceKey(projectID)); cached != nil {
		project := cached.(*models.Project)
		go func() {
			bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.engine.Strategy().Timeout)
			defer cancel()
			if err := r.primary.TouchLastAccessed(bg, projectID, r.now()); err != nil {
				r.logger.Warn("lastAccessed touch failed", "project", projectID, "error", err)
			}
		}()
		return project, nil
	}

	project, err := r.primary.FindProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	at := r.now()
	if err := r.primary.TouchLastAccessed(ctx, projectID, at); err != nil {
		r.logger.Warn("lastAccessed touch failed", "project", projectID, "error", err)
	} else {
		project.LastAccessedAt = &at
	}

	r.cache.Set(workspaceKey(projectID), project, workspaceTTL)
	return project, nil
}

// projectTransitions is the allowed lifecycle machine for projects.
// Completed and archived are terminal; archiving is allowed from any
// non-terminal state.
var projectTransitions = map[models.ProjectStatus][]models.ProjectStatus{
	models.ProjectStatusDraft:      {models.ProjectStatusInProgress, models.ProjectStatusArchived},
	models.ProjectStatusInProgress: {models.ProjectStatusCompleted, models.ProjectStatusArchived},
}

// UpdateProjectWorkspace applies the patch and writes through the engine.
// The cache entry is invalidated, never patched in place, so no reader can
// observe a partially applied update.
func (r *ProjectRepository) UpdateProjectWorkspace(ctx context.Context, projectID string, patch dto.UpdateProjectRequest, actor storage.Actor) (*models.Project, error) {
	project, err := r.primary.FindProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	if patch.Title != nil {
		project.Title = *patch.Title
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.Status != nil {
		next := models.ProjectStatus(*patch.Status)
		if next != project.Status {
			allowed := false
			for _, s := range projectTransitions[project.Status] {
				if s == next {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, project.Status, next)
			}
			project.Status = next
		}
	}
	if patch.Metadata != nil {
		if project.Metadata == nil {
			project.Metadata = models.JSONMap{}
		}
		for k, v := range patch.Metadata {
			project.Metadata[k] = v
		}
	}
	project.UpdatedAt = r.now()

	item := storage.Item{Kind: storage.KindProject, Project: project}
	err = r.retryOperation(ctx, func() error {
		_, err := r.engine.Save(ctx, item, actor)
		return err
	})

	// Invalidate regardless of outcome: a rolled-back write must not be
	// served from cache.
	r.invalidateProject(projectID, project.UserID)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetUserProjects lists a user's projects with a short-TTL cache keyed by
// the full serialized option set.
func (r *ProjectRepository) GetUserProjects(ctx context.Context, userID string, opts dto.ProjectListOptions) (*dto.ProjectListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 20
	}

	serialized, _ := json.Marshal(opts)
	key := listKeyPrefix(userID) + "?" + string(serialized)

	if cached := r.cache.Get(key); cached != nil {
		return cached.(*dto.ProjectListResult), nil
	}

	projects, total, err := r.primary.ListProjects(ctx, storage.ProjectQuery{
		UserID:    userID,
		Status:    opts.Status,
		Search:    opts.Search,
		SortBy:    opts.SortBy,
		SortOrder: opts.SortOrder,
		Page:      opts.Page,
		Limit:     opts.Limit,
	})
	if err != nil {
		return nil, err
	}

	result := &dto.ProjectListResult{
		Projects: projects,
		Total:    total,
		Page:     opts.Page,
		Limit:    opts.Limit,
	}
	r.cache.Set(key, result, listTTL)
	return result, nil
}

// DeleteProject removes the aggregate. Pipeline entities cascade at the
// primary store; mirrored documents are removed best-effort.
func (r *ProjectRepository) DeleteProject(ctx context.Context, projectID string) error {
	project, err := r.primary.FindProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrProjectNotFound
		}
		return err
	}

	err = r.retryOperation(ctx, func() error {
		return r.engine.Delete(ctx, storage.Item{Kind: storage.KindProject, Project: project})
	})
	r.invalidateProject(projectID, project.UserID)
	return err
}

func permissionsFor(role models.CollaboratorRole) []string {
	switch role {
	case models.RoleOwner:
		return []string{"read", "write", "delete", "share", "manage"}
	case models.RoleEditor:
		return []string{"read", "write"}
	default:
		return []string{"read"}
	}
}
