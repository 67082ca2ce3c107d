package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storyreel/backend/cache"
	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	repo      *ProjectRepository
	primary   *storage.MemoryPrimaryStore
	secondary *storage.MemorySecondaryStore
	cache     *cache.Cache
	actor     storage.Actor
}

func newHarness(t *testing.T, mode storage.StrategyMode) *harness {
	t.Helper()

	primary := storage.NewMemoryPrimaryStore()
	secondary := storage.NewMemorySecondaryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	strategy := storage.Strategy{
		Environment:     "test",
		Mode:            mode,
		FallbackEnabled: true,
		RetryAttempts:   2,
		Timeout:         time.Second,
	}
	engine := storage.NewEngine(primary, secondary, nil, strategy, logger, nil, nil)

	c := cache.New()

	ids := 0
	repo := NewProjectRepository(engine, primary, c, logger,
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		}),
		WithRetry(2, 0), // no backoff sleeps under test
	)

	return &harness{
		repo:      repo,
		primary:   primary,
		secondary: secondary,
		cache:     c,
		actor:     storage.Actor{ID: "user-1", Role: "user"},
	}
}

func (h *harness) createProject(t *testing.T, title string) *models.Project {
	t.Helper()
	project, err := h.repo.CreateProject(context.Background(), dto.CreateProjectRequest{Title: title}, h.actor)
	require.NoError(t, err)
	return project
}

func TestCreateProject(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)

	project := h.createProject(t, "Moon Heist")
	assert.Equal(t, models.ProjectStatusDraft, project.Status)
	assert.Equal(t, "user-1", project.UserID)

	owner, ok := project.Owner()
	require.True(t, ok)
	assert.Equal(t, "user-1", owner.UserID)
	assert.Contains(t, owner.Permissions, "manage")

	stored, err := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Moon Heist", stored.Title)
}

func TestCreateProjectDuplicateTitle(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	h.createProject(t, "Moon Heist")

	_, err := h.repo.CreateProject(context.Background(), dto.CreateProjectRequest{Title: "Moon Heist"}, h.actor)
	assert.ErrorIs(t, err, ErrDuplicateProjectTitle)
}

func TestCreateProjectRequiredStrategyRollsBack(t *testing.T) {
	h := newHarness(t, storage.StrategyRequired)
	h.secondary.FailUpsert = func(string) error { return errors.New("mongo down") }

	_, err := h.repo.CreateProject(context.Background(), dto.CreateProjectRequest{Title: "Moon Heist"}, h.actor)
	var dsErr *storage.DualStorageError
	require.ErrorAs(t, err, &dsErr)

	// Retried up to the bound, then every attempt rolled back; the project
	// must not be readable anywhere.
	assert.Equal(t, 2, h.secondary.UpsertCalls)
	_, err = h.repo.GetProjectWorkspace(context.Background(), "id-1")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestGetProjectWorkspaceCaches(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	// CreateProject primed the cache; a hit returns the cached aggregate
	// itself rather than a fresh store read.
	got, err := h.repo.GetProjectWorkspace(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Same(t, project, got)

	// After invalidation the read goes through and stamps lastAccessed.
	h.cache.Clear()
	got, err = h.repo.GetProjectWorkspace(context.Background(), project.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastAccessedAt)
}

func TestGetProjectWorkspaceNotFound(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	_, err := h.repo.GetProjectWorkspace(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestUpdateProjectWorkspace(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	title := "Moon Heist II"
	status := string(models.ProjectStatusInProgress)
	updated, err := h.repo.UpdateProjectWorkspace(context.Background(), project.ID, dto.UpdateProjectRequest{
		Title:    &title,
		Status:   &status,
		Metadata: map[string]interface{}{"genre": "sci-fi"},
	}, h.actor)
	require.NoError(t, err)
	assert.Equal(t, "Moon Heist II", updated.Title)
	assert.Equal(t, models.ProjectStatusInProgress, updated.Status)
	assert.Equal(t, "sci-fi", updated.MetaString("genre", ""))

	// The stale workspace entry was invalidated, not patched.
	got, err := h.repo.GetProjectWorkspace(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Moon Heist II", got.Title)
}

func TestUpdateProjectStatusTransitions(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	patch := func(status string) (*models.Project, error) {
		s := status
		return h.repo.UpdateProjectWorkspace(context.Background(), project.ID, dto.UpdateProjectRequest{Status: &s}, h.actor)
	}

	// Unknown statuses never persist.
	_, err := patch("bogus")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	stored, findErr := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ProjectStatusDraft, stored.Status)

	// draft cannot skip straight to completed.
	_, err = patch(string(models.ProjectStatusCompleted))
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	// Re-asserting the current status is a no-op, not a violation.
	_, err = patch(string(models.ProjectStatusDraft))
	assert.NoError(t, err)

	// The forward path: draft -> in_progress -> completed.
	_, err = patch(string(models.ProjectStatusInProgress))
	require.NoError(t, err)
	updated, err := patch(string(models.ProjectStatusCompleted))
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, updated.Status)

	// Completed is terminal; nothing reopens it.
	_, err = patch(string(models.ProjectStatusDraft))
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	_, err = patch(string(models.ProjectStatusArchived))
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestUpdateProjectStatusArchivesNonTerminal(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	archived := string(models.ProjectStatusArchived)
	updated, err := h.repo.UpdateProjectWorkspace(context.Background(), project.ID, dto.UpdateProjectRequest{Status: &archived}, h.actor)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusArchived, updated.Status)

	// Archived is terminal too.
	draft := string(models.ProjectStatusDraft)
	_, err = h.repo.UpdateProjectWorkspace(context.Background(), project.ID, dto.UpdateProjectRequest{Status: &draft}, h.actor)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestUpdateProjectWorkspaceInvalidatesOnFailure(t *testing.T) {
	h := newHarness(t, storage.StrategyRequired)
	project := h.createProject(t, "Moon Heist")

	h.secondary.FailUpsert = func(string) error { return errors.New("mongo down") }
	title := "Moon Heist II"
	_, err := h.repo.UpdateProjectWorkspace(context.Background(), project.ID, dto.UpdateProjectRequest{Title: &title}, h.actor)
	require.Error(t, err)

	// The rolled-back write must not be served from cache: the workspace
	// entry is gone even though the update failed.
	assert.Nil(t, h.cache.Get("projects/"+project.ID))
}

func TestGetUserProjectsCachesListing(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	h.createProject(t, "Alpha")
	h.createProject(t, "Beta")

	opts := dto.ProjectListOptions{Page: 1, Limit: 10}
	first, err := h.repo.GetUserProjects(context.Background(), h.actor.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Total)
	assert.Equal(t, 1, h.primary.ListCalls)

	// Same options within the TTL: served from cache, one store query total.
	second, err := h.repo.GetUserProjects(context.Background(), h.actor.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Total)
	assert.Equal(t, 1, h.primary.ListCalls)

	// Different options miss the cache.
	_, err = h.repo.GetUserProjects(context.Background(), h.actor.ID, dto.ProjectListOptions{Page: 1, Limit: 10, Search: "Alpha"})
	require.NoError(t, err)
	assert.Equal(t, 2, h.primary.ListCalls)
}

func TestGetUserProjectsListInvalidatedByWrite(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	h.createProject(t, "Alpha")

	opts := dto.ProjectListOptions{Page: 1, Limit: 10}
	first, err := h.repo.GetUserProjects(context.Background(), h.actor.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Total)

	h.createProject(t, "Beta")

	second, err := h.repo.GetUserProjects(context.Background(), h.actor.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Total)
}

func TestDeleteProject(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	require.NoError(t, h.repo.DeleteProject(context.Background(), project.ID))

	_, err := h.repo.GetProjectWorkspace(context.Background(), project.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	assert.ErrorIs(t, h.repo.DeleteProject(context.Background(), project.ID), ErrProjectNotFound)
}
