package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storyreel/backend/cache"
	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/repositories"
	"github.com/storyreel/backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *repositories.ProjectRepository {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	strategy := storage.Strategy{
		Environment:     "test",
		Mode:            storage.StrategyPreferred,
		FallbackEnabled: true,
		RetryAttempts:   1,
		Timeout:         time.Second,
	}
	primary := storage.NewMemoryPrimaryStore()
	engine := storage.NewEngine(primary, storage.NewMemorySecondaryStore(), nil, strategy, logger, nil, nil)
	return repositories.NewProjectRepository(engine, primary, cache.New(), logger,
		repositories.WithRetry(1, 0))
}

func TestProjectServiceAccessControl(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewProjectService(repo)

	owner := storage.Actor{ID: "owner-1", Role: "user"}
	stranger := storage.Actor{ID: "stranger-1", Role: "user"}
	admin := storage.Actor{ID: "admin-1", Role: "admin"}

	project, err := svc.CreateProject(context.Background(), dto.CreateProjectRequest{Title: "Moon Heist"}, owner)
	require.NoError(t, err)

	// Owner reads and writes.
	_, err = svc.GetWorkspace(context.Background(), project.ID, owner)
	assert.NoError(t, err)

	// A non-collaborator is rejected outright.
	_, err = svc.GetWorkspace(context.Background(), project.ID, stranger)
	assert.ErrorContains(t, err, "unauthorized")
	_, err = svc.SaveStory(context.Background(), project.ID, dto.SaveStoryRequest{Content: "x"}, stranger)
	assert.ErrorContains(t, err, "unauthorized")

	// Admins bypass collaborator checks.
	_, err = svc.GetWorkspace(context.Background(), project.ID, admin)
	assert.NoError(t, err)
}

func TestProjectServiceViewerCannotWrite(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewProjectService(repo)

	owner := storage.Actor{ID: "owner-1", Role: "user"}
	viewer := storage.Actor{ID: "viewer-1", Role: "user"}

	project, err := svc.CreateProject(context.Background(), dto.CreateProjectRequest{Title: "Moon Heist"}, owner)
	require.NoError(t, err)

	_, err = svc.AddCollaborator(context.Background(), project.ID, dto.AddCollaboratorRequest{
		UserID: viewer.ID,
		Role:   string(models.RoleViewer),
	}, owner)
	require.NoError(t, err)

	// Viewers read but never write.
	_, err = svc.GetWorkspace(context.Background(), project.ID, viewer)
	assert.NoError(t, err)

	title := "Renamed"
	_, err = svc.UpdateWorkspace(context.Background(), project.ID, dto.UpdateProjectRequest{Title: &title}, viewer)
	assert.ErrorContains(t, err, "unauthorized")

	// And only the owner manages collaborators.
	_, err = svc.AddCollaborator(context.Background(), project.ID, dto.AddCollaboratorRequest{
		UserID: "another", Role: string(models.RoleViewer),
	}, viewer)
	assert.ErrorContains(t, err, "unauthorized")
}

func TestProjectServiceEditorCanWrite(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewProjectService(repo)

	owner := storage.Actor{ID: "owner-1", Role: "user"}
	editor := storage.Actor{ID: "editor-1", Role: "user"}

	project, err := svc.CreateProject(context.Background(), dto.CreateProjectRequest{Title: "Moon Heist"}, owner)
	require.NoError(t, err)

	_, err = svc.AddCollaborator(context.Background(), project.ID, dto.AddCollaboratorRequest{
		UserID: editor.ID,
		Role:   string(models.RoleEditor),
	}, owner)
	require.NoError(t, err)

	ack, err := svc.SaveStory(context.Background(), project.ID, dto.SaveStoryRequest{Content: "draft"}, editor)
	require.NoError(t, err)
	assert.True(t, ack.Saved)

	// Editors still cannot delete.
	err = svc.DeleteProject(context.Background(), project.ID, editor)
	assert.ErrorContains(t, err, "unauthorized")
}

func TestShareLinkServiceRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	projects := NewProjectService(repo)
	shares := NewShareLinkService(repo, "test-secret")

	owner := storage.Actor{ID: "owner-1", Role: "user"}
	project, err := projects.CreateProject(context.Background(), dto.CreateProjectRequest{Title: "Moon Heist"}, owner)
	require.NoError(t, err)

	link, err := shares.CreateShareLink(context.Background(), project.ID, dto.CreateShareLinkRequest{
		Role:      string(models.RoleEditor),
		ExpiresIn: 24,
	}, owner)
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)

	claims, err := shares.ValidateShareToken(link.Token)
	require.NoError(t, err)
	assert.Equal(t, project.ID, claims.ProjectID)
	assert.Equal(t, string(models.RoleEditor), claims.Role)

	// Owner role is never grantable through a link.
	link, err = shares.CreateShareLink(context.Background(), project.ID, dto.CreateShareLinkRequest{
		Role: string(models.RoleOwner),
	}, owner)
	require.NoError(t, err)
	claims, err = shares.ValidateShareToken(link.Token)
	require.NoError(t, err)
	assert.Equal(t, string(models.RoleViewer), claims.Role)

	// Tokens signed with another secret are rejected.
	other := NewShareLinkService(repo, "other-secret")
	_, err = other.ValidateShareToken(link.Token)
	assert.Error(t, err)
}
