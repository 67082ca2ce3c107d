package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCollaborator(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	collab, err := h.repo.AddCollaborator(context.Background(), project.ID, "user-2", models.RoleEditor, h.actor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, collab.Role)
	assert.ElementsMatch(t, []string{"read", "write"}, collab.Permissions)

	stored, err := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, err)
	_, ok := stored.Collaborators.FindByUser("user-2")
	assert.True(t, ok)
}

func TestAddCollaboratorOwnerDowngraded(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	// A second owner can never be granted; the request lands as editor.
	collab, err := h.repo.AddCollaborator(context.Background(), project.ID, "user-2", models.RoleOwner, h.actor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, collab.Role)
}

func TestAddCollaboratorRejectsDuplicatesAndBadRoles(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	_, err := h.repo.AddCollaborator(context.Background(), project.ID, "user-2", models.RoleViewer, h.actor)
	require.NoError(t, err)

	_, err = h.repo.AddCollaborator(context.Background(), project.ID, "user-2", models.RoleViewer, h.actor)
	assert.Error(t, err)

	_, err = h.repo.AddCollaborator(context.Background(), project.ID, "user-3", models.CollaboratorRole("superuser"), h.actor)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestCreateVersionIncrements(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	v1, err := h.repo.CreateVersion(context.Background(), project.ID, "first cut", h.actor.ID, nil, h.actor)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v1.Version)

	v2, err := h.repo.CreateVersion(context.Background(), project.ID, "tightened pacing", h.actor.ID, map[string]interface{}{"scenes": 3}, h.actor)
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", v2.Version)

	stored, err := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, stored.Versions, 2)
	assert.Equal(t, "tightened pacing", stored.Versions[1].Description)
}

func TestBumpPatch(t *testing.T) {
	assert.Equal(t, "1.0.1", bumpPatch("1.0.0"))
	assert.Equal(t, "2.3.8", bumpPatch("2.3.7"))
	// Unparseable history restarts rather than failing the write.
	assert.Equal(t, "1.0.0", bumpPatch("v2-final"))
}

func TestCreateShareLink(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	expires := time.Now().Add(72 * time.Hour)
	link, err := h.repo.CreateShareLink(context.Background(), project.ID, "signed-token", models.RoleViewer, expires, h.actor)
	require.NoError(t, err)
	assert.Equal(t, "signed-token", link.Token)
	assert.Equal(t, models.RoleViewer, link.Role)
	assert.Len(t, link.ID, 8)

	stored, err := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, stored.ShareLinks, 1)
	assert.Equal(t, h.actor.ID, stored.ShareLinks[0].CreatedBy)
}
