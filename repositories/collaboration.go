package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/storage"
	"github.com/storyreel/backend/utils"
)

// AddCollaborator appends a collaborator to the project. The owner role is
// assigned at creation time only; attempts to add a second owner are
// downgraded to editor.
func (r *ProjectRepository) AddCollaborator(ctx context.Context, projectID, userID string, role models.CollaboratorRole, actor storage.Actor) (*models.Collaborator, error) {
	switch role {
	case models.RoleOwner:
		role = models.RoleEditor
	case models.RoleEditor, models.RoleViewer:
	default:
		return nil, ErrInvalidRole
	}

	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if _, exists := project.Collaborators.FindByUser(userID); exists {
		return nil, fmt.Errorf("user %s is already a collaborator", userID)
	}

	collab := models.Collaborator{
		UserID:      userID,
		Role:        role,
		Permissions: permissionsFor(role),
		AddedAt:     r.now(),
	}
	project.Collaborators = append(project.Collaborators, collab)
	project.UpdatedAt = r.now()

	err = r.retryOperation(ctx, func() error {
		_, err := r.engine.Save(ctx, storage.Item{Kind: storage.KindProject, Project: project}, actor)
		return err
	})
	r.invalidateProject(projectID, project.UserID)
	if err != nil {
		return nil, err
	}
	return &collab, nil
}

// CreateShareLink appends a share link record. Token signing belongs to
// the service layer; the repository only persists the issued link.
func (r *ProjectRepository) CreateShareLink(ctx context.Context, projectID, token string, role models.CollaboratorRole, expiresAt time.Time, actor storage.Actor) (*models.ShareLink, error) {
	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// Short slug so the link id can double as a URL path segment.
	link := models.ShareLink{
		ID:        utils.GenerateShortID(),
		Token:     token,
		Role:      role,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
		CreatedBy: actor.ID,
	}
	project.ShareLinks = append(project.ShareLinks, link)
	project.UpdatedAt = r.now()

	err = r.retryOperation(ctx, func() error {
		_, err := r.engine.Save(ctx, storage.Item{Kind: storage.KindProject, Project: project}, actor)
		return err
	})
	r.invalidateProject(projectID, project.UserID)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// CreateVersion appends a version snapshot. The patch component strictly
// increases: the new version is computed from the last stored one, and the
// very first version of a project is 1.0.0.
func (r *ProjectRepository) CreateVersion(ctx context.Context, projectID, description, createdBy string, changes map[string]interface{}, actor storage.Actor) (*models.Version, error) {
	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	next := "1.0.0"
	if n := len(project.Versions); n > 0 {
		next = bumpPatch(project.Versions[n-1].Version)
	}

	version := models.Version{
		Version:     next,
		Description: description,
		Changes:     models.JSONMap(changes),
		CreatedAt:   r.now(),
		CreatedBy:   createdBy,
	}
	project.Versions = append(project.Versions, version)
	project.UpdatedAt = r.now()

	err = r.retryOperation(ctx, func() error {
		_, err := r.engine.Save(ctx, storage.Item{Kind: storage.KindProject, Project: project}, actor)
		return err
	})
	r.invalidateProject(projectID, project.UserID)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// bumpPatch increments the patch component of a major.minor.patch version.
// Unparseable history restarts at 1.0.0 rather than failing the write.
func bumpPatch(last string) string {
	var major, minor, patch int
	if _, err := fmt.Sscanf(last, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return "1.0.0"
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
}
