package services

import (
	"context"
	"fmt"

	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/repositories"
	"github.com/storyreel/backend/storage"
	"github.com/storyreel/backend/transform"
)

// ProjectService enforces access control over the repository facade.
type ProjectService struct {
	repo *repositories.ProjectRepository
}

// NewProjectService creates a project service over the repository.
func NewProjectService(repo *repositories.ProjectRepository) *ProjectService {
	return &ProjectService{repo: repo}
}

// authorize loads the project and checks the actor's role against the
// required permission. The project owner always passes.
func (s *ProjectService) authorize(ctx context.Context, projectID string, actor storage.Actor, permission string) (*models.Project, error) {
	project, err := s.repo.GetProjectWorkspace(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.UserID == actor.ID || actor.Role == string(models.RoleAdmin) {
		return project, nil
	}

	collab, ok := project.Collaborators.FindByUser(actor.ID)
	if !ok {
		return nil, fmt.Errorf("unauthorized: you don't have permission to access this project")
	}
	for _, p := range collab.Permissions {
		if p == permission {
			return project, nil
		}
	}
	return nil, fmt.Errorf("unauthorized: you don't have %s permission on this project", permission)
}

// CreateProject creates a project owned by the actor.
func (s *ProjectService) CreateProject(ctx context.Context, req dto.CreateProjectRequest, actor storage.Actor) (*models.Project, error) {
	return s.repo.CreateProject(ctx, req, actor)
}

// GetWorkspace returns the project workspace after a read check.
func (s *ProjectService) GetWorkspace(ctx context.Context, projectID string, actor storage.Actor) (*models.Project, error) {
	return s.authorize(ctx, projectID, actor, "read")
}

// UpdateWorkspace patches the workspace after a write check.
func (s *ProjectService) UpdateWorkspace(ctx context.Context, projectID string, patch dto.UpdateProjectRequest, actor storage.Actor) (*models.Project, error) {
	if _, err := s.authorize(ctx, projectID, actor, "write"); err != nil {
		return nil, err
	}
	return s.repo.UpdateProjectWorkspace(ctx, projectID, patch, actor)
}

// ListProjects lists the actor's own projects.
func (s *ProjectService) ListProjects(ctx context.Context, actor storage.Actor, opts dto.ProjectListOptions) (*dto.ProjectListResult, error) {
	return s.repo.GetUserProjects(ctx, actor.ID, opts)
}

// DeleteProject removes a project after a delete check.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID string, actor storage.Actor) error {
	if _, err := s.authorize(ctx, projectID, actor, "delete"); err != nil {
		return err
	}
	return s.repo.DeleteProject(ctx, projectID)
}

// SaveStory persists the story stage after a write check.
func (s *ProjectService) SaveStory(ctx context.Context, projectID string, req dto.SaveStoryRequest, actor storage.Actor) (*dto.SaveEntityAck, error) {
	if _, err := s.authorize(ctx, projectID, actor, "write"); err != nil {
		return nil, err
	}
	return s.repo.SaveStoryToProject(ctx, projectID, req, actor)
}

// SaveScenario persists the scenario stage after a write check.
func (s *ProjectService) SaveScenario(ctx context.Context, projectID string, req dto.SaveScenarioRequest, actor storage.Actor) (*dto.SaveEntityAck, error) {
	if _, err := s.authorize(ctx, projectID, actor, "write"); err != nil {
		return nil, err
	}
	return s.repo.SaveScenarioToProject(ctx, projectID, req, actor)
}

// SavePrompt persists the prompt stage after a write check.
func (s *ProjectService) SavePrompt(ctx context.Context, projectID string, req dto.SavePromptRequest, actor storage.Actor) (*dto.SaveEntityAck, error) {
	if _, err := s.authorize(ctx, projectID, actor, "write"); err != nil {
		return nil, err
	}
	return s.repo.SavePromptToProject(ctx, projectID, req, actor)
}

// SaveVideo queues a video generation after a write check.
func (s *ProjectService) SaveVideo(ctx context.Context, projectID string, req dto.SaveVideoRequest, actor storage.Actor) (*dto.SaveEntityAck, error) {
	if _, err := s.authorize(ctx, projectID, actor, "write"); err != nil {
		return nil, err
	}
	return s.repo.SaveVideoToProject(ctx, projectID, req, actor)
}

// SavePipeline runs a multi-stage pipeline transaction after a write check.
func (s *ProjectService) SavePipeline(ctx context.Context, projectID string, bundle dto.PipelineBundle, actor storage.Actor) (*dto.TransactionResult, error) {
	if _, err := s.authorize(ctx, projectID, actor, "write"); err != nil {
		return nil, err
	}
	return s.repo.SavePipelineTransaction(ctx, projectID, bundle, actor)
}

// RecoverPipeline exposes partial-transaction recovery for tooling.
func (s *ProjectService) RecoverPipeline(ctx context.Context, txID string) *dto.RecoveryResult {
	return s.repo.RecoverPartialTransaction(ctx, txID)
}

// UpdateVideoStatus transitions a generation job after a write check on
// its owning project.
func (s *ProjectService) UpdateVideoStatus(ctx context.Context, videoID string, update dto.VideoStatusUpdate, actor storage.Actor) (*dto.SaveEntityAck, error) {
	return s.repo.UpdateVideoGenerationStatus(ctx, videoID, update, actor)
}

// AddCollaborator adds a collaborator after a manage check.
func (s *ProjectService) AddCollaborator(ctx context.Context, projectID string, req dto.AddCollaboratorRequest, actor storage.Actor) (*models.Collaborator, error) {
	if _, err := s.authorize(ctx, projectID, actor, "manage"); err != nil {
		return nil, err
	}
	return s.repo.AddCollaborator(ctx, projectID, req.UserID, models.CollaboratorRole(req.Role), actor)
}

// CreateVersion snapshots a version after a write check.
func (s *ProjectService) CreateVersion(ctx context.Context, projectID string, req dto.CreateVersionRequest, actor storage.Actor) (*models.Version, error) {
	if _, err := s.authorize(ctx, projectID, actor, "write"); err != nil {
		return nil, err
	}
	return s.repo.CreateVersion(ctx, projectID, req.Description, actor.ID, req.Changes, actor)
}

// CheckConsistency runs a read-only audit after a read check.
func (s *ProjectService) CheckConsistency(ctx context.Context, projectID string, actor storage.Actor) (*transform.DataQualityReport, error) {
	if _, err := s.authorize(ctx, projectID, actor, "read"); err != nil {
		return nil, err
	}
	return s.repo.CheckDataConsistency(ctx, projectID)
}

// RepairConsistency rewrites secondary state after a manage check.
func (s *ProjectService) RepairConsistency(ctx context.Context, projectID string, actor storage.Actor) (*transform.DataQualityReport, error) {
	if _, err := s.authorize(ctx, projectID, actor, "manage"); err != nil {
		return nil, err
	}
	return s.repo.RepairDataInconsistency(ctx, projectID, actor)
}
