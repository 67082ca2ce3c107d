package repositories

import (
	"context"

	"github.com/storyreel/backend/storage"
	"github.com/storyreel/backend/transform"
)

// CheckDataConsistency reads the secondary documents back and scores them
// against the primary aggregate. The report is derived, never persisted.
func (r *ProjectRepository) CheckDataConsistency(ctx context.Context, projectID string) (*transform.DataQualityReport, error) {
	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	bag := r.engine.ReadBag(ctx, project)
	return r.transformer.ValidateConsistency(project, bag, r.now()), nil
}

// RepairDataInconsistency rewrites the secondary documents from the
// primary aggregate (the source of truth) and re-validates. The cache is
// invalidated afterward so readers pick up the repaired state.
func (r *ProjectRepository) RepairDataInconsistency(ctx context.Context, projectID string, actor storage.Actor) (*transform.DataQualityReport, error) {
	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	err = r.retryOperation(ctx, func() error {
		_, err := r.engine.Save(ctx, storage.Item{Kind: storage.KindProject, Project: project}, actor)
		return err
	})
	r.invalidateProject(projectID, project.UserID)
	if err != nil {
		return nil, err
	}

	bag := r.engine.ReadBag(ctx, project)
	return r.transformer.ValidateConsistency(project, bag, r.now()), nil
}
