package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/storage"
	"github.com/storyreel/backend/transform"
)

// ErrInvalidStatusTransition rejects status changes outside the project
// and video lifecycle machines. The wrapped message names the edge.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// loadProject fetches the aggregate or maps not-found to the domain error.
func (r *ProjectRepository) loadProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := r.primary.FindProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

// persistAggregate writes the updated project row after an entity save.
// The entity write already mirrored the secondary documents, so this is
// primary-only bookkeeping; failure is logged, not fatal, and the stale
// stage ref heals on the next aggregate write.
func (r *ProjectRepository) persistAggregate(ctx context.Context, project *models.Project) {
	if err := r.primary.Upsert(ctx, storage.Item{Kind: storage.KindProject, Project: project}); err != nil {
		r.logger.Warn("aggregate bookkeeping write failed", "project", project.ID, "error", err)
	}
}

// saveEntity runs the shared entity-save flow: dual write under retry,
// aggregate bookkeeping, cache invalidation, minimal ack.
func (r *ProjectRepository) saveEntity(ctx context.Context, project *models.Project, item storage.Item, actor storage.Actor) (*dto.SaveEntityAck, error) {
	ack := &dto.SaveEntityAck{EntityID: item.ID(), ProjectID: project.ID}

	err := r.retryOperation(ctx, func() error {
		_, err := r.engine.Save(ctx, item, actor)
		return err
	})

	r.invalidateProject(project.ID, project.UserID)
	if err != nil {
		return ack, err
	}

	r.persistAggregate(ctx, project)
	ack.Saved = true
	return ack, nil
}

// SaveStoryToProject persists the story stage and stamps the aggregate's
// tag set, stage ref and metadata.
func (r *ProjectRepository) SaveStoryToProject(ctx context.Context, projectID string, req dto.SaveStoryRequest, actor storage.Actor) (*dto.SaveEntityAck, error) {
	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	id := r.newID()
	title := req.Title
	if title == "" {
		title = project.Title
	}

	story := &models.Story{
		ID:        id,
		ProjectID: projectID,
		Title:     title,
		Content:   req.Content,
		Genre:     req.Genre,
		Tone:      req.Tone,
		Status:    models.StageStatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	project.AddTag(models.EntityTagStory)
	project.Pipeline.Story = models.StageRef{ID: &id, Completed: true}
	if project.Metadata == nil {
		project.Metadata = models.JSONMap{}
	}
	project.Metadata[transform.MetaStoryText] = req.Content
	if req.Genre != "" {
		project.Metadata[transform.MetaGenre] = req.Genre
	}
	if req.Tone != "" {
		project.Metadata[transform.MetaTone] = req.Tone
	}
	project.UpdatedAt = now

	return r.saveEntity(ctx, project, storage.Item{Kind: storage.KindStory, Project: project, Story: story}, actor)
}

// SaveScenarioToProject persists the scenario stage.
func (r *ProjectRepository) SaveScenarioToProject(ctx context.Context, projectID string, req dto.SaveScenarioRequest, actor storage.Actor) (*dto.SaveEntityAck, error) {
	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	id := r.newID()
	title := req.Title
	if title == "" {
		title = project.Title
	}

	scenario := &models.Scenario{
		ID:        id,
		ProjectID: projectID,
		Title:     title,
		Scenes:    models.JSONMap(req.Scenes),
		Setting:   req.Setting,
		Duration:  req.Duration,
		Status:    models.StageStatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	project.AddTag(models.EntityTagScenario)
	project.Pipeline.Scenario = models.StageRef{ID: &id, Completed: true}
	if project.Metadata == nil {
		project.Metadata = models.JSONMap{}
	}
	project.Metadata["scenes"] = map[string]interface{}(req.Scenes)
	if req.Setting != "" {
		project.Metadata[transform.MetaSetting] = req.Setting
	}
	if req.Duration > 0 {
		project.Metadata["duration"] = req.Duration
	}
	project.UpdatedAt = now

	return r.saveEntity(ctx, project, storage.Item{Kind: storage.KindScenario, Project: project, Scenario: scenario}, actor)
}

// SavePromptToProject persists the prompt stage.
func (r *ProjectRepository) SavePromptToProject(ctx context.Context, projectID string, req dto.SavePromptRequest, actor storage.Actor) (*dto.SaveEntityAck, error) {
	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	id := r.newID()
	title := req.Title
	if title == "" {
		title = project.Title
	}

	prompt := &models.Prompt{
		ID:          id,
		ProjectID:   projectID,
		Title:       title,
		FinalPrompt: req.FinalPrompt,
		Style:       req.Style,
		Fragments:   models.JSONMap(req.Fragments),
		Status:      models.StageStatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	project.AddTag(models.EntityTagPrompt)
	project.Pipeline.Prompt = models.StageRef{ID: &id, Completed: true}
	if project.Metadata == nil {
		project.Metadata = models.JSONMap{}
	}
	project.Metadata[transform.MetaFinalPrompt] = req.FinalPrompt
	if req.Style != "" {
		project.Metadata[transform.MetaStyle] = req.Style
	}
	project.UpdatedAt = now

	return r.saveEntity(ctx, project, storage.Item{Kind: storage.KindPrompt, Project: project, Prompt: prompt}, actor)
}

// SaveVideoToProject persists a video generation job in queued state.
func (r *ProjectRepository) SaveVideoToProject(ctx context.Context, projectID string, req dto.SaveVideoRequest, actor storage.Actor) (*dto.SaveEntityAck, error) {
	project, err := r.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	id := r.newID()

	video := &models.VideoGeneration{
		ID:        id,
		ProjectID: projectID,
		PromptID:  req.PromptID,
		JobID:     req.JobID,
		Provider:  req.Provider,
		VideoURL:  req.VideoURL,
		Duration:  req.Duration,
		Status:    models.VideoStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	project.AddTag(models.EntityTagVideo)
	project.Pipeline.Video = models.VideoStageRef{
		ID:       &id,
		JobID:    req.JobID,
		VideoURL: req.VideoURL,
	}
	if project.Metadata == nil {
		project.Metadata = models.JSONMap{}
	}
	project.Metadata[transform.MetaVideoStatus] = string(models.VideoStatusQueued)
	if req.Provider != "" {
		project.Metadata[transform.MetaProvider] = req.Provider
	}
	if req.VideoURL != "" {
		project.Metadata[transform.MetaVideoURL] = req.VideoURL
	}
	project.UpdatedAt = now

	return r.saveEntity(ctx, project, storage.Item{Kind: storage.KindVideo, Project: project, Video: video}, actor)
}

// videoTransitions is the allowed status machine for generation jobs.
var videoTransitions = map[models.VideoStatus][]models.VideoStatus{
	models.VideoStatusQueued:     {models.VideoStatusProcessing, models.VideoStatusFailed},
	models.VideoStatusProcessing: {models.VideoStatusCompleted, models.VideoStatusFailed},
}

// UpdateVideoGenerationStatus transitions a job and keeps the aggregate's
// video stage ref in step.
func (r *ProjectRepository) UpdateVideoGenerationStatus(ctx context.Context, videoID string, update dto.VideoStatusUpdate, actor storage.Actor) (*dto.SaveEntityAck, error) {
	video, err := r.primary.FindVideo(ctx, videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("video generation %s: %w", videoID, ErrProjectNotFound)
		}
		return nil, err
	}

	next := models.VideoStatus(update.Status)
	allowed := false
	for _, s := range videoTransitions[video.Status] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, video.Status, next)
	}

	project, err := r.loadProject(ctx, video.ProjectID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	video.Status = next
	video.UpdatedAt = now
	if update.JobID != "" {
		video.JobID = update.JobID
	}
	if update.VideoURL != "" {
		video.VideoURL = update.VideoURL
	}
	if update.Error != "" {
		video.ErrorMessage = update.Error
	}

	project.Pipeline.Video.JobID = video.JobID
	project.Pipeline.Video.VideoURL = video.VideoURL
	project.Pipeline.Video.Completed = next == models.VideoStatusCompleted
	if project.Metadata == nil {
		project.Metadata = models.JSONMap{}
	}
	project.Metadata[transform.MetaVideoStatus] = string(next)
	if video.VideoURL != "" {
		project.Metadata[transform.MetaVideoURL] = video.VideoURL
	}
	project.UpdatedAt = now

	return r.saveEntity(ctx, project, storage.Item{Kind: storage.KindVideo, Project: project, Video: video}, actor)
}
