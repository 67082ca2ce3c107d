package repositories

import (
	"context"
	"testing"

	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStoryToProject(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	ack, err := h.repo.SaveStoryToProject(context.Background(), project.ID, dto.SaveStoryRequest{
		Content: "Once upon a launchpad",
		Genre:   "sci-fi",
	}, h.actor)
	require.NoError(t, err)
	assert.True(t, ack.Saved)
	assert.Equal(t, project.ID, ack.ProjectID)

	story, err := h.primary.FindStory(context.Background(), ack.EntityID)
	require.NoError(t, err)
	assert.Equal(t, "Once upon a launchpad", story.Content)
	assert.Equal(t, models.StageStatusCompleted, story.Status)
	// Entity title falls back to the project title.
	assert.Equal(t, "Moon Heist", story.Title)

	// The aggregate was stamped: tag, stage ref and derived metadata.
	stored, err := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, err)
	assert.True(t, stored.Tags.Contains(models.EntityTagStory))
	require.NotNil(t, stored.Pipeline.Story.ID)
	assert.Equal(t, ack.EntityID, *stored.Pipeline.Story.ID)
	assert.True(t, stored.Pipeline.Story.Completed)
	assert.Equal(t, "Once upon a launchpad", stored.MetaString("storyText", ""))

	// The secondary document landed in its collection.
	_, ok := h.secondary.Doc("stories", ack.EntityID)
	assert.True(t, ok)
}

func TestSaveScenarioToProject(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	ack, err := h.repo.SaveScenarioToProject(context.Background(), project.ID, dto.SaveScenarioRequest{
		Scenes:   map[string]interface{}{"1": "opening shot"},
		Setting:  "lunar base",
		Duration: 90,
	}, h.actor)
	require.NoError(t, err)
	assert.True(t, ack.Saved)

	scenario, err := h.primary.FindScenario(context.Background(), ack.EntityID)
	require.NoError(t, err)
	assert.Equal(t, "lunar base", scenario.Setting)
	assert.Equal(t, 90, scenario.Duration)

	_, ok := h.secondary.Doc("scenarios", ack.EntityID)
	assert.True(t, ok)
}

func TestSavePromptToProject(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	ack, err := h.repo.SavePromptToProject(context.Background(), project.ID, dto.SavePromptRequest{
		FinalPrompt: "wide shot of a rocket",
		Style:       "noir",
	}, h.actor)
	require.NoError(t, err)

	prompt, err := h.primary.FindPrompt(context.Background(), ack.EntityID)
	require.NoError(t, err)
	assert.Equal(t, "wide shot of a rocket", prompt.FinalPrompt)

	stored, err := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, "wide shot of a rocket", stored.MetaString("finalPrompt", ""))
	assert.Equal(t, "noir", stored.MetaString("style", ""))
}

func TestSaveVideoToProjectStartsQueued(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")

	ack, err := h.repo.SaveVideoToProject(context.Background(), project.ID, dto.SaveVideoRequest{
		Provider: "pika",
	}, h.actor)
	require.NoError(t, err)

	video, err := h.primary.FindVideo(context.Background(), ack.EntityID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusQueued, video.Status)

	stored, err := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, err)
	assert.False(t, stored.Pipeline.Video.Completed)
	assert.Equal(t, "queued", stored.MetaString("videoStatus", ""))
	assert.Equal(t, "pika", stored.MetaString("provider", ""))
}

func TestSaveEntityUnknownProject(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	_, err := h.repo.SaveStoryToProject(context.Background(), "nope", dto.SaveStoryRequest{Content: "x"}, h.actor)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestUpdateVideoGenerationStatus(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")
	ack, err := h.repo.SaveVideoToProject(context.Background(), project.ID, dto.SaveVideoRequest{}, h.actor)
	require.NoError(t, err)

	_, err = h.repo.UpdateVideoGenerationStatus(context.Background(), ack.EntityID, dto.VideoStatusUpdate{
		Status: string(models.VideoStatusProcessing),
		JobID:  "job-42",
	}, h.actor)
	require.NoError(t, err)

	video, err := h.primary.FindVideo(context.Background(), ack.EntityID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusProcessing, video.Status)
	assert.Equal(t, "job-42", video.JobID)

	_, err = h.repo.UpdateVideoGenerationStatus(context.Background(), ack.EntityID, dto.VideoStatusUpdate{
		Status:   string(models.VideoStatusCompleted),
		VideoURL: "https://cdn/final.mp4",
	}, h.actor)
	require.NoError(t, err)

	stored, err := h.primary.FindProject(context.Background(), project.ID)
	require.NoError(t, err)
	assert.True(t, stored.Pipeline.Video.Completed)
	assert.Equal(t, "https://cdn/final.mp4", stored.Pipeline.Video.VideoURL)
	assert.Equal(t, "completed", stored.MetaString("videoStatus", ""))
}

func TestUpdateVideoGenerationStatusRejectsBadTransition(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")
	ack, err := h.repo.SaveVideoToProject(context.Background(), project.ID, dto.SaveVideoRequest{}, h.actor)
	require.NoError(t, err)

	// queued cannot jump straight to completed.
	_, err = h.repo.UpdateVideoGenerationStatus(context.Background(), ack.EntityID, dto.VideoStatusUpdate{
		Status: string(models.VideoStatusCompleted),
	}, h.actor)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	// failed is terminal.
	_, err = h.repo.UpdateVideoGenerationStatus(context.Background(), ack.EntityID, dto.VideoStatusUpdate{
		Status: string(models.VideoStatusFailed),
	}, h.actor)
	require.NoError(t, err)
	_, err = h.repo.UpdateVideoGenerationStatus(context.Background(), ack.EntityID, dto.VideoStatusUpdate{
		Status: string(models.VideoStatusProcessing),
	}, h.actor)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestCheckDataConsistencyAfterSave(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")
	_, err := h.repo.SaveStoryToProject(context.Background(), project.ID, dto.SaveStoryRequest{Content: "draft"}, h.actor)
	require.NoError(t, err)

	report, err := h.repo.CheckDataConsistency(context.Background(), project.ID)
	require.NoError(t, err)
	assert.True(t, report.IsConsistent)
	assert.Equal(t, 100, report.Score)
}

func TestRepairDataInconsistency(t *testing.T) {
	h := newHarness(t, storage.StrategyPreferred)
	project := h.createProject(t, "Moon Heist")
	ack, err := h.repo.SaveStoryToProject(context.Background(), project.ID, dto.SaveStoryRequest{Content: "draft"}, h.actor)
	require.NoError(t, err)

	// Simulate mirror loss.
	require.NoError(t, h.secondary.Delete(context.Background(), "stories", ack.EntityID))

	report, err := h.repo.CheckDataConsistency(context.Background(), project.ID)
	require.NoError(t, err)
	require.False(t, report.IsConsistent)

	repaired, err := h.repo.RepairDataInconsistency(context.Background(), project.ID, h.actor)
	require.NoError(t, err)
	assert.True(t, repaired.IsConsistent)
	assert.Equal(t, 100, repaired.Score)

	_, ok := h.secondary.Doc("stories", ack.EntityID)
	assert.True(t, ok)
}
