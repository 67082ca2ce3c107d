package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storyreel/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStrategy(mode StrategyMode) Strategy {
	return Strategy{
		Environment:     "test",
		Mode:            mode,
		FallbackEnabled: true,
		RetryAttempts:   1,
		Timeout:         time.Second,
	}
}

func newTestEngine(mode StrategyMode) (*Engine, *MemoryPrimaryStore, *MemorySecondaryStore) {
	primary := NewMemoryPrimaryStore()
	secondary := NewMemorySecondaryStore()
	engine := NewEngine(primary, secondary, nil, testStrategy(mode), testLogger(), nil, nil)
	return engine, primary, secondary
}

func storyProject(id string) *models.Project {
	storyID := id + "-story"
	return &models.Project{
		ID:       id,
		Title:    "Moon Heist",
		UserID:   "user-1",
		Tags:     models.StringSlice{models.EntityTagStory},
		Metadata: models.JSONMap{"storyText": "draft one"},
		Pipeline: models.PipelineStages{
			Story: models.StageRef{ID: &storyID, Completed: true},
		},
	}
}

func TestSaveMirrorsProjectToSecondary(t *testing.T) {
	engine, primary, secondary := newTestEngine(StrategyPreferred)
	p := storyProject("p1")

	result, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: p}, Actor{ID: "user-1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Primary.Saved)
	assert.True(t, result.Secondary.Saved)
	assert.True(t, result.Secondary.Collections["stories"])

	got, err := primary.FindProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Moon Heist", got.Title)

	_, ok := secondary.Doc("stories", "p1-story")
	assert.True(t, ok)
}

func TestSaveFreshProjectMirrorsStoryView(t *testing.T) {
	engine, _, secondary := newTestEngine(StrategyPreferred)
	p := storyProject("p1")
	p.Tags = nil
	p.Pipeline = models.PipelineStages{}

	result, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: p}, Actor{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	// With no tagged stages the story view is mirrored under the project id.
	_, ok := secondary.Doc("stories", "p1")
	assert.True(t, ok)
}

func TestSavePrimaryFailureAborts(t *testing.T) {
	engine, _, secondary := newTestEngine(StrategyPreferred)
	primaryErr := errors.New("connection refused")
	engine.primary.(*MemoryPrimaryStore).FailUpsert = func(Item) error { return primaryErr }

	result, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: storyProject("p1")}, Actor{})
	require.ErrorIs(t, err, primaryErr)
	assert.False(t, result.Success)
	assert.True(t, result.Primary.Attempted)
	assert.False(t, result.Primary.Saved)
	assert.False(t, result.Secondary.Attempted)
	assert.Zero(t, secondary.UpsertCalls)
}

func TestSavePreferredToleratesSecondaryFailure(t *testing.T) {
	engine, primary, secondary := newTestEngine(StrategyPreferred)
	secondary.FailUpsert = func(string) error { return errors.New("mongo down") }

	result, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: storyProject("p1")}, Actor{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Primary.Saved)
	assert.False(t, result.Secondary.Saved)
	assert.NotEmpty(t, result.Secondary.Error)

	// The primary record stands.
	_, err = primary.FindProject(context.Background(), "p1")
	assert.NoError(t, err)
}

func TestSaveRequiredRollsBackOnSecondaryFailure(t *testing.T) {
	engine, primary, secondary := newTestEngine(StrategyRequired)
	secondary.FailUpsert = func(string) error { return errors.New("mongo down") }

	result, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: storyProject("p1")}, Actor{})
	var dsErr *DualStorageError
	require.ErrorAs(t, err, &dsErr)
	assert.False(t, dsErr.RollbackFailed)
	assert.True(t, result.RollbackExecuted)
	assert.False(t, result.Success)

	// The anchor write was compensated away.
	_, err = primary.FindProject(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRequiredRollbackFailureEscalates(t *testing.T) {
	engine, primary, secondary := newTestEngine(StrategyRequired)
	secondary.FailUpsert = func(string) error { return errors.New("mongo down") }
	primary.FailDelete = func(EntityKind, string) error { return errors.New("postgres down too") }

	result, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: storyProject("p1")}, Actor{})
	var dsErr *DualStorageError
	require.ErrorAs(t, err, &dsErr)
	assert.True(t, dsErr.RollbackFailed)
	assert.False(t, result.RollbackExecuted)
	// Known-inconsistent stores must never be retried into.
	assert.False(t, IsRetryable(err))
}

func TestSaveRequiredFailsFastWhenSecondaryDisabled(t *testing.T) {
	engine, primary, secondary := newTestEngine(StrategyRequired)
	secondary.Disabled = true

	_, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: storyProject("p1")}, Actor{})
	var sErr *StorageStrategyError
	require.ErrorAs(t, err, &sErr)
	// Nothing was written anywhere.
	assert.Zero(t, primary.UpsertCalls)
}

func TestSaveFallbackSkipsUnconfiguredSecondary(t *testing.T) {
	engine, _, secondary := newTestEngine(StrategyFallback)
	secondary.Incomplete = true

	result, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: storyProject("p1")}, Actor{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Secondary.Attempted)
	assert.Zero(t, secondary.UpsertCalls)
}

func TestSaveMockNeverTouchesSecondary(t *testing.T) {
	engine, _, secondary := newTestEngine(StrategyMock)

	result, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: storyProject("p1")}, Actor{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Secondary.Attempted)
	assert.Zero(t, secondary.UpsertCalls)
}

func TestSaveEntityTargetsSingleCollection(t *testing.T) {
	engine, primary, secondary := newTestEngine(StrategyPreferred)
	p := storyProject("p1")
	story := &models.Story{
		ID:        "p1-story",
		ProjectID: "p1",
		Title:     "Moon Heist",
		Content:   "draft one",
		Status:    models.StageStatusCompleted,
	}

	result, err := engine.Save(context.Background(), Item{Kind: KindStory, Project: p, Story: story}, Actor{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, map[string]bool{"stories": true}, result.Secondary.Collections)

	got, err := primary.FindStory(context.Background(), "p1-story")
	require.NoError(t, err)
	assert.Equal(t, "draft one", got.Content)

	_, ok := secondary.Doc("stories", "p1-story")
	assert.True(t, ok)
}

func TestSaveTransformationFailureIsNotRetryable(t *testing.T) {
	engine, _, _ := newTestEngine(StrategyRequired)
	p := storyProject("p1")
	p.Title = "" // fails document derivation

	_, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: p}, Actor{})
	var tErr *TransformationError
	require.ErrorAs(t, err, &tErr)
	assert.False(t, IsRetryable(err))
}

func TestDeleteRemovesBothStores(t *testing.T) {
	engine, primary, secondary := newTestEngine(StrategyPreferred)
	p := storyProject("p1")
	_, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: p}, Actor{})
	require.NoError(t, err)

	require.NoError(t, engine.Delete(context.Background(), Item{Kind: KindProject, Project: p}))

	_, err = primary.FindProject(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := secondary.Doc("stories", "p1-story")
	assert.False(t, ok)
}

func TestReadBagReturnsOnlyPresentDocs(t *testing.T) {
	engine, _, _ := newTestEngine(StrategyPreferred)
	p := storyProject("p1")
	_, err := engine.Save(context.Background(), Item{Kind: KindProject, Project: p}, Actor{})
	require.NoError(t, err)

	bag := engine.ReadBag(context.Background(), p)
	require.NotNil(t, bag.Story)
	assert.Equal(t, "draft one", bag.Story.Content)
	assert.Nil(t, bag.Scenario)
	assert.Nil(t, bag.Prompt)
	assert.Nil(t, bag.Video)
}
