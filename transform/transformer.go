package transform

import (
	"fmt"

	"github.com/storyreel/backend/models"
)

// ValidationError reports a missing required field on the primary record.
// It is deterministic: the same input always fails the same way, so callers
// must not retry it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field %q: %s", e.Field, e.Message)
}

// Metadata keys the secondary documents derive from, with their defaults.
const (
	MetaStoryText   = "storyText"
	MetaGenre       = "genre"
	MetaTone        = "tone"
	MetaSetting     = "setting"
	MetaFinalPrompt = "finalPrompt"
	MetaStyle       = "style"
	MetaVideoURL    = "videoUrl"
	MetaProvider    = "provider"
	MetaVideoStatus = "videoStatus"

	DefaultGenre    = "general"
	DefaultTone     = "neutral"
	DefaultStyle    = "cinematic"
	DefaultProvider = "runway"
)

// Transformer converts the canonical project aggregate into per-entity
// secondary documents. It is stateless and side-effect free: identical
// inputs always produce identical outputs, which is what makes caching and
// retries elsewhere safe.
type Transformer struct{}

// NewTransformer creates a schema transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// validate checks the fields every document derivation requires. This is
// the only failure mode of the transforms.
func (t *Transformer) validate(p *models.Project) error {
	if p.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if p.UserID == "" {
		return &ValidationError{Field: "userId", Message: "owning user id is required"}
	}
	return nil
}

func stageID(ref *string, fallback string) string {
	if ref != nil && *ref != "" {
		return *ref
	}
	return fallback
}

func stageStatus(completed bool) string {
	if completed {
		return string(models.StageStatusCompleted)
	}
	return string(models.StageStatusPending)
}

// ToStory derives the stories-collection document. Total for any valid
// project: missing optional metadata falls back to documented defaults.
func (t *Transformer) ToStory(p *models.Project) (*StoryDoc, error) {
	if err := t.validate(p); err != nil {
		return nil, err
	}
	return &StoryDoc{
		ID:        stageID(p.Pipeline.Story.ID, p.ID),
		ProjectID: p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		Content:   p.MetaString(MetaStoryText, ""),
		Genre:     p.MetaString(MetaGenre, DefaultGenre),
		Tone:      p.MetaString(MetaTone, DefaultTone),
		Status:    stageStatus(p.Pipeline.Story.Completed),
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// ToScenario derives the scenarios-collection document.
func (t *Transformer) ToScenario(p *models.Project) (*ScenarioDoc, error) {
	if err := t.validate(p); err != nil {
		return nil, err
	}

	scenes := map[string]interface{}{}
	if raw, ok := p.Metadata["scenes"].(map[string]interface{}); ok {
		scenes = raw
	}

	duration := 0
	switch v := p.Metadata["duration"].(type) {
	case float64: // numbers decoded from JSONB arrive as float64
		duration = int(v)
	case int:
		duration = v
	}

	return &ScenarioDoc{
		ID:        stageID(p.Pipeline.Scenario.ID, p.ID),
		ProjectID: p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		Scenes:    scenes,
		Setting:   p.MetaString(MetaSetting, ""),
		Duration:  duration,
		Status:    stageStatus(p.Pipeline.Scenario.Completed),
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// ToPrompt derives the prompts-collection document.
func (t *Transformer) ToPrompt(p *models.Project) (*PromptDoc, error) {
	if err := t.validate(p); err != nil {
		return nil, err
	}
	return &PromptDoc{
		ID:          stageID(p.Pipeline.Prompt.ID, p.ID),
		ProjectID:   p.ID,
		UserID:      p.UserID,
		Title:       p.Title,
		FinalPrompt: p.MetaString(MetaFinalPrompt, ""),
		Style:       p.MetaString(MetaStyle, DefaultStyle),
		Status:      stageStatus(p.Pipeline.Prompt.Completed),
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

// ToVideo derives the videos-collection document.
func (t *Transformer) ToVideo(p *models.Project) (*VideoDoc, error) {
	if err := t.validate(p); err != nil {
		return nil, err
	}

	status := p.MetaString(MetaVideoStatus, string(models.VideoStatusQueued))
	if p.Pipeline.Video.Completed {
		status = string(models.VideoStatusCompleted)
	}

	return &VideoDoc{
		ID:        stageID(p.Pipeline.Video.ID, p.ID),
		ProjectID: p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		JobID:     p.Pipeline.Video.JobID,
		VideoURL:  videoURL(p),
		Provider:  p.MetaString(MetaProvider, DefaultProvider),
		Status:    status,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

func videoURL(p *models.Project) string {
	if p.Pipeline.Video.VideoURL != "" {
		return p.Pipeline.Video.VideoURL
	}
	return p.MetaString(MetaVideoURL, "")
}

// ForKind derives the document for one pipeline entity kind, returning the
// document id alongside it. The kind must be one of the four entity tags.
func (t *Transformer) ForKind(kind string, p *models.Project) (id string, doc interface{}, err error) {
	switch kind {
	case models.EntityTagStory:
		d, err := t.ToStory(p)
		if err != nil {
			return "", nil, err
		}
		return d.ID, d, nil
	case models.EntityTagScenario:
		d, err := t.ToScenario(p)
		if err != nil {
			return "", nil, err
		}
		return d.ID, d, nil
	case models.EntityTagPrompt:
		d, err := t.ToPrompt(p)
		if err != nil {
			return "", nil, err
		}
		return d.ID, d, nil
	case models.EntityTagVideo:
		d, err := t.ToVideo(p)
		if err != nil {
			return "", nil, err
		}
		return d.ID, d, nil
	}
	return "", nil, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown entity kind %q", kind)}
}
