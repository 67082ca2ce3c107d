package transform

import "time"

// Secondary store document shapes. One collection per pipeline entity type;
// every document is derived from the project aggregate and keyed by the
// entity id.

// StoryDoc mirrors a project's story stage into the stories collection.
type StoryDoc struct {
	ID        string    `bson:"_id" json:"id"`
	ProjectID string    `bson:"projectId" json:"projectId"`
	UserID    string    `bson:"userId" json:"userId"`
	Title     string    `bson:"title" json:"title"`
	Content   string    `bson:"content" json:"content"`
	Genre     string    `bson:"genre" json:"genre"`
	Tone      string    `bson:"tone" json:"tone"`
	Status    string    `bson:"status" json:"status"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ScenarioDoc mirrors a project's scenario stage into the scenarios collection.
type ScenarioDoc struct {
	ID        string                 `bson:"_id" json:"id"`
	ProjectID string                 `bson:"projectId" json:"projectId"`
	UserID    string                 `bson:"userId" json:"userId"`
	Title     string                 `bson:"title" json:"title"`
	Scenes    map[string]interface{} `bson:"scenes" json:"scenes"`
	Setting   string                 `bson:"setting" json:"setting"`
	Duration  int                    `bson:"duration" json:"duration"`
	Status    string                 `bson:"status" json:"status"`
	UpdatedAt time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// PromptDoc mirrors a project's prompt stage into the prompts collection.
type PromptDoc struct {
	ID          string    `bson:"_id" json:"id"`
	ProjectID   string    `bson:"projectId" json:"projectId"`
	UserID      string    `bson:"userId" json:"userId"`
	Title       string    `bson:"title" json:"title"`
	FinalPrompt string    `bson:"finalPrompt" json:"finalPrompt"`
	Style       string    `bson:"style" json:"style"`
	Status      string    `bson:"status" json:"status"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// VideoDoc mirrors a project's video stage into the videos collection.
type VideoDoc struct {
	ID        string    `bson:"_id" json:"id"`
	ProjectID string    `bson:"projectId" json:"projectId"`
	UserID    string    `bson:"userId" json:"userId"`
	Title     string    `bson:"title" json:"title"`
	JobID     string    `bson:"jobId" json:"jobId"`
	VideoURL  string    `bson:"videoUrl" json:"videoUrl"`
	Provider  string    `bson:"provider" json:"provider"`
	Status    string    `bson:"status" json:"status"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// SecondaryBag collects the documents already written for one project, as
// read back from the secondary store. Nil pointers mean the document is
// absent from its collection.
type SecondaryBag struct {
	Story    *StoryDoc
	Scenario *ScenarioDoc
	Prompt   *PromptDoc
	Video    *VideoDoc
}
